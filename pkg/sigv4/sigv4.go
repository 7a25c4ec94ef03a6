// Package sigv4 verifies AWS Signature Version 4 on incoming HTTP
// requests. It is an external collaborator: the accounting core never
// imports it, and never sees an unauthenticated request — this package
// is wired once, at the HTTP edge, by adapters/http.
package sigv4

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsv4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// ErrUnsigned marks a request missing required signature material.
var ErrUnsigned = errors.New("sigv4: request is not signed")

// ErrBadSignature marks a request whose recomputed signature does not
// match the one presented.
var ErrBadSignature = errors.New("sigv4: signature mismatch")

// requiredSignedHeaders must all be members of the SignedHeaders set on
// every authenticated request.
var requiredSignedHeaders = []string{"content-type", "host", "x-amz-content-sha256", "x-amz-date"}

// Credentials is one access-key/secret-key pair.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// CredentialSource looks up the secret key for an access key ID. It is
// the pluggable seam that keeps this package independent of any
// specific credential store.
type CredentialSource interface {
	Lookup(ctx context.Context, accessKeyID string) (Credentials, error)
}

// StaticCredentialSource resolves every access key against a fixed map,
// useful for tests and single-tenant deployments.
type StaticCredentialSource map[string]string

// Lookup implements CredentialSource.
func (s StaticCredentialSource) Lookup(_ context.Context, accessKeyID string) (Credentials, error) {
	secret, ok := s[accessKeyID]
	if !ok {
		return Credentials{}, fmt.Errorf("sigv4: unknown access key %q", accessKeyID)
	}
	return Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secret}, nil
}

// Verifier checks AWS SigV4 signatures over a fixed service and region.
type Verifier struct {
	service string
	region  string
	creds   CredentialSource
	signer  *awsv4.Signer
}

// New creates a Verifier for the given service and region (utapi's HTTP
// surface is signed as service "s3", region "us-east-1", matching the
// storage service whose usage it tracks).
func New(service, region string, creds CredentialSource) *Verifier {
	return &Verifier{
		service: service,
		region:  region,
		creds:   creds,
		signer:  awsv4.NewSigner(),
	}
}

// Verify checks r's Authorization header. On success it returns the
// access key ID that signed the request.
func (v *Verifier) Verify(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrUnsigned
	}

	accessKeyID, signedHeaders, err := parseAuthorizationHeader(authHeader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsigned, err)
	}

	for _, h := range requiredSignedHeaders {
		if !containsFold(signedHeaders, h) {
			return "", fmt.Errorf("%w: %q missing from signed headers", ErrUnsigned, h)
		}
	}

	amzDate := r.Header.Get("X-Amz-Date")
	if amzDate == "" {
		return "", fmt.Errorf("%w: missing X-Amz-Date", ErrUnsigned)
	}
	signTime, err := time.Parse("20060102T150405Z", amzDate)
	if err != nil {
		return "", fmt.Errorf("%w: malformed X-Amz-Date: %v", ErrUnsigned, err)
	}

	payloadHash := r.Header.Get("X-Amz-Content-Sha256")
	if payloadHash == "" {
		payloadHash, err = hashBody(r)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnsigned, err)
		}
	}

	creds, err := v.creds.Lookup(r.Context(), accessKeyID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	toSign := r.Clone(r.Context())
	toSign.Header = http.Header{}
	for _, h := range signedHeaders {
		if vals := r.Header.Values(h); len(vals) > 0 {
			toSign.Header[http.CanonicalHeaderKey(h)] = vals
		}
	}
	toSign.Host = r.Host

	awsCreds := aws.Credentials{AccessKeyID: creds.AccessKeyID, SecretAccessKey: creds.SecretAccessKey}
	if err := v.signer.SignHTTP(r.Context(), awsCreds, toSign, payloadHash, v.service, v.region, signTime); err != nil {
		return "", fmt.Errorf("sigv4: resign for comparison: %w", err)
	}

	if toSign.Header.Get("Authorization") != authHeader {
		return "", ErrBadSignature
	}

	return accessKeyID, nil
}

// Middleware wraps an http.Handler, rejecting unsigned or
// badly-signed requests with 403 before the handler runs.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := v.Verify(r); err != nil {
			http.Error(w, "request signature invalid", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hashBody(r *http.Request) (string, error) {
	if r.Body == nil {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// parseAuthorizationHeader extracts the access key ID and the
// SignedHeaders list from an
// "AWS4-HMAC-SHA256 Credential=.../SignedHeaders=...,Signature=..." header.
func parseAuthorizationHeader(header string) (accessKeyID string, signedHeaders []string, err error) {
	if !strings.HasPrefix(header, "AWS4-HMAC-SHA256 ") {
		return "", nil, errors.New("unsupported authorization scheme")
	}
	rest := strings.TrimPrefix(header, "AWS4-HMAC-SHA256 ")

	fields := strings.Split(rest, ", ")
	var credential, signedHeadersRaw string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		switch {
		case strings.HasPrefix(f, "Credential="):
			credential = strings.TrimPrefix(f, "Credential=")
		case strings.HasPrefix(f, "SignedHeaders="):
			signedHeadersRaw = strings.TrimPrefix(f, "SignedHeaders=")
		}
	}
	if credential == "" || signedHeadersRaw == "" {
		return "", nil, errors.New("missing Credential or SignedHeaders")
	}

	parts := strings.Split(credential, "/")
	if len(parts) < 1 {
		return "", nil, errors.New("malformed Credential scope")
	}
	accessKeyID = parts[0]
	signedHeaders = strings.Split(signedHeadersRaw, ";")
	return accessKeyID, signedHeaders, nil
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
