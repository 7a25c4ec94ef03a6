package sigv4

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsv4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/stretchr/testify/require"
)

func signedRequest(t *testing.T, accessKeyID, secretKey string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "http://utapi.local/buckets?Action=ListMetrics", nil)
	req.Header.Set("Content-Type", "application/json")

	signTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	req.Header.Set("X-Amz-Date", signTime.Format("20060102T150405Z"))
	req.Header.Set("X-Amz-Content-Sha256", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")

	signer := awsv4.NewSigner()
	creds := aws.Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secretKey}
	err := signer.SignHTTP(context.Background(), creds, req, req.Header.Get("X-Amz-Content-Sha256"), "s3", "us-east-1", signTime)
	require.NoError(t, err)

	return req
}

func TestVerify_ValidSignature(t *testing.T) {
	req := signedRequest(t, "AKIDEXAMPLE", "secretkey")
	v := New("s3", "us-east-1", StaticCredentialSource{"AKIDEXAMPLE": "secretkey"})

	accessKeyID, err := v.Verify(req)
	require.NoError(t, err)
	require.Equal(t, "AKIDEXAMPLE", accessKeyID)
}

func TestVerify_MissingAuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://utapi.local/buckets", nil)
	v := New("s3", "us-east-1", StaticCredentialSource{})

	_, err := v.Verify(req)
	require.ErrorIs(t, err, ErrUnsigned)
}

func TestVerify_WrongSecretFailsSignatureCheck(t *testing.T) {
	req := signedRequest(t, "AKIDEXAMPLE", "secretkey")
	v := New("s3", "us-east-1", StaticCredentialSource{"AKIDEXAMPLE": "wrong-secret"})

	_, err := v.Verify(req)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerify_UnknownAccessKey(t *testing.T) {
	req := signedRequest(t, "AKIDEXAMPLE", "secretkey")
	v := New("s3", "us-east-1", StaticCredentialSource{})

	_, err := v.Verify(req)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestMiddleware_RejectsUnsigned(t *testing.T) {
	v := New("s3", "us-east-1", StaticCredentialSource{})
	called := false
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "http://utapi.local/buckets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestParseAuthorizationHeader(t *testing.T) {
	header := "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240101/us-east-1/s3/aws4_request, SignedHeaders=content-type;host;x-amz-content-sha256;x-amz-date, Signature=abc123"

	accessKeyID, signedHeaders, err := parseAuthorizationHeader(header)
	require.NoError(t, err)
	require.Equal(t, "AKIDEXAMPLE", accessKeyID)
	require.Equal(t, []string{"content-type", "host", "x-amz-content-sha256", "x-amz-date"}, signedHeaders)
}

func TestParseAuthorizationHeader_UnsupportedScheme(t *testing.T) {
	_, _, err := parseAuthorizationHeader("Bearer sometoken")
	require.Error(t, err)
}
