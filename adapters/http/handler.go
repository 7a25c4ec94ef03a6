// Package http provides the HTTP surface for utapi: the ListMetrics
// endpoint, health checks, and the Prometheus scrape endpoint. It is an
// external collaborator — the accounting core (app.Dispatcher) never
// imports this package, only the reverse.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/scality/utapi/adapters/metrics"
	"github.com/scality/utapi/app"
	_ "github.com/scality/utapi/docs" // swagger docs
	"github.com/scality/utapi/domain/metric"
)

// ErrorResponseBody is the JSON body returned on request failure.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries an error code and message for swagger docs.
type ErrorDetail struct {
	Code    string `json:"code" example:"invalid_request"`
	Message string `json:"message" example:"timeRange end precedes start"`
}

// listMetricsRequest is the JSON request body for ListMetrics.
type listMetricsRequest struct {
	Buckets   []string `json:"buckets,omitempty"`
	Accounts  []string `json:"accounts,omitempty"`
	TimeRange [2]int64 `json:"timeRange"`
}

// resourceIDs returns whichever of Buckets/Accounts was populated,
// since the request body only ever carries one depending on family.
func (r listMetricsRequest) resourceIDs(family app.Family) []string {
	switch family {
	case app.FamilyBuckets:
		return r.Buckets
	case app.FamilyAccounts:
		return r.Accounts
	default:
		return nil
	}
}

// listMetricsResponseElement is one element of the JSON array response.
type listMetricsResponseElement struct {
	BucketName      string           `json:"bucketName,omitempty"`
	AccountID       string           `json:"accountId,omitempty"`
	ServiceName     string           `json:"serviceName,omitempty"`
	TimeRange       [2]int64         `json:"timeRange"`
	StorageUtilized [2]int64         `json:"storageUtilized"`
	IncomingBytes   int64            `json:"incomingBytes"`
	OutgoingBytes   int64            `json:"outgoingBytes"`
	NumberOfObjects [2]int64         `json:"numberOfObjects"`
	Operations      map[string]int64 `json:"operations"`
}

func newResponseElement(family app.Family, rm metric.ResourceMetrics) listMetricsResponseElement {
	ops := make(map[string]int64, len(rm.Operations))
	for name, count := range rm.Operations {
		ops["s3:"+name] = count
	}

	el := listMetricsResponseElement{
		TimeRange:       rm.TimeRange,
		StorageUtilized: [2]int64{metric.ClampAbsolute(rm.StorageUtilized[0]), metric.ClampAbsolute(rm.StorageUtilized[1])},
		IncomingBytes:   rm.IncomingBytes,
		OutgoingBytes:   rm.OutgoingBytes,
		NumberOfObjects: [2]int64{metric.ClampAbsolute(rm.NumberOfObjects[0]), metric.ClampAbsolute(rm.NumberOfObjects[1])},
		Operations:      ops,
	}

	switch family {
	case app.FamilyBuckets:
		el.BucketName = rm.ResourceID
	case app.FamilyAccounts:
		el.AccountID = rm.ResourceID
	case app.FamilyService:
		el.ServiceName = rm.ResourceID
	}
	return el
}

// MetricsHandler exposes the ListMetrics endpoint over HTTP.
type MetricsHandler struct {
	dispatcher *app.Dispatcher
	logger     zerolog.Logger
	metrics    *metrics.Collector
}

// NewMetricsHandler creates a ListMetrics HTTP handler.
func NewMetricsHandler(dispatcher *app.Dispatcher, logger zerolog.Logger, m *metrics.Collector) *MetricsHandler {
	return &MetricsHandler{dispatcher: dispatcher, logger: logger, metrics: m}
}

// ServeHTTP handles POST /{family}?Action=ListMetrics&Version=20160815.
//
//	@Summary		List utilization metrics
//	@Description	Returns per-resource operation counters, traffic, and storage/object levels over a time range
//	@Tags			Metrics
//	@Accept			json
//	@Produce		json
//	@Param			family	path		string				true	"Resource family"	Enums(buckets, accounts, service)
//	@Param			Action	query		string				true	"Must be ListMetrics"
//	@Param			Version	query		string				true	"API version, e.g. 20160815"
//	@Param			body	body		listMetricsRequest	true	"Resource list and time range"
//	@Success		200		{array}		listMetricsResponseElement
//	@Failure		400		{object}	ErrorResponseBody
//	@Failure		403		{object}	ErrorResponseBody
//	@Failure		500		{object}	ErrorResponseBody
//	@Router			/{family} [post]
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	family := app.Family(chi.URLParam(r, "family"))

	if r.URL.Query().Get("Action") != "ListMetrics" {
		writeError(w, http.StatusBadRequest, "unsupported_action", "only Action=ListMetrics is supported")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	var req listMetricsRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
			return
		}
	}

	results, err := h.dispatcher.Dispatch(r.Context(), family, req.resourceIDs(family), req.TimeRange[0], req.TimeRange[1])
	if err != nil {
		h.respondError(w, family, err)
		return
	}

	elements := make([]listMetricsResponseElement, len(results))
	for i, rm := range results {
		elements[i] = newResponseElement(family, rm)
	}

	if h.metrics != nil {
		h.metrics.ListDuration.WithLabelValues(string(family)).Observe(time.Since(start).Seconds())
		h.metrics.ListResources.WithLabelValues(string(family)).Observe(float64(len(elements)))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(elements); err != nil {
		h.logger.Error().Err(err).Msg("failed to write ListMetrics response")
	}
}

func (h *MetricsHandler) respondError(w http.ResponseWriter, family app.Family, err error) {
	switch {
	case errors.Is(err, metric.ErrPrecondition):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.logger.Error().Err(err).Str("family", string(family)).Msg("ListMetrics failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list metrics")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponseBody{Error: ErrorDetail{Code: code, Message: message}})
}

// HealthHandler serves liveness checks.
type HealthHandler struct{}

// NewHealthHandler creates a health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Liveness returns 200 if the process is up.
//
//	@Summary		Liveness check
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/_/health [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RouterConfig holds the dependencies a router is assembled from.
type RouterConfig struct {
	MetricsHandler *MetricsHandler
	HealthHandler  *HealthHandler
	Verifier       Authenticator
	Metrics        *metrics.Collector
	EnableSwagger  bool
}

// Authenticator authenticates an inbound request, returning an error
// when the request is unsigned or the signature does not verify.
// pkg/sigv4.Verifier satisfies this.
type Authenticator interface {
	Verify(r *http.Request) (accessKeyID string, err error)
}

// NewRouter assembles utapi's chi router.
func NewRouter(logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/_/health", cfg.HealthHandler.Liveness)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler())
	}

	authenticated := func(next http.HandlerFunc) http.HandlerFunc {
		if cfg.Verifier == nil {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			if _, err := cfg.Verifier.Verify(r); err != nil {
				writeError(w, http.StatusForbidden, "invalid_signature", "request signature invalid")
				return
			}
			next(w, r)
		}
	}

	r.Post("/{family}", authenticated(cfg.MetricsHandler.ServeHTTP))

	return r
}
