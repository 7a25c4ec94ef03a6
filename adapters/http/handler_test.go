package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apihttp "github.com/scality/utapi/adapters/http"
	"github.com/scality/utapi/adapters/memstore"
	"github.com/scality/utapi/app"
	"github.com/scality/utapi/domain/metric"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestRouter(store *memstore.Store) http.Handler {
	buckets := app.NewLister(app.ListerDeps{Store: store}, app.ListerConfig{Level: metric.LevelBucket}, testLogger())
	accounts := app.NewLister(app.ListerDeps{Store: store}, app.ListerConfig{Level: metric.LevelAccount}, testLogger())
	service := app.NewLister(app.ListerDeps{Store: store}, app.ListerConfig{Level: metric.LevelService}, testLogger())
	dispatcher := app.NewDispatcher(buckets, accounts, service, app.DispatcherConfig{Component: "s3"})

	metricsHandler := apihttp.NewMetricsHandler(dispatcher, testLogger(), nil)
	healthHandler := apihttp.NewHealthHandler()

	return apihttp.NewRouter(testLogger(), apihttp.RouterConfig{
		MetricsHandler: metricsHandler,
		HealthHandler:  healthHandler,
	})
}

func TestListMetrics_BucketsHappyPath(t *testing.T) {
	store := memstore.New()
	router := newTestRouter(store)

	body := bytes.NewBufferString(`{"buckets":["mybucket"],"timeRange":[0,900000]}`)
	req := httptest.NewRequest(http.MethodPost, "/buckets?Action=ListMetrics&Version=20160815", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}

	var elements []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &elements); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(elements) != 1 {
		t.Fatalf("len(elements) = %d, want 1", len(elements))
	}
	if elements[0]["bucketName"] != "mybucket" {
		t.Errorf("bucketName = %v, want mybucket", elements[0]["bucketName"])
	}
	ops, ok := elements[0]["operations"].(map[string]any)
	if !ok {
		t.Fatalf("operations field missing or wrong type")
	}
	if _, ok := ops["s3:CreateBucket"]; !ok {
		t.Errorf("operations missing s3: prefix, got keys %v", ops)
	}
}

func TestListMetrics_ServiceFamilyIgnoresBody(t *testing.T) {
	store := memstore.New()
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/service?Action=ListMetrics&Version=20160815", bytes.NewBufferString(`{"timeRange":[0,900000]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var elements []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &elements)
	if len(elements) != 1 || elements[0]["serviceName"] != "s3" {
		t.Errorf("expected single s3 service element, got %v", elements)
	}
}

func TestListMetrics_MissingActionRejected(t *testing.T) {
	store := memstore.New()
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/buckets", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListMetrics_EmptyBucketListRejected(t *testing.T) {
	store := memstore.New()
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/buckets?Action=ListMetrics&Version=20160815", bytes.NewBufferString(`{"timeRange":[0,900000]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	store := memstore.New()
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/_/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != `{"status":"ok"}`+"\n" {
		t.Errorf("body = %q", body)
	}
}

func TestMetricsScrapeEndpoint(t *testing.T) {
	store := memstore.New()
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
