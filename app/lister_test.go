package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/scality/utapi/adapters/clock"
	"github.com/scality/utapi/adapters/memstore"
	"github.com/scality/utapi/adapters/metrics"
	"github.com/scality/utapi/app"
	"github.com/scality/utapi/domain/metric"
	"github.com/scality/utapi/ports"
)

func newBucketLister(store *memstore.Store) *app.Lister {
	return app.NewLister(app.ListerDeps{Store: store}, app.ListerConfig{Level: metric.LevelBucket}, testLogger())
}

// partialFailStore forces the first result of every batch to carry a
// per-command error while the batch itself still succeeds, simulating a
// single degraded read.
type partialFailStore struct {
	*memstore.Store
}

func (p *partialFailStore) Batch(ctx context.Context, cmds []ports.Command) ([]ports.Result, error) {
	results, err := p.Store.Batch(ctx, cmds)
	if err != nil {
		return results, err
	}
	if len(results) > 0 {
		results[0].Err = errors.New("simulated read failure")
	}
	return results, nil
}

func TestListMetrics_RecordsBatchSizeAndDegradation(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	store := &partialFailStore{Store: memstore.New()}
	lister := app.NewLister(app.ListerDeps{Store: store, Metrics: m}, app.ListerConfig{Level: metric.LevelBucket}, testLogger())

	_, err := lister.ListMetrics(ctx, []string{"B"}, 0, 900000)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	var sawBatchSize, sawDegradation bool
	for _, f := range families {
		switch f.GetName() {
		case "utapi_datastore_batch_size":
			sawBatchSize = f.GetMetric()[0].GetHistogram().GetSampleCount() > 0
		case "utapi_list_metrics_degradations_total":
			sawDegradation = f.GetMetric()[0].GetCounter().GetValue() > 0
		}
	}
	require.True(t, sawBatchSize, "expected batch size to be observed")
	require.True(t, sawDegradation, "expected a degradation to be recorded")
}

// TestListMetrics_Scenario1 is spec scenario 1: CreateBucket then
// PutObject in the same interval, queried over exactly that interval.
func TestListMetrics_Scenario1(t *testing.T) {
	ctx := context.Background()
	const t0 = int64(1500000000000)
	fc := clock.NewFake(time.UnixMilli(t0).UTC())
	store := memstore.New()
	c := app.NewClient(app.ClientDeps{Store: store, Clock: fc}, app.ClientConfig{Component: "s3"}, testLogger())

	require.NoError(t, c.PushMetric(ctx, metric.CreateBucket, "r1", metric.Params{Bucket: "B"}))
	fc.Advance(60 * time.Second)
	require.NoError(t, c.PushMetric(ctx, metric.PutObject, "r2", metric.Params{Bucket: "B", NewByteLength: int64p(1024)}))

	lister := newBucketLister(store)
	results, err := lister.ListMetrics(ctx, []string{"B"}, t0, t0+15*60*1000)
	require.NoError(t, err)
	require.Len(t, results, 1)

	rm := results[0]
	require.Equal(t, [2]int64{0, 1024}, rm.StorageUtilized)
	require.Equal(t, [2]int64{0, 1}, rm.NumberOfObjects)
	require.Equal(t, int64(1024), rm.IncomingBytes)
	require.Equal(t, int64(1), rm.Operations[string(metric.CreateBucket)])
	require.Equal(t, int64(1), rm.Operations[string(metric.PutObject)])
}

// TestListMetrics_Scenario3 is spec scenario 3: a delete that exceeds the
// current storage counter drives it negative, but the read-time sample
// is clamped at zero.
func TestListMetrics_Scenario3(t *testing.T) {
	ctx := context.Background()
	const t0 = int64(1500000000000)
	fc := clock.NewFake(time.UnixMilli(t0).UTC())
	store := memstore.New()
	c := app.NewClient(app.ClientDeps{Store: store, Clock: fc}, app.ClientConfig{Component: "s3"}, testLogger())

	require.NoError(t, c.PushMetric(ctx, metric.DeleteObject, "r1", metric.Params{
		Bucket: "B", ByteLength: int64p(500), NumberOfObjects: int64p(1),
	}))

	lister := newBucketLister(store)
	results, err := lister.ListMetrics(ctx, []string{"B"}, t0, t0+15*60*1000)
	require.NoError(t, err)
	require.Equal(t, int64(0), results[0].StorageUtilized[1])
}

// TestListMetrics_Scenario4 is spec scenario 4: five 1 MiB UploadPart
// calls in one interval.
func TestListMetrics_Scenario4(t *testing.T) {
	ctx := context.Background()
	const t0 = int64(1500000000000)
	const mib = 1 << 20
	fc := clock.NewFake(time.UnixMilli(t0).UTC())
	store := memstore.New()
	c := app.NewClient(app.ClientDeps{Store: store, Clock: fc}, app.ClientConfig{Component: "s3"}, testLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, c.PushMetric(ctx, metric.UploadPart, "r1", metric.Params{Bucket: "B", NewByteLength: int64p(mib)}))
	}

	lister := newBucketLister(store)
	results, err := lister.ListMetrics(ctx, []string{"B"}, t0, t0+15*60*1000)
	require.NoError(t, err)
	rm := results[0]
	require.Equal(t, int64(5*mib), rm.StorageUtilized[1])
	require.Equal(t, int64(5*mib), rm.IncomingBytes)
	require.Equal(t, int64(5), rm.Operations[string(metric.UploadPart)])
}

// TestListMetrics_Scenario6 is spec scenario 6: a 97-interval range
// folds into exactly one metrics record per resource.
func TestListMetrics_Scenario6(t *testing.T) {
	ctx := context.Background()
	const t0 = int64(1500000000000)
	store := memstore.New()
	lister := newBucketLister(store)

	end := t0 + 97*15*60*1000
	results, err := lister.ListMetrics(ctx, []string{"B"}, t0, end)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, [2]int64{t0, end}, results[0].TimeRange)
}

func TestListMetrics_ZeroLengthRangeYieldsZeroDeltas(t *testing.T) {
	ctx := context.Background()
	const t0 = int64(1500000000000)
	fc := clock.NewFake(time.UnixMilli(t0).UTC())
	store := memstore.New()
	c := app.NewClient(app.ClientDeps{Store: store, Clock: fc}, app.ClientConfig{Component: "s3"}, testLogger())
	require.NoError(t, c.PushMetric(ctx, metric.PutObject, "r1", metric.Params{Bucket: "B", NewByteLength: int64p(1024)}))

	lister := newBucketLister(store)
	results, err := lister.ListMetrics(ctx, []string{"B"}, t0, t0)
	require.NoError(t, err)

	rm := results[0]
	require.Equal(t, int64(0), rm.IncomingBytes)
	require.Equal(t, rm.StorageUtilized[0], rm.StorageUtilized[1])
}

func TestListMetrics_RangeBeforeAnyEventReadsZero(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	lister := newBucketLister(store)

	results, err := lister.ListMetrics(ctx, []string{"unknown-bucket"}, 0, 900000)
	require.NoError(t, err)
	require.Equal(t, int64(0), results[0].StorageUtilized[0])
}

func TestListMetrics_IntervalAlignment(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 7, 0, 0, time.UTC)
	fc := clock.NewFake(base)
	store := memstore.New()
	c := app.NewClient(app.ClientDeps{Store: store, Clock: fc}, app.ClientConfig{Component: "s3"}, testLogger())
	require.NoError(t, c.PushMetric(ctx, metric.CreateBucket, "r1", metric.Params{Bucket: "B"}))

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC).UnixMilli()

	lister := newBucketLister(store)
	results, err := lister.ListMetrics(ctx, []string{"B"}, start, end)
	require.NoError(t, err)
	require.Equal(t, int64(1), results[0].Operations[string(metric.CreateBucket)])
}

func TestListMetrics_ManyResourcesBoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	lister := app.NewLister(app.ListerDeps{Store: store}, app.ListerConfig{Level: metric.LevelBucket, Concurrency: 2}, testLogger())

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = "bucket"
	}
	results, err := lister.ListMetrics(ctx, ids, 0, 900000)
	require.NoError(t, err)
	require.Len(t, results, 20)
}
