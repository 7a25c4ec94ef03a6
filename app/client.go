// Package app provides application services that orchestrate domain logic:
// the metric write path (Client), read path (Lister), and request routing
// (Dispatcher).
package app

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/scality/utapi/adapters/metrics"
	"github.com/scality/utapi/domain/metric"
	"github.com/scality/utapi/ports"
)

// maxBatchRetries bounds how many times a batch is retried after a
// top-level (transport) failure. Per-command failures are never
// retried: they mean the batch executed and some command inside it
// failed, and retrying would risk double-applying counter updates.
const maxBatchRetries = 2

// Client is the metric write path. A single instance is constructed once
// at startup and shared, immutable after construction, across every
// request handling goroutine.
type Client struct {
	store     ports.Datastore // nil means disabled mode
	clock     ports.Clock
	random    ports.Random // nil disables retry jitter; batches then fail fast
	idgen     ports.IDGenerator
	metrics   *metrics.Collector // nil disables metrics recording
	component string
	levels    []metric.Level
	logger    zerolog.Logger
}

// ClientDeps contains the injected collaborators for Client.
type ClientDeps struct {
	Store ports.Datastore // may be nil: disabled mode
	Clock ports.Clock
	// Random, if set, enables jittered backoff between retries of a
	// batch that failed at the transport level. Nil disables retries.
	Random ports.Random
	// IDGen generates a request ID when PushMetric is called with an
	// empty one, so every batch failure still logs a correlatable ID.
	IDGen ports.IDGenerator
	// Metrics, if set, records push counts, push latency, and batch
	// outcomes. Nil disables recording.
	Metrics *metrics.Collector
}

// ClientConfig contains Client's static configuration.
type ClientConfig struct {
	// Component is the configured service name, used as the resource ID
	// for service-granularity keys.
	Component string
	// Levels is the configured set of granularities to record. An empty
	// slice records every granularity a pushed event carries.
	Levels []metric.Level
}

// NewClient constructs a Client. Passing a nil Store puts the client in
// disabled mode: PushMetric always succeeds without touching any store.
func NewClient(deps ClientDeps, cfg ClientConfig, logger zerolog.Logger) *Client {
	return &Client{
		store:     deps.Store,
		clock:     deps.Clock,
		random:    deps.Random,
		idgen:     deps.IDGen,
		metrics:   deps.Metrics,
		component: cfg.Component,
		levels:    cfg.Levels,
		logger:    logger,
	}
}

// PushMetric records one event. eventKind must be a recognized operation
// name; params carries the numeric payload and the resource identifiers
// the event touches. requestID is used only for logging correlation; an
// empty one is filled in from the configured IDGenerator, if any.
func (c *Client) PushMetric(ctx context.Context, kind metric.EventKind, requestID string, params metric.Params) (err error) {
	if err = metric.ValidateParams(kind, params); err != nil {
		if c.metrics != nil {
			c.metrics.PushRejections.WithLabelValues(string(kind), "precondition").Inc()
		}
		return err
	}
	if c.store == nil {
		return nil
	}
	if requestID == "" && c.idgen != nil {
		requestID = c.idgen.New()
	}

	if c.metrics != nil {
		start := time.Now()
		defer func() {
			c.metrics.PushDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
			result := "success"
			if err != nil {
				result = "error"
			}
			c.metrics.PushTotal.WithLabelValues(string(kind), result).Inc()
		}()
	}

	params.Service = c.component
	interval := metric.NormalizeInterval(c.clock.Now())

	for _, level := range c.enabledLevels(params) {
		resource := metric.Resource{Level: level, ID: params.ResourceID(level)}
		if err = c.applyOne(ctx, kind, resource, interval, params); err != nil {
			c.logger.Error().
				Str("requestId", requestID).
				Str("method", "PushMetric").
				Str("metric", string(kind)).
				Str("resource", resource.Tag()).
				Err(err).
				Msg("push metric failed")
			return err
		}
	}
	return nil
}

// enabledLevels intersects the configured granularity set with the
// granularities params carries. An unset configuration records every
// level params carries.
func (c *Client) enabledLevels(params metric.Params) []metric.Level {
	present := params.Levels()
	if len(c.levels) == 0 {
		return present
	}
	allowed := make(map[metric.Level]bool, len(c.levels))
	for _, l := range c.levels {
		allowed[l] = true
	}
	var out []metric.Level
	for _, l := range present {
		if allowed[l] {
			out = append(out, l)
		}
	}
	return out
}

func (c *Client) applyOne(ctx context.Context, kind metric.EventKind, r metric.Resource, interval int64, p metric.Params) error {
	switch metric.Classify(kind) {
	case metric.AlgoCreateBucket:
		return c.createBucket(ctx, r, interval)
	case metric.AlgoUploadPart:
		return c.uploadPart(ctx, kind, r, interval, p)
	case metric.AlgoCompleteMultipartUpload:
		return c.completeMultipartUpload(ctx, kind, r, interval)
	case metric.AlgoPutObject:
		return c.putObject(ctx, kind, r, interval, p)
	case metric.AlgoDeleteObject:
		return c.deleteObject(ctx, kind, r, interval, p)
	default:
		return c.genericIncrement(ctx, kind, r, interval, p)
	}
}

// genericIncrement covers most ACL/HEAD/LIST/multipart-lifecycle
// operations. GetObject additionally folds outgoingBytes into the same
// batch when a byte length is present.
func (c *Client) genericIncrement(ctx context.Context, kind metric.EventKind, r metric.Resource, interval int64, p metric.Params) error {
	var cmds []ports.Command
	if kind == metric.GetObject && p.ByteLength != nil {
		cmds = append(cmds, ports.Command{
			Op: ports.OpIncrBy, Key: metric.GenerateKey(r, metric.MetricOutgoingBytes, interval), Delta: *p.ByteLength,
		})
	}
	cmds = append(cmds, ports.Command{Op: ports.OpIncr, Key: metric.GenerateKey(r, string(kind), interval)})
	return c.runBatch(ctx, "genericIncrement", kind, cmds)
}

// createBucket initializes both absolute counters to zero, seeds a
// 0-value sample at the creation interval for each, and records the
// CreateBucket operation itself. Bucket granularity sets its counter to
// 1 (the resource's first CreateBucket); account/service granularity
// increments, since the same account/service may see many bucket
// creations.
func (c *Client) createBucket(ctx context.Context, r metric.Resource, interval int64) error {
	cmds := []ports.Command{
		{Op: ports.OpSet, Key: metric.GenerateCounter(r, metric.MetricStorageUtilized), Value: "0"},
		{Op: ports.OpSet, Key: metric.GenerateCounter(r, metric.MetricNumberOfObjects), Value: "0"},
		{Op: ports.OpZRemRangeByScore, Key: metric.GenerateStateKey(r, metric.MetricStorageUtilized), Min: interval, Max: interval},
		{Op: ports.OpZAdd, Key: metric.GenerateStateKey(r, metric.MetricStorageUtilized), Score: interval, Member: "0"},
		{Op: ports.OpZRemRangeByScore, Key: metric.GenerateStateKey(r, metric.MetricNumberOfObjects), Min: interval, Max: interval},
		{Op: ports.OpZAdd, Key: metric.GenerateStateKey(r, metric.MetricNumberOfObjects), Score: interval, Member: "0"},
	}
	opKey := metric.GenerateKey(r, string(metric.CreateBucket), interval)
	if r.Level == metric.LevelBucket {
		cmds = append(cmds, ports.Command{Op: ports.OpSet, Key: opKey, Value: "1"})
	} else {
		cmds = append(cmds, ports.Command{Op: ports.OpIncr, Key: opKey})
	}
	return c.runBatch(ctx, "createBucket", metric.CreateBucket, cmds)
}

// uploadPart advances storageUtilized and incomingBytes by the part
// size, then re-samples storageUtilized from the counter value the first
// batch produced.
func (c *Client) uploadPart(ctx context.Context, kind metric.EventKind, r metric.Resource, interval int64, p metric.Params) error {
	first := []ports.Command{
		{Op: ports.OpIncrBy, Key: metric.GenerateCounter(r, metric.MetricStorageUtilized), Delta: *p.NewByteLength},
		{Op: ports.OpIncrBy, Key: metric.GenerateKey(r, metric.MetricIncomingBytes, interval), Delta: *p.NewByteLength},
		{Op: ports.OpIncr, Key: metric.GenerateKey(r, string(kind), interval)},
	}
	results, err := c.runBatchResults(ctx, "uploadPart", kind, first)
	if err != nil {
		return err
	}
	storage, err := resultInt64(results[0])
	if err != nil {
		return c.internalError("uploadPart", kind, err)
	}
	return c.resample(ctx, "uploadPart", kind, r, interval, metric.MetricStorageUtilized, storage)
}

// completeMultipartUpload advances numberOfObjects and re-samples it.
func (c *Client) completeMultipartUpload(ctx context.Context, kind metric.EventKind, r metric.Resource, interval int64) error {
	first := []ports.Command{
		{Op: ports.OpIncr, Key: metric.GenerateCounter(r, metric.MetricNumberOfObjects)},
		{Op: ports.OpIncr, Key: metric.GenerateKey(r, string(kind), interval)},
	}
	results, err := c.runBatchResults(ctx, "completeMultipartUpload", kind, first)
	if err != nil {
		return err
	}
	objects, err := resultInt64(results[0])
	if err != nil {
		return c.internalError("completeMultipartUpload", kind, err)
	}
	return c.resample(ctx, "completeMultipartUpload", kind, r, interval, metric.MetricNumberOfObjects, objects)
}

// putObject covers both PutObject and CopyObject. A nil OldByteLength
// means the object is new: numberOfObjects is incremented. Otherwise the
// object is an overwrite: numberOfObjects is read but left unchanged.
func (c *Client) putObject(ctx context.Context, kind metric.EventKind, r metric.Resource, interval int64, p metric.Params) error {
	var old int64
	if p.OldByteLength != nil {
		old = *p.OldByteLength
	}
	delta := *p.NewByteLength - old

	first := []ports.Command{
		{Op: ports.OpIncrBy, Key: metric.GenerateCounter(r, metric.MetricStorageUtilized), Delta: delta},
	}
	if p.OldByteLength == nil {
		first = append(first, ports.Command{Op: ports.OpIncr, Key: metric.GenerateCounter(r, metric.MetricNumberOfObjects)})
	} else {
		first = append(first, ports.Command{Op: ports.OpGet, Key: metric.GenerateCounter(r, metric.MetricNumberOfObjects)})
	}
	if kind == metric.PutObject {
		first = append(first, ports.Command{Op: ports.OpIncrBy, Key: metric.GenerateKey(r, metric.MetricIncomingBytes, interval), Delta: *p.NewByteLength})
	}
	first = append(first, ports.Command{Op: ports.OpIncr, Key: metric.GenerateKey(r, string(kind), interval)})

	results, err := c.runBatchResults(ctx, "putObject", kind, first)
	if err != nil {
		return err
	}
	storage, err := resultInt64(results[0])
	if err != nil {
		return c.internalError("putObject", kind, err)
	}
	objects, err := resultInt64(results[1])
	if err != nil {
		return c.internalError("putObject", kind, err)
	}

	second := append(
		resampleCmds(r, interval, metric.MetricStorageUtilized, storage),
		resampleCmds(r, interval, metric.MetricNumberOfObjects, objects)...,
	)
	return c.runBatch(ctx, "putObject", kind, second)
}

// deleteObject covers both DeleteObject and MultiObjectDelete: it drives
// both absolute counters down and re-samples both, clamping only the
// sampled value at zero and leaving the running counter as-is.
func (c *Client) deleteObject(ctx context.Context, kind metric.EventKind, r metric.Resource, interval int64, p metric.Params) error {
	first := []ports.Command{
		{Op: ports.OpDecrBy, Key: metric.GenerateCounter(r, metric.MetricStorageUtilized), Delta: *p.ByteLength},
		{Op: ports.OpDecrBy, Key: metric.GenerateCounter(r, metric.MetricNumberOfObjects), Delta: *p.NumberOfObjects},
		{Op: ports.OpIncr, Key: metric.GenerateKey(r, string(kind), interval)},
	}
	results, err := c.runBatchResults(ctx, "deleteObject", kind, first)
	if err != nil {
		return err
	}
	storage, err := resultInt64(results[0])
	if err != nil {
		return c.internalError("deleteObject", kind, err)
	}
	objects, err := resultInt64(results[1])
	if err != nil {
		return c.internalError("deleteObject", kind, err)
	}

	second := append(
		resampleCmds(r, interval, metric.MetricStorageUtilized, storage),
		resampleCmds(r, interval, metric.MetricNumberOfObjects, objects)...,
	)
	return c.runBatch(ctx, "deleteObject", kind, second)
}

// resample re-samples a single absolute metric's state set at interval,
// clamping the sampled value at zero (the running counter itself is
// never clamped).
func (c *Client) resample(ctx context.Context, method string, kind metric.EventKind, r metric.Resource, interval int64, metricName string, value int64) error {
	return c.runBatch(ctx, method, kind, resampleCmds(r, interval, metricName, value))
}

func resampleCmds(r metric.Resource, interval int64, metricName string, value int64) []ports.Command {
	stateKey := metric.GenerateStateKey(r, metricName)
	return []ports.Command{
		{Op: ports.OpZRemRangeByScore, Key: stateKey, Min: interval, Max: interval},
		{Op: ports.OpZAdd, Key: stateKey, Score: interval, Member: strconv.FormatInt(metric.ClampAbsolute(value), 10)},
	}
}

// runBatch executes cmds and discards the results, reporting only
// success or an opaque internal error.
func (c *Client) runBatch(ctx context.Context, method string, kind metric.EventKind, cmds []ports.Command) error {
	_, err := c.runBatchResults(ctx, method, kind, cmds)
	return err
}

// runBatchResults executes cmds and checks every per-command result for
// an error, since every command issued by the write path feeds either
// the next phase or the resource's durable state — none of it is
// advisory.
const batchCallerClient = "client"

func (c *Client) runBatchResults(ctx context.Context, method string, kind metric.EventKind, cmds []ports.Command) ([]ports.Result, error) {
	if c.metrics != nil {
		c.metrics.BatchSize.Observe(float64(len(cmds)))
	}

	var lastErr error
	for attempt := 0; attempt <= maxBatchRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				return nil, c.internalError(method, kind, lastErr)
			}
		}

		start := time.Now()
		results, err := c.store.Batch(ctx, cmds)
		if c.metrics != nil {
			c.metrics.BatchDuration.WithLabelValues(batchCallerClient).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			lastErr = err
			if c.metrics != nil {
				c.metrics.BatchErrors.WithLabelValues(batchCallerClient).Inc()
			}
			c.logger.Warn().Str("method", method).Str("metric", string(kind)).Int("attempt", attempt).Err(err).Msg("datastore batch failed, retrying")
			continue
		}
		for _, r := range results {
			if r.Err != nil {
				if c.metrics != nil {
					c.metrics.BatchErrors.WithLabelValues(batchCallerClient).Inc()
				}
				return nil, c.internalError(method, kind, r.Err)
			}
		}
		return results, nil
	}
	return nil, c.internalError(method, kind, lastErr)
}

// sleepBackoff waits out a jittered exponential backoff before the given
// retry attempt. It returns ctx.Err() if the context is cancelled first.
// With no Random configured, retries are disabled: it returns
// immediately and the caller's loop makes no further attempt.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	if c.random == nil {
		return context.Canceled
	}

	base := time.Duration(1<<uint(attempt-1)) * 20 * time.Millisecond
	jitter := time.Duration(randomIntn(c.random, int64(base)))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// randomIntn returns a value in [0, n) derived from r.Bytes, or 0 if n
// is not positive or r.Bytes fails.
func randomIntn(r ports.Random, n int64) int64 {
	if n <= 0 {
		return 0
	}
	buf, err := r.Bytes(8)
	if err != nil {
		return 0
	}
	v := binary.BigEndian.Uint64(buf) % uint64(math.MaxInt64)
	return int64(v % uint64(n))
}

func (c *Client) internalError(method string, kind metric.EventKind, cause error) error {
	c.logger.Error().Str("method", method).Str("metric", string(kind)).Err(cause).Msg("datastore batch failed")
	return metric.ErrInternal
}

func resultInt64(r ports.Result) (int64, error) {
	switch v := r.Value.(type) {
	case int64:
		return v, nil
	case string:
		if v == "" {
			return 0, nil
		}
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, nil
	}
}
