package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/scality/utapi/adapters/metrics"
	"github.com/scality/utapi/domain/metric"
	"github.com/scality/utapi/ports"
)

const defaultReadConcurrency = 5
const batchCallerLister = "lister"

// Lister is the metric read path for a single resource family (bucket,
// account, or service). One Lister instance is constructed per family at
// startup; all three share the same Datastore.
type Lister struct {
	store       ports.Datastore
	level       metric.Level
	concurrency int64
	metrics     *metrics.Collector // nil disables metrics recording
	logger      zerolog.Logger
}

// ListerDeps contains the injected collaborators for Lister.
type ListerDeps struct {
	Store ports.Datastore
	// Metrics, if set, records datastore batch outcomes and degraded
	// reads. Nil disables recording.
	Metrics *metrics.Collector
}

// ListerConfig contains Lister's static configuration.
type ListerConfig struct {
	Level metric.Level
	// Concurrency bounds the number of resources read from the store
	// concurrently within a single ListMetrics call. Zero uses the
	// default of 5.
	Concurrency int64
}

// NewLister constructs a Lister for one resource family.
func NewLister(deps ListerDeps, cfg ListerConfig, logger zerolog.Logger) *Lister {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultReadConcurrency
	}
	return &Lister{
		store:       deps.Store,
		level:       cfg.Level,
		concurrency: concurrency,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// ListMetrics computes one ResourceMetrics per entry in resourceIDs, in
// input order, over [startMs, endMs]. Resources are read with bounded
// concurrency. A failed command inside one resource's batch only zeroes
// that value; a failed batch for any resource fails the whole call with
// ErrInternal.
func (l *Lister) ListMetrics(ctx context.Context, resourceIDs []string, startMs, endMs int64) ([]metric.ResourceMetrics, error) {
	out := make([]metric.ResourceMetrics, len(resourceIDs))
	sem := semaphore.NewWeighted(l.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, id := range resourceIDs {
		i, id := i, id
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			rm, err := l.listOne(gctx, id, startMs, endMs)
			if err != nil {
				return err
			}
			out[i] = rm
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		l.logger.Error().Str("method", "ListMetrics").Str("level", string(l.level)).Err(err).Msg("datastore batch failed")
		return nil, metric.ErrInternal
	}
	return out, nil
}

func (l *Lister) listOne(ctx context.Context, resourceID string, startMs, endMs int64) (metric.ResourceMetrics, error) {
	r := metric.Resource{Level: l.level, ID: resourceID}
	intervals := metric.DeltaIntervals(startMs, endMs)

	cmds, deltaMetrics := l.buildDeltaCommands(r, intervals)
	cmds = append(cmds, absoluteCommands(r, startMs, endMs)...)

	if l.metrics != nil {
		l.metrics.BatchSize.Observe(float64(len(cmds)))
	}

	start := time.Now()
	results, err := l.store.Batch(ctx, cmds)
	if l.metrics != nil {
		l.metrics.BatchDuration.WithLabelValues(batchCallerLister).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if l.metrics != nil {
			l.metrics.BatchErrors.WithLabelValues(batchCallerLister).Inc()
		}
		return metric.ResourceMetrics{}, fmt.Errorf("list metrics: %w", err)
	}

	rm := metric.NewResourceMetrics(resourceID, startMs, endMs)
	numDelta := len(deltaMetrics)
	degraded := false

	for i := 0; i < numDelta; i++ {
		res := results[i]
		if res.Err != nil {
			degraded = true
			l.logger.Warn().Str("method", "listOne").Str("resource", r.Tag()).Err(res.Err).Msg("degraded read: delta command failed")
			continue
		}
		rm.AddDelta(deltaMetrics[i], parseCounter(res.Value))
	}

	abs := results[numDelta:]
	rm.StorageUtilized[0], degraded = l.nearestSampleTracked(abs, 0, r, degraded)
	rm.StorageUtilized[1], degraded = l.nearestSampleTracked(abs, 1, r, degraded)
	rm.NumberOfObjects[0], degraded = l.nearestSampleTracked(abs, 2, r, degraded)
	rm.NumberOfObjects[1], degraded = l.nearestSampleTracked(abs, 3, r, degraded)

	if degraded && l.metrics != nil {
		l.metrics.ListDegradations.WithLabelValues(string(l.level)).Inc()
	}

	return rm, nil
}

// buildDeltaCommands issues one get per (interval, delta metric) pair:
// every recognized operation name plus incomingBytes/outgoingBytes.
// deltaMetrics[i] names the metric commands[i] reads, so the caller can
// fold results back without re-deriving the key.
func (l *Lister) buildDeltaCommands(r metric.Resource, intervals []int64) ([]ports.Command, []string) {
	names := make([]string, 0, len(metric.OperationNames)+2)
	names = append(names, metric.OperationNames...)
	names = append(names, metric.MetricIncomingBytes, metric.MetricOutgoingBytes)

	cmds := make([]ports.Command, 0, len(intervals)*len(names))
	deltaMetrics := make([]string, 0, cap(cmds))
	for _, t := range intervals {
		for _, name := range names {
			cmds = append(cmds, ports.Command{Op: ports.OpGet, Key: metric.GenerateKey(r, name, t)})
			deltaMetrics = append(deltaMetrics, name)
		}
	}
	return cmds, deltaMetrics
}

// absoluteCommands issues the four nearest-neighbor lookups for the two
// absolute metrics at the range endpoints, in a fixed order:
// storageUtilized@start, storageUtilized@end, numberOfObjects@start,
// numberOfObjects@end.
func absoluteCommands(r metric.Resource, startMs, endMs int64) []ports.Command {
	return []ports.Command{
		{Op: ports.OpZRevRangeByScore, Key: metric.GenerateStateKey(r, metric.MetricStorageUtilized), Max: startMs, Min: minScore, Limit: 1},
		{Op: ports.OpZRevRangeByScore, Key: metric.GenerateStateKey(r, metric.MetricStorageUtilized), Max: endMs, Min: minScore, Limit: 1},
		{Op: ports.OpZRevRangeByScore, Key: metric.GenerateStateKey(r, metric.MetricNumberOfObjects), Max: startMs, Min: minScore, Limit: 1},
		{Op: ports.OpZRevRangeByScore, Key: metric.GenerateStateKey(r, metric.MetricNumberOfObjects), Max: endMs, Min: minScore, Limit: 1},
	}
}

// minScore stands in for "-inf": no sample predates the epoch, so a
// score of 0 is an exact lower bound for the nearest-predecessor lookup.
const minScore int64 = 0

// nearestSampleTracked resolves one nearest-neighbor lookup result and
// folds in whether it (or an earlier command in the same listOne call)
// degraded, so the caller can record one ListDegradations increment per
// affected resource rather than one per failed command.
func (l *Lister) nearestSampleTracked(abs []ports.Result, idx int, r metric.Resource, degraded bool) (int64, bool) {
	res := abs[idx]
	if res.Err != nil {
		l.logger.Warn().Str("method", "listOne").Str("resource", r.Tag()).Err(res.Err).Msg("degraded read: absolute lookup failed")
		return 0, true
	}
	entries, ok := res.Value.([]ports.ZEntry)
	if !ok || len(entries) == 0 {
		return 0, degraded
	}
	v, err := strconv.ParseInt(entries[0].Member, 10, 64)
	if err != nil {
		return 0, degraded
	}
	return metric.ClampAbsolute(v), degraded
}

func parseCounter(v any) int64 {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
