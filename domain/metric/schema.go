// Package metric provides pure key-derivation, classification, and
// aggregation functions for the utilization-tracking engine. Nothing in
// this package performs I/O, logs, or holds mutable state — the same
// discipline the auth and ratelimit domain packages this is grounded on
// follow: given the same input, every function here returns the same
// output.
package metric

import (
	"fmt"
	"strings"
)

// Level identifies the granularity at which a resource is tracked.
type Level string

const (
	LevelBucket  Level = "buckets"
	LevelAccount Level = "accounts"
	LevelService Level = "service"
)

// Resource is the fully qualified tag `R` from the schema: a granularity
// plus the identifier of the specific resource at that granularity (for
// service, ID is the configured component name).
type Resource struct {
	Level Level
	ID    string
}

// Tag returns the `{level}:{id}` string used as the common prefix of
// every key derived for this resource.
func (r Resource) Tag() string {
	return string(r.Level) + ":" + r.ID
}

// Delta metric names.
const (
	MetricIncomingBytes = "incomingBytes"
	MetricOutgoingBytes = "outgoingBytes"
)

// Absolute metric names.
const (
	MetricStorageUtilized = "storageUtilized"
	MetricNumberOfObjects = "numberOfObjects"
)

// GenerateKey derives the interval-scoped counter key for a delta metric
// (an operation name, or incomingBytes/outgoingBytes):
// `R:{metric}:{interval}`.
func GenerateKey(r Resource, metricName string, interval int64) string {
	return fmt.Sprintf("%s:%s:%d", r.Tag(), metricName, interval)
}

// GenerateStateKey derives the sorted-set key holding the sampled history
// of an absolute metric: `R:state:{metric}`.
func GenerateStateKey(r Resource, metricName string) string {
	return r.Tag() + ":state:" + metricName
}

// GenerateCounter derives the unscoped running-counter key for an
// absolute metric: `R:counter:{metric}`.
func GenerateCounter(r Resource, metricName string) string {
	return r.Tag() + ":counter:" + metricName
}

// GetCounters returns every running-counter key for a resource.
func GetCounters(r Resource) []string {
	return []string{
		GenerateCounter(r, MetricStorageUtilized),
		GenerateCounter(r, MetricNumberOfObjects),
	}
}

// GetMetricFromKey recovers the metric name from a delta key given the
// resource it belongs to, making the schema reversible: any key written
// by GenerateKey can be decoded back to its metric name without parsing
// the interval.
func GetMetricFromKey(key string, r Resource) (string, error) {
	prefix := r.Tag() + ":"
	if !strings.HasPrefix(key, prefix) {
		return "", fmt.Errorf("metric: key %q does not belong to resource %q", key, r.Tag())
	}
	rest := key[len(prefix):]
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return "", fmt.Errorf("metric: malformed key %q", key)
	}
	return rest[:idx], nil
}

// ClampAbsolute clamps a sampled absolute value at zero. The underlying
// running counter is never clamped in place — only values written into a
// state set, or read back out of one, are.
func ClampAbsolute(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
