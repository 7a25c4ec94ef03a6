package metric

// ResourceMetrics is the aggregated result of a ListMetrics query for a
// single resource: per-interval deltas summed over the range, plus the
// nearest-preceding absolute sample at each range endpoint.
type ResourceMetrics struct {
	ResourceID      string
	TimeRange       [2]int64
	StorageUtilized [2]int64
	IncomingBytes   int64
	OutgoingBytes   int64
	NumberOfObjects [2]int64
	Operations      map[string]int64
}

// NewResourceMetrics initializes a metrics record with every operation
// counter at zero, matching the read-path rule that absence of a delta
// key means zero rather than an omitted field.
func NewResourceMetrics(resourceID string, start, end int64) ResourceMetrics {
	ops := make(map[string]int64, len(OperationNames))
	for _, name := range OperationNames {
		ops[name] = 0
	}
	return ResourceMetrics{
		ResourceID: resourceID,
		TimeRange:  [2]int64{start, end},
		Operations: ops,
	}
}

// AddDelta folds one delta-key result into the record: traffic metrics
// accumulate into their named field, everything else accumulates into
// Operations under metricName.
func (rm *ResourceMetrics) AddDelta(metricName string, value int64) {
	switch metricName {
	case MetricIncomingBytes:
		rm.IncomingBytes += value
	case MetricOutgoingBytes:
		rm.OutgoingBytes += value
	default:
		rm.Operations[metricName] += value
	}
}
