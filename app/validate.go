package app

import (
	"fmt"

	"github.com/scality/utapi/domain/metric"
)

// ValidateListMetricsRequest enforces the precondition checks a
// ListMetrics request must pass before any store I/O. FamilyService
// requests never require an explicit resource list; every other family
// does.
func ValidateListMetricsRequest(family Family, resourceIDs []string, startMs, endMs int64) error {
	switch family {
	case FamilyBuckets, FamilyAccounts, FamilyService:
	default:
		return fmt.Errorf("%w: unrecognized family %q", metric.ErrPrecondition, family)
	}
	if family != FamilyService && len(resourceIDs) == 0 {
		return fmt.Errorf("%w: %s requires at least one resource", metric.ErrPrecondition, family)
	}
	if endMs < startMs {
		return fmt.Errorf("%w: timeRange end precedes start", metric.ErrPrecondition)
	}
	return nil
}
