package app

import (
	"context"

	"github.com/scality/utapi/domain/metric"
)

// Family identifies which resource family a ListMetrics request targets.
type Family string

const (
	FamilyBuckets  Family = "buckets"
	FamilyAccounts Family = "accounts"
	FamilyService  Family = "service"
)

// Level returns the metric.Level a Family is stored under.
func (f Family) Level() metric.Level {
	switch f {
	case FamilyBuckets:
		return metric.LevelBucket
	case FamilyAccounts:
		return metric.LevelAccount
	case FamilyService:
		return metric.LevelService
	default:
		return ""
	}
}

// Dispatcher routes a validated ListMetrics request to the Lister for
// its family, synthesizing the implicit single-resource list for the
// service family.
type Dispatcher struct {
	listers   map[Family]*Lister
	component string
}

// DispatcherConfig contains Dispatcher's static configuration.
type DispatcherConfig struct {
	// Component is the configured service name, used as the sole
	// resource ID for service-family requests.
	Component string
}

// NewDispatcher constructs a Dispatcher from one Lister per family.
func NewDispatcher(buckets, accounts, service *Lister, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		listers: map[Family]*Lister{
			FamilyBuckets:  buckets,
			FamilyAccounts: accounts,
			FamilyService:  service,
		},
		component: cfg.Component,
	}
}

// Dispatch validates and executes a ListMetrics request for one family.
// For FamilyService, resourceIDs is ignored and the configured component
// name is used instead.
func (d *Dispatcher) Dispatch(ctx context.Context, family Family, resourceIDs []string, startMs, endMs int64) ([]metric.ResourceMetrics, error) {
	if err := ValidateListMetricsRequest(family, resourceIDs, startMs, endMs); err != nil {
		return nil, err
	}

	lister := d.listers[family]
	if family == FamilyService {
		resourceIDs = []string{d.component}
	}
	return lister.ListMetrics(ctx, resourceIDs, startMs, endMs)
}
