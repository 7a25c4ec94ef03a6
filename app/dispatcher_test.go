package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scality/utapi/adapters/memstore"
	"github.com/scality/utapi/app"
	"github.com/scality/utapi/domain/metric"
)

func newDispatcher(store *memstore.Store) *app.Dispatcher {
	buckets := app.NewLister(app.ListerDeps{Store: store}, app.ListerConfig{Level: metric.LevelBucket}, testLogger())
	accounts := app.NewLister(app.ListerDeps{Store: store}, app.ListerConfig{Level: metric.LevelAccount}, testLogger())
	service := app.NewLister(app.ListerDeps{Store: store}, app.ListerConfig{Level: metric.LevelService}, testLogger())
	return app.NewDispatcher(buckets, accounts, service, app.DispatcherConfig{Component: "s3"})
}

func TestDispatch_ServiceSynthesizesResourceList(t *testing.T) {
	store := memstore.New()
	d := newDispatcher(store)

	results, err := d.Dispatch(context.Background(), app.FamilyService, nil, 0, 900000)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "s3", results[0].ResourceID)
}

func TestDispatch_BucketsRequiresResourceList(t *testing.T) {
	store := memstore.New()
	d := newDispatcher(store)

	_, err := d.Dispatch(context.Background(), app.FamilyBuckets, nil, 0, 900000)
	require.ErrorIs(t, err, metric.ErrPrecondition)
}

func TestDispatch_UnrecognizedFamily(t *testing.T) {
	store := memstore.New()
	d := newDispatcher(store)

	_, err := d.Dispatch(context.Background(), app.Family("widgets"), []string{"x"}, 0, 900000)
	require.ErrorIs(t, err, metric.ErrPrecondition)
}

func TestDispatch_EndBeforeStart(t *testing.T) {
	store := memstore.New()
	d := newDispatcher(store)

	_, err := d.Dispatch(context.Background(), app.FamilyBuckets, []string{"b1"}, 1000, 500)
	require.ErrorIs(t, err, metric.ErrPrecondition)
}
