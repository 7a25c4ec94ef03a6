package memstore_test

import (
	"context"
	"testing"

	"github.com/scality/utapi/adapters/memstore"
	"github.com/scality/utapi/ports"
)

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	if _, found, err := st.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) = found %v, err %v", found, err)
	}

	if err := st.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, found, err := st.Get(ctx, "k")
	if err != nil || !found || v != "v" {
		t.Fatalf("Get(k) = %q, %v, %v", v, found, err)
	}
}

func TestIncrByDecrBy(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	if v, err := st.IncrBy(ctx, "c", 5); err != nil || v != 5 {
		t.Fatalf("IncrBy = %d, %v", v, err)
	}
	if v, err := st.IncrBy(ctx, "c", 3); err != nil || v != 8 {
		t.Fatalf("IncrBy = %d, %v", v, err)
	}
	if v, err := st.DecrBy(ctx, "c", 10); err != nil || v != -2 {
		t.Fatalf("DecrBy = %d, %v want -2 (counters are never clamped)", v, err)
	}
}

func TestZAddOverwritesMember(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	_ = st.ZAdd(ctx, "z", 100, "m1")
	_ = st.ZAdd(ctx, "z", 200, "m1")

	got, err := st.ZRangeByScore(ctx, "z", 0, 1000, 0)
	if err != nil {
		t.Fatalf("ZRangeByScore: %v", err)
	}
	if len(got) != 1 || got[0].Score != 200 {
		t.Fatalf("got %+v, want single entry with score 200", got)
	}
}

func TestZRevRangeByScoreOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	_ = st.ZAdd(ctx, "z", 100, "a")
	_ = st.ZAdd(ctx, "z", 200, "b")
	_ = st.ZAdd(ctx, "z", 300, "c")

	got, err := st.ZRevRangeByScore(ctx, "z", 300, 0, 2)
	if err != nil {
		t.Fatalf("ZRevRangeByScore: %v", err)
	}
	if len(got) != 2 || got[0].Member != "c" || got[1].Member != "b" {
		t.Fatalf("got %+v, want [c, b]", got)
	}
}

func TestZRemRangeByScore(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	_ = st.ZAdd(ctx, "z", 100, "a")
	_ = st.ZAdd(ctx, "z", 200, "b")

	if err := st.ZRemRangeByScore(ctx, "z", 100, 100); err != nil {
		t.Fatalf("ZRemRangeByScore: %v", err)
	}
	got, _ := st.ZRangeByScore(ctx, "z", 0, 1000, 0)
	if len(got) != 1 || got[0].Member != "b" {
		t.Fatalf("got %+v, want only b left", got)
	}
}

// TestSampleAtMostOnePerInterval exercises the remove-then-add pattern
// callers use to guarantee at most one sample per interval score.
func TestSampleAtMostOnePerInterval(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	sample := func(score int64, member string) {
		_ = st.ZRemRangeByScore(ctx, "z", score, score)
		_ = st.ZAdd(ctx, "z", score, member)
	}

	sample(100, "v1")
	sample(100, "v2")
	sample(100, "v3")

	got, err := st.ZRangeByScore(ctx, "z", 0, 1000, 0)
	if err != nil {
		t.Fatalf("ZRangeByScore: %v", err)
	}
	if len(got) != 1 || got[0].Member != "v3" {
		t.Fatalf("got %+v, want single entry v3", got)
	}
}

func TestBatchPreservesOrderAndAppliesAllCommands(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	cmds := []ports.Command{
		{Op: ports.OpIncrBy, Key: "n", Delta: 4},
		{Op: ports.OpIncrBy, Key: "n", Delta: 6},
		{Op: ports.OpGet, Key: "n"},
	}
	results, err := st.Batch(ctx, cmds)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if v, ok := results[2].Value.(string); !ok || v != "10" {
		t.Fatalf("final Get result = %+v, want \"10\"", results[2].Value)
	}
}

func TestBatchContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := memstore.New()
	_, err := st.Batch(ctx, []ports.Command{{Op: ports.OpGet, Key: "x"}})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestShardingDoesNotAffectVisibility(t *testing.T) {
	ctx := context.Background()
	st := memstore.NewWithShards(1)

	_ = st.Set(ctx, "a", "1")
	_ = st.Set(ctx, "b", "2")

	va, _, _ := st.Get(ctx, "a")
	vb, _, _ := st.Get(ctx, "b")
	if va != "1" || vb != "2" {
		t.Fatalf("got %q, %q", va, vb)
	}
}
