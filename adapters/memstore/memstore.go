// Package memstore is an in-memory implementation of ports.Datastore. It
// exists to satisfy the same contract a real backing store would, for
// tests and single-process deployments, following the sharded,
// mutex-per-shard layout the teacher's adapters/memory quota store uses
// to bound lock contention.
package memstore

import (
	"context"
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/scality/utapi/ports"
)

const defaultShards = 32

type zEntry struct {
	member string
	score  int64
}

type shard struct {
	mu    chan struct{} // 1-buffered channel used as a cheap mutex; see lock/unlock
	kv    map[string]string
	zsets map[string][]zEntry
}

func newShard() *shard {
	s := &shard{
		mu:    make(chan struct{}, 1),
		kv:    make(map[string]string),
		zsets: make(map[string][]zEntry),
	}
	s.mu <- struct{}{}
	return s
}

func (s *shard) lock()   { <-s.mu }
func (s *shard) unlock() { s.mu <- struct{}{} }

// Store is a sharded in-memory datastore. Sharding by key hash keeps
// unrelated resources from contending on the same lock; it is not
// required for correctness, only throughput.
type Store struct {
	shards []*shard
}

// New creates an in-memory datastore with the default shard count.
func New() *Store {
	return NewWithShards(defaultShards)
}

// NewWithShards creates an in-memory datastore with a specific shard
// count (mainly for tests that want to force collisions).
func NewWithShards(n int) *Store {
	if n <= 0 {
		n = 1
	}
	st := &Store{shards: make([]*shard, n)}
	for i := range st.shards {
		st.shards[i] = newShard()
	}
	return st
}

func (st *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return st.shards[h.Sum32()%uint32(len(st.shards))]
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (st *Store) Get(_ context.Context, key string) (string, bool, error) {
	sh := st.shardFor(key)
	sh.lock()
	defer sh.unlock()
	v, ok := sh.kv[key]
	return v, ok, nil
}

func (st *Store) Set(_ context.Context, key, value string) error {
	sh := st.shardFor(key)
	sh.lock()
	defer sh.unlock()
	sh.kv[key] = value
	return nil
}

func (st *Store) Incr(ctx context.Context, key string) (int64, error) {
	return st.IncrBy(ctx, key, 1)
}

func (st *Store) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	sh := st.shardFor(key)
	sh.lock()
	defer sh.unlock()
	v := parseInt(sh.kv[key]) + delta
	sh.kv[key] = strconv.FormatInt(v, 10)
	return v, nil
}

func (st *Store) DecrBy(_ context.Context, key string, delta int64) (int64, error) {
	sh := st.shardFor(key)
	sh.lock()
	defer sh.unlock()
	v := parseInt(sh.kv[key]) - delta
	sh.kv[key] = strconv.FormatInt(v, 10)
	return v, nil
}

func (st *Store) ZAdd(_ context.Context, key string, score int64, member string) error {
	sh := st.shardFor(key)
	sh.lock()
	defer sh.unlock()
	zAddLocked(sh, key, score, member)
	return nil
}

// zAddLocked upserts (member, score), keeping at most one entry per
// distinct member and the slice sorted by score ascending. The state-set
// invariant (at most one sample per interval) is enforced by callers
// issuing a ZRemRangeByScore for the same score immediately before this,
// inside the same Batch — this method alone only guarantees per-member
// uniqueness.
func zAddLocked(sh *shard, key string, score int64, member string) {
	entries := sh.zsets[key]
	for i, e := range entries {
		if e.member == member {
			entries[i].score = score
			resort(entries)
			sh.zsets[key] = entries
			return
		}
	}
	entries = append(entries, zEntry{member: member, score: score})
	resort(entries)
	sh.zsets[key] = entries
}

func resort(entries []zEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })
}

func (st *Store) ZRangeByScore(_ context.Context, key string, min, max int64, limit int) ([]ports.ZEntry, error) {
	sh := st.shardFor(key)
	sh.lock()
	defer sh.unlock()
	var out []ports.ZEntry
	for _, e := range sh.zsets[key] {
		if e.score >= min && e.score <= max {
			out = append(out, ports.ZEntry{Member: e.member, Score: e.score})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (st *Store) ZRevRangeByScore(_ context.Context, key string, max, min int64, limit int) ([]ports.ZEntry, error) {
	sh := st.shardFor(key)
	sh.lock()
	defer sh.unlock()
	entries := sh.zsets[key]
	var out []ports.ZEntry
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.score >= min && e.score <= max {
			out = append(out, ports.ZEntry{Member: e.member, Score: e.score})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (st *Store) ZRemRangeByScore(_ context.Context, key string, min, max int64) error {
	sh := st.shardFor(key)
	sh.lock()
	defer sh.unlock()
	entries := sh.zsets[key]
	kept := entries[:0]
	for _, e := range entries {
		if e.score < min || e.score > max {
			kept = append(kept, e)
		}
	}
	sh.zsets[key] = kept
	return nil
}

// Batch executes cmds in order against their respective shards. Every
// command in this in-memory adapter always succeeds, so no per-command
// error ever appears in the result slice; the top-level error return
// exists only to satisfy ports.Datastore and to let tests simulate a
// transport failure via a wrapping fault-injecting Datastore.
func (st *Store) Batch(ctx context.Context, cmds []ports.Command) ([]ports.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]ports.Result, len(cmds))
	for i, cmd := range cmds {
		results[i] = st.execute(ctx, cmd)
	}
	return results, nil
}

func (st *Store) execute(ctx context.Context, cmd ports.Command) ports.Result {
	switch cmd.Op {
	case ports.OpGet:
		v, _, _ := st.Get(ctx, cmd.Key)
		return ports.Result{Value: v}
	case ports.OpSet:
		_ = st.Set(ctx, cmd.Key, cmd.Value)
		return ports.Result{}
	case ports.OpIncr:
		v, _ := st.Incr(ctx, cmd.Key)
		return ports.Result{Value: v}
	case ports.OpIncrBy:
		v, _ := st.IncrBy(ctx, cmd.Key, cmd.Delta)
		return ports.Result{Value: v}
	case ports.OpDecrBy:
		v, _ := st.DecrBy(ctx, cmd.Key, cmd.Delta)
		return ports.Result{Value: v}
	case ports.OpZAdd:
		_ = st.ZAdd(ctx, cmd.Key, cmd.Score, cmd.Member)
		return ports.Result{}
	case ports.OpZRangeByScore:
		v, _ := st.ZRangeByScore(ctx, cmd.Key, cmd.Min, cmd.Max, cmd.Limit)
		return ports.Result{Value: v}
	case ports.OpZRevRangeByScore:
		v, _ := st.ZRevRangeByScore(ctx, cmd.Key, cmd.Max, cmd.Min, cmd.Limit)
		return ports.Result{Value: v}
	case ports.OpZRemRangeByScore:
		_ = st.ZRemRangeByScore(ctx, cmd.Key, cmd.Min, cmd.Max)
		return ports.Result{}
	default:
		return ports.Result{}
	}
}

var _ ports.Datastore = (*Store)(nil)
