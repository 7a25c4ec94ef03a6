// Package sqlitestore is a durable, single-file implementation of
// ports.Datastore backed by SQLite, for deployments that want counters
// and sample history to survive a restart without standing up a
// separate service.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scality/utapi/ports"
)

// Store is a SQLite-backed datastore. Counters live in a flat key/value
// table; sorted sets live in a (key, score, member) table with the
// primary key on (key, score) — mirroring the at-most-one-sample-per-
// interval invariant the metric engine relies on for state sets, and
// giving free ordering by score for the range queries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and runs
// its schema migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func (st *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS counters (
			key   TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS zsets (
			key    TEXT NOT NULL,
			score  INTEGER NOT NULL,
			member TEXT NOT NULL,
			PRIMARY KEY (key, score)
		)`,
		`CREATE INDEX IF NOT EXISTS zsets_key_score ON zsets (key, score)`,
	}
	for _, stmt := range stmts {
		if _, err := st.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (st *Store) Close() error {
	return st.db.Close()
}

func (st *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := st.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (st *Store) Set(ctx context.Context, key, value string) error {
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO counters (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (st *Store) Incr(ctx context.Context, key string) (int64, error) {
	return st.IncrBy(ctx, key, 1)
}

func (st *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return incrTx(ctx, st.db, key, delta)
}

func (st *Store) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return incrTx(ctx, st.db, key, -delta)
}

func incrTx(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, key string, delta int64) (int64, error) {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO counters (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`, key, delta)
	if err != nil {
		return 0, fmt.Errorf("incrby %s: %w", key, err)
	}
	var value int64
	if err := execer.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, key).Scan(&value); err != nil {
		return 0, fmt.Errorf("incrby %s: read back: %w", key, err)
	}
	return value, nil
}

func (st *Store) ZAdd(ctx context.Context, key string, score int64, member string) error {
	return zAddTx(ctx, st.db, key, score, member)
}

func zAddTx(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, key string, score int64, member string) error {
	if _, err := execer.ExecContext(ctx, `DELETE FROM zsets WHERE key = ? AND member = ?`, key, member); err != nil {
		return fmt.Errorf("zadd %s: %w", key, err)
	}
	if _, err := execer.ExecContext(ctx, `
		INSERT INTO zsets (key, score, member) VALUES (?, ?, ?)
		ON CONFLICT(key, score) DO UPDATE SET member = excluded.member`, key, score, member); err != nil {
		return fmt.Errorf("zadd %s: %w", key, err)
	}
	return nil
}

func (st *Store) ZRangeByScore(ctx context.Context, key string, min, max int64, limit int) ([]ports.ZEntry, error) {
	return zRange(ctx, st.db, key, min, max, limit, true)
}

func (st *Store) ZRevRangeByScore(ctx context.Context, key string, max, min int64, limit int) ([]ports.ZEntry, error) {
	return zRange(ctx, st.db, key, min, max, limit, false)
}

func zRange(ctx context.Context, queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, key string, min, max int64, limit int, ascending bool) ([]ports.ZEntry, error) {
	order := "ASC"
	if !ascending {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT score, member FROM zsets WHERE key = ? AND score >= ? AND score <= ? ORDER BY score %s`, order)
	args := []any{key, min, max}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := queryer.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %w", key, err)
	}
	defer rows.Close()

	var out []ports.ZEntry
	for rows.Next() {
		var e ports.ZEntry
		if err := rows.Scan(&e.Score, &e.Member); err != nil {
			return nil, fmt.Errorf("zrange %s: scan: %w", key, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("zrange %s: %w", key, err)
	}
	return out, nil
}

func (st *Store) ZRemRangeByScore(ctx context.Context, key string, min, max int64) error {
	_, err := st.db.ExecContext(ctx, `DELETE FROM zsets WHERE key = ? AND score >= ? AND score <= ?`, key, min, max)
	if err != nil {
		return fmt.Errorf("zremrangebyscore %s: %w", key, err)
	}
	return nil
}

// Batch executes cmds in order inside a single transaction, so a
// concurrent reader never observes a partially-applied batch. A failing
// command does not abort the batch: its error is captured in that
// command's Result and every remaining command still runs, matching the
// in-memory adapter's contract. The top-level error return is reserved
// for BeginTx/Commit failure, i.e. the transaction itself could not be
// carried out.
func (st *Store) Batch(ctx context.Context, cmds []ports.Command) ([]ports.Result, error) {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("batch: begin: %w", err)
	}
	defer tx.Rollback()

	results := make([]ports.Result, len(cmds))
	for i, cmd := range cmds {
		v, err := executeInTx(ctx, tx, cmd)
		if err != nil {
			results[i] = ports.Result{Err: fmt.Errorf("command %d: %w", i, err)}
			continue
		}
		results[i] = ports.Result{Value: v}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("batch: commit: %w", err)
	}
	return results, nil
}

func executeInTx(ctx context.Context, tx *sql.Tx, cmd ports.Command) (any, error) {
	switch cmd.Op {
	case ports.OpGet:
		var value string
		err := tx.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, cmd.Key).Scan(&value)
		if err == sql.ErrNoRows {
			return "", nil
		}
		return value, err
	case ports.OpSet:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO counters (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, cmd.Key, cmd.Value)
		return nil, err
	case ports.OpIncr:
		return incrTx(ctx, tx, cmd.Key, 1)
	case ports.OpIncrBy:
		return incrTx(ctx, tx, cmd.Key, cmd.Delta)
	case ports.OpDecrBy:
		return incrTx(ctx, tx, cmd.Key, -cmd.Delta)
	case ports.OpZAdd:
		return nil, zAddTx(ctx, tx, cmd.Key, cmd.Score, cmd.Member)
	case ports.OpZRangeByScore:
		return zRange(ctx, tx, cmd.Key, cmd.Min, cmd.Max, cmd.Limit, true)
	case ports.OpZRevRangeByScore:
		return zRange(ctx, tx, cmd.Key, cmd.Min, cmd.Max, cmd.Limit, false)
	case ports.OpZRemRangeByScore:
		_, err := tx.ExecContext(ctx, `DELETE FROM zsets WHERE key = ? AND score >= ? AND score <= ?`, cmd.Key, cmd.Min, cmd.Max)
		return nil, err
	default:
		return nil, fmt.Errorf("unknown op %d", cmd.Op)
	}
}

var _ ports.Datastore = (*Store)(nil)
