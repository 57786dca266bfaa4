// Package uow provides the transactional boundary for workflow operations.
// Every state transition runs inside one unit of work so the entity write,
// the verification request write and the audit append land or roll back
// together.
package uow

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "veranda/pkg/domain-errors"
	txcontext "veranda/pkg/platform/tx"
)

// UnitOfWork runs fn atomically. The PostgreSQL implementation carries a real
// transaction in ctx; the in-memory one serializes work per aggregate, which
// gives mutual exclusion but not rollback.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

type lockKey struct{}

var lockKeyCtx = lockKey{}

// WithKey tags ctx with the aggregate the operation mutates. The in-memory
// unit of work uses it to pick a lock shard; PostgreSQL ignores it.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, lockKeyCtx, key)
}

// Postgres wraps fn in a database transaction exposed to stores via context.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (u *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := u.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "commit transaction")
	}
	return nil
}

// Sharded serializes units of work across N mutex shards hashed from the
// aggregate key. Used with the in-memory stores, where there is nothing to
// roll back; the lock guarantees no interleaving instead.
const numShards = 128

type Sharded struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewSharded() *Sharded {
	return &Sharded{}
}

func (u *Sharded) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := u.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := u.selectShard(ctx)
	u.shards[shard].Lock()
	defer u.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (u *Sharded) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(lockKeyCtx).(string); ok && key != "" {
		return int(fnvHash(key) % numShards)
	}
	return 0
}

// FNV-1a.
func fnvHash(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
