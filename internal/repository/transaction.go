package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/simp-lee/gorepo/internal/domain"
)

// BeginTransaction opens an explicit transaction. Subsequent reads and flushes
// run on it until CommitTransaction or RollbackTransaction.
func (r *Repository[T, PT]) BeginTransaction(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tx != nil {
		return domain.ErrTransactionActive
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return r.storageError(ctx, "begin transaction", tx.Error)
	}
	r.tx = tx
	r.logger.DebugContext(ctx, "transaction begun")
	return nil
}

// CommitTransaction commits the active transaction. A canceled ctx rolls the
// transaction back instead. The handle is released on every outcome.
// Staged commands that were never flushed stay queued.
func (r *Repository[T, PT]) CommitTransaction(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tx == nil {
		return domain.ErrNoTransaction
	}
	tx := r.tx
	defer func() { r.tx = nil }()

	if err := ctx.Err(); err != nil {
		r.abort(ctx, tx.Rollback().Error)
		return r.storageError(ctx, "commit transaction", err)
	}

	if err := tx.Commit().Error; err != nil {
		r.abort(ctx, tx.Rollback().Error)
		return r.storageError(ctx, "commit transaction", err)
	}
	r.inserted = nil
	r.logger.DebugContext(ctx, "transaction committed")
	return nil
}

// RollbackTransaction discards the active transaction together with staged
// commands and tracked entities. The handle is released on every outcome.
func (r *Repository[T, PT]) RollbackTransaction(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tx == nil {
		return domain.ErrNoTransaction
	}
	tx := r.tx
	defer func() { r.tx = nil }()

	err := tx.Rollback().Error
	r.abort(ctx, nil)
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return r.storageError(ctx, "rollback transaction", err)
	}
	r.logger.DebugContext(ctx, "transaction rolled back")
	return nil
}

// abort forgets all unit-of-work state after the transaction ended without a
// commit. Entities inserted inside the transaction lose their keys again.
// rollbackErr is the result of the rollback attempt and is only logged.
func (r *Repository[T, PT]) abort(ctx context.Context, rollbackErr error) {
	if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
		r.logger.WarnContext(ctx, "transaction rollback failed", slog.Any("error", rollbackErr))
	}
	for _, e := range r.inserted {
		PT(e).Base().ID = 0
	}
	r.inserted = nil
	r.resetInserts()
	r.pending = nil
	clear(r.tracked)
}
