package pkg

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/simp-lee/gorepo/internal/domain"
)

// WithTx executes fn within a database transaction.
// It commits on success, rolls back on error or panic.
func WithTx(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// WithTransaction runs fn inside an explicit transaction of t.
// It commits when fn succeeds and rolls back when fn fails or panics.
// The rollback ignores cancellation of ctx.
func WithTransaction(ctx context.Context, t domain.Transactor, fn func(ctx context.Context) error) error {
	if err := t.BeginTransaction(ctx); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = t.RollbackTransaction(context.WithoutCancel(ctx))
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := t.RollbackTransaction(context.WithoutCancel(ctx)); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return t.CommitTransaction(ctx)
}
