// Package repository implements domain.Repository on top of GORM.
//
// A Repository is a unit of work: reads go straight to storage, commands are
// staged and flushed by SaveChanges, and an optional explicit transaction
// spans any number of flushes.
package repository

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/gorepo/internal/domain"
)

// EntityPtr constrains PT to pointers of entity structs.
type EntityPtr[T any] interface {
	*T
	domain.Entity
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock overrides the source of lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for transaction and storage diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Repository is the GORM implementation of domain.Repository[T].
type Repository[T any, PT EntityPtr[T]] struct {
	db     *gorm.DB
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	tx      *gorm.DB
	pending []pendingOp[T]
	tracked map[uint]*T
	// inserted holds entities flushed inside the active transaction.
	inserted []*T
}

var _ domain.Repository[domain.User] = (*Repository[domain.User, *domain.User])(nil)

// New creates a Repository for entity type T backed by db.
func New[T any, PT EntityPtr[T]](db *gorm.DB, opts ...Option) *Repository[T, PT] {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T, PT]{
		db:      db,
		now:     o.now,
		logger:  o.logger,
		tracked: make(map[uint]*T),
	}
}

// Factory returns a domain.RepositoryFactory opening a new Repository per call.
func Factory[T any, PT EntityPtr[T]](db *gorm.DB, opts ...Option) domain.RepositoryFactory[T] {
	return func() domain.Repository[T] {
		return New[T, PT](db, opts...)
	}
}

// Get returns the visible rows matching spec.
func (r *Repository[T, PT]) Get(ctx context.Context, spec domain.Spec[T], opts ...domain.QueryOption) ([]*T, error) {
	return r.find(ctx, "get", spec, false, domain.ApplyQueryOptions(opts...))
}

// GetWithDeleted returns every row matching spec, soft-deleted or not.
func (r *Repository[T, PT]) GetWithDeleted(ctx context.Context, spec domain.Spec[T], opts ...domain.QueryOption) ([]*T, error) {
	return r.find(ctx, "get with deleted", spec, true, domain.ApplyQueryOptions(opts...))
}

// GetByID returns the visible entity with the given primary key.
// With Tracking, an instance already held by the unit of work is returned as is.
func (r *Repository[T, PT]) GetByID(ctx context.Context, id uint, opts ...domain.QueryOption) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getByID(ctx, id, domain.ApplyQueryOptions(opts...))
}

func (r *Repository[T, PT]) getByID(ctx context.Context, id uint, o domain.QueryOptions) (*T, error) {
	if o.Tracking {
		if e, ok := r.tracked[id]; ok {
			if PT(e).Base().IsDeleted {
				return nil, domain.ErrNotFound
			}
			return e, nil
		}
	}

	var e T
	err := r.query(ctx, domain.True[T](), false, o).
		Where(clause.Eq{Column: domain.Column("id"), Value: id}).
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, r.storageError(ctx, "get by id", err)
	}
	if o.Tracking {
		return r.track(&e), nil
	}
	return &e, nil
}

// Exists reports whether any visible row matches spec.
func (r *Repository[T, PT]) Exists(ctx context.Context, spec domain.Spec[T]) (bool, error) {
	n, err := r.count(ctx, "exists", spec, false)
	return n > 0, err
}

// Count returns the number of visible rows matching spec.
func (r *Repository[T, PT]) Count(ctx context.Context, spec domain.Spec[T]) (int64, error) {
	return r.count(ctx, "count", spec, false)
}

// CountWithDeleted counts every row matching spec, soft-deleted or not.
func (r *Repository[T, PT]) CountWithDeleted(ctx context.Context, spec domain.Spec[T]) (int64, error) {
	return r.count(ctx, "count with deleted", spec, true)
}

func (r *Repository[T, PT]) find(ctx context.Context, op string, spec domain.Spec[T], withDeleted bool, o domain.QueryOptions) ([]*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows []*T
	if err := r.query(ctx, spec, withDeleted, o).Find(&rows).Error; err != nil {
		return nil, r.storageError(ctx, op, err)
	}
	if o.Tracking {
		for i, e := range rows {
			rows[i] = r.track(e)
		}
	}
	return rows, nil
}

func (r *Repository[T, PT]) count(ctx context.Context, op string, spec domain.Spec[T], withDeleted bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	if err := r.query(ctx, spec, withDeleted, domain.QueryOptions{}).Count(&n).Error; err != nil {
		return 0, r.storageError(ctx, op, err)
	}
	return n, nil
}

// query builds a statement for T. The standing soft-delete filter is added
// unless withDeleted is set, and also narrows every preload.
func (r *Repository[T, PT]) query(ctx context.Context, spec domain.Spec[T], withDeleted bool, o domain.QueryOptions) *gorm.DB {
	db := r.conn().WithContext(ctx).Model(new(T))
	if !withDeleted {
		db = db.Clauses(clause.Where{Exprs: []clause.Expression{domain.NotDeleted()}})
	}
	if exprs := spec.Expressions(); len(exprs) > 0 {
		db = db.Clauses(clause.Where{Exprs: exprs})
	}
	for _, name := range o.Preloads {
		if withDeleted {
			db = db.Preload(name)
			continue
		}
		db = db.Preload(name, func(db *gorm.DB) *gorm.DB {
			return db.Clauses(clause.Where{Exprs: []clause.Expression{domain.NotDeleted()}})
		})
	}
	for _, ord := range o.Orders {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: ord.Column}, Desc: ord.Desc})
	}
	return db
}

// conn returns the active transaction, or the pool when idle.
// Callers must hold r.mu.
func (r *Repository[T, PT]) conn() *gorm.DB {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// track registers e in the identity map and returns the canonical instance.
// Callers must hold r.mu.
func (r *Repository[T, PT]) track(e *T) *T {
	id := PT(e).Base().ID
	if existing, ok := r.tracked[id]; ok {
		return existing
	}
	r.tracked[id] = e
	return e
}

func (r *Repository[T, PT]) storageError(ctx context.Context, op string, err error) error {
	r.logger.ErrorContext(ctx, "repository operation failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return domain.NewRepositoryError(op, err)
}
