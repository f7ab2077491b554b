package domain

import "context"

// Order is a single ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// QueryOptions collects the optional parts of a read.
type QueryOptions struct {
	Orders   []Order
	Preloads []string
	Tracking bool
}

// QueryOption configures a read operation.
type QueryOption func(*QueryOptions)

// OrderBy appends an ordering term. Terms apply in the order given.
func OrderBy(column string, desc bool) QueryOption {
	return func(o *QueryOptions) {
		o.Orders = append(o.Orders, Order{Column: column, Desc: desc})
	}
}

// Preload eager-loads the named associations.
func Preload(names ...string) QueryOption {
	return func(o *QueryOptions) {
		o.Preloads = append(o.Preloads, names...)
	}
}

// Tracking registers loaded entities with the unit of work so repeated reads
// of the same row resolve to the same instance.
func Tracking() QueryOption {
	return func(o *QueryOptions) {
		o.Tracking = true
	}
}

// ApplyQueryOptions folds opts into a QueryOptions value.
func ApplyQueryOptions(opts ...QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Transactor controls an explicit transaction.
type Transactor interface {
	BeginTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
}

// Repository is the generic data access contract shared by all entities.
//
// Normal reads never return soft-deleted rows; the WithDeleted variants apply
// only the caller's spec. Commands are staged in the unit of work and reach
// storage on SaveChanges.
type Repository[T any] interface {
	Transactor

	Get(ctx context.Context, spec Spec[T], opts ...QueryOption) ([]*T, error)
	GetByID(ctx context.Context, id uint, opts ...QueryOption) (*T, error)
	GetWithDeleted(ctx context.Context, spec Spec[T], opts ...QueryOption) ([]*T, error)
	Exists(ctx context.Context, spec Spec[T]) (bool, error)
	Count(ctx context.Context, spec Spec[T]) (int64, error)
	CountWithDeleted(ctx context.Context, spec Spec[T]) (int64, error)

	Add(ctx context.Context, entity *T) (*T, error)
	AddRange(ctx context.Context, entities []*T) ([]*T, error)
	AddWithIdentity(ctx context.Context, entities []*T) ([]*T, error)
	Update(ctx context.Context, entity *T, updateModifiedAt bool) (bool, error)
	UpdateRange(ctx context.Context, entities []*T, updateModifiedAt bool) (bool, error)
	Remove(ctx context.Context, entity *T, hardDelete bool) (bool, error)
	RemoveByID(ctx context.Context, id uint, hardDelete bool) (bool, error)
	RemoveRange(ctx context.Context, entities []*T, hardDelete bool) (bool, error)

	SaveChanges(ctx context.Context) (bool, error)
}

// RepositoryFactory opens a fresh unit of work.
type RepositoryFactory[T any] func() Repository[T]
