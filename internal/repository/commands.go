package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/simp-lee/gorepo/internal/domain"
	"github.com/simp-lee/gorepo/internal/pkg"
)

type opKind int

const (
	opInsert opKind = iota
	opInsertBatch
	opInsertKeyed
	opUpdate
	opDelete
)

// pendingOp is a command staged until the next SaveChanges.
type pendingOp[T any] struct {
	kind   opKind
	entity *T
	batch  []*T
}

var (
	errNilEntity   = domain.NewAppError(domain.CodeValidation, "entity must not be nil", nil)
	errEmptyBatch  = domain.NewAppError(domain.CodeValidation, "batch must not be empty", nil)
	errNoIdentity  = domain.NewAppError(domain.CodeValidation, "entity has no identity", nil)
	errHasIdentity = domain.NewAppError(domain.CodeValidation, "entity already has an identity", nil)
)

// Add stages the insert of entity and stamps CreatedAt.
// The primary key is assigned when SaveChanges succeeds.
func (r *Repository[T, PT]) Add(ctx context.Context, entity *T) (*T, error) {
	if err := checkNew[T, PT](entity); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	PT(entity).Base().CreatedAt = r.now()
	r.pending = append(r.pending, pendingOp[T]{kind: opInsert, entity: entity})
	return entity, nil
}

// AddRange stages a batch insert. The whole batch is rejected if any entity is invalid.
func (r *Repository[T, PT]) AddRange(ctx context.Context, entities []*T) ([]*T, error) {
	if len(entities) == 0 {
		return nil, errEmptyBatch
	}
	for _, e := range entities {
		if err := checkNew[T, PT](e); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	batch := make([]*T, len(entities))
	for i, e := range entities {
		PT(e).Base().CreatedAt = now
		batch[i] = e
	}
	r.pending = append(r.pending, pendingOp[T]{kind: opInsertBatch, batch: batch})
	return entities, nil
}

// AddWithIdentity stages a batch insert that keeps the preset primary keys,
// for fixed rows such as seed data. Every entity must carry an ID. After the
// insert the PostgreSQL id sequence is moved past the highest key.
func (r *Repository[T, PT]) AddWithIdentity(ctx context.Context, entities []*T) ([]*T, error) {
	if err := checkBatch[T, PT](entities); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	batch := make([]*T, len(entities))
	for i, e := range entities {
		PT(e).Base().CreatedAt = now
		batch[i] = e
	}
	r.pending = append(r.pending, pendingOp[T]{kind: opInsertKeyed, batch: batch})
	return entities, nil
}

// Update stages an update of every column except id and created_at.
// ModifiedAt is stamped unless updateModifiedAt is false.
func (r *Repository[T, PT]) Update(ctx context.Context, entity *T, updateModifiedAt bool) (bool, error) {
	if err := checkExisting[T, PT](entity); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stageUpdate(entity, updateModifiedAt)
	return true, nil
}

// UpdateRange stages updates for every entity. The whole batch is rejected if any entity is invalid.
func (r *Repository[T, PT]) UpdateRange(ctx context.Context, entities []*T, updateModifiedAt bool) (bool, error) {
	if err := checkBatch[T, PT](entities); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entities {
		r.stageUpdate(e, updateModifiedAt)
	}
	return true, nil
}

// Remove stages a hard delete, or a soft delete that flags the row and keeps it.
func (r *Repository[T, PT]) Remove(ctx context.Context, entity *T, hardDelete bool) (bool, error) {
	if err := checkExisting[T, PT](entity); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stageRemove(entity, hardDelete)
	return true, nil
}

// RemoveByID loads the visible entity with id through the unit of work and
// stages its removal. It returns false when no such entity exists.
func (r *Repository[T, PT]) RemoveByID(ctx context.Context, id uint, hardDelete bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.getByID(ctx, id, domain.QueryOptions{Tracking: true})
	if domain.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	r.stageRemove(e, hardDelete)
	return true, nil
}

// RemoveRange stages the removal of every entity. The whole batch is rejected if any entity is invalid.
func (r *Repository[T, PT]) RemoveRange(ctx context.Context, entities []*T, hardDelete bool) (bool, error) {
	if err := checkBatch[T, PT](entities); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entities {
		r.stageRemove(e, hardDelete)
	}
	return true, nil
}

// SaveChanges flushes staged commands in order. Inside an explicit transaction
// they run on it; otherwise they run in a transaction of their own. It reports
// whether any row was affected. Staged commands are kept when the flush fails.
func (r *Repository[T, PT]) SaveChanges(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return false, nil
	}

	var affected int64
	flush := func(tx *gorm.DB) error {
		n, err := r.flush(tx.WithContext(ctx))
		affected = n
		return err
	}

	var err error
	if r.tx != nil {
		err = flush(r.tx)
	} else {
		err = pkg.WithTx(r.db.WithContext(ctx), flush)
	}
	if err != nil {
		r.resetInserts()
		return false, r.storageError(ctx, "save changes", err)
	}

	r.settle()
	return affected > 0, nil
}

func (r *Repository[T, PT]) flush(tx *gorm.DB) (int64, error) {
	var affected int64
	for _, op := range r.pending {
		var res *gorm.DB
		switch op.kind {
		case opInsert:
			res = tx.Create(op.entity)
		case opInsertBatch:
			res = tx.Create(op.batch)
		case opInsertKeyed:
			if res = tx.Create(op.batch); res.Error == nil {
				if err := syncIDSequence[T](tx); err != nil {
					return affected, err
				}
			}
		case opUpdate:
			res = tx.Model(op.entity).Select("*").Omit("id", "created_at").Updates(op.entity)
		case opDelete:
			res = tx.Delete(op.entity)
		}
		if res.Error != nil {
			return affected, res.Error
		}
		affected += res.RowsAffected
	}
	return affected, nil
}

// settle moves flushed entities into the identity map and clears the queue.
func (r *Repository[T, PT]) settle() {
	for _, op := range r.pending {
		switch op.kind {
		case opInsert:
			r.tracked[PT(op.entity).Base().ID] = op.entity
			if r.tx != nil {
				r.inserted = append(r.inserted, op.entity)
			}
		case opInsertBatch:
			for _, e := range op.batch {
				r.tracked[PT(e).Base().ID] = e
			}
			if r.tx != nil {
				r.inserted = append(r.inserted, op.batch...)
			}
		case opInsertKeyed:
			for _, e := range op.batch {
				r.tracked[PT(e).Base().ID] = e
			}
		case opUpdate:
			r.tracked[PT(op.entity).Base().ID] = op.entity
		case opDelete:
			delete(r.tracked, PT(op.entity).Base().ID)
		}
	}
	r.pending = nil
}

// resetInserts clears keys assigned by a flush that did not persist, so the
// staged inserts can be flushed again. Preset keys are kept.
func (r *Repository[T, PT]) resetInserts() {
	for _, op := range r.pending {
		switch op.kind {
		case opInsert:
			PT(op.entity).Base().ID = 0
		case opInsertBatch:
			for _, e := range op.batch {
				PT(e).Base().ID = 0
			}
		}
	}
}

func (r *Repository[T, PT]) stageUpdate(entity *T, updateModifiedAt bool) {
	if updateModifiedAt {
		now := r.now()
		PT(entity).Base().ModifiedAt = &now
	}
	r.pending = append(r.pending, pendingOp[T]{kind: opUpdate, entity: entity})
}

func (r *Repository[T, PT]) stageRemove(entity *T, hardDelete bool) {
	if hardDelete {
		r.pending = append(r.pending, pendingOp[T]{kind: opDelete, entity: entity})
		return
	}
	PT(entity).Base().MarkDeleted(r.now())
	r.stageUpdate(entity, false)
}

func checkNew[T any, PT EntityPtr[T]](e *T) error {
	if e == nil {
		return errNilEntity
	}
	if PT(e).Base().ID != 0 {
		return errHasIdentity
	}
	return nil
}

func checkExisting[T any, PT EntityPtr[T]](e *T) error {
	if e == nil {
		return errNilEntity
	}
	if PT(e).Base().ID == 0 {
		return errNoIdentity
	}
	return nil
}

func checkBatch[T any, PT EntityPtr[T]](entities []*T) error {
	if len(entities) == 0 {
		return errEmptyBatch
	}
	for _, e := range entities {
		if err := checkExisting[T, PT](e); err != nil {
			return err
		}
	}
	return nil
}

// syncIDSequence moves the PostgreSQL sequence behind the primary key to the
// highest stored key. Explicit keys do not advance it on their own.
func syncIDSequence[T any](tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	stmt := &gorm.Statement{DB: tx}
	if err := stmt.Parse(new(T)); err != nil {
		return err
	}
	pk := stmt.Schema.PrioritizedPrimaryField
	if pk == nil {
		return nil
	}
	maxID := tx.Session(&gorm.Session{NewDB: true}).Table(stmt.Schema.Table).Select("MAX(" + pk.DBName + ")")
	return tx.Exec("SELECT setval(pg_get_serial_sequence(?, ?), (?))", stmt.Schema.Table, pk.DBName, maxID).Error
}
