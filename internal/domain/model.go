package domain

import "time"

// BaseModel carries the identity and lifecycle fields shared by every entity.
// It deliberately avoids gorm.DeletedAt: soft-deleted rows are filtered by the
// repository, not by GORM's implicit scope.
type BaseModel struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at"`
	IsDeleted  bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

// Base returns the embedded BaseModel so generic code can reach the lifecycle
// fields of any entity.
func (m *BaseModel) Base() *BaseModel {
	return m
}

// MarkDeleted flags the entity as soft-deleted at the given instant.
// IsDeleted and DeletedAt always change together.
func (m *BaseModel) MarkDeleted(at time.Time) {
	m.IsDeleted = true
	m.DeletedAt = &at
}

// Entity is implemented by pointers to structs that embed BaseModel.
type Entity interface {
	Base() *BaseModel
}
