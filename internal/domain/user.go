package domain

import (
	"context"
	"time"
)

// User is an account managed by the user service.
type User struct {
	BaseModel
	FirstName    string `gorm:"size:200;not null" json:"first_name"`
	LastName     string `gorm:"size:200;not null" json:"last_name"`
	Username     string `gorm:"size:200;not null;index" json:"username"`
	PasswordHash string `gorm:"size:200;not null" json:"-"`
	Role         string `gorm:"size:200;not null" json:"role"`
}

// CreateUserInput holds the fields required to register a user.
type CreateUserInput struct {
	FirstName string `json:"first_name" validate:"required,max=200"`
	LastName  string `json:"last_name" validate:"required,max=200"`
	Username  string `json:"username" validate:"required,max=200"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Role      string `json:"role" validate:"required,max=200"`
}

// UpdateUserInput holds a partial update. Nil fields are left unchanged.
type UpdateUserInput struct {
	FirstName *string `json:"first_name" validate:"omitnil,min=1,max=200"`
	LastName  *string `json:"last_name" validate:"omitnil,min=1,max=200"`
	Username  *string `json:"username" validate:"omitnil,min=1,max=200"`
	Password  *string `json:"password" validate:"omitnil,min=6,max=72"`
	Role      *string `json:"role" validate:"omitnil,min=1,max=200"`
}

// UserSearch is a multi-criteria user query. Nil criteria are ignored.
type UserSearch struct {
	FirstName       *string    `json:"first_name"`
	LastName        *string    `json:"last_name"`
	Username        *string    `json:"username"`
	Role            *string    `json:"role"`
	CreatedFromDate *time.Time `json:"created_from_date"`
	CreatedToDate   *time.Time `json:"created_to_date"`
	IsDeleted       *bool      `json:"is_deleted"`
	SortBy          string     `json:"sort_by"`
	SortDescending  bool       `json:"sort_descending"`
	PageNumber      int        `json:"page_number"`
	PageSize        int        `json:"page_size"`
}

// UserService defines the business logic interface for users.
type UserService interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*User, error)
	GetUser(ctx context.Context, id uint) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, id uint, in UpdateUserInput) (*User, error)
	DeleteUser(ctx context.Context, id uint) error
	ValidateCredentials(ctx context.Context, username, password string) (*User, error)
	Search(ctx context.Context, q UserSearch) (*PageResult[User], error)
}
