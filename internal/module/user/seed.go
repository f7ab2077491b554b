package user

import (
	"context"
	"log/slog"

	"github.com/simp-lee/gorepo/internal/domain"
	"github.com/simp-lee/gorepo/internal/pkg"
)

// Default accounts created on an empty user table with the fixed IDs 1 and 2,
// which DefaultProtectedIDs guards.
const (
	AdminUsername = "admin@localhost.com"
	UserUsername  = "user@localhost.com"
)

const (
	adminID uint = 1
	userID  uint = 2
)

// SeedPasswords holds the initial passwords of the default accounts.
type SeedPasswords struct {
	Admin string
	User  string
}

// Seed creates the default administrator and user accounts when no user row
// exists yet, soft-deleted rows included. It reports whether accounts were created.
func Seed(ctx context.Context, repo domain.Repository[domain.User], hasher PasswordHasher, pw SeedPasswords, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	created := false
	err := pkg.WithTransaction(ctx, repo, func(ctx context.Context) error {
		n, err := repo.CountWithDeleted(ctx, domain.True[domain.User]())
		if err != nil || n > 0 {
			return err
		}

		admin, err := hasher.Hash(pw.Admin)
		if err != nil {
			return err
		}
		user, err := hasher.Hash(pw.User)
		if err != nil {
			return err
		}

		accounts := []*domain.User{
			{BaseModel: domain.BaseModel{ID: adminID}, FirstName: "Admin", LastName: "Admin", Username: AdminUsername, PasswordHash: admin, Role: "Admin"},
			{BaseModel: domain.BaseModel{ID: userID}, FirstName: "User", LastName: "User", Username: UserUsername, PasswordHash: user, Role: "User"},
		}
		if _, err := repo.AddWithIdentity(ctx, accounts); err != nil {
			return err
		}
		if err := saved(repo.SaveChanges(ctx)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		logger.InfoContext(ctx, "default users seeded",
			slog.String("admin", AdminUsername),
			slog.String("user", UserUsername),
		)
	}
	return created, nil
}
