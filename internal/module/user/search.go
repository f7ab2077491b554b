package user

import (
	"context"
	"strings"

	"github.com/simp-lee/gorepo/internal/domain"
	"github.com/simp-lee/gorepo/internal/pkg"
)

// sortColumns maps normalized sort keys to columns.
var sortColumns = map[string]string{
	"id":        "id",
	"firstname": "first_name",
	"lastname":  "last_name",
	"username":  "username",
	"role":      "role",
	"createdat": "created_at",
}

// Search returns one page of users matching every criterion present in q.
// With IsDeleted set to true only soft-deleted users are searched.
func (s *userService) Search(ctx context.Context, q domain.UserSearch) (*domain.PageResult[domain.User], error) {
	number, size := pkg.NormalizePage(q.PageNumber, q.PageSize)
	spec := searchSpec(q)
	order := sortOptions(q.SortBy, q.SortDescending)
	repo := s.repos()

	var (
		total int64
		users []*domain.User
		err   error
	)
	if q.IsDeleted != nil && *q.IsDeleted {
		spec = spec.Where(domain.OnlyDeleted())
		if total, err = repo.CountWithDeleted(ctx, spec); err == nil {
			users, err = repo.GetWithDeleted(ctx, spec, order...)
		}
	} else {
		if total, err = repo.Count(ctx, spec); err == nil {
			users, err = repo.Get(ctx, spec, order...)
		}
	}
	if err != nil {
		return nil, s.fail(ctx, "search users", err, "Failed to search users")
	}

	return pkg.NewPageResult(users, total, number, size), nil
}

// searchSpec ANDs one condition per non-empty criterion onto the always-true spec.
func searchSpec(q domain.UserSearch) domain.Spec[domain.User] {
	spec := domain.True[domain.User]()
	if v, ok := present(q.FirstName); ok {
		spec = spec.Where(domain.Contains("first_name", v))
	}
	if v, ok := present(q.LastName); ok {
		spec = spec.Where(domain.Contains("last_name", v))
	}
	if v, ok := present(q.Username); ok {
		spec = spec.Where(domain.EqualFold("username", v))
	}
	if v, ok := present(q.Role); ok {
		spec = spec.Where(domain.EqualFold("role", v))
	}
	if q.CreatedFromDate != nil {
		spec = spec.Where(domain.Gte("created_at", q.CreatedFromDate.UTC()))
	}
	if q.CreatedToDate != nil {
		spec = spec.Where(domain.Lte("created_at", q.CreatedToDate.UTC()))
	}
	return spec
}

// sortOptions resolves a sort key, ignoring case and underscores. Unknown keys
// fall back to ascending ID. ID always breaks ties so pages are stable.
func sortOptions(key string, desc bool) []domain.QueryOption {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", ""))
	col, ok := sortColumns[norm]
	if !ok {
		return []domain.QueryOption{domain.OrderBy("id", false)}
	}
	if col == "id" {
		return []domain.QueryOption{domain.OrderBy("id", desc)}
	}
	return []domain.QueryOption{domain.OrderBy(col, desc), domain.OrderBy("id", false)}
}

func present(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}
