package user

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/gorepo/internal/domain"
	"github.com/simp-lee/gorepo/internal/pkg"
)

// DefaultProtectedIDs are the seeded administrator and default user.
var DefaultProtectedIDs = []uint{1, 2}

// Option configures the user service.
type Option func(*userService)

// WithProtectedIDs replaces the set of user IDs that can be neither updated nor deleted.
func WithProtectedIDs(ids ...uint) Option {
	return func(s *userService) {
		s.protected = slices.Clone(ids)
	}
}

// WithHasher replaces the password hasher.
func WithHasher(h PasswordHasher) Option {
	return func(s *userService) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithLogger sets the logger for business failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *userService) {
		if l != nil {
			s.logger = l
		}
	}
}

// userService implements domain.UserService.
type userService struct {
	repos     domain.RepositoryFactory[domain.User]
	validate  *validator.Validate
	hasher    PasswordHasher
	protected []uint
	logger    *slog.Logger
}

// NewUserService creates a UserService. Every call opens its own unit of work
// from repos.
func NewUserService(repos domain.RepositoryFactory[domain.User], opts ...Option) domain.UserService {
	s := &userService{
		repos:     repos,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		hasher:    NewBcryptHasher(0),
		protected: slices.Clone(DefaultProtectedIDs),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser validates input, rejects a username already taken (ignoring case)
// and stores the user with a hashed password. All steps share one transaction.
func (s *userService) CreateUser(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.TrimSpace(in.Role)

	if err := s.validate.Struct(in); err != nil {
		return nil, validationFailure(err, in)
	}

	repo := s.repos()
	var created *domain.User
	err := pkg.WithTransaction(ctx, repo, func(ctx context.Context) error {
		if err := s.ensureUsernameFree(ctx, repo, in.Username, 0); err != nil {
			return err
		}

		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return domain.NewAppError(domain.CodeInternal, msgSaveFailed, err)
		}

		u := &domain.User{
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Username:     in.Username,
			PasswordHash: hash,
			Role:         in.Role,
		}
		if _, err := repo.Add(ctx, u); err != nil {
			return domain.NewAppError(domain.CodeInternal, msgSaveFailed, err)
		}
		if err := saved(repo.SaveChanges(ctx)); err != nil {
			return domain.NewAppError(domain.CodeInternal, msgSaveFailed, err)
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "create user", err, msgSaveFailed)
	}
	return created, nil
}

// GetUser retrieves a visible user by ID.
func (s *userService) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	u, err := s.repos().GetByID(ctx, id)
	if domain.IsNotFound(err) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, "get user", err, msgReadFailed)
	}
	return u, nil
}

// ListUsers returns every visible user ordered by ID.
func (s *userService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repos().Get(ctx, domain.True[domain.User](), domain.OrderBy("id", false))
	if err != nil {
		return nil, s.fail(ctx, "list users", err, msgReadFailed)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of in. Protected users are refused.
func (s *userService) UpdateUser(ctx context.Context, id uint, in domain.UpdateUserInput) (*domain.User, error) {
	trimPtr(in.FirstName)
	trimPtr(in.LastName)
	trimPtr(in.Username)
	trimPtr(in.Role)

	if err := s.validate.Struct(in); err != nil {
		return nil, validationFailure(err, in)
	}
	if s.isProtected(id) {
		return nil, domain.ErrProtected
	}

	repo := s.repos()
	var updated *domain.User
	err := pkg.WithTransaction(ctx, repo, func(ctx context.Context) error {
		u, err := repo.GetByID(ctx, id, domain.Tracking())
		if domain.IsNotFound(err) {
			return errUserNotFound
		}
		if err != nil {
			return err
		}

		if in.Username != nil && !strings.EqualFold(*in.Username, u.Username) {
			if err := s.ensureUsernameFree(ctx, repo, *in.Username, id); err != nil {
				return err
			}
		}
		if in.Password != nil {
			hash, err := s.hasher.Hash(*in.Password)
			if err != nil {
				return domain.NewAppError(domain.CodeInternal, msgUpdateFailed, err)
			}
			u.PasswordHash = hash
		}
		applyUpdate(u, in)

		if _, err := repo.Update(ctx, u, true); err != nil {
			return domain.NewAppError(domain.CodeInternal, msgUpdateFailed, err)
		}
		if err := saved(repo.SaveChanges(ctx)); err != nil {
			return domain.NewAppError(domain.CodeInternal, msgUpdateFailed, err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "update user", err, msgUpdateFailed)
	}
	return updated, nil
}

// DeleteUser soft-deletes a user. Protected users are refused.
func (s *userService) DeleteUser(ctx context.Context, id uint) error {
	if s.isProtected(id) {
		return domain.ErrProtected
	}

	repo := s.repos()
	err := pkg.WithTransaction(ctx, repo, func(ctx context.Context) error {
		found, err := repo.RemoveByID(ctx, id, false)
		if err != nil {
			return err
		}
		if !found {
			return errUserNotFound
		}
		if err := saved(repo.SaveChanges(ctx)); err != nil {
			return domain.NewAppError(domain.CodeInternal, msgDeleteFailed, err)
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, "delete user", err, msgDeleteFailed)
	}
	return nil
}

// ValidateCredentials returns the user owning username when password matches.
// Unknown users and wrong passwords yield the same error.
func (s *userService) ValidateCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	users, err := s.repos().Get(ctx,
		domain.Where[domain.User](domain.EqualFold("username", username)),
		domain.OrderBy("id", false),
	)
	if err != nil {
		return nil, s.fail(ctx, "validate credentials", err, msgReadFailed)
	}
	if len(users) == 0 {
		return nil, domain.ErrInvalidCredentials
	}
	u := users[0]
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *userService) ensureUsernameFree(ctx context.Context, repo domain.Repository[domain.User], username string, exceptID uint) error {
	spec := domain.Where[domain.User](domain.EqualFold("username", username))
	if exceptID != 0 {
		spec = spec.Where(domain.Not("id", exceptID))
	}
	taken, err := repo.Exists(ctx, spec)
	if err != nil {
		return err
	}
	if taken {
		return domain.NewAppError(domain.CodeAlreadyExists, "Username already exists", nil)
	}
	return nil
}

func (s *userService) isProtected(id uint) bool {
	return slices.Contains(s.protected, id)
}

// fail logs err and makes sure the caller always receives an *AppError.
func (s *userService) fail(ctx context.Context, op string, err error, msg string) error {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		err = domain.NewAppError(domain.CodeInternal, msg, err)
	}
	level := slog.LevelWarn
	if domain.HTTPStatusCode(err) >= 500 {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "user operation failed", slog.String("op", op), slog.Any("error", err))
	return err
}

func applyUpdate(u *domain.User, in domain.UpdateUserInput) {
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
}

// saved turns a SaveChanges result that touched no rows into an error.
func saved(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return errNothingSaved
	}
	return nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func validationFailure(err error, obj any) error {
	if appErr := pkg.ValidationError(err, obj); appErr != nil {
		return appErr
	}
	return domain.NewAppError(domain.CodeValidation, "Validation failed", err)
}

const (
	msgSaveFailed   = "Failed to save user"
	msgUpdateFailed = "Failed to update user"
	msgDeleteFailed = "Failed to delete user"
	msgReadFailed   = "Failed to read users"
)

var (
	errUserNotFound = domain.NewAppError(domain.CodeNotFound, "User not found", nil)
	errNothingSaved = errors.New("no rows affected")
)
