package user

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gorepo/internal/domain"
	"github.com/simp-lee/gorepo/internal/pkg"
)

// UserHandler handles REST API requests for the user resource.
type UserHandler struct {
	svc domain.UserService
}

// NewUserHandler creates a new UserHandler with the given service.
func NewUserHandler(svc domain.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(c *gin.Context) {
	var req domain.CreateUserInput
	if !pkg.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), req)
	if err != nil {
		pkg.Failure(c, err)
		return
	}

	pkg.Success(c, http.StatusCreated, user)
}

// Get handles GET /api/v1/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Failure(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		pkg.Failure(c, err)
		return
	}

	pkg.Success(c, http.StatusOK, user)
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		pkg.Failure(c, err)
		return
	}

	pkg.Success(c, http.StatusOK, users)
}

// Update handles PUT /api/v1/users/:id.
func (h *UserHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Failure(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	var req domain.UpdateUserInput
	if !pkg.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		pkg.Failure(c, err)
		return
	}

	pkg.Success(c, http.StatusOK, user)
}

// Delete handles DELETE /api/v1/users/:id.
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Failure(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	if err := h.svc.DeleteUser(c.Request.Context(), id); err != nil {
		pkg.Failure(c, err)
		return
	}

	pkg.Success(c, http.StatusOK, true)
}

// Search handles POST /api/v1/users/search.
func (h *UserHandler) Search(c *gin.Context) {
	var req domain.UserSearch
	if !pkg.BindJSON(c, &req) {
		return
	}

	page, err := h.svc.Search(c.Request.Context(), req)
	if err != nil {
		pkg.Failure(c, err)
		return
	}

	pkg.Success(c, http.StatusOK, page)
}

// Credentials handles POST /api/v1/users/credentials.
func (h *UserHandler) Credentials(c *gin.Context) {
	var req CredentialsRequest
	if !pkg.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.ValidateCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		pkg.Failure(c, err)
		return
	}

	pkg.Success(c, http.StatusOK, user)
}

func parseID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id: %s", idStr)
	}
	if id > uint64(^uint(0)) {
		return 0, fmt.Errorf("invalid id: %s", idStr)
	}
	return uint(id), nil
}
