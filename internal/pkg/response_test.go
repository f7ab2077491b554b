package pkg

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/gorepo/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testInput is used to generate real validator.ValidationErrors.
type testInput struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type bindInput struct {
	Name string `json:"name" binding:"required,max=5"`
}

// newResponseTestContext creates a gin context backed by an httptest.ResponseRecorder.
func newResponseTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

// newResponseTestContextWithBody creates a gin context with a JSON request body.
func newResponseTestContextWithBody(body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var resp Result[json.RawMessage]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp
}

func TestSuccess(t *testing.T) {
	c, w := newResponseTestContext()

	Success(c, http.StatusCreated, map[string]string{"greeting": "hello"})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	resp := decodeResult(t, w)
	if !resp.IsSuccess {
		t.Error("expected is_success=true")
	}
	if resp.Error != "" {
		t.Errorf("expected empty error, got %q", resp.Error)
	}
	if string(resp.Data) != `{"greeting":"hello"}` {
		t.Errorf("unexpected data %s", resp.Data)
	}
}

func TestFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", domain.NewAppError(domain.CodeNotFound, "User not found", nil), http.StatusNotFound, "User not found"},
		{"already exists", domain.NewAppError(domain.CodeAlreadyExists, "Username already exists", nil), http.StatusConflict, "Username already exists"},
		{"protected", domain.ErrProtected, http.StatusForbidden, "Unable to access the requested data"},
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{"repository error hides details", domain.NewRepositoryError("get", errors.New("no such table: users")), http.StatusInternalServerError, "internal error"},
		{"generic error", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newResponseTestContext()
			Failure(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			resp := decodeResult(t, w)
			if resp.IsSuccess {
				t.Error("expected is_success=false")
			}
			if resp.Error != tt.wantMsg {
				t.Errorf("expected error %q, got %q", tt.wantMsg, resp.Error)
			}
			if string(resp.Data) != "null" {
				t.Errorf("expected null data, got %s", resp.Data)
			}
			// Only server errors are attached for the request logger.
			if attached := len(c.Errors) > 0; attached != (tt.wantStatus >= 500) {
				t.Errorf("error attached = %v for status %d", attached, tt.wantStatus)
			}
		})
	}
}

func TestValidationError_WithValidatorErrors(t *testing.T) {
	err := validator.New().Struct(testInput{Password: "abc"})
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	appErr := ValidationError(err, testInput{})
	if appErr == nil {
		t.Fatal("expected AppError, got nil")
	}
	if appErr.Code != domain.CodeValidation {
		t.Errorf("expected CodeValidation, got %d", appErr.Code)
	}
	want := "Validation failed: name is required; password must be at least 6 characters"
	if appErr.Message != want {
		t.Errorf("message = %q; want %q", appErr.Message, want)
	}
}

func TestValidationError_NonValidationError(t *testing.T) {
	if ValidationError(errors.New("plain"), nil) != nil {
		t.Fatal("expected nil for non-validation errors")
	}
}

func TestBindJSON_InvalidJSON(t *testing.T) {
	c, w := newResponseTestContextWithBody(`{invalid`)

	var in bindInput
	if BindJSON(c, &in) {
		t.Fatal("expected BindJSON to return false")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	resp := decodeResult(t, w)
	if !strings.HasPrefix(resp.Error, "invalid request body") {
		t.Errorf("unexpected error %q", resp.Error)
	}
}

func TestBindJSON_BindingRules(t *testing.T) {
	c, w := newResponseTestContextWithBody(`{"name":"toolong"}`)

	var in bindInput
	if BindJSON(c, &in) {
		t.Fatal("expected BindJSON to return false")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	resp := decodeResult(t, w)
	if resp.Error != "Validation failed: name must be at most 5 characters" {
		t.Errorf("unexpected error %q", resp.Error)
	}
}

func TestBindJSON_ValidInput(t *testing.T) {
	c, w := newResponseTestContextWithBody(`{"name":"alice"}`)

	var in bindInput
	if !BindJSON(c, &in) {
		t.Fatalf("expected BindJSON to succeed, body=%s", w.Body.String())
	}
	if in.Name != "alice" {
		t.Errorf("expected name alice, got %q", in.Name)
	}
}

func TestBuildJSONTagMap(t *testing.T) {
	m := buildJSONTagMap(&testInput{})
	if m["Name"] != "name" || m["Password"] != "password" {
		t.Errorf("unexpected tag map %v", m)
	}
	if buildJSONTagMap(nil) != nil {
		t.Error("expected nil map for nil input")
	}
	if buildJSONTagMap(42) != nil {
		t.Error("expected nil map for non-struct input")
	}
}
