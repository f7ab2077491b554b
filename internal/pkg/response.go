package pkg

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/gorepo/internal/domain"
)

// Result is the JSON envelope returned by every API endpoint.
type Result[T any] struct {
	IsSuccess bool   `json:"is_success"`
	Data      T      `json:"data"`
	Error     string `json:"error,omitempty"`
}

// Success sends a successful envelope carrying data with the given status.
func Success(c *gin.Context, status int, data any) {
	c.JSON(status, Result[any]{
		IsSuccess: true,
		Data:      data,
	})
}

// Failure sends a failed envelope. If err is a *domain.AppError, its code is
// mapped to the HTTP status and its message is exposed; storage details never are.
// Server errors are also attached to c so the request logger records the cause.
func Failure(c *gin.Context, err error) {
	status := domain.HTTPStatusCode(err)
	if err != nil && status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var appErr *domain.AppError
	msg := "internal error"
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}

	c.JSON(status, Result[any]{
		IsSuccess: false,
		Error:     msg,
	})
}

// BindJSON binds the request body to obj. On failure it sends a 400 envelope
// and returns false.
//
//	if !pkg.BindJSON(c, &req) { return }
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if appErr := ValidationError(err, obj); appErr != nil {
			Failure(c, appErr)
			return false
		}
		c.JSON(http.StatusBadRequest, Result[any]{
			IsSuccess: false,
			Error:     "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

// ValidationError converts validator.ValidationErrors into a CodeValidation
// AppError whose message lists every failed field. It returns nil when err
// holds no validation errors. Field names follow the JSON tags of obj.
func ValidationError(err error, obj any) *domain.AppError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}

	jsonTags := buildJSONTagMap(obj)
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		name := fe.Field()
		if tag, ok := jsonTags[fe.StructField()]; ok {
			name = tag
		} else {
			name = strings.ToLower(name)
		}
		msgs = append(msgs, name+" "+describeRule(fe))
	}
	sort.Strings(msgs)

	return domain.NewAppError(domain.CodeValidation, "Validation failed: "+strings.Join(msgs, "; "), err)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	if fe.Param() != "" {
		return "failed " + fe.Tag() + "=" + fe.Param()
	}
	return "failed " + fe.Tag()
}

// buildJSONTagMap returns a map from struct field name to its JSON tag name.
// If obj is nil or not a struct (pointer), it returns an empty map.
func buildJSONTagMap(obj any) map[string]string {
	if obj == nil {
		return nil
	}
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	m := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if name := parseJSONTagName(tag); name != "" {
			m[f.Name] = name
		}
	}
	return m
}

// parseJSONTagName extracts the field name from a JSON struct tag value.
func parseJSONTagName(tag string) string {
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return ""
	}
	return name
}
