package domain

import (
	"errors"
	"net/http"
)

// Error codes for business logic errors.
const (
	CodeNotFound      = 1
	CodeAlreadyExists = 2
	CodeValidation    = 3
	CodeInternal      = 4
	CodeProtected     = 5
	CodeUnauthorized  = 6
	// CodeTransactionState marks misuse of the begin/commit/rollback protocol.
	CodeTransactionState = 7
)

// AppError represents a business logic error with a code, message, and optional wrapped error.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined business errors.
//
// Use the Is* helpers instead of errors.Is to test for a category: the helpers
// compare codes through errors.As, so they also match fresh instances built by
// NewAppError and wrapped errors.
var (
	ErrNotFound           = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists      = &AppError{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation         = &AppError{Code: CodeValidation, Message: "validation error"}
	ErrInternal           = &AppError{Code: CodeInternal, Message: "internal error"}
	ErrProtected          = &AppError{Code: CodeProtected, Message: "Unable to access the requested data"}
	ErrInvalidCredentials = &AppError{Code: CodeUnauthorized, Message: "Invalid credentials"}

	ErrTransactionActive = &AppError{Code: CodeTransactionState, Message: "a transaction is already active"}
	ErrNoTransaction     = &AppError{Code: CodeTransactionState, Message: "no active transaction"}
)

// NewAppError creates a new AppError with the given code, message, and wrapped error.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// RepositoryError wraps every failure raised by the storage layer.
// Op names the repository operation that failed.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return "repository " + e.Op + ": " + e.Err.Error()
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError wraps err as a RepositoryError for op. A nil err stays nil.
func NewRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Op: op, Err: err}
}

// IsNotFound reports whether err is or wraps an AppError with CodeNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsAlreadyExists reports whether err is or wraps an AppError with CodeAlreadyExists.
func IsAlreadyExists(err error) bool {
	return hasCode(err, CodeAlreadyExists)
}

// IsValidation reports whether err is or wraps an AppError with CodeValidation.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsInternal reports whether err is or wraps an AppError with CodeInternal.
func IsInternal(err error) bool {
	return hasCode(err, CodeInternal)
}

// IsProtected reports whether err is or wraps an AppError with CodeProtected.
func IsProtected(err error) bool {
	return hasCode(err, CodeProtected)
}

// IsUnauthorized reports whether err is or wraps an AppError with CodeUnauthorized.
func IsUnauthorized(err error) bool {
	return hasCode(err, CodeUnauthorized)
}

// IsTransactionState reports whether err is or wraps an AppError with CodeTransactionState.
func IsTransactionState(err error) bool {
	return hasCode(err, CodeTransactionState)
}

// IsRepository reports whether err is or wraps a *RepositoryError.
func IsRepository(err error) bool {
	var repoErr *RepositoryError
	return errors.As(err, &repoErr)
}

// hasCode checks whether err is or wraps an *AppError with the given code.
func hasCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatusCode maps an error to an HTTP status code.
// If the error is an *AppError, the code is mapped; otherwise http.StatusInternalServerError is returned.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeNotFound:
			return http.StatusNotFound
		case CodeAlreadyExists:
			return http.StatusConflict
		case CodeValidation:
			return http.StatusBadRequest
		case CodeProtected:
			return http.StatusForbidden
		case CodeUnauthorized:
			return http.StatusUnauthorized
		case CodeInternal, CodeTransactionState:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
