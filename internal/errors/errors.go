// Package errors defines the error type shared by services, handlers and
// middleware. Anything returned to a client goes through AppError so that
// internal causes stay in the logs.
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
)

// AppError is an application error carrying a stable code, a client safe
// message, the HTTP status to answer with and an optional internal cause.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// Unwrap exposes the internal cause to errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap copies sentinel and attaches internal as the cause.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage copies sentinel with a different client message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// FromValidation converts a budget validation failure into
// ErrBudgetValidation, keeping the field and reason in the message. Any
// other error is returned unchanged.
func FromValidation(err error) error {
	var verr *budget.ValidationError
	if !stderrors.As(err, &verr) {
		return err
	}
	return &AppError{
		Code:       ErrBudgetValidation.Code,
		Message:    verr.Error(),
		StatusCode: ErrBudgetValidation.StatusCode,
		Internal:   err,
	}
}

// Authentication errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrRateLimited        = &AppError{Code: "RATE_LIMITED", Message: "Too many requests", StatusCode: http.StatusTooManyRequests}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Category errors.
var (
	ErrCategoryNotFound    = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse       = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is allocated in a budget", StatusCode: http.StatusConflict}
	ErrCategoryHasChildren = &AppError{Code: "CATEGORY_HAS_CHILDREN", Message: "Category has child categories", StatusCode: http.StatusConflict}
	ErrSelfParentCategory  = &AppError{Code: "SELF_PARENT_CATEGORY", Message: "A category cannot be its own parent", StatusCode: http.StatusBadRequest}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", StatusCode: http.StatusBadRequest}
)

// Budget errors.
var (
	ErrBudgetNotFound       = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrBudgetValidation     = &AppError{Code: "BUDGET_VALIDATION", Message: "Budget data is invalid", StatusCode: http.StatusUnprocessableEntity}
	ErrBudgetInactive       = &AppError{Code: "BUDGET_INACTIVE", Message: "Budget is no longer active", StatusCode: http.StatusConflict}
	ErrAllocationNotFound   = &AppError{Code: "ALLOCATION_NOT_FOUND", Message: "Allocation not found", StatusCode: http.StatusNotFound}
	ErrDuplicateAllocation  = &AppError{Code: "DUPLICATE_ALLOCATION", Message: "Category is allocated more than once", StatusCode: http.StatusConflict}
	ErrTemplateNotFound     = &AppError{Code: "TEMPLATE_NOT_FOUND", Message: "Budget template not found", StatusCode: http.StatusNotFound}
	ErrCategoryNotAllocable = &AppError{Code: "CATEGORY_NOT_ALLOCABLE", Message: "Only expense categories can be allocated", StatusCode: http.StatusBadRequest}
)
