package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryDecode       Category = "decode"
	CategoryEncode       Category = "encode"
	CategoryPipeline     Category = "pipeline"
	CategoryStorage      Category = "storage"
	CategoryConfig       Category = "config"
	CategoryInput        Category = "input"
	CategoryValidation   Category = "validation"
	CategoryAuth         Category = "auth"
	CategoryMethod       Category = "method"
	CategoryRepository   Category = "repository"
	CategoryNotification Category = "notification"
)

// Kind names are the machine-checkable error kinds reported to HTTP callers.
const (
	KindValidation   = "ValidationError"
	KindAuth         = "AuthError"
	KindMethod       = "MethodError"
	KindTransform    = "TransformError"
	KindStorage      = "StorageError"
	KindRepository   = "RepositoryError"
	KindNotification = "NotificationError"
	KindInternal     = "InternalError"
)

// Error is the structured error type used throughout the module.
type Error struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error.
func New(category Category, op string, err error) *Error {
	return &Error{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// Validation is shorthand for a validation failure with a formatted message.
func Validation(op, format string, args ...any) *Error {
	return New(CategoryValidation, op, fmt.Errorf(format, args...))
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of the outermost Error in err's chain, or ""
// when err carries none.
func CategoryOf(err error) Category {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// Kind maps err to the kind string exposed in API responses.
func Kind(err error) string {
	switch CategoryOf(err) {
	case CategoryValidation, CategoryInput:
		return KindValidation
	case CategoryAuth:
		return KindAuth
	case CategoryMethod:
		return KindMethod
	case CategoryDecode, CategoryEncode, CategoryPipeline:
		return KindTransform
	case CategoryStorage:
		return KindStorage
	case CategoryRepository:
		return KindRepository
	case CategoryNotification:
		return KindNotification
	}
	return KindInternal
}

// HTTPStatus maps err to the status code returned to HTTP callers.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusForbidden
	case KindMethod:
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrEmptyInput        = errors.New("empty input")
	ErrTooLarge          = errors.New("input exceeds size limit")
	ErrTooManyPixels     = errors.New("image dimensions exceed pixel limit")
	ErrNotImage          = errors.New("content type is not an image")
	ErrMissingField      = errors.New("missing required field")
	ErrEmptyIDs          = errors.New("no ids given")
	ErrUnknownRecord     = errors.New("unknown record id")
	ErrUnauthorized      = errors.New("invalid api key")
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrQueueFull         = errors.New("queue full")
)
