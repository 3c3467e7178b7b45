package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Status  int           `json:"status"`
	Details []FieldDetail `json:"details,omitempty"`
	Err     error         `json:"-"`
}

// FieldDetail describes a single rejected input field.
type FieldDetail struct {
	Msg   string `json:"msg"`
	Param string `json:"param"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned sentinels still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "authentication failed")
	ErrNoToken            = New("NO_TOKEN", http.StatusUnauthorized, "No token, authorization denied")
	ErrInvalidToken       = New("INVALID_TOKEN", http.StatusUnauthorized, "Token is not valid")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "Not authorized")
	ErrAdminOnly          = New("ADMIN_ONLY", http.StatusForbidden, "Access denied. Admin privileges required.")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "Server Error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// FromValidation converts validator failures into a validation error carrying field details.
// messages maps a field name, or "field.tag" for a specific rule, to the message shown to callers.
func FromValidation(err error, messages map[string]string) *Error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Wrap(err, ErrValidation.Code, ErrValidation.Status, ErrValidation.Message)
	}
	appErr := Wrap(err, ErrValidation.Code, ErrValidation.Status, ErrValidation.Message)
	for _, fe := range verrs {
		param := lowerFirst(fe.Field())
		msg, ok := messages[param+"."+fe.Tag()]
		if !ok {
			msg, ok = messages[param]
		}
		if !ok {
			msg = fmt.Sprintf("%s is invalid", param)
		}
		appErr.Details = append(appErr.Details, FieldDetail{Msg: msg, Param: param})
	}
	if len(appErr.Details) > 0 {
		appErr.Message = appErr.Details[0].Msg
	}
	return appErr
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
