package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error. Every kind maps to exactly one HTTP status.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindInvalidToken   Kind = "INVALID_TOKEN"
	KindAuthorization  Kind = "AUTHORIZATION_ERROR"
	KindDataNotFound   Kind = "DATA_NOT_FOUND"
	KindDataLoad       Kind = "DATA_LOAD_ERROR"
	KindValidation     Kind = "VALIDATION_ERROR"
	KindConflict       Kind = "CONFLICT"
	KindRateLimited    Kind = "RATE_LIMITED"
)

// Error is a domain error tagged with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the bare sentinel for e's kind, so that
// errors.Is(err, ErrDataNotFound) matches any DATA_NOT_FOUND error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels. Compare with errors.Is.
var (
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrDataNotFound   = &Error{Kind: KindDataNotFound}
	ErrDataLoad       = &Error{Kind: KindDataLoad}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrRateLimited    = &Error{Kind: KindRateLimited}
)

var (
	// ErrUserNotFound is returned when no account matches the given email.
	ErrUserNotFound = Wrap(KindAuthentication, errors.New("user not found"))
	// ErrWrongPassword is returned when the password does not match the stored hash.
	ErrWrongPassword = Wrap(KindAuthentication, errors.New("incorrect email or password"))
	// ErrInactive is returned when the account has been deactivated.
	ErrInactive = Wrap(KindAuthentication, errors.New("user account is inactive"))
	// ErrInvalidToken covers every token verification failure.
	ErrInvalidToken = Wrap(KindInvalidToken, errors.New("could not validate credentials"))
	// ErrConflict is returned when a unique resource already exists.
	ErrConflict = Wrap(KindConflict, errors.New("resource already exists"))
)

// New creates an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Err: errors.New(message)}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the first tagged error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	kind, ok := KindOf(err)
	if !ok {
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
	switch kind {
	case KindAuthentication:
		if errors.Is(err, ErrInactive) {
			return NewHTTPError(http.StatusForbidden, err.Error(), string(kind))
		}
		return NewHTTPError(http.StatusUnauthorized, err.Error(), string(kind))
	case KindInvalidToken:
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidToken.Error(), string(kind))
	case KindAuthorization:
		return NewHTTPError(http.StatusForbidden, err.Error(), string(kind))
	case KindDataNotFound:
		return NewHTTPError(http.StatusNotFound, err.Error(), string(kind))
	case KindDataLoad:
		return NewHTTPError(http.StatusInternalServerError, err.Error(), string(kind))
	case KindValidation:
		return NewHTTPError(http.StatusBadRequest, err.Error(), string(kind))
	case KindConflict:
		return NewHTTPError(http.StatusConflict, err.Error(), string(kind))
	case KindRateLimited:
		return NewHTTPError(http.StatusTooManyRequests, err.Error(), string(kind))
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
