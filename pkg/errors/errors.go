package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"

	"github.com/srms-platform/srms-backend/pkg/messages"
	"golang.org/x/text/language"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInUse           Code = "IN_USE"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit       Code = "RATE_LIMIT_EXCEEDED"
	CodeTimeout         Code = "REQUEST_TIMEOUT"
	CodeUpstreamTimeout Code = "UPSTREAM_TIMEOUT"
	CodeUnavailable     Code = "SERVICE_UNAVAILABLE"
	CodeDataPersistence Code = "DATA_PERSISTENCE_ERROR"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeDependency      Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeInUse: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "resource in use",
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus:    http.StatusTooManyRequests,
		Retryable:     true,
		PublicMessage: "rate limit exceeded",
	},
	CodeTimeout: {
		HTTPStatus:    http.StatusRequestTimeout,
		Retryable:     true,
		PublicMessage: "request timeout",
	},
	CodeUpstreamTimeout: {
		HTTPStatus:    http.StatusGatewayTimeout,
		Retryable:     true,
		PublicMessage: "upstream timeout",
	},
	CodeUnavailable: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     true,
		PublicMessage: "service unavailable",
	},
	CodeDataPersistence: {
		HTTPStatus:    http.StatusInternalServerError,
		PublicMessage: "data persistence error",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

var defaultKeyByCode = map[Code]messages.Key{
	CodeValidation:      messages.ValidationFailed,
	CodeUnauthorized:    messages.Unauthorized,
	CodeForbidden:       messages.Forbidden,
	CodeIdempotency:     messages.IdempotencyReused,
	CodeRateLimit:       messages.RateLimited,
	CodeTimeout:         messages.RequestTimeout,
	CodeInternal:        messages.Internal,
	CodeDataPersistence: messages.Internal,
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed failure carried from services to the HTTP boundary.
// key and args select the localized message; message is the English
// rendering kept for logs and Error().
type Error struct {
	code    Code
	key     messages.Key
	args    []any
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	e := &Error{code: code, message: message}
	if message == "" {
		e.key = defaultKeyByCode[code]
		if e.key != "" {
			e.message = messages.Render(language.English, e.key)
		}
	}
	return e
}

func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

// Newk builds an error from a catalog key. The English text becomes the
// log message.
func Newk(code Code, key messages.Key, args ...any) *Error {
	return &Error{
		code:    code,
		key:     key,
		args:    args,
		message: messages.Render(language.English, key, args...),
	}
}

// Wrapk is Newk with a cause.
func Wrapk(code Code, err error, key messages.Key, args ...any) *Error {
	e := Newk(code, key, args...)
	e.cause = err
	return e
}

func NotFound(entity messages.Key, id any) *Error {
	return Newk(CodeNotFound, messages.NotFound, entity, id)
}

func NotFoundBy(entity messages.Key, field string, value any) *Error {
	return Newk(CodeNotFound, messages.NotFoundBy, entity, field, value)
}

func Conflict(entity messages.Key, field string, value any) *Error {
	return Newk(CodeConflict, messages.FieldConflict, entity, field, value)
}

func InUse(key messages.Key, args ...any) *Error {
	return Newk(CodeInUse, key, args...)
}

func Persistence(entity messages.Key, id any) *Error {
	return Newk(CodeDataPersistence, messages.PersistenceFailed, entity, id)
}

func Validation(key messages.Key, args ...any) *Error {
	return Newk(CodeValidation, key, args...)
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Key() messages.Key {
	if e == nil {
		return ""
	}
	return e.key
}

func (e *Error) Args() []any {
	if e == nil {
		return nil
	}
	return e.args
}

// Localized renders the message for tag. Errors built with a literal
// message keep it as is.
func (e *Error) Localized(tag language.Tag) string {
	if e == nil {
		return ""
	}
	if e.key == "" {
		return e.message
	}
	return messages.Render(tag, e.key, e.args...)
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// WithCause attaches the underlying failure for logging.
func (e *Error) WithCause(err error) *Error {
	if e == nil {
		return nil
	}
	e.cause = err
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Normalize maps any error onto the closed taxonomy. Deadline expiry
// becomes Timeout; anything untyped becomes Internal with the cause kept.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return Wrapk(CodeTimeout, err, messages.RequestTimeout)
	}
	return Wrapk(CodeInternal, err, messages.Internal)
}
