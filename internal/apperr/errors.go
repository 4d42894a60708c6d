// Package apperr holds the error taxonomy shared by every stage of the
// pipeline. Each carrier wraps its cause and matches its kind with errors.Is.
package apperr

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"
)

const (
	ErrConfig      = errors.ConstError("config error")
	ErrAuth        = errors.ConstError("auth error")
	ErrTransport   = errors.ConstError("transport error")
	ErrRateLimit   = errors.ConstError("rate limited")
	ErrBusiness    = errors.ConstError("business error")
	ErrValidation  = errors.ConstError("validation error")
	ErrPersistence = errors.ConstError("persistence error")
	ErrScheduler   = errors.ConstError("scheduler error")
)

// RateLimitCode is the ERP business code for "too many requests".
const RateLimitCode = 40019

type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

type AuthError struct {
	Msg   string
	Cause error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth: %s: %v", e.Msg, e.Cause)
	}
	return "auth: " + e.Msg
}

func (e *AuthError) Unwrap() error        { return e.Cause }
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

type TransportKind string

const (
	TransportTimeout TransportKind = "timeout"
	TransportConn    TransportKind = "conn"
	Transport5xx     TransportKind = "http_5xx"
	Transport4xx     TransportKind = "http_4xx"
	Transport429     TransportKind = "http_429"
	TransportDecode  TransportKind = "decode"
)

type TransportError struct {
	Kind       TransportKind
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *TransportError) Error() string {
	msg := "transport " + string(e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error        { return e.Cause }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NewHTTPError maps a non-2xx status onto a TransportError.
func NewHTTPError(status int, retryAfter time.Duration, body string) *TransportError {
	kind := Transport4xx
	switch {
	case status == http.StatusTooManyRequests:
		kind = Transport429
	case status >= 500:
		kind = Transport5xx
	}
	var cause error
	if body != "" {
		if len(body) > 256 {
			body = body[:256]
		}
		cause = errors.New(body)
	}
	return &TransportError{Kind: kind, StatusCode: status, RetryAfter: retryAfter, Cause: cause}
}

type RateLimitError struct {
	Msg string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (code %d): %s", RateLimitCode, e.Msg)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimit }

// BusinessError is a nonzero envelope code other than the rate-limit code.
type BusinessError struct {
	Code int
	Msg  string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("api code %d: %s", e.Code, e.Msg)
}

func (e *BusinessError) Is(target error) bool { return target == ErrBusiness }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type PersistenceKind string

const (
	PersistenceConnect  PersistenceKind = "connect"
	PersistenceTimeout  PersistenceKind = "timeout"
	PersistenceConflict PersistenceKind = "conflict"
	PersistenceOther    PersistenceKind = "other"
)

type PersistenceError struct {
	Kind  PersistenceKind
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("persistence %s during %s: %v", e.Kind, e.Op, e.Cause)
	}
	return fmt.Sprintf("persistence %s: %v", e.Kind, e.Cause)
}

func (e *PersistenceError) Unwrap() error        { return e.Cause }
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

type SchedulerError struct {
	Job   string
	Cause error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler job %q: %v", e.Job, e.Cause)
}

func (e *SchedulerError) Unwrap() error        { return e.Cause }
func (e *SchedulerError) Is(target error) bool { return target == ErrScheduler }

// Retryable reports whether the transport should try the request again.
// Connection errors, timeouts, 5xx and 429 are retryable; everything else,
// including 4xx, auth failures and schema/decode errors, is not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		switch te.Kind {
		case TransportTimeout, TransportConn, Transport5xx, Transport429:
			return true
		}
	}
	return false
}

// IsTimeout reports whether err originates from a deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) && te.Kind == TransportTimeout {
		return true
	}
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Kind == PersistenceTimeout
}
