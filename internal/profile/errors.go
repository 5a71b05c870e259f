package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindInvalidIdentifier   Kind = "InvalidIdentifier"
	KindProfileNotFound     Kind = "ProfileNotFound"
	KindUpstreamRateLimited Kind = "UpstreamRateLimited"
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	KindUpstreamAuthError   Kind = "UpstreamAuthError"
	KindModelUnavailable    Kind = "ModelUnavailable"
	KindTimeout             Kind = "Timeout"
	KindPersistenceError    Kind = "PersistenceError"
)

// Retryable reports whether the orchestrator may retry a failure of this kind.
func (k Kind) Retryable() bool {
	return k == KindUpstreamRateLimited || k == KindUpstreamUnavailable
}

// Error is the typed error carried through the pipeline.
type Error struct {
	Kind       Kind
	Op         string
	Identifier Identifier
	// RetryAfter is the upstream hint for rate limits, zero when absent.
	RetryAfter time.Duration
	// Attempts is the number of upstream attempts made before giving up.
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteString(")")
	}
	if e.Identifier != "" {
		fmt.Fprintf(&b, " for %q", e.Identifier)
	}
	if e.Kind.Retryable() {
		if e.Attempts > 1 {
			fmt.Fprintf(&b, " after %d attempts", e.Attempts)
		} else {
			b.WriteString(", not retried")
		}
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, ", retry after %s", e.RetryAfter)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind so errors.Is(err, ErrProfileNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidIdentifier   = &Error{Kind: KindInvalidIdentifier}
	ErrProfileNotFound     = &Error{Kind: KindProfileNotFound}
	ErrUpstreamRateLimited = &Error{Kind: KindUpstreamRateLimited}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrUpstreamAuthError   = &Error{Kind: KindUpstreamAuthError}
	ErrModelUnavailable    = &Error{Kind: KindModelUnavailable}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrPersistence         = &Error{Kind: KindPersistenceError}
)

// NewError builds a typed error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind of err, or "" when err is not a pipeline error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError returns the pipeline error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
