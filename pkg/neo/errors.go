package neo

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a client error so callers can decide retry policy on an
// explicit value instead of matching error strings.
type Kind int

const (
	// KindAPI covers transport failures and unexpected vendor responses.
	// Transient unless the caller escalates after repeated occurrences.
	KindAPI Kind = iota

	// KindAuth means credentials are invalid or expired beyond refresh.
	// Persistent; requires re-authentication.
	KindAuth

	// KindConfig means the client was given malformed input.
	// Persistent; requires reconfiguration.
	KindConfig

	// KindOffline means the vendor reports the unit unreachable. Transient.
	KindOffline

	// KindRateLimit means the vendor throttled the request. Transient;
	// carries the advised wait duration when the vendor supplied one.
	KindRateLimit

	// KindZone covers zone-addressing problems on the write path.
	KindZone
)

// String returns a short name for the kind
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindConfig:
		return "config"
	case KindOffline:
		return "offline"
	case KindRateLimit:
		return "rate_limit"
	case KindZone:
		return "zone"
	default:
		return "api"
	}
}

// Error is the typed error returned by the client.
type Error struct {
	Kind       Kind
	Op         string        // operation that failed, e.g. "fetch status"
	StatusCode int           // HTTP status when applicable, 0 otherwise
	RetryAfter time.Duration // advised wait for KindRateLimit, 0 otherwise
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("neo: %s: %s (status %d)", e.Op, msg, e.StatusCode)
	}
	return fmt.Sprintf("neo: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying later may succeed without external
// remediation.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindAPI, KindOffline, KindRateLimit:
		return true
	default:
		return false
	}
}

// AsError unwraps err into a *Error when possible
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err. Errors that did not originate from the
// client classify as KindAPI.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindAPI
}

// IsTransient reports whether err is expected to resolve on retry.
// Unclassified errors are treated as transient.
func IsTransient(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Transient()
	}
	return true
}

// RetryAfterHint returns the vendor-advised wait carried by err, or 0.
func RetryAfterHint(err error) time.Duration {
	if e, ok := AsError(err); ok {
		return e.RetryAfter
	}
	return 0
}
