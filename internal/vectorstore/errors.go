package vectorstore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies vector store failures so the manager can pick a
// recovery strategy without inspecting error strings.
type ErrorKind int

const (
	// KindUnknown covers failures with no specific recovery step.
	KindUnknown ErrorKind = iota
	// KindTenant is a transient connection/init race; retrying usually
	// resolves it without structural changes.
	KindTenant
	// KindCollision means a previous instance left stale state behind
	// (locks, half-written files); cleanup or recreation is needed.
	KindCollision
)

func (k ErrorKind) String() string {
	switch k {
	case KindTenant:
		return "tenant_connection"
	case KindCollision:
		return "collision"
	default:
		return "unknown"
	}
}

// Error is the typed error surface of a vector store client.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify extracts the ErrorKind from err. Clients are expected to
// return *Error; the substring matching below is a boundary fallback
// for stores that surface untyped driver errors.
func Classify(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "could not connect to tenant"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database is busy"):
		return KindTenant
	case strings.Contains(msg, "already exists"),
		strings.Contains(msg, "file is not a database"),
		strings.Contains(msg, "database disk image is malformed"):
		return KindCollision
	default:
		return KindUnknown
	}
}

// InitializationError is returned when the store could not be brought
// up after exhausting all retry attempts. The service is unavailable
// until a new initialization succeeds.
type InitializationError struct {
	Attempts int
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("vectorstore: initialization failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// StoreUnavailableError is returned when an operation is attempted
// against a handle that is not in the Ready state. Recoverable by
// re-initializing.
type StoreUnavailableError struct {
	State State
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("vectorstore: store unavailable (state: %s)", e.State)
}
