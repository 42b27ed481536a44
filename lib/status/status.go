package status

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds the engine distinguishes.
// All errors produced by this module wrap exactly one of these, so
// callers can classify failures with errors.Is (or the predicates below)
// without depending on message text.
var (
	// ErrConnection means no usable session could be provided for a
	// server URI (creation, connect or reconnect failed, or the pooled
	// session is not connected).
	ErrConnection = errors.New("connection error")

	// ErrUnsupported means the request asked for something the engine
	// deliberately does not do, e.g. fanning an asynchronous request out
	// across more than one session.
	ErrUnsupported = errors.New("unsupported")

	// ErrNotFound means a connection id or transaction id does not name
	// a live entry (anymore).
	ErrNotFound = errors.New("not found")

	// ErrProgramming means an internal invariant was violated (such as
	// releasing a session whose activity count is already zero). Fatal to
	// the operation, never to the process.
	ErrProgramming = errors.New("programming error")

	// ErrTransport is an opaque failure surfaced by the underlying
	// connect or invoke call, passed through unmodified.
	ErrTransport = errors.New("transport error")
)

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// ConnectionErrorf creates a new error wrapping ErrConnection
func ConnectionErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConnection, fmt.Sprintf(format, args...))
}

// UnsupportedErrorf creates a new error wrapping ErrUnsupported
func UnsupportedErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// NotFoundErrorf creates a new error wrapping ErrNotFound
func NotFoundErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// ProgrammingErrorf creates a new error wrapping ErrProgramming
func ProgrammingErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProgramming, fmt.Sprintf(format, args...))
}

// TransportError wraps an error returned by the transport layer. The
// original error stays reachable via errors.Unwrap / errors.Is.
func TransportError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// --------------------------------------------------------------------------
// Predicates
// --------------------------------------------------------------------------

// IsConnectionError reports whether err wraps ErrConnection
func IsConnectionError(err error) bool { return errors.Is(err, ErrConnection) }

// IsUnsupportedError reports whether err wraps ErrUnsupported
func IsUnsupportedError(err error) bool { return errors.Is(err, ErrUnsupported) }

// IsNotFoundError reports whether err wraps ErrNotFound
func IsNotFoundError(err error) bool { return errors.Is(err, ErrNotFound) }

// IsProgrammingError reports whether err wraps ErrProgramming
func IsProgrammingError(err error) bool { return errors.Is(err, ErrProgramming) }

// IsTransportError reports whether err wraps ErrTransport
func IsTransportError(err error) bool { return errors.Is(err, ErrTransport) }
