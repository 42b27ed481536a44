package session

import (
	"fmt"
	"strings"
	"time"
)

// ClientConnectionID is the opaque handle naming one pooled session. It
// is assigned by the pool when the session is created and never reused
// while the session entry exists.
type ClientConnectionID uint32

// --------------------------------------------------------------------------
// Connection Status
// --------------------------------------------------------------------------

// ConnectionStatus describes the state of a session's underlying
// transport connection.
type ConnectionStatus int

const (
	// StatusDisconnected means the session has no live connection
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting means a connect attempt is in progress
	StatusConnecting
	// StatusConnected means the session is ready for invocations
	StatusConnected
	// StatusErrored means the connection failed and has not been restored
	StatusErrored
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusErrored:
		return "errored"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// --------------------------------------------------------------------------
// Session Settings
// --------------------------------------------------------------------------

// SessionSettings carries the per-session parameters a caller can choose.
// Two sessions with compatible settings to the same server URI are
// interchangeable, which is what allows the pool to reuse sessions.
type SessionSettings struct {
	// ConnectTimeout bounds the initial connect (and any reconnect)
	ConnectTimeout time.Duration
	// CallTimeout bounds a single synchronous invocation
	CallTimeout time.Duration
	// SecurityPolicy names the security profile the connection must use
	SecurityPolicy string
	// Compress enables payload compression on the wire
	Compress bool
}

// Compatible reports whether a session created with settings s can serve
// a caller asking for settings o. The reuse policy is exact equality of
// everything that changes the wire behavior.
func (s SessionSettings) Compatible(o SessionSettings) bool {
	return s.ConnectTimeout == o.ConnectTimeout &&
		s.CallTimeout == o.CallTimeout &&
		s.SecurityPolicy == o.SecurityPolicy &&
		s.Compress == o.Compress
}

// String returns a formatted string representation of the settings
func (s SessionSettings) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("connectTimeout=%s", s.ConnectTimeout))
	sb.WriteString(fmt.Sprintf(" callTimeout=%s", s.CallTimeout))
	if s.SecurityPolicy != "" {
		sb.WriteString(fmt.Sprintf(" security=%s", s.SecurityPolicy))
	}
	sb.WriteString(fmt.Sprintf(" compress=%t", s.Compress))
	return sb.String()
}

// --------------------------------------------------------------------------
// Session Information
// --------------------------------------------------------------------------

// SessionInformation is a read-only snapshot of one pooled session,
// published by the pool for monitoring. It never aliases live state.
type SessionInformation struct {
	ClientConnectionID ClientConnectionID
	ServerURI          string
	Settings           SessionSettings
	Status             ConnectionStatus
	ActivityCount      uint32
	Pinned             bool
}

// String returns a formatted string representation of the information
func (i SessionInformation) String() string {
	return fmt.Sprintf("session %d -> %s [%s] activity=%d pinned=%t (%s)",
		i.ClientConnectionID, i.ServerURI, i.Status, i.ActivityCount, i.Pinned, i.Settings)
}

// --------------------------------------------------------------------------
// Session contract
// --------------------------------------------------------------------------

// ISession is a single stateful connection to one remote server. The
// pool owns every ISession exclusively; callers only ever borrow one
// between AcquireSession and ReleaseSession and must not retain the
// reference afterwards.
type ISession interface {
	// Connect establishes (or re-establishes) the underlying connection
	Connect() error

	// Disconnect tears down the underlying connection. It is safe to call
	// on an already-disconnected session.
	Disconnect() error

	// Status returns the current connection status
	Status() ConnectionStatus

	// RecordStatus stores a status reported out-of-band by the transport
	// (via the event sink). It does not trigger any reconnect.
	RecordStatus(status ConnectionStatus)

	// IsConnected is shorthand for Status() == StatusConnected
	IsConnected() bool

	// ClientConnectionID returns the id the pool assigned to this session
	ClientConnectionID() ClientConnectionID

	// ServerURI returns the server endpoint this session is bound to
	ServerURI() string

	// Settings returns the settings the session was created with
	Settings() SessionSettings

	// Information returns a snapshot of the session (without the activity
	// count, which only the pool knows)
	Information() SessionInformation

	// Send performs a synchronous protocol call: it writes the encoded
	// request and blocks until the matching response (or timeout) arrives.
	Send(service string, payload []byte) ([]byte, error)

	// SendAsync writes the encoded request tagged with the given
	// transaction id and returns without waiting. The completion arrives
	// later through the connection-event sink.
	SendAsync(service string, transactionID uint64, payload []byte) error
}

// FactoryFunc creates a new, not yet connected session for the given
// connection id, server URI and settings. The pool calls it whenever no
// reusable session exists. Implementations live in the transport layer.
type FactoryFunc func(id ClientConnectionID, serverURI string, settings SessionSettings) (ISession, error)
