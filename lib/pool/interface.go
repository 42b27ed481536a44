package pool

import (
	"github.com/sessmux/sessmux/lib/session"
)

// ISessionPool owns the set of live sessions of one client instance. It
// is safe for concurrent use from any number of goroutines.
//
// Sessions are borrowed: every AcquireSession / AcquireExistingSession
// must be paired with exactly one ReleaseSession by the same logical
// operation, and the session reference must not be used after release.
type ISessionPool interface {
	// AcquireSession returns a session for the given server URI and
	// settings, creating and connecting a new one if no compatible session
	// exists. The session's activity count is incremented; the caller owns
	// a reference until ReleaseSession.
	AcquireSession(serverURI string, settings session.SessionSettings) (session.ISession, error)

	// AcquireExistingSession looks up a session by connection id only.
	// Used for manual-connect workflows. Fails with a not-found error if
	// the id is stale or unknown.
	AcquireExistingSession(id session.ClientConnectionID) (session.ISession, error)

	// ReleaseSession decrements the session's activity count. Releasing a
	// session whose count is already zero is a programming error and
	// leaves all state unchanged. If allowGC is true and the session ends
	// up with zero activity, disconnected and unpinned, it is removed
	// immediately.
	ReleaseSession(s session.ISession, allowGC bool) error

	// ManuallyConnect creates (or reuses) a session like AcquireSession
	// but pins it instead of holding an activity reference: the session
	// stays alive, and is reconnected by housekeeping, until
	// ManuallyDisconnect is called with the returned id.
	ManuallyConnect(serverURI string, settings session.SessionSettings) (session.ClientConnectionID, error)

	// ManuallyDisconnect disconnects and removes a pinned session. Fails
	// if the id is unknown, if the session was not created manually, or if
	// it still has active references.
	ManuallyDisconnect(id session.ClientConnectionID) error

	// DoHouseKeeping reconnects disconnected sessions that still have
	// pending activity or are pinned, and removes sessions eligible for
	// garbage collection. Called periodically by an external scheduler.
	DoHouseKeeping()

	// RecordSessionStatus stores a connection status reported by the
	// transport for the given session. Unknown ids are ignored.
	RecordSessionStatus(id session.ClientConnectionID, status session.ConnectionStatus)

	// SessionInformation returns a snapshot of one session
	SessionInformation(id session.ClientConnectionID) (session.SessionInformation, error)

	// AllSessionInformations returns a snapshot of every session,
	// ordered by connection id
	AllSessionInformations() []session.SessionInformation

	// Len returns the number of live sessions
	Len() int

	// DeleteAllSessions disconnects and removes every session
	// unconditionally. Used at shutdown. It blocks until it can safely
	// take over the pool, it does not preempt in-flight invocations.
	DeleteAllSessions()
}
