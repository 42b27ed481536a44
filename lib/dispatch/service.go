package dispatch

import (
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/lib/transact"
)

// IRequest is the minimal shape the dispatcher needs from a request:
// a correlation handle and the number of logical targets it carries.
type IRequest interface {
	// RequestHandle returns the caller-assigned correlation handle
	RequestHandle() transact.RequestHandle
	// TargetCount returns the number of logical targets in the request
	TargetCount() int
}

// IResult is the aggregate output of one dispatch. Prepare is called
// once before any invocation runs and must allocate one outcome slot per
// target, default-initialized to "not yet processed".
type IResult interface {
	Prepare(targetCount int)
}

// IInvocation is the per-server unit of work derived from splitting one
// request. It is ephemeral: built by the invocation builder, executed
// against exactly one session, merged into the result, then dropped.
type IInvocation[R IResult] interface {
	// SessionSettings returns the settings the session for this
	// invocation must have been created with
	SessionSettings() session.SessionSettings

	// SetTransactionID attaches the transaction id registered for an
	// asynchronous request, so the transport can tag the call with it
	SetTransactionID(id transact.TransactionID)

	// SetSessionInformation records a snapshot of the session that served
	// (or failed to serve) the invocation, for reporting
	SetSessionInformation(info session.SessionInformation)

	// Invoke performs the protocol call through the given session. The
	// session is connected and borrowed from the pool; the invocation must
	// not retain it.
	Invoke(s session.ISession) error

	// MergeInto copies the invocation's per-target outcomes into the
	// aggregate result at the targets' original indices
	MergeInto(result R) error
}

// IInvocationBuilder partitions a request into one invocation per
// distinct destination server URI, restricted to the targets selected by
// the mask. An empty request or empty mask yields an empty map.
type IInvocationBuilder[Q IRequest, R IResult] interface {
	Build(req Q, mask Mask) (map[string]IInvocation[R], error)
}

// Service describes one request family to the dispatcher: its name (for
// diagnostics), its traits, and how to build invocations for it. The
// traits are explicit flags rather than distinct request types, so new
// families don't need their own dispatch overloads.
type Service[Q IRequest, R IResult] struct {
	// Name identifies the service in logs, e.g. "read" or "asyncCall"
	Name string

	// Asynchronous services return before the protocol call completes;
	// the outcome arrives later as a correlated completion notification
	Asynchronous bool

	// SessionLevel marks request families whose transactions are
	// correlated at this layer. Families handled by a higher layer (such
	// as subscription requests) keep this false and never touch the
	// transaction registry here.
	SessionLevel bool

	// Builder partitions requests of this family into invocations
	Builder IInvocationBuilder[Q, R]
}
