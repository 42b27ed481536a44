package dispatch

import (
	"sort"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sessmux/sessmux/lib/pool"
	"github.com/sessmux/sessmux/lib/status"
	"github.com/sessmux/sessmux/lib/transact"
)

var Logger = logger.GetLogger("dispatch")

// Dispatcher owns the state shared by all invokes of one client
// instance: the session pool and the transaction registry. Both live
// exactly as long as the dispatcher; Close tears them down.
type Dispatcher struct {
	pool     pool.ISessionPool
	registry *transact.Registry
}

// NewDispatcher creates a dispatcher around the given pool and registry
func NewDispatcher(p pool.ISessionPool, r *transact.Registry) *Dispatcher {
	return &Dispatcher{pool: p, registry: r}
}

// Pool returns the dispatcher's session pool
func (d *Dispatcher) Pool() pool.ISessionPool { return d.pool }

// Registry returns the dispatcher's transaction registry
func (d *Dispatcher) Registry() *transact.Registry { return d.registry }

// Close drains the transaction registry and deletes all sessions. Safe
// to call while other goroutines still hold borrowed sessions: it blocks
// only on the pool lock and never preempts an in-flight invocation.
func (d *Dispatcher) Close() {
	d.registry.Clear()
	d.pool.DeleteAllSessions()
}

// Invoke dispatches one request of the given service family: it splits
// the request into per-server invocations, borrows a pooled session for
// each, performs the protocol call, and merges the outcomes into the
// result. Processing is fail-fast: the first invocation-level error
// aborts the remaining invocations and is returned.
//
// Asynchronous session-level requests get a transaction id registered
// before any dispatch work, so the later completion notification can be
// correlated; if the dispatch fails, that registration is discarded
// again. An asynchronous request that would fan out across more than one
// session fails with an unsupported error before any transport call.
func Invoke[Q IRequest, R IResult](d *Dispatcher, svc Service[Q, R], req Q, mask Mask, result R) error {
	Logger.Debugf("invoking %s request %d with %s", svc.Name, req.RequestHandle(), mask)

	result.Prepare(req.TargetCount())

	// Register a transaction for asynchronous requests correlated at this
	// level. Higher-layer families (SessionLevel false) are left alone.
	var transactionID transact.TransactionID
	stored := false
	if svc.Asynchronous && svc.SessionLevel {
		transactionID = d.registry.Register(req.RequestHandle())
		stored = true
	}

	err := invoke(d, svc, req, mask, result, transactionID, stored)

	// A failed dispatch will never produce a completion, so drop the
	// registration again to keep the registry leak-free.
	if err != nil && stored {
		d.registry.Discard(transactionID)
	}
	return err
}

// invoke runs the invocation loop. Split out so the transaction cleanup
// in Invoke covers every error path with a single check.
func invoke[Q IRequest, R IResult](
	d *Dispatcher,
	svc Service[Q, R],
	req Q,
	mask Mask,
	result R,
	transactionID transact.TransactionID,
	stored bool,
) error {
	invocations, err := svc.Builder.Build(req, mask)
	if err != nil {
		return err
	}
	Logger.Debugf("built %d invocations for %s request %d", len(invocations), svc.Name, req.RequestHandle())

	// Reconstructing one result from multiple asynchronous completions is
	// not implemented, so an asynchronous request must fit on one session.
	if svc.Asynchronous && len(invocations) > 1 {
		return status.UnsupportedErrorf(
			"asynchronous %s request targets %d servers, must be assignable to a single session",
			svc.Name, len(invocations))
	}

	// Sort the server URIs for a deterministic processing order
	serverURIs := make([]string, 0, len(invocations))
	for uri := range invocations {
		serverURIs = append(serverURIs, uri)
	}
	sort.Strings(serverURIs)

	for i, serverURI := range serverURIs {
		Logger.Debugf("processing invocation %d/%d for %s", i+1, len(serverURIs), serverURI)
		if err := processInvocation(d, svc, serverURI, invocations[serverURI], result, transactionID, stored); err != nil {
			return err
		}
	}
	return nil
}

// processInvocation executes a single invocation against a borrowed
// session. The session is released on every exit path.
func processInvocation[Q IRequest, R IResult](
	d *Dispatcher,
	svc Service[Q, R],
	serverURI string,
	inv IInvocation[R],
	result R,
	transactionID transact.TransactionID,
	stored bool,
) error {
	if stored {
		inv.SetTransactionID(transactionID)
	}

	s, err := d.pool.AcquireSession(serverURI, inv.SessionSettings())
	if err != nil {
		return err
	}
	defer func() {
		if relErr := d.pool.ReleaseSession(s, true); relErr != nil {
			Logger.Errorf("failed to release session %d: %v", s.ClientConnectionID(), relErr)
		}
	}()

	inv.SetSessionInformation(s.Information())

	if !s.IsConnected() {
		return status.ConnectionErrorf("session %d to %s is %s, no connected session to invoke %s",
			s.ClientConnectionID(), serverURI, s.Status(), svc.Name)
	}

	if err := inv.Invoke(s); err != nil {
		return err
	}

	// Synchronous outcomes are merged right away; asynchronous ones
	// arrive later through the event sink and the transaction registry.
	if !svc.Asynchronous {
		return inv.MergeInto(result)
	}
	return nil
}
