package transact

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transact")

var (
	registeredTotal = metrics.GetOrCreateCounter("sessmux_transactions_registered_total")
	resolvedTotal   = metrics.GetOrCreateCounter("sessmux_transactions_resolved_total")
	discardedTotal  = metrics.GetOrCreateCounter("sessmux_transactions_discarded_total")
	staleTotal      = metrics.GetOrCreateCounter("sessmux_transactions_stale_total")
)

// TransactionID is the client-generated correlation token attached to an
// asynchronous request. Unique and monotonic per Registry; wraparound at
// the uint64 range limit is accepted and not specially handled.
type TransactionID uint64

// RequestHandle is the caller-supplied correlation handle of a request.
// The registry maps transaction ids back to it when a completion arrives.
type RequestHandle uint64

// Registry relates in-flight transaction ids to the request handles that
// originated them. Entries exist only between dispatching an asynchronous
// request and resolving (or discarding) it.
type Registry struct {
	nextID  atomic.Uint64
	entries *xsync.MapOf[TransactionID, RequestHandle]
}

// NewRegistry creates an empty transaction registry
func NewRegistry() *Registry {
	return &Registry{
		entries: xsync.NewMapOf[TransactionID, RequestHandle](),
	}
}

// NewTransactionID returns the next transaction id. Ids start at 1 so the
// zero value never names a transaction.
func (r *Registry) NewTransactionID() TransactionID {
	return TransactionID(r.nextID.Add(1))
}

// Register generates a fresh transaction id and atomically stores the
// mapping to the given request handle.
func (r *Registry) Register(handle RequestHandle) TransactionID {
	id := r.NewTransactionID()
	r.entries.Store(id, handle)
	registeredTotal.Inc()
	Logger.Debugf("registered transaction %d for request %d", id, handle)
	return id
}

// Resolve looks up and removes the entry for the given transaction id.
// The second return value is false if the id is unknown or was already
// resolved: the caller must treat such a completion as stale and drop it.
func (r *Registry) Resolve(id TransactionID) (RequestHandle, bool) {
	handle, ok := r.entries.LoadAndDelete(id)
	if !ok {
		staleTotal.Inc()
		return 0, false
	}
	resolvedTotal.Inc()
	Logger.Debugf("resolved transaction %d to request %d", id, handle)
	return handle, true
}

// Discard removes a registered transaction that will never produce a
// completion (dispatch failed after registration). Reports whether an
// entry was actually removed.
func (r *Registry) Discard(id TransactionID) bool {
	_, ok := r.entries.LoadAndDelete(id)
	if ok {
		discardedTotal.Inc()
		Logger.Debugf("discarded transaction %d", id)
	}
	return ok
}

// Size returns the number of in-flight transactions
func (r *Registry) Size() int {
	return r.entries.Size()
}

// Clear drops all in-flight transactions. Used at teardown; any
// completion arriving afterwards is treated as stale.
func (r *Registry) Clear() {
	r.entries.Clear()
}
