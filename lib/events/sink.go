package events

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sessmux/sessmux/lib/pool"
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/lib/transact"
)

var Logger = logger.GetLogger("events")

// --------------------------------------------------------------------------
// Event types
// --------------------------------------------------------------------------

// IEvent is implemented by everything a transport can post to the sink
type IEvent interface {
	event()
}

// StatusEvent reports that a session's connection status changed
type StatusEvent struct {
	ConnectionID session.ClientConnectionID
	Status       session.ConnectionStatus
}

func (StatusEvent) event() {}

// CompletionEvent reports that an asynchronous protocol call finished.
// Err is nil for a successful completion; Payload carries the encoded
// outcome and Diagnostics any server-provided detail strings.
type CompletionEvent struct {
	TransactionID transact.TransactionID
	Err           error
	Payload       []byte
	Diagnostics   []string
}

func (CompletionEvent) event() {}

// ICompletionHandler is the outward client interface: it receives every
// completion that could be correlated back to a request handle.
type ICompletionHandler interface {
	HandleCompletion(handle transact.RequestHandle, err error, payload []byte)
}

// --------------------------------------------------------------------------
// Sink
// --------------------------------------------------------------------------

// Sink consumes connection events posted by the transport and applies
// them: status changes update the pool's view of a session, completions
// are resolved through the transaction registry and forwarded to the
// completion handler. Completions whose transaction id is unknown are
// dropped with a warning; this legitimately happens when the owning
// request was already torn down.
//
// Post never blocks: events are buffered in an unbounded FIFO and
// applied by a single consumer goroutine, so the transport's reader
// goroutines are decoupled from pool and handler internals.
type Sink struct {
	pool     pool.ISessionPool
	registry *transact.Registry
	handler  ICompletionHandler

	mu     sync.Mutex
	buf    *queue.Queue
	closed bool

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewEventSink creates a sink. Call Start before posting events and
// Close when the client shuts down.
func NewEventSink(p pool.ISessionPool, r *transact.Registry, handler ICompletionHandler) *Sink {
	return &Sink{
		pool:     p,
		registry: r,
		handler:  handler,
		buf:      queue.New(),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the consumer goroutine
func (s *Sink) Start() {
	s.wg.Add(1)
	go s.run()
}

// Post enqueues an event for processing. It never blocks and is safe to
// call from any goroutine. Events posted after Close are dropped.
func (s *Sink) Post(ev IEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		Logger.Debugf("event posted after close, dropped")
		return
	}
	s.buf.Add(ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Close stops the consumer after it has applied every event posted so
// far. Safe to call once.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// run is the consumer loop
func (s *Sink) run() {
	defer s.wg.Done()
	for {
		s.drain()
		select {
		case <-s.notify:
		case <-s.done:
			s.drain()
			return
		}
	}
}

// drain applies every currently buffered event
func (s *Sink) drain() {
	for {
		s.mu.Lock()
		if s.buf.Length() == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.buf.Remove().(IEvent)
		s.mu.Unlock()

		s.apply(ev)
	}
}

// apply handles a single event
func (s *Sink) apply(ev IEvent) {
	switch e := ev.(type) {
	case StatusEvent:
		s.pool.RecordSessionStatus(e.ConnectionID, e.Status)

	case CompletionEvent:
		handle, ok := s.registry.Resolve(e.TransactionID)
		if !ok {
			Logger.Warningf("completion for unknown transaction %d dropped", e.TransactionID)
			return
		}
		for _, diag := range e.Diagnostics {
			Logger.Debugf("transaction %d diagnostic: %s", e.TransactionID, diag)
		}
		s.handler.HandleCompletion(handle, e.Err, e.Payload)

	default:
		Logger.Warningf("unknown event type %T dropped", ev)
	}
}
