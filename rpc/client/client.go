package client

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sessmux/sessmux/lib/dispatch"
	"github.com/sessmux/sessmux/lib/events"
	"github.com/sessmux/sessmux/lib/pool"
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/lib/transact"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/sessmux/sessmux/rpc/serializer"
	"github.com/sessmux/sessmux/rpc/transport"
	"github.com/sessmux/sessmux/rpc/transport/base"
)

var Logger = logger.GetLogger("rpc")

const defaultHousekeepingInterval = 10 * time.Second

// nopCompletionHandler drops completions. Used when the caller only
// performs synchronous requests and passes no handler.
type nopCompletionHandler struct{}

func (nopCompletionHandler) HandleCompletion(handle transact.RequestHandle, err error, payload []byte) {
	Logger.Warningf("completion for request %d dropped, no completion handler configured", handle)
}

// Client is the outward face of the engine: it owns the session pool,
// the transaction registry, the dispatcher and the event sink, runs the
// periodic housekeeping pass, and exposes the typed request families.
type Client struct {
	config     common.ClientConfig
	serializer serializer.IRPCSerializer
	factory    session.FactoryFunc

	pool       pool.ISessionPool
	registry   *transact.Registry
	dispatcher *dispatch.Dispatcher
	sink       *events.Sink

	nextHandle atomic.Uint64

	stopHousekeeping chan struct{}
	wg               sync.WaitGroup
	closeOnce        sync.Once
}

// NewClient creates a client using the given connector (tcp, unix, ...)
// and wire serializer. The handler receives correlated asynchronous
// completions; pass nil if only synchronous requests are used.
func NewClient(
	config common.ClientConfig,
	connector transport.ISessionConnector,
	ser serializer.IRPCSerializer,
	handler events.ICompletionHandler,
) *Client {
	if handler == nil {
		handler = nopCompletionHandler{}
	}

	c := &Client{
		config:           config,
		serializer:       ser,
		registry:         transact.NewRegistry(),
		stopHousekeeping: make(chan struct{}),
	}

	// The pool's factory indirects through the client so the event sink,
	// which itself needs the pool, can be created after it
	c.pool = pool.NewSessionPool(func(id session.ClientConnectionID, serverURI string, settings session.SessionSettings) (session.ISession, error) {
		return c.factory(id, serverURI, settings)
	})
	c.sink = events.NewEventSink(c.pool, c.registry, handler)
	c.factory = base.NewSessionFactory(connector, config, c.sink)
	c.dispatcher = dispatch.NewDispatcher(c.pool, c.registry)

	c.sink.Start()

	interval := defaultHousekeepingInterval
	if config.HousekeepingIntervalSec > 0 {
		interval = time.Duration(config.HousekeepingIntervalSec) * time.Second
	}
	c.wg.Add(1)
	go c.housekeepingLoop(interval)

	Logger.Infof("created session client using %s transport", connector.GetName())
	return c
}

// Close stops housekeeping, drains the registry, deletes all sessions
// and stops the event sink. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopHousekeeping)
		c.wg.Wait()
		c.dispatcher.Close()
		c.sink.Close()
		Logger.Infof("session client closed")
	})
}

// --------------------------------------------------------------------------
// Request Families
// --------------------------------------------------------------------------

// NewRequest creates a request over the given targets with a fresh
// correlation handle.
func (c *Client) NewRequest(targets []Target) *Request {
	return &Request{
		handle:  transact.RequestHandle(c.nextHandle.Add(1)),
		Targets: targets,
	}
}

// Read reads all target attributes synchronously
func (c *Client) Read(targets []Target) (*Result, error) {
	req := c.NewRequest(targets)
	result := &Result{}
	err := dispatch.Invoke(c.dispatcher, c.service("read", common.MsgTRead, false), req, dispatch.NewMask(len(targets), true), result)
	return result, err
}

// ReadMasked re-dispatches a read request for the masked subset of its
// targets, preserving the other slots of result.
func (c *Client) ReadMasked(req *Request, mask dispatch.Mask, result *Result) error {
	return dispatch.Invoke(c.dispatcher, c.service("read", common.MsgTRead, false), req, mask, result)
}

// Write writes all target attributes synchronously
func (c *Client) Write(targets []Target) (*Result, error) {
	req := c.NewRequest(targets)
	result := &Result{}
	err := dispatch.Invoke(c.dispatcher, c.service("write", common.MsgTWrite, false), req, dispatch.NewMask(len(targets), true), result)
	return result, err
}

// WriteMasked re-dispatches a write request for the masked subset of its targets
func (c *Client) WriteMasked(req *Request, mask dispatch.Mask, result *Result) error {
	return dispatch.Invoke(c.dispatcher, c.service("write", common.MsgTWrite, false), req, mask, result)
}

// Call invokes all target methods synchronously
func (c *Client) Call(targets []Target) (*Result, error) {
	req := c.NewRequest(targets)
	result := &Result{}
	err := dispatch.Invoke(c.dispatcher, c.service("call", common.MsgTCall, false), req, dispatch.NewMask(len(targets), true), result)
	return result, err
}

// CallMasked re-dispatches a call request for the masked subset of its targets
func (c *Client) CallMasked(req *Request, mask dispatch.Mask, result *Result) error {
	return dispatch.Invoke(c.dispatcher, c.service("call", common.MsgTCall, false), req, mask, result)
}

// ReadAsync dispatches an asynchronous read. The returned handle
// identifies the completion delivered to the client's completion
// handler. All targets must live on a single server.
func (c *Client) ReadAsync(targets []Target) (transact.RequestHandle, error) {
	return c.invokeAsync("asyncRead", common.MsgTRead, targets)
}

// WriteAsync dispatches an asynchronous write (single server only)
func (c *Client) WriteAsync(targets []Target) (transact.RequestHandle, error) {
	return c.invokeAsync("asyncWrite", common.MsgTWrite, targets)
}

// CallAsync dispatches an asynchronous method call (single server only)
func (c *Client) CallAsync(targets []Target) (transact.RequestHandle, error) {
	return c.invokeAsync("asyncCall", common.MsgTCall, targets)
}

// --------------------------------------------------------------------------
// Session Management
// --------------------------------------------------------------------------

// ManuallyConnect creates (or reuses) a pinned session to the given
// server. The session stays alive until ManuallyDisconnect.
func (c *Client) ManuallyConnect(serverURI string) (session.ClientConnectionID, error) {
	return c.pool.ManuallyConnect(serverURI, c.config.SessionSettings())
}

// ManuallyDisconnect disconnects and removes a pinned session
func (c *Client) ManuallyDisconnect(id session.ClientConnectionID) error {
	return c.pool.ManuallyDisconnect(id)
}

// SessionInformation returns a snapshot of one session
func (c *Client) SessionInformation(id session.ClientConnectionID) (session.SessionInformation, error) {
	return c.pool.SessionInformation(id)
}

// AllSessionInformations returns a snapshot of every live session
func (c *Client) AllSessionInformations() []session.SessionInformation {
	return c.pool.AllSessionInformations()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// service builds the dispatch descriptor for one request family
func (c *Client) service(name string, msgType common.MessageType, async bool) dispatch.Service[*Request, *Result] {
	return dispatch.Service[*Request, *Result]{
		Name:         name,
		Asynchronous: async,
		SessionLevel: true,
		Builder: &invocationBuilder{
			serviceName: name,
			msgType:     msgType,
			async:       async,
			settings:    c.config.SessionSettings(),
			serializer:  c.serializer,
		},
	}
}

func (c *Client) invokeAsync(name string, msgType common.MessageType, targets []Target) (transact.RequestHandle, error) {
	req := c.NewRequest(targets)
	result := &Result{}
	err := dispatch.Invoke(c.dispatcher, c.service(name, msgType, true), req, dispatch.NewMask(len(targets), true), result)
	return req.RequestHandle(), err
}

// housekeepingLoop periodically reconnects degraded sessions and
// reclaims idle ones
func (c *Client) housekeepingLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.pool.DoHouseKeeping()
		case <-c.stopHousekeeping:
			return
		}
	}
}
