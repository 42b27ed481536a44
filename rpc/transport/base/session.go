package base

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/s2"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sessmux/sessmux/lib/events"
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/lib/status"
	"github.com/sessmux/sessmux/lib/transact"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/sessmux/sessmux/rpc/transport"
)

var Logger = logger.GetLogger("transport/session")

// callResult contains the result of a synchronous call
type callResult struct {
	data []byte
	err  error
}

// sessionTransport implements session.ISession over a single framed
// stream connection, independent of the specific transport medium
// (unix, tcp, etc.). Synchronous calls are correlated by a per-session
// call id; asynchronous calls are tagged with the engine-wide
// transaction id, and their completion frames are posted to the event
// sink instead of a waiting caller.
type sessionTransport struct {
	id        session.ClientConnectionID
	serverURI string
	settings  session.SessionSettings
	connector transport.ISessionConnector
	config    common.ClientConfig
	sink      *events.Sink

	connMu sync.Mutex // guards conn and stopCh
	conn   net.Conn
	stopCh chan struct{}

	writeMu sync.Mutex // serializes frame writes

	connStatus atomic.Int32
	pending    *xsync.MapOf[uint64, chan callResult]
	nextCallID uint64
}

// NewSessionFactory returns a session.FactoryFunc producing framed
// sessions over the given connector. Completion frames and transport
// status changes are delivered through the given event sink.
func NewSessionFactory(connector transport.ISessionConnector, config common.ClientConfig, sink *events.Sink) session.FactoryFunc {
	return func(id session.ClientConnectionID, serverURI string, settings session.SessionSettings) (session.ISession, error) {
		if serverURI == "" {
			return nil, fmt.Errorf("empty server URI")
		}
		return &sessionTransport{
			id:        id,
			serverURI: serverURI,
			settings:  settings,
			connector: connector,
			config:    config,
			sink:      sink,
			pending:   xsync.NewMapOf[uint64, chan callResult](),
		}, nil
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lib/session interface.go)
// --------------------------------------------------------------------------

func (s *sessionTransport) Connect() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil && s.Status() == session.StatusConnected {
		return nil
	}
	s.closeLocked()
	s.connStatus.Store(int32(session.StatusConnecting))

	conn, err := s.connector.Connect(s.serverURI, s.settings.ConnectTimeout)
	if err != nil {
		s.connStatus.Store(int32(session.StatusDisconnected))
		return status.TransportError(err)
	}
	if err := s.connector.UpgradeConnection(conn, s.config); err != nil {
		conn.Close()
		s.connStatus.Store(int32(session.StatusDisconnected))
		return status.TransportError(err)
	}

	s.conn = conn
	s.stopCh = make(chan struct{})
	s.connStatus.Store(int32(session.StatusConnected))

	// Start the frame reader for this connection
	go s.readFrames(conn, s.stopCh)

	Logger.Infof("session %d connected to %s via %s", s.id, s.serverURI, s.connector.GetName())
	return nil
}

func (s *sessionTransport) Disconnect() error {
	s.connMu.Lock()
	s.closeLocked()
	s.connStatus.Store(int32(session.StatusDisconnected))
	s.connMu.Unlock()

	s.failPending(status.ConnectionErrorf("session %d disconnected", s.id))
	Logger.Infof("session %d disconnected from %s", s.id, s.serverURI)
	return nil
}

func (s *sessionTransport) Status() session.ConnectionStatus {
	return session.ConnectionStatus(s.connStatus.Load())
}

func (s *sessionTransport) RecordStatus(st session.ConnectionStatus) {
	s.connStatus.Store(int32(st))
}

func (s *sessionTransport) IsConnected() bool {
	return s.Status() == session.StatusConnected
}

func (s *sessionTransport) ClientConnectionID() session.ClientConnectionID {
	return s.id
}

func (s *sessionTransport) ServerURI() string {
	return s.serverURI
}

func (s *sessionTransport) Settings() session.SessionSettings {
	return s.settings
}

func (s *sessionTransport) Information() session.SessionInformation {
	return session.SessionInformation{
		ClientConnectionID: s.id,
		ServerURI:          s.serverURI,
		Settings:           s.settings,
		Status:             s.Status(),
	}
}

func (s *sessionTransport) Send(service string, payload []byte) ([]byte, error) {
	conn := s.currentConn()
	if conn == nil {
		return nil, status.ConnectionErrorf("session %d is not connected", s.id)
	}

	// Register the call before writing so the response cannot win a race
	// against the registration
	callID := atomic.AddUint64(&s.nextCallID, 1)
	respCh := make(chan callResult, 1)
	s.pending.Store(callID, respCh)
	defer s.pending.Delete(callID)

	Logger.Debugf("session %d sending %s call %d", s.id, service, callID)
	if err := s.write(conn, frameKindCall, callID, payload); err != nil {
		return nil, status.TransportError(err)
	}

	// Wait for response or timeout
	var timeoutCh <-chan time.Time
	if s.settings.CallTimeout > 0 {
		timeoutCh = time.After(s.settings.CallTimeout)
	} else {
		timeoutCh = make(chan time.Time) // Never triggers
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, status.TransportError(fmt.Errorf("%s call %d timed out", service, callID))
	}
}

func (s *sessionTransport) SendAsync(service string, transactionID uint64, payload []byte) error {
	conn := s.currentConn()
	if conn == nil {
		return status.ConnectionErrorf("session %d is not connected", s.id)
	}

	Logger.Debugf("session %d sending async %s call, transaction %d", s.id, service, transactionID)
	if err := s.write(conn, frameKindCallAsync, transactionID, payload); err != nil {
		return status.TransportError(err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// currentConn returns the live connection or nil
func (s *sessionTransport) currentConn() net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.Status() != session.StatusConnected {
		return nil
	}
	return s.conn
}

// write frames and writes one payload, compressing it if the session
// settings ask for it
func (s *sessionTransport) write(conn net.Conn, kind byte, correlationID uint64, payload []byte) error {
	var flags byte
	if s.settings.Compress {
		payload = s2.Encode(nil, payload)
		flags |= frameFlagCompressed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.settings.CallTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.settings.CallTimeout))
	}
	return writeFrame(conn, kind, flags, correlationID, payload)
}

// closeLocked tears down the current connection. Callers must hold connMu.
func (s *sessionTransport) closeLocked() {
	if s.conn != nil {
		close(s.stopCh)
		s.conn.Close()
		s.conn = nil
		s.stopCh = nil
	}
}

// failPending delivers an error to every caller waiting on a synchronous
// response
func (s *sessionTransport) failPending(err error) {
	s.pending.Range(func(callID uint64, ch chan callResult) bool {
		select {
		case ch <- callResult{nil, err}:
		default:
		}
		s.pending.Delete(callID)
		return true
	})
}

// readFrames reads frames in a loop and routes them: responses to the
// waiting synchronous caller, completions to the event sink. On a read
// failure the session marks itself disconnected and reports the status
// change through the sink; reconnecting is the pool's housekeeping job.
func (s *sessionTransport) readFrames(conn net.Conn, stopCh chan struct{}) {
	for {
		kind, flags, correlationID, data, err := readFrame(conn, nil)
		if err != nil {
			select {
			case <-stopCh:
				// Deliberate disconnect, nothing to report
				return
			default:
			}
			Logger.Warningf("session %d read failed: %v", s.id, err)
			s.connStatus.Store(int32(session.StatusDisconnected))
			s.failPending(status.TransportError(err))
			s.sink.Post(events.StatusEvent{ConnectionID: s.id, Status: session.StatusDisconnected})
			return
		}

		if flags&frameFlagCompressed != 0 {
			if data, err = s2.Decode(nil, data); err != nil {
				Logger.Errorf("session %d: failed to decompress frame %d: %v", s.id, correlationID, err)
				continue
			}
		}

		switch kind {
		case frameKindResponse:
			respCh, found := s.pending.Load(correlationID)
			if !found {
				Logger.Warningf("session %d received response for unknown call %d", s.id, correlationID)
				continue
			}
			// The caller may have timed out and stopped listening; its slot
			// can also already hold a disconnect error. Never block on it.
			select {
			case respCh <- callResult{data, nil}:
			default:
				Logger.Warningf("session %d dropped late response for call %d", s.id, correlationID)
			}

		case frameKindCompletion:
			s.sink.Post(events.CompletionEvent{
				TransactionID: transact.TransactionID(correlationID),
				Payload:       data,
			})

		default:
			Logger.Warningf("session %d received unexpected frame kind %d", s.id, kind)
		}
	}
}
