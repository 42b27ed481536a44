package client

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sessmux/sessmux/lib/dispatch"
	"github.com/sessmux/sessmux/lib/status"
	"github.com/sessmux/sessmux/lib/transact"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/sessmux/sessmux/rpc/serializer"
)

// --------------------------------------------------------------------------
// In-process wire server
//
// Speaks the framed protocol of rpc/transport/base: a 14 byte header
// (kind, flags, correlation id, length) followed by the payload.
// --------------------------------------------------------------------------

const (
	wireKindCall       byte = 1
	wireKindCallAsync  byte = 2
	wireKindResponse   byte = 3
	wireKindCompletion byte = 4

	wireHeaderSize = 14
)

func writeWireFrame(conn net.Conn, kind byte, correlationID uint64, data []byte) error {
	header := make([]byte, wireHeaderSize)
	header[0] = kind
	binary.BigEndian.PutUint64(header[2:10], correlationID)
	binary.BigEndian.PutUint32(header[10:14], uint32(len(data)))
	if _, err := conn.Write(header); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}

func readWireFrame(conn net.Conn) (byte, uint64, []byte, error) {
	header := make([]byte, wireHeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, 0, nil, err
	}
	kind := header[0]
	correlationID := binary.BigEndian.Uint64(header[2:10])
	length := binary.BigEndian.Uint32(header[10:14])
	data := make([]byte, length)
	if _, err := io.ReadFull(conn, data); err != nil {
		return 0, 0, nil, err
	}
	return kind, correlationID, data, nil
}

// wireServer is an in-process attribute server. Reads echo the address,
// writes and calls echo the value. Addresses starting with "missing"
// produce a per-target error.
type wireServer struct {
	serializer serializer.IRPCSerializer

	mu       sync.Mutex
	requests int
}

func (srv *wireServer) requestCount() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.requests
}

func (srv *wireServer) serve(conn net.Conn) {
	for {
		kind, correlationID, data, err := readWireFrame(conn)
		if err != nil {
			return
		}
		srv.mu.Lock()
		srv.requests++
		srv.mu.Unlock()

		var req common.Message
		if err := srv.serializer.Deserialize(data, &req); err != nil {
			return
		}

		resp := srv.handle(req)
		respBytes, err := srv.serializer.Serialize(resp)
		if err != nil {
			return
		}

		respKind := wireKindResponse
		if kind == wireKindCallAsync {
			respKind = wireKindCompletion
		}
		if err := writeWireFrame(conn, respKind, correlationID, respBytes); err != nil {
			return
		}
	}
}

func (srv *wireServer) handle(req common.Message) common.Message {
	outcomes := make([]common.TargetOutcome, len(req.Targets))
	for i, target := range req.Targets {
		if len(target.Address) >= 7 && target.Address[:7] == "missing" {
			outcomes[i] = common.TargetOutcome{Err: "address not found"}
			continue
		}
		switch req.MsgType {
		case common.MsgTRead:
			outcomes[i] = common.TargetOutcome{Value: []byte("value of " + target.Address)}
		default:
			outcomes[i] = common.TargetOutcome{Value: target.Value}
		}
	}
	return *common.NewResponse(req.MsgType, outcomes)
}

// wireConnector dials the in-process server over a net.Pipe
type wireConnector struct {
	server *wireServer
}

func (c *wireConnector) Connect(string, time.Duration) (net.Conn, error) {
	clientConn, serverConn := net.Pipe()
	go c.server.serve(serverConn)
	return clientConn, nil
}

func (c *wireConnector) GetName() string { return "pipe" }

func (c *wireConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// --------------------------------------------------------------------------
// Completion handler fake
// --------------------------------------------------------------------------

type recordingHandler struct {
	mu      sync.Mutex
	handles []transact.RequestHandle
	payload []byte
	arrived chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{arrived: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandleCompletion(handle transact.RequestHandle, _ error, payload []byte) {
	h.mu.Lock()
	h.handles = append(h.handles, handle)
	h.payload = payload
	h.mu.Unlock()
	h.arrived <- struct{}{}
}

func newTestClient(t *testing.T) (*Client, *wireServer, *recordingHandler) {
	t.Helper()

	server := &wireServer{serializer: serializer.NewJSONSerializer()}
	handler := newRecordingHandler()
	config := common.ClientConfig{CallTimeoutSecond: 5}

	c := NewClient(config, &wireConnector{server: server}, serializer.NewJSONSerializer(), handler)
	t.Cleanup(c.Close)
	return c, server, handler
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestClientRead tests a synchronous read across two servers
func TestClientRead(t *testing.T) {
	c, _, _ := newTestClient(t)

	result, err := c.Read([]Target{
		{ServerURI: "pipe://server-a", Address: "temperature"},
		{ServerURI: "pipe://server-b", Address: "pressure"},
	})
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}

	if len(result.Outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(result.Outcomes))
	}
	if !bytes.Equal(result.Outcomes[0].Value, []byte("value of temperature")) {
		t.Errorf("Unexpected outcome 0: %+v", result.Outcomes[0])
	}
	if !bytes.Equal(result.Outcomes[1].Value, []byte("value of pressure")) {
		t.Errorf("Unexpected outcome 1: %+v", result.Outcomes[1])
	}

	// Both targets went to the same pool, but distinct servers mean
	// distinct sessions
	if len(c.AllSessionInformations()) != 2 {
		t.Errorf("Expected 2 pooled sessions, got %d", len(c.AllSessionInformations()))
	}
}

// TestClientSessionReuse tests that consecutive requests to one server
// share a session
func TestClientSessionReuse(t *testing.T) {
	c, _, _ := newTestClient(t)

	for i := 0; i < 5; i++ {
		if _, err := c.Read([]Target{{ServerURI: "pipe://server-a", Address: "x"}}); err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
	}

	infos := c.AllSessionInformations()
	if len(infos) != 1 {
		t.Fatalf("Expected 1 pooled session, got %d", len(infos))
	}
	if infos[0].ActivityCount != 0 {
		t.Errorf("Expected activity count 0 between requests, got %d", infos[0].ActivityCount)
	}
}

// TestClientWrite tests a synchronous write with a per-target error
func TestClientWrite(t *testing.T) {
	c, _, _ := newTestClient(t)

	result, err := c.Write([]Target{
		{ServerURI: "pipe://server-a", Address: "setpoint", Value: []byte("42.5")},
		{ServerURI: "pipe://server-a", Address: "missing-node", Value: []byte("1")},
	})
	if err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	if !bytes.Equal(result.Outcomes[0].Value, []byte("42.5")) || result.Outcomes[0].Err != nil {
		t.Errorf("Unexpected outcome 0: %+v", result.Outcomes[0])
	}
	if result.Outcomes[1].Err == nil {
		t.Error("Expected per-target error for the missing address")
	}
}

// TestClientMaskedRetry tests re-dispatching the failed subset of a
// request while keeping the successful outcomes
func TestClientMaskedRetry(t *testing.T) {
	c, _, _ := newTestClient(t)

	req := c.NewRequest([]Target{
		{ServerURI: "pipe://server-a", Address: "good"},
		{ServerURI: "pipe://server-a", Address: "missing-for-now"},
	})
	result := &Result{}

	if err := c.ReadMasked(req, dispatch.NewMask(2, true), result); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if result.Outcomes[1].Err == nil {
		t.Fatal("Expected per-target error on first pass")
	}
	firstValue := result.Outcomes[0].Value

	// Retry only the failed target; pretend the address appeared
	req.Targets[1].Address = "recovered"
	mask := dispatch.NewMask(2, false)
	mask.Set(1)

	if err := c.ReadMasked(req, mask, result); err != nil {
		t.Fatalf("Failed to retry: %v", err)
	}
	if !bytes.Equal(result.Outcomes[0].Value, firstValue) {
		t.Error("Expected the untouched slot to keep its outcome")
	}
	if result.Outcomes[1].Err != nil || !bytes.Equal(result.Outcomes[1].Value, []byte("value of recovered")) {
		t.Errorf("Unexpected retried outcome: %+v", result.Outcomes[1])
	}
}

// TestClientCallAsync tests the asynchronous path end to end: dispatch,
// completion frame, sink, registry, handler
func TestClientCallAsync(t *testing.T) {
	c, _, handler := newTestClient(t)

	handle, err := c.CallAsync([]Target{{ServerURI: "pipe://server-a", Address: "restart", Value: []byte("now")}})
	if err != nil {
		t.Fatalf("Failed to dispatch async call: %v", err)
	}

	select {
	case <-handler.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for completion")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.handles) != 1 || handler.handles[0] != handle {
		t.Fatalf("Expected completion for handle %d, got %v", handle, handler.handles)
	}
	if len(handler.payload) == 0 {
		t.Error("Expected a completion payload")
	}
}

// TestClientAsyncFanOutRejected tests that an async request across two
// servers fails without touching the wire
func TestClientAsyncFanOutRejected(t *testing.T) {
	c, server, _ := newTestClient(t)

	_, err := c.ReadAsync([]Target{
		{ServerURI: "pipe://server-a", Address: "x"},
		{ServerURI: "pipe://server-b", Address: "y"},
	})
	if !status.IsUnsupportedError(err) {
		t.Fatalf("Expected unsupported error, got %v", err)
	}
	if server.requestCount() != 0 {
		t.Errorf("Expected no wire requests, got %d", server.requestCount())
	}
}

// TestClientManualSessions tests the pinned session workflow
func TestClientManualSessions(t *testing.T) {
	c, _, _ := newTestClient(t)

	id, err := c.ManuallyConnect("pipe://server-a")
	if err != nil {
		t.Fatalf("Failed to manually connect: %v", err)
	}

	info, err := c.SessionInformation(id)
	if err != nil {
		t.Fatalf("Failed to get session information: %v", err)
	}
	if !info.Pinned {
		t.Error("Expected a pinned session")
	}

	// Requests to the same server reuse the pinned session
	if _, err := c.Read([]Target{{ServerURI: "pipe://server-a", Address: "x"}}); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if len(c.AllSessionInformations()) != 1 {
		t.Errorf("Expected 1 pooled session, got %d", len(c.AllSessionInformations()))
	}

	if err := c.ManuallyDisconnect(id); err != nil {
		t.Fatalf("Failed to manually disconnect: %v", err)
	}
	if len(c.AllSessionInformations()) != 0 {
		t.Error("Expected no sessions after manual disconnect")
	}
}

// TestClientClose tests that Close tears everything down and is
// idempotent
func TestClientClose(t *testing.T) {
	c, _, _ := newTestClient(t)

	if _, err := c.Read([]Target{{ServerURI: "pipe://server-a", Address: "x"}}); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}

	c.Close()
	c.Close()

	if len(c.AllSessionInformations()) != 0 {
		t.Error("Expected no sessions after close")
	}
}
