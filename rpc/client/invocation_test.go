package client

import (
	"bytes"
	"testing"
	"time"

	"github.com/sessmux/sessmux/lib/dispatch"
	"github.com/sessmux/sessmux/lib/session"
	"github.com/sessmux/sessmux/lib/status"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/sessmux/sessmux/rpc/serializer"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

// fakeWireSession scripts the Send/SendAsync behavior of a session
type fakeWireSession struct {
	respond func(payload []byte) ([]byte, error)

	sentService   string
	sentAsync     bool
	transactionID uint64
}

func (s *fakeWireSession) Connect() error                                 { return nil }
func (s *fakeWireSession) Disconnect() error                              { return nil }
func (s *fakeWireSession) Status() session.ConnectionStatus               { return session.StatusConnected }
func (s *fakeWireSession) RecordStatus(session.ConnectionStatus)          {}
func (s *fakeWireSession) IsConnected() bool                              { return true }
func (s *fakeWireSession) ClientConnectionID() session.ClientConnectionID { return 1 }
func (s *fakeWireSession) ServerURI() string                              { return "opc.tcp://server-a:4840" }
func (s *fakeWireSession) Settings() session.SessionSettings              { return session.SessionSettings{} }
func (s *fakeWireSession) Information() session.SessionInformation        { return session.SessionInformation{} }

func (s *fakeWireSession) Send(service string, payload []byte) ([]byte, error) {
	s.sentService = service
	return s.respond(payload)
}

func (s *fakeWireSession) SendAsync(service string, transactionID uint64, payload []byte) error {
	s.sentService = service
	s.sentAsync = true
	s.transactionID = transactionID
	return nil
}

func testBuilder(msgType common.MessageType, async bool) *invocationBuilder {
	return &invocationBuilder{
		serviceName: msgType.String(),
		msgType:     msgType,
		async:       async,
		settings:    session.SessionSettings{CallTimeout: time.Second},
		serializer:  serializer.NewJSONSerializer(),
	}
}

// echoServer answers a request with one outcome per target, echoing the
// target address as value
func echoServer(t *testing.T, msgType common.MessageType) func([]byte) ([]byte, error) {
	t.Helper()
	ser := serializer.NewJSONSerializer()
	return func(payload []byte) ([]byte, error) {
		var req common.Message
		if err := ser.Deserialize(payload, &req); err != nil {
			t.Fatalf("Server failed to deserialize request: %v", err)
		}
		outcomes := make([]common.TargetOutcome, len(req.Targets))
		for i, target := range req.Targets {
			outcomes[i] = common.TargetOutcome{Value: []byte(target.Address)}
		}
		return ser.Serialize(*common.NewResponse(msgType, outcomes))
	}
}

// --------------------------------------------------------------------------
// Builder tests
// --------------------------------------------------------------------------

// TestBuildPartitionsByServer tests that targets are grouped per server
// URI with their original indices preserved
func TestBuildPartitionsByServer(t *testing.T) {
	b := testBuilder(common.MsgTRead, false)

	req := &Request{Targets: []Target{
		{ServerURI: "server-a", Address: "x"},
		{ServerURI: "server-b", Address: "y"},
		{ServerURI: "server-a", Address: "z"},
	}}

	invocations, err := b.Build(req, dispatch.NewMask(3, true))
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}
	if len(invocations) != 2 {
		t.Fatalf("Expected 2 invocations, got %d", len(invocations))
	}

	invA := invocations["server-a"].(*invocation)
	if len(invA.indices) != 2 || invA.indices[0] != 0 || invA.indices[1] != 2 {
		t.Errorf("Expected indices [0 2] for server-a, got %v", invA.indices)
	}
	if invA.targets[0].Address != "x" || invA.targets[1].Address != "z" {
		t.Errorf("Unexpected targets for server-a: %v", invA.targets)
	}

	invB := invocations["server-b"].(*invocation)
	if len(invB.indices) != 1 || invB.indices[0] != 1 {
		t.Errorf("Expected indices [1] for server-b, got %v", invB.indices)
	}
}

// TestBuildHonorsMask tests that unmasked targets are excluded
func TestBuildHonorsMask(t *testing.T) {
	b := testBuilder(common.MsgTRead, false)

	req := &Request{Targets: []Target{
		{ServerURI: "server-a", Address: "x"},
		{ServerURI: "server-a", Address: "y"},
	}}

	mask := dispatch.NewMask(2, false)
	mask.Set(1)

	invocations, err := b.Build(req, mask)
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}
	inv := invocations["server-a"].(*invocation)
	if len(inv.indices) != 1 || inv.indices[0] != 1 {
		t.Errorf("Expected only index 1, got %v", inv.indices)
	}
}

// TestBuildEmptyMask tests that an all-zero mask yields no invocations
func TestBuildEmptyMask(t *testing.T) {
	b := testBuilder(common.MsgTRead, false)

	req := &Request{Targets: []Target{{ServerURI: "server-a", Address: "x"}}}

	invocations, err := b.Build(req, dispatch.NewMask(1, false))
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}
	if len(invocations) != 0 {
		t.Errorf("Expected no invocations, got %d", len(invocations))
	}
}

// TestBuildRejectsMissingServer tests that a target without a server URI
// fails the build
func TestBuildRejectsMissingServer(t *testing.T) {
	b := testBuilder(common.MsgTRead, false)

	req := &Request{Targets: []Target{{Address: "x"}}}

	if _, err := b.Build(req, dispatch.NewMask(1, true)); err == nil {
		t.Fatal("Expected build to fail")
	}
}

// --------------------------------------------------------------------------
// Invocation tests
// --------------------------------------------------------------------------

// TestInvokeAndMerge tests the synchronous round trip: serialize,
// send, deserialize, merge outcomes back at the original indices
func TestInvokeAndMerge(t *testing.T) {
	b := testBuilder(common.MsgTRead, false)

	req := &Request{Targets: []Target{
		{ServerURI: "server-b", Address: "skipme"},
		{ServerURI: "server-a", Address: "x"},
		{ServerURI: "server-a", Address: "y"},
	}}

	mask := dispatch.NewMask(3, true)
	mask.Unset(0)

	invocations, err := b.Build(req, mask)
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}
	inv := invocations["server-a"].(*invocation)

	s := &fakeWireSession{respond: echoServer(t, common.MsgTRead)}
	if err := inv.Invoke(s); err != nil {
		t.Fatalf("Failed to invoke: %v", err)
	}
	if s.sentService != "read" {
		t.Errorf("Expected service read, got %s", s.sentService)
	}

	result := &Result{}
	result.Prepare(req.TargetCount())
	if err := inv.MergeInto(result); err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}

	if result.Outcomes[0].Processed {
		t.Error("Expected masked-out slot 0 to stay unprocessed")
	}
	if !result.Outcomes[1].Processed || !bytes.Equal(result.Outcomes[1].Value, []byte("x")) {
		t.Errorf("Unexpected outcome 1: %+v", result.Outcomes[1])
	}
	if !result.Outcomes[2].Processed || !bytes.Equal(result.Outcomes[2].Value, []byte("y")) {
		t.Errorf("Unexpected outcome 2: %+v", result.Outcomes[2])
	}
}

// TestInvokeServerError tests that an error response surfaces as a
// transport error
func TestInvokeServerError(t *testing.T) {
	b := testBuilder(common.MsgTWrite, false)

	req := &Request{Targets: []Target{{ServerURI: "server-a", Address: "x", Value: []byte("v")}}}
	invocations, _ := b.Build(req, dispatch.NewMask(1, true))
	inv := invocations["server-a"].(*invocation)

	ser := serializer.NewJSONSerializer()
	s := &fakeWireSession{respond: func([]byte) ([]byte, error) {
		return ser.Serialize(common.Message{MsgType: common.MsgTError, Err: "access denied"})
	}}

	err := inv.Invoke(s)
	if !status.IsTransportError(err) {
		t.Fatalf("Expected transport error, got %v", err)
	}
}

// TestInvokeOutcomeCountMismatch tests that a response with the wrong
// number of outcomes is rejected
func TestInvokeOutcomeCountMismatch(t *testing.T) {
	b := testBuilder(common.MsgTRead, false)

	req := &Request{Targets: []Target{
		{ServerURI: "server-a", Address: "x"},
		{ServerURI: "server-a", Address: "y"},
	}}
	invocations, _ := b.Build(req, dispatch.NewMask(2, true))
	inv := invocations["server-a"].(*invocation)

	ser := serializer.NewJSONSerializer()
	s := &fakeWireSession{respond: func([]byte) ([]byte, error) {
		return ser.Serialize(*common.NewResponse(common.MsgTRead, []common.TargetOutcome{{Value: []byte("only one")}}))
	}}

	if err := inv.Invoke(s); !status.IsTransportError(err) {
		t.Fatalf("Expected transport error, got %v", err)
	}
}

// TestInvokePerTargetErrors tests that per-target errors merge into the
// result without failing the invocation
func TestInvokePerTargetErrors(t *testing.T) {
	b := testBuilder(common.MsgTRead, false)

	req := &Request{Targets: []Target{
		{ServerURI: "server-a", Address: "good"},
		{ServerURI: "server-a", Address: "bad"},
	}}
	invocations, _ := b.Build(req, dispatch.NewMask(2, true))
	inv := invocations["server-a"].(*invocation)

	ser := serializer.NewJSONSerializer()
	s := &fakeWireSession{respond: func([]byte) ([]byte, error) {
		return ser.Serialize(*common.NewResponse(common.MsgTRead, []common.TargetOutcome{
			{Value: []byte("21.3")},
			{Err: "address not found"},
		}))
	}}

	if err := inv.Invoke(s); err != nil {
		t.Fatalf("Failed to invoke: %v", err)
	}

	result := &Result{}
	result.Prepare(2)
	if err := inv.MergeInto(result); err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}

	if result.Outcomes[0].Err != nil {
		t.Errorf("Expected no error on outcome 0, got %v", result.Outcomes[0].Err)
	}
	if result.Outcomes[1].Err == nil || result.Outcomes[1].Err.Error() != "address not found" {
		t.Errorf("Expected per-target error, got %v", result.Outcomes[1].Err)
	}
}

// TestInvokeAsync tests that an asynchronous invocation sends the
// transaction id and skips the response path
func TestInvokeAsync(t *testing.T) {
	b := testBuilder(common.MsgTCall, true)

	req := &Request{Targets: []Target{{ServerURI: "server-a", Address: "restart"}}}
	invocations, _ := b.Build(req, dispatch.NewMask(1, true))
	inv := invocations["server-a"].(*invocation)
	inv.SetTransactionID(1234)

	s := &fakeWireSession{}
	if err := inv.Invoke(s); err != nil {
		t.Fatalf("Failed to invoke: %v", err)
	}
	if !s.sentAsync {
		t.Fatal("Expected an asynchronous send")
	}
	if s.transactionID != 1234 {
		t.Errorf("Expected transaction id 1234, got %d", s.transactionID)
	}
}

// TestInvokeAsyncWithoutTransaction tests the programming error guard
func TestInvokeAsyncWithoutTransaction(t *testing.T) {
	b := testBuilder(common.MsgTCall, true)

	req := &Request{Targets: []Target{{ServerURI: "server-a", Address: "restart"}}}
	invocations, _ := b.Build(req, dispatch.NewMask(1, true))
	inv := invocations["server-a"].(*invocation)

	s := &fakeWireSession{}
	if err := inv.Invoke(s); !status.IsProgrammingError(err) {
		t.Fatalf("Expected programming error, got %v", err)
	}
}

// TestMergeBeforeInvoke tests the guard against merging an invocation
// that never produced outcomes
func TestMergeBeforeInvoke(t *testing.T) {
	b := testBuilder(common.MsgTRead, false)

	req := &Request{Targets: []Target{{ServerURI: "server-a", Address: "x"}}}
	invocations, _ := b.Build(req, dispatch.NewMask(1, true))
	inv := invocations["server-a"].(*invocation)

	result := &Result{}
	result.Prepare(1)
	if err := inv.MergeInto(result); !status.IsProgrammingError(err) {
		t.Fatalf("Expected programming error, got %v", err)
	}
}

// TestResultPrepareKeepsSlots tests that re-preparing a result of the
// same size preserves existing outcomes for masked retries
func TestResultPrepareKeepsSlots(t *testing.T) {
	result := &Result{}
	result.Prepare(2)
	result.Outcomes[0] = Outcome{Processed: true, Value: []byte("kept")}

	result.Prepare(2)
	if !result.Outcomes[0].Processed || !bytes.Equal(result.Outcomes[0].Value, []byte("kept")) {
		t.Error("Expected re-prepare of same size to keep existing outcomes")
	}

	result.Prepare(3)
	if len(result.Outcomes) != 3 || result.Outcomes[0].Processed {
		t.Error("Expected prepare with a new size to reset the outcomes")
	}
}
