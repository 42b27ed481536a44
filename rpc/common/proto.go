package common

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// MessageType identifies the service a message belongs to
type MessageType byte

const (
	// MsgTError marks an error response
	MsgTError MessageType = iota
	// MsgTRead reads attribute values
	MsgTRead
	// MsgTWrite writes attribute values
	MsgTWrite
	// MsgTCall invokes a server-side method
	MsgTCall
)

func (t MessageType) String() string {
	switch t {
	case MsgTError:
		return "error"
	case MsgTRead:
		return "read"
	case MsgTWrite:
		return "write"
	case MsgTCall:
		return "call"
	default:
		return "unknown"
	}
}

// TargetOp is one addressed operation inside a request
type TargetOp struct {
	// Address names the attribute or method on the server
	Address string `json:"address"`
	// Value is the write input or method argument (unused for reads)
	Value []byte `json:"value,omitempty"`
}

// TargetOutcome is the per-target result inside a response
type TargetOutcome struct {
	Value []byte `json:"value,omitempty"`
	Err   string `json:"err,omitempty"`
}

// Message represents a single message used for both requests and
// responses. Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request only fields
	Targets []TargetOp `json:"targets,omitempty"`

	// Response only fields
	Outcomes []TargetOutcome `json:"outcomes,omitempty"`
	Err      string          `json:"err,omitempty"` // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional adapters
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewReadRequest creates a new Read request for the given addresses
func NewReadRequest(addresses []string) *Message {
	targets := make([]TargetOp, len(addresses))
	for i, addr := range addresses {
		targets[i] = TargetOp{Address: addr}
	}
	return &Message{
		MsgType: MsgTRead,
		Targets: targets,
	}
}

// NewWriteRequest creates a new Write request
func NewWriteRequest(targets []TargetOp) *Message {
	return &Message{
		MsgType: MsgTWrite,
		Targets: targets,
	}
}

// NewCallRequest creates a new method Call request
func NewCallRequest(targets []TargetOp) *Message {
	return &Message{
		MsgType: MsgTCall,
		Targets: targets,
	}
}

// NewResponse creates a response of the given type carrying per-target outcomes
func NewResponse(msgType MessageType, outcomes []TargetOutcome) *Message {
	return &Message{
		MsgType:  msgType,
		Outcomes: outcomes,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err error) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err.Error(),
	}
}
