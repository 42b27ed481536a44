package serializer

import (
	"reflect"
	"testing"

	"github.com/sessmux/sessmux/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"CBOR":   NewCBORSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTError},

		// Read request
		{
			MsgType: common.MsgTRead,
			Targets: []common.TargetOp{
				{Address: "ns=2;s=temperature"},
				{Address: "ns=2;s=pressure"},
			},
		},

		// Write request
		{
			MsgType: common.MsgTWrite,
			Targets: []common.TargetOp{
				{Address: "ns=2;s=setpoint", Value: []byte("42.5")},
			},
		},

		// Response with per-target outcomes
		{
			MsgType: common.MsgTRead,
			Outcomes: []common.TargetOutcome{
				{Value: []byte("21.3")},
				{Err: "address not found"},
			},
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType: common.MsgTCall,
			Targets: []common.TargetOp{
				{Address: "ns=3;s=restart", Value: []byte("now")},
			},
			Outcomes: []common.TargetOutcome{
				{Value: []byte("ok"), Err: "partial"},
			},
			Err:  "outer error",
			Meta: []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTError; msgType <= common.MsgTCall; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	// Truncated inputs must fail, not panic
	t.Run("Truncated input", func(t *testing.T) {
		msg := common.Message{
			MsgType: common.MsgTWrite,
			Targets: []common.TargetOp{{Address: "a", Value: []byte("v")}},
		}
		data, err := serializer.Serialize(msg)
		if err != nil {
			t.Fatalf("Failed to serialize: %v", err)
		}

		for cut := 0; cut < len(data); cut++ {
			var result common.Message
			if err := serializer.Deserialize(data[:cut], &result); err == nil && cut < 2 {
				t.Errorf("Expected error for %d byte input, got none", cut)
			}
		}
	})

	// Zero-length payload values must round trip as nil
	t.Run("Nil values", func(t *testing.T) {
		msg := common.Message{
			MsgType:  common.MsgTRead,
			Targets:  []common.TargetOp{{Address: "a"}},
			Outcomes: []common.TargetOutcome{{}},
		}
		data, err := serializer.Serialize(msg)
		if err != nil {
			t.Fatalf("Failed to serialize: %v", err)
		}

		var result common.Message
		if err := serializer.Deserialize(data, &result); err != nil {
			t.Fatalf("Failed to deserialize: %v", err)
		}
		if !reflect.DeepEqual(msg, result) {
			t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v", msg, result)
		}
	})
}
