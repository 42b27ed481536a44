package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/sessmux/sessmux/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasTargets  byte = 1 << 0
	hasOutcomes byte = 1 << 1
	hasErr      byte = 1 << 2
	hasMeta     byte = 1 << 3
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (s binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, s.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	// Handle Targets
	if len(msg.Targets) > 0 {
		flags |= hasTargets
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Targets)))
		pos += 4
		for _, t := range msg.Targets {
			pos = putBytes(result, pos, []byte(t.Address))
			pos = putBytes(result, pos, t.Value)
		}
	}

	// Handle Outcomes
	if len(msg.Outcomes) > 0 {
		flags |= hasOutcomes
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Outcomes)))
		pos += 4
		for _, o := range msg.Outcomes {
			pos = putBytes(result, pos, o.Value)
			pos = putBytes(result, pos, []byte(o.Err))
		}
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		pos = putBytes(result, pos, []byte(msg.Err))
	}

	// Handle Meta
	if len(msg.Meta) > 0 {
		flags |= hasMeta
		pos = putBytes(result, pos, msg.Meta)
	}

	// Write flags
	result[1] = flags

	return result[:pos], nil
}

func (s binarySerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if len(b) < 2 {
		return fmt.Errorf("message too short: %d bytes", len(b))
	}

	msg.MsgType = common.MessageType(b[0])
	flags := b[1]
	pos := 2

	var err error

	if flags&hasTargets != 0 {
		if pos+4 > len(b) {
			return fmt.Errorf("truncated target count")
		}
		count := binary.BigEndian.Uint32(b[pos : pos+4])
		pos += 4
		msg.Targets = make([]common.TargetOp, count)
		for i := range msg.Targets {
			var addr, value []byte
			if addr, pos, err = getBytes(b, pos); err != nil {
				return err
			}
			if value, pos, err = getBytes(b, pos); err != nil {
				return err
			}
			msg.Targets[i] = common.TargetOp{Address: string(addr), Value: value}
		}
	}

	if flags&hasOutcomes != 0 {
		if pos+4 > len(b) {
			return fmt.Errorf("truncated outcome count")
		}
		count := binary.BigEndian.Uint32(b[pos : pos+4])
		pos += 4
		msg.Outcomes = make([]common.TargetOutcome, count)
		for i := range msg.Outcomes {
			var value, errStr []byte
			if value, pos, err = getBytes(b, pos); err != nil {
				return err
			}
			if errStr, pos, err = getBytes(b, pos); err != nil {
				return err
			}
			msg.Outcomes[i] = common.TargetOutcome{Value: value, Err: string(errStr)}
		}
	}

	if flags&hasErr != 0 {
		var errStr []byte
		if errStr, pos, err = getBytes(b, pos); err != nil {
			return err
		}
		msg.Err = string(errStr)
	}

	if flags&hasMeta != 0 {
		if msg.Meta, _, err = getBytes(b, pos); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// sizeBytes computes the exact serialized size of a message
func (s binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := 2 // MsgType + flags
	if len(msg.Targets) > 0 {
		size += 4
		for _, t := range msg.Targets {
			size += 8 + len(t.Address) + len(t.Value)
		}
	}
	if len(msg.Outcomes) > 0 {
		size += 4
		for _, o := range msg.Outcomes {
			size += 8 + len(o.Value) + len(o.Err)
		}
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if len(msg.Meta) > 0 {
		size += 4 + len(msg.Meta)
	}
	return size
}

// putBytes writes a length-prefixed byte slice and returns the new position
func putBytes(dst []byte, pos int, data []byte) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(data)))
	pos += 4
	copy(dst[pos:pos+len(data)], data)
	return pos + len(data)
}

// getBytes reads a length-prefixed byte slice and returns the new position
func getBytes(src []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(src) {
		return nil, pos, fmt.Errorf("truncated length prefix at offset %d", pos)
	}
	length := int(binary.BigEndian.Uint32(src[pos : pos+4]))
	pos += 4
	if pos+length > len(src) {
		return nil, pos, fmt.Errorf("truncated data at offset %d", pos)
	}
	if length == 0 {
		return nil, pos, nil
	}
	return src[pos : pos+length], pos + length, nil
}
