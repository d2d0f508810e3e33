package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Message types
const (
	TypeStatus = "status"
	TypeError  = "error"
)

// maxMessageSize bounds a single framed message.
const maxMessageSize = 64 * 1024

// Status is the idle state exported to local clients.
type Status struct {
	Idle           bool
	IdleSeconds    uint64
	TimeoutSeconds uint64
}

// NewStatusRequest creates a status query message
func NewStatusRequest() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"type": TypeStatus,
	})
}

// NewStatusResponse creates a status response message
func NewStatusResponse(st Status) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"type":            TypeStatus,
		"idle":            st.Idle,
		"idle_seconds":    float64(st.IdleSeconds),
		"timeout_seconds": float64(st.TimeoutSeconds),
	})
}

// NewErrorResponse creates an error message
func NewErrorResponse(errMsg string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"type":  TypeError,
		"error": errMsg,
	})
}

// MessageType returns the type field of a message, or "" when it has none
func MessageType(msg *structpb.Struct) string {
	return msg.GetFields()["type"].GetStringValue()
}

// ParseStatus extracts the status from a response. Error responses are returned as
// errors.
func ParseStatus(msg *structpb.Struct) (Status, error) {
	fields := msg.GetFields()
	switch MessageType(msg) {
	case TypeStatus:
	case TypeError:
		return Status{}, fmt.Errorf("server error: %s", fields["error"].GetStringValue())
	default:
		return Status{}, fmt.Errorf("unexpected response type %q", MessageType(msg))
	}

	idle, ok := fields["idle"].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return Status{}, fmt.Errorf("status response has no idle flag")
	}
	return Status{
		Idle:           idle.BoolValue,
		IdleSeconds:    uint64(fields["idle_seconds"].GetNumberValue()),
		TimeoutSeconds: uint64(fields["timeout_seconds"].GetNumberValue()),
	}, nil
}

// readMessage reads one length-prefixed protobuf message
func readMessage(r io.Reader) (*structpb.Struct, error) {
	// Read message length (4 bytes, big endian)
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds %d", length, maxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// writeMessage writes one length-prefixed protobuf message
func writeMessage(w io.Writer, msg *structpb.Struct) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(data) > maxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds %d", len(data), maxMessageSize)
	}

	// Write message length (4 bytes, big endian)
	length := uint32(len(data)) //nolint:gosec // bounded by maxMessageSize
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	return nil
}
