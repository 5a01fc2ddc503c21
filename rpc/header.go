package rpc

import (
	"encoding/binary"

	cerrors "github.com/cockroachdb/errors"
)

// SOF is the synchronization byte every frame starts with
const SOF byte = 0x80

// HeaderSize is the encoded size of a frame header, including the SOF byte
const HeaderSize = 12

// MessageType distinguishes requests from the responses that answer them
type MessageType uint8

const (
	MessageTypeRequest MessageType = iota
	MessageTypeResponse
)

var messageTypeMapping = map[MessageType]string{
	MessageTypeRequest:  "MessageTypeRequest",
	MessageTypeResponse: "MessageTypeResponse",
}

func (t MessageType) String() string {
	return messageTypeMapping[t]
}

// IsValid returns true for the message types that may appear on the wire
func (t MessageType) IsValid() bool {
	_, ok := messageTypeMapping[t]
	return ok
}

// Header is the fixed part of a frame. On the wire it is laid out as
//
//	SOF(1) | UUID(4) | TYPE(1) | TAG(1) | ENCRYPTED(1) | PAYLOAD_SIZE(4)
//
// with multi-byte fields big-endian. The payload and an optional checksum follow.
type Header struct {
	UUID        uint32
	Type        MessageType
	Tag         byte
	Encrypted   bool
	PayloadSize uint32
}

// FrameSize is the number of bytes a frame with this header occupies on the wire when
// checksumSize bytes of checksum trail the payload
func (h Header) FrameSize(checksumSize int) int {
	return HeaderSize + int(h.PayloadSize) + checksumSize
}

// Encode writes the header into the first HeaderSize bytes of buffer
func (h Header) Encode(buffer []byte) {
	_ = buffer[HeaderSize-1]

	buffer[0] = SOF
	binary.BigEndian.PutUint32(buffer[1:5], h.UUID)
	buffer[5] = byte(h.Type)
	buffer[6] = h.Tag
	buffer[7] = 0
	if h.Encrypted {
		buffer[7] = 1
	}
	binary.BigEndian.PutUint32(buffer[8:12], h.PayloadSize)
}

// DecodeHeader parses an encoded header. It fails with ErrProtocolFormat if buffer is not
// exactly HeaderSize bytes long, does not begin with SOF, or carries an unknown message type.
func DecodeHeader(buffer []byte) (Header, error) {
	if len(buffer) != HeaderSize {
		return Header{}, cerrors.Wrapf(ErrProtocolFormat, "header is %d bytes, expected %d", len(buffer), HeaderSize)
	}
	if buffer[0] != SOF {
		return Header{}, cerrors.Wrapf(ErrProtocolFormat, "header begins with 0x%02x, expected 0x%02x", buffer[0], SOF)
	}

	messageType := MessageType(buffer[5])
	if !messageType.IsValid() {
		return Header{}, cerrors.Wrapf(ErrProtocolFormat, "unknown message type 0x%02x", buffer[5])
	}

	return Header{
		UUID:        binary.BigEndian.Uint32(buffer[1:5]),
		Type:        messageType,
		Tag:         buffer[6],
		Encrypted:   buffer[7] != 0,
		PayloadSize: binary.BigEndian.Uint32(buffer[8:12]),
	}, nil
}
