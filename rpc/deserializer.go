package rpc

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/queue"
)

type parseState uint8

const (
	parseStateSOF parseState = iota
	parseStateUUID
	parseStateMessageType
	parseStateTag
	parseStateEncryptFlag
	parseStatePayloadSize
	parseStatePayload
	parseStateChecksum
)

var parseStateMapping = map[parseState]string{
	parseStateSOF:         "parseStateSOF",
	parseStateUUID:        "parseStateUUID",
	parseStateMessageType: "parseStateMessageType",
	parseStateTag:         "parseStateTag",
	parseStateEncryptFlag: "parseStateEncryptFlag",
	parseStatePayloadSize: "parseStatePayloadSize",
	parseStatePayload:     "parseStatePayload",
	parseStateChecksum:    "parseStateChecksum",
}

func (s parseState) String() string {
	return parseStateMapping[s]
}

// deserializer rebuilds frames one byte at a time. Each frame becomes two receive queue
// elements, the raw header followed by the payload, which are written in place while
// reserved and committed together once the frame is complete and verified.
type deserializer struct {
	logger   *slog.Logger
	queue    *queue.Queue
	checksum Checksum
	emit     func(status Status)

	state  parseState
	header Header
	count  int

	headerElement  *queue.ReservedElement
	headerBytes    []byte
	payloadElement *queue.ReservedElement
	payloadBytes   []byte
	checksumBytes  []byte
}

func newDeserializer(logger *slog.Logger, rx *queue.Queue, checksum Checksum, emit func(status Status)) *deserializer {
	d := &deserializer{
		logger:   logger,
		queue:    rx,
		checksum: checksum,
		emit:     emit,
	}
	if checksum != nil {
		d.checksumBytes = make([]byte, checksum.Size())
	}

	return d
}

func (d *deserializer) feed(b byte) {
	switch d.state {
	case parseStateSOF:
		if b != SOF {
			return
		}

		reserved, buffer, err := d.queue.Reserve(HeaderSize)
		if err != nil {
			d.abort(StatusAllocationFailure, err)
			return
		}

		d.headerElement = reserved
		d.headerBytes = buffer
		d.headerBytes[0] = b
		d.header = Header{}
		d.advance(parseStateUUID)

	case parseStateUUID:
		d.headerBytes[1+d.count] = b
		d.header.UUID = d.header.UUID<<8 | uint32(b)
		d.count++
		if d.count == 4 {
			d.advance(parseStateMessageType)
		}

	case parseStateMessageType:
		d.headerBytes[5] = b
		messageType := MessageType(b)
		if !messageType.IsValid() {
			d.abort(StatusFormatError, cerrors.Wrapf(ErrProtocolFormat, "unknown message type 0x%02x", b))
			return
		}

		d.header.Type = messageType
		d.advance(parseStateTag)

	case parseStateTag:
		d.headerBytes[6] = b
		d.header.Tag = b
		d.advance(parseStateEncryptFlag)

	case parseStateEncryptFlag:
		d.headerBytes[7] = b
		d.header.Encrypted = b != 0
		d.advance(parseStatePayloadSize)

	case parseStatePayloadSize:
		d.headerBytes[8+d.count] = b
		d.header.PayloadSize = d.header.PayloadSize<<8 | uint32(b)
		d.count++
		if d.count < 4 {
			return
		}

		reserved, buffer, err := d.queue.Reserve(int(d.header.PayloadSize))
		if err != nil {
			d.abort(StatusAllocationFailure, cerrors.Wrapf(err, "reserving %d byte payload", d.header.PayloadSize))
			return
		}

		d.payloadElement = reserved
		d.payloadBytes = buffer
		if len(buffer) == 0 {
			d.payloadComplete()
		} else {
			d.advance(parseStatePayload)
		}

	case parseStatePayload:
		d.payloadBytes[d.count] = b
		d.count++
		if d.count == len(d.payloadBytes) {
			d.payloadComplete()
		}

	case parseStateChecksum:
		d.checksumBytes[d.count] = b
		d.count++
		if d.count < len(d.checksumBytes) {
			return
		}

		if !d.checksum.Verify(d.payloadBytes, d.checksumBytes) {
			d.abort(StatusChecksumMismatch, cerrors.Wrapf(ErrChecksumMismatch, "frame uuid %d, checksum %x", d.header.UUID, d.checksumBytes))
			return
		}
		d.commit()
	}
}

func (d *deserializer) advance(state parseState) {
	d.state = state
	d.count = 0
}

func (d *deserializer) payloadComplete() {
	if d.checksum != nil {
		d.advance(parseStateChecksum)
		return
	}

	d.commit()
}

func (d *deserializer) commit() {
	header := d.header

	// Neither commit can fail: both elements were reserved from this queue and are
	// consumed exactly once here.
	if err := d.queue.Commit(d.headerElement); err != nil {
		panic(err)
	}
	if err := d.queue.Commit(d.payloadElement); err != nil {
		panic(err)
	}
	d.reset()

	d.logger.Debug("frame received",
		slog.Uint64("uuid", uint64(header.UUID)),
		slog.String("type", header.Type.String()),
		slog.Int("tag", int(header.Tag)),
		slog.Uint64("payloadSize", uint64(header.PayloadSize)),
	)
	d.emit(Status{Code: StatusFrameReceived, Header: header})
}

// abort drops the frame in progress, returning its reservations to the queue
func (d *deserializer) abort(code StatusCode, err error) {
	header := d.header
	state := d.state
	d.release()
	d.reset()

	d.logger.Warn("dropped inbound frame",
		slog.String("reason", code.String()),
		slog.String("state", state.String()),
		slog.Any("error", err),
	)
	d.emit(Status{Code: code, Header: header, Err: err})
}

func (d *deserializer) release() {
	if d.payloadElement != nil {
		if err := d.queue.Discard(d.payloadElement); err != nil {
			panic(err)
		}
	}
	if d.headerElement != nil {
		if err := d.queue.Discard(d.headerElement); err != nil {
			panic(err)
		}
	}
}

func (d *deserializer) reset() {
	d.state = parseStateSOF
	d.count = 0
	d.header = Header{}
	d.headerElement = nil
	d.headerBytes = nil
	d.payloadElement = nil
	d.payloadBytes = nil
}

// inProgress returns true while a frame has been started but not yet committed or dropped
func (d *deserializer) inProgress() bool {
	return d.state != parseStateSOF
}
