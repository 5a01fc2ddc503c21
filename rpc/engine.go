// Package rpc implements a framed request/response protocol over a byte-oriented,
// non-blocking transport.
//
// An Engine owns a transmit queue and a receive queue, each living in one half of a
// caller-supplied buffer. Outbound frames are serialized straight into reserved transmit
// queue space. Inbound bytes are fed one at a time through a deserializer that writes
// headers and payloads straight into reserved receive queue space, and only commits a
// frame once it is complete and its checksum verifies. Nothing in an Engine blocks or
// spawns goroutines: the owner drives it by calling Run periodically, and must serialize
// every call into the engine.
package rpc

import (
	"math"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/arena"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/queue"
)

const receiveChunkSize = 64

// Options carries the collaborators an Engine talks to
type Options struct {
	// Transport moves frame bytes to and from the peer. Required.
	Transport Transport
	// Clock ages pending requests. Defaults to a MonotonicClock, in which case WaitTicks is
	// measured in milliseconds.
	Clock Clock
	// Checksum, if set, overrides the checksum selected in Config
	Checksum Checksum
	// Pool supplies block descriptors to both queues. Defaults to a pool of
	// Config.DescriptorPoolSize descriptors owned by the engine.
	Pool *arena.DescriptorPool
	// Services handle inbound requests, one per tag
	Services []Service
}

// Engine is one endpoint of the protocol. An Engine is not safe for concurrent use.
type Engine struct {
	logger    *slog.Logger
	config    Config
	transport Transport
	clock     Clock
	checksum  Checksum
	pool      *arena.DescriptorPool

	tx           *queue.Queue
	rx           *queue.Queue
	deserializer *deserializer
	records      *recordTable
	services     *serviceTable
	notifier     notifier

	nextUUID     uint32
	txSent       int
	receiveChunk []byte
	stats        Stats
}

var _ memutils.Validatable = &Engine{}

// New creates an engine whose queues live in buffer. The first half of buffer holds frames
// waiting to be transmitted and the second half holds frames that have been received but
// not yet handled.
func New(logger *slog.Logger, buffer []byte, config Config, options Options) (*Engine, error) {
	logger = memutils.LoggerOrDiscard(logger)

	config = config.withDefaults()
	config.BufferSize = len(buffer)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if options.Transport == nil {
		return nil, cerrors.Wrap(memutils.ErrInvalidArgument, "an rpc engine requires a transport")
	}

	checksum := options.Checksum
	if checksum == nil {
		var err error
		checksum, err = config.Checksum.Checksum()
		if err != nil {
			return nil, err
		}
	}

	clock := options.Clock
	if clock == nil {
		clock = NewMonotonicClock()
	}

	pool := options.Pool
	if pool == nil {
		pool = arena.NewDescriptorPool(config.DescriptorPoolSize)
	}

	services, err := newServiceTable(options.Services)
	if err != nil {
		return nil, err
	}

	createOptions := arena.CreateOptions{
		Alignment: config.Alignment,
		Strategy:  config.Strategy,
	}
	half := len(buffer) / 2

	tx, err := queue.New(logger, pool, buffer[:half], createOptions)
	if err != nil {
		return nil, cerrors.Wrap(err, "creating transmit queue")
	}
	rx, err := queue.New(logger, pool, buffer[half:], createOptions)
	if err != nil {
		_ = tx.Arena().Destroy()
		return nil, cerrors.Wrap(err, "creating receive queue")
	}

	e := &Engine{
		logger:       logger,
		config:       config,
		transport:    options.Transport,
		clock:        clock,
		checksum:     checksum,
		pool:         pool,
		tx:           tx,
		rx:           rx,
		records:      newRecordTable(config.MaxRecords),
		services:     services,
		receiveChunk: make([]byte, receiveChunkSize),
	}
	e.deserializer = newDeserializer(logger, rx, checksum, e.signal)

	return e, nil
}

// IsReady returns true if both queues have backing memory and a transport is attached
func (e *Engine) IsReady() bool {
	return e != nil && e.transport != nil && e.tx.IsReady() && e.rx.IsReady()
}

// Config returns the configuration the engine is running with, defaults applied
func (e *Engine) Config() Config {
	return e.config
}

// SetEncrypted sets whether frames created from now on carry the encrypted flag
func (e *Engine) SetEncrypted(encrypted bool) {
	e.config.Encrypted = encrypted
}

// Encrypted returns whether outbound frames carry the encrypted flag
func (e *Engine) Encrypted() bool {
	return e.config.Encrypted
}

// NumOfTxPendingMsg returns the number of frames waiting to be transmitted
func (e *Engine) NumOfTxPendingMsg() int {
	return e.tx.Len()
}

// NumOfPendingRecords returns the number of requests waiting for a response
func (e *Engine) NumOfPendingRecords() int {
	return e.records.pending
}

// PendingRecords lists the requests waiting for a response, in record table order
func (e *Engine) PendingRecords() []Record {
	return e.records.snapshot()
}

// Subscribe registers an observer for status notifications. Observers run synchronously
// inside Run, in the order they subscribed.
func (e *Engine) Subscribe(observer Observer) *Subscription {
	return e.notifier.subscribe(observer)
}

// CreateRequest queues a request frame for tag and returns the uuid its response will carry.
// The request occupies a record until its response arrives or it times out; if every record
// is occupied, the request is not sent and ErrRecordTableExhausted is returned.
func (e *Engine) CreateRequest(tag byte, payload []byte) (uint32, error) {
	return e.CreateNamedRequest("", tag, payload)
}

// CreateNamedRequest is CreateRequest with a name attached to the request's record for
// diagnostics
func (e *Engine) CreateNamedRequest(name string, tag byte, payload []byte) (uint32, error) {
	if !e.IsReady() {
		return 0, memutils.ErrNotReady
	}

	slot := e.records.freeSlot()
	if slot < 0 {
		return 0, cerrors.Wrapf(ErrRecordTableExhausted, "all %d request records are waiting for responses", e.records.capacity())
	}

	e.nextUUID++
	header := Header{
		UUID:      e.nextUUID,
		Type:      MessageTypeRequest,
		Tag:       tag,
		Encrypted: e.config.Encrypted,
	}

	if err := e.enqueue(header, payload); err != nil {
		return 0, err
	}

	e.records.occupy(slot, Record{
		UUID:    header.UUID,
		Name:    name,
		Tag:     tag,
		Created: e.clock.Now(),
	})
	e.stats.RequestsCreated++

	e.logger.Debug("request queued",
		slog.Uint64("uuid", uint64(header.UUID)),
		slog.String("name", name),
		slog.Int("tag", int(tag)),
		slog.Int("payloadSize", len(payload)),
	)

	return header.UUID, nil
}

// CreateResponse queues a response frame answering the request with the given tag and uuid.
// Responses do not occupy a record.
func (e *Engine) CreateResponse(tag byte, uuid uint32, payload []byte) error {
	if !e.IsReady() {
		return memutils.ErrNotReady
	}

	header := Header{
		UUID:      uuid,
		Type:      MessageTypeResponse,
		Tag:       tag,
		Encrypted: e.config.Encrypted,
	}

	if err := e.enqueue(header, payload); err != nil {
		return err
	}
	e.stats.ResponsesCreated++

	return nil
}

func (e *Engine) checksumSize() int {
	if e.checksum == nil {
		return 0
	}
	return e.checksum.Size()
}

// enqueue serializes a whole frame straight into a transmit queue reservation
func (e *Engine) enqueue(header Header, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return cerrors.Wrapf(memutils.ErrInvalidArgument, "payload of %d bytes does not fit a frame", len(payload))
	}
	header.PayloadSize = uint32(len(payload))

	size := header.FrameSize(e.checksumSize())
	reserved, frame, err := e.tx.Reserve(size)
	if err != nil {
		return cerrors.Wrapf(err, "queueing %d byte frame", size)
	}

	header.Encode(frame)
	copy(frame[HeaderSize:], payload)
	if e.checksum != nil {
		e.checksum.Calculate(payload, frame[HeaderSize+len(payload):])
	}

	return e.tx.Commit(reserved)
}

// Run performs one cooperative step: it feeds every byte the transport has available
// through the deserializer, handles every frame that is complete, hands at most one
// pending frame to the transport and releases any request that has waited too long.
func (e *Engine) Run() {
	if !e.IsReady() {
		return
	}

	e.receive()
	e.dispatch()
	e.transmit()
	e.expireRecords()

	memutils.DebugValidate(e)
}

// Flush hands pending frames to the transport until the transmit queue is empty or the
// transport stops accepting bytes. It returns the number of frames fully transmitted.
func (e *Engine) Flush() int {
	if !e.IsReady() {
		return 0
	}

	sent := e.stats.FramesSent
	for e.tx.Len() > 0 {
		if !e.transmit() {
			break
		}
	}

	return e.stats.FramesSent - sent
}

func (e *Engine) receive() {
	for {
		n := e.transport.Receive(e.receiveChunk)
		if n <= 0 {
			return
		}
		if n > len(e.receiveChunk) {
			n = len(e.receiveChunk)
		}

		e.stats.BytesReceived += n
		for _, b := range e.receiveChunk[:n] {
			e.deserializer.feed(b)
		}
	}
}

// dispatch handles every committed frame. Each frame is a header element followed by a
// payload element.
func (e *Engine) dispatch() {
	for e.rx.Len() >= 2 {
		encoded, err := e.rx.Front()
		if err != nil {
			return
		}
		header, decodeErr := DecodeHeader(encoded)
		e.popReceived()

		payload, err := e.rx.Front()
		if err != nil {
			return
		}

		if decodeErr != nil {
			e.signal(Status{Code: StatusFormatError, Err: decodeErr})
		} else {
			e.handleFrame(header, payload)
		}
		e.popReceived()
	}
}

func (e *Engine) popReceived() {
	if err := e.rx.PopFront(); err != nil {
		e.logger.Error("failed to release received frame element", slog.Any("error", err))
	}
}

func (e *Engine) handleFrame(header Header, payload []byte) {
	switch header.Type {
	case MessageTypeRequest:
		service, ok := e.services.lookup(header.Tag)
		if !ok {
			e.signal(Status{
				Code:   StatusNoMatchingService,
				Header: header,
				Err:    cerrors.Wrapf(ErrNoMatchingService, "tag 0x%02x", header.Tag),
			})
			return
		}

		service.Handler.Serve(Request{Header: header, Payload: payload}, responder{engine: e, header: header})
		e.stats.RequestsServed++

	case MessageTypeResponse:
		slot, ok := e.records.find(header.UUID)
		if !ok {
			e.signal(Status{
				Code:   StatusNoMatchingRecord,
				Header: header,
				Err:    cerrors.Wrapf(ErrNoMatchingRecord, "uuid %d", header.UUID),
			})
			return
		}

		record := e.records.release(slot)
		e.logger.Debug("request answered",
			slog.Uint64("uuid", uint64(record.UUID)),
			slog.String("name", record.Name),
			slog.Uint64("elapsed", e.clock.Now()-record.Created),
		)
		e.signal(Status{Code: StatusResponseReceived, Header: header, Payload: payload})
	}
}

// transmit offers the front frame to the transport. A frame the transport only partly
// accepts stays at the front and resumes where it stopped. Returns false if no bytes moved.
func (e *Engine) transmit() bool {
	frame, err := e.tx.Front()
	if err != nil {
		return false
	}

	remaining := frame[e.txSent:]
	n := e.transport.Transmit(remaining)
	if n <= 0 {
		return false
	}
	if n > len(remaining) {
		n = len(remaining)
	}

	e.txSent += n
	e.stats.BytesSent += n
	if e.txSent < len(frame) {
		return true
	}

	e.txSent = 0
	if err := e.tx.PopFront(); err != nil {
		e.logger.Error("failed to release transmitted frame", slog.Any("error", err))
	}
	e.stats.FramesSent++

	return true
}

func (e *Engine) expireRecords() {
	e.records.expire(e.clock.Now(), e.config.WaitTicks, func(record Record) {
		e.signal(Status{
			Code: StatusTimeout,
			Header: Header{
				UUID: record.UUID,
				Type: MessageTypeRequest,
				Tag:  record.Tag,
			},
			Err: cerrors.Wrapf(ErrRequestTimeout, "request %d %q waited more than %d ticks", record.UUID, record.Name, e.config.WaitTicks),
		})
	})
}

// signal records a status in the engine statistics and forwards it to every observer
func (e *Engine) signal(status Status) {
	switch status.Code {
	case StatusFrameReceived:
		e.stats.FramesReceived++
	case StatusAllocationFailure:
		e.stats.AllocationFailures++
	case StatusFormatError:
		e.stats.FormatErrors++
	case StatusChecksumMismatch:
		e.stats.ChecksumMismatches++
	case StatusNoMatchingService:
		e.stats.UnmatchedServices++
	case StatusNoMatchingRecord:
		e.stats.UnmatchedRecords++
	case StatusTimeout:
		e.stats.Timeouts++
	case StatusResponseReceived:
		e.stats.ResponsesReceived++
	}

	switch status.Code {
	case StatusNoMatchingService, StatusNoMatchingRecord:
		e.logger.Warn("dropped inbound frame",
			slog.String("reason", status.Code.String()),
			slog.Uint64("uuid", uint64(status.Header.UUID)),
			slog.Int("tag", int(status.Header.Tag)),
		)
	case StatusTimeout:
		e.logger.Debug("request record released", slog.Any("error", status.Err))
	}

	e.notifier.notify(status)
}

// Validate checks both queues and the record table's bookkeeping
func (e *Engine) Validate() error {
	if err := e.tx.Validate(); err != nil {
		return cerrors.Wrap(err, "transmit queue")
	}
	if err := e.rx.Validate(); err != nil {
		return cerrors.Wrap(err, "receive queue")
	}

	pending := len(e.records.snapshot())
	if pending != e.records.pending || e.records.byUUID.Count() != pending {
		return errors.Errorf("record table has %d occupied slots, counts %d and indexes %d",
			pending, e.records.pending, e.records.byUUID.Count())
	}

	return nil
}

// Close drops every queued frame, abandons the frame being received and pending requests,
// and returns both queue buffers and their descriptors to the pool
func (e *Engine) Close() error {
	if !e.IsReady() {
		return memutils.ErrNotReady
	}

	e.deserializer.release()
	e.deserializer.reset()
	e.tx.Clear()
	e.rx.Clear()
	e.txSent = 0
	e.records.reset()

	txErr := e.tx.Arena().Destroy()
	rxErr := e.rx.Arena().Destroy()
	return cerrors.CombineErrors(txErr, rxErr)
}
