// Package queue implements a FIFO of variable-length byte blobs stored inside a single arena.
//
// Elements are written in two phases: Reserve claims arena space and hands back a writable
// slice, then Commit makes the element visible or Discard rolls it back. This lets a producer
// build an element in place, possibly across many calls, without an intermediate copy and
// without consumers ever seeing a half-built element.
package queue

import (
	"encoding/binary"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/arena"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/link"
)

// ItemDescriptorSize is the number of arena bytes every element spends on its descriptor
// block, on top of its payload. The descriptor block records the payload's offset and
// length, big-endian.
const ItemDescriptorSize = 8

type item struct {
	descriptor arena.Span
	payload    arena.Span
	length     int
}

var itemAllocator = sync.Pool{
	New: func() any {
		return link.New(item{})
	},
}

func allocateItem() *link.Node[item] {
	node := itemAllocator.Get().(*link.Node[item])
	node.Init()
	node.Value = item{}
	return node
}

func freeItem(node *link.Node[item]) {
	node.Unlink()
	node.Value = item{}
	itemAllocator.Put(node)
}

// ReservedElement is a handle to an element that has arena space but is not yet visible in
// its queue. It is consumed by exactly one call to Commit or Discard.
type ReservedElement struct {
	queue *Queue
	node  *link.Node[item]
}

// Size returns the payload length that was reserved
func (r *ReservedElement) Size() int {
	if r == nil || r.node == nil {
		return 0
	}
	return r.node.Value.length
}

// Queue is a FIFO of byte blobs backed by one arena. A Queue is not safe for concurrent use.
type Queue struct {
	logger *slog.Logger
	arena  *arena.Arena

	items    link.Node[item]
	count    int
	reserved int
}

var _ memutils.Validatable = &Queue{}

// New creates a Queue whose elements live in buffer. Descriptors for the queue's arena are
// borrowed from pool.
func New(logger *slog.Logger, pool *arena.DescriptorPool, buffer []byte, options arena.CreateOptions) (*Queue, error) {
	logger = memutils.LoggerOrDiscard(logger)

	a, err := arena.New(logger, pool, buffer, options)
	if err != nil {
		return nil, err
	}

	q := &Queue{
		logger: logger,
		arena:  a,
	}
	q.items.Init()

	return q, nil
}

// IsReady returns true if the queue's arena has a backing buffer
func (q *Queue) IsReady() bool {
	return q != nil && q.arena.IsReady()
}

// Len returns the number of committed elements
func (q *Queue) Len() int {
	return q.count
}

// Reserved returns the number of elements that have been reserved but neither committed
// nor discarded
func (q *Queue) Reserved() int {
	return q.reserved
}

// Arena exposes the queue's arena for statistics and diagnostics
func (q *Queue) Arena() *arena.Arena {
	return q.arena
}

// Reserve claims space for an element of size bytes and returns a handle to it along with
// the slice to write the element into. The element is not visible to Front, Back or Len until
// it is committed. A zero size reserves only the element's descriptor block.
func (q *Queue) Reserve(size int) (*ReservedElement, []byte, error) {
	if !q.IsReady() {
		return nil, nil, memutils.ErrNotReady
	}
	if size < 0 {
		return nil, nil, cerrors.Wrapf(memutils.ErrInvalidArgument, "invalid element size: %d", size)
	}

	descriptor, err := q.arena.Alloc(ItemDescriptorSize)
	if err != nil {
		return nil, nil, err
	}

	var payload arena.Span
	if size > 0 {
		payload, err = q.arena.Alloc(size)
		if err != nil {
			if freeErr := q.arena.Free(descriptor); freeErr != nil {
				panic(freeErr)
			}
			return nil, nil, err
		}
	}

	encoded := q.arena.Bytes(descriptor)
	binary.BigEndian.PutUint32(encoded[0:4], uint32(payload.Offset))
	binary.BigEndian.PutUint32(encoded[4:8], uint32(size))

	node := allocateItem()
	node.Value = item{
		descriptor: descriptor,
		payload:    payload,
		length:     size,
	}
	q.reserved++

	return &ReservedElement{queue: q, node: node}, q.bytes(node), nil
}

func (q *Queue) checkReservation(reserved *ReservedElement) error {
	if reserved == nil || reserved.node == nil {
		return cerrors.Wrap(memutils.ErrInvalidArgument, "reserved element was already consumed")
	}
	if reserved.queue != q {
		return cerrors.Wrap(memutils.ErrInvalidArgument, "reserved element belongs to a different queue")
	}
	return nil
}

// Commit appends a reserved element to the back of the queue
func (q *Queue) Commit(reserved *ReservedElement) error {
	if err := q.checkReservation(reserved); err != nil {
		return err
	}

	q.items.PushBack(reserved.node)
	reserved.node = nil
	q.reserved--
	q.count++

	return nil
}

// Discard frees a reserved element's arena space without ever making it visible
func (q *Queue) Discard(reserved *ReservedElement) error {
	if err := q.checkReservation(reserved); err != nil {
		return err
	}

	node := reserved.node
	reserved.node = nil
	q.reserved--

	return q.release(node)
}

// Push copies data into a new element at the back of the queue
func (q *Queue) Push(data []byte) error {
	reserved, buffer, err := q.Reserve(len(data))
	if err != nil {
		return err
	}

	copy(buffer, data)
	return q.Commit(reserved)
}

// Front returns the payload of the oldest element without removing it. The slice aliases
// arena memory and is only valid until the element is popped.
func (q *Queue) Front() ([]byte, error) {
	node := q.items.Front()
	if node == nil {
		return nil, memutils.ErrEmpty
	}
	return q.bytes(node), nil
}

// Back returns the payload of the newest element without removing it. The slice aliases
// arena memory and is only valid until the element is popped.
func (q *Queue) Back() ([]byte, error) {
	node := q.items.Back()
	if node == nil {
		return nil, memutils.ErrEmpty
	}
	return q.bytes(node), nil
}

// PopFront removes the oldest element and frees its arena space
func (q *Queue) PopFront() error {
	node := q.items.Front()
	if node == nil {
		return memutils.ErrEmpty
	}

	q.count--
	return q.release(node)
}

// PopBack removes the newest element and frees its arena space
func (q *Queue) PopBack() error {
	node := q.items.Back()
	if node == nil {
		return memutils.ErrEmpty
	}

	q.count--
	return q.release(node)
}

// Clear pops every committed element
func (q *Queue) Clear() {
	for q.items.Front() != nil {
		if err := q.PopFront(); err != nil {
			q.logger.Error("failed to free queue element", slog.Any("error", err))
			return
		}
	}
}

func (q *Queue) bytes(node *link.Node[item]) []byte {
	return q.arena.Bytes(node.Value.payload)[:node.Value.length]
}

func (q *Queue) release(node *link.Node[item]) error {
	value := node.Value
	freeItem(node)

	if value.length > 0 {
		if err := q.arena.Free(value.payload); err != nil {
			return err
		}
	}

	return q.arena.Free(value.descriptor)
}

// Validate checks that every committed element's descriptor block still describes its
// payload, and then validates the underlying arena
func (q *Queue) Validate() error {
	count := 0
	for it := q.items.Iter(); it.Next(); {
		value := it.Node().Value
		encoded := q.arena.Bytes(value.descriptor)
		offset := int(binary.BigEndian.Uint32(encoded[0:4]))
		length := int(binary.BigEndian.Uint32(encoded[4:8]))

		if offset != value.payload.Offset || length != value.length {
			return errors.Errorf("element descriptor at offset %d records payload [%d, +%d) but the element holds [%d, +%d)",
				value.descriptor.Offset, offset, length, value.payload.Offset, value.length)
		}
		count++
	}

	if count != q.count {
		return errors.Errorf("the queue length is %d, but %d elements are linked", q.count, count)
	}

	return q.arena.Validate()
}

// WriteJSON populates a json object with information about this queue and its arena
func (q *Queue) WriteJSON(json *jwriter.ObjectState) {
	json.Name("Length").Int(q.count)
	json.Name("Reserved").Int(q.reserved)

	obj := json.Name("Arena").Object()
	q.arena.WriteJSON(&obj)
	obj.End()
}
