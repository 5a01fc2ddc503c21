package arena

import (
	"unsafe"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/link"
)

// DefaultDescriptorPoolSize is the number of block descriptors a pool holds when no capacity
// is requested
const DefaultDescriptorPoolSize = 128

// Span is a region of an arena's buffer, measured in bytes from the start of the buffer
type Span struct {
	Offset int
	Size   int
}

// End returns the offset of the first byte after the span
func (s Span) End() int {
	return s.Offset + s.Size
}

// IsEmpty returns true for a zero-length span
func (s Span) IsEmpty() bool {
	return s.Size == 0
}

// Adjacent returns true if other begins exactly where s ends
func (s Span) Adjacent(other Span) bool {
	return s.End() == other.Offset
}

type descriptor = link.Node[Span]

// DescriptorPool is a fixed-capacity slab of block descriptors shared by every arena created
// from it. Descriptors are the scarce resource that describes allocations and free regions;
// they are never carved out of the arena buffers themselves.
//
// A descriptor is free when its span is empty. Free descriptors wait on an internal list, so
// taking and returning one is O(1).
//
// A DescriptorPool is not safe for concurrent use. All arenas sharing a pool must be driven
// from the same goroutine or serialized by the caller.
type DescriptorPool struct {
	descriptors []descriptor
	free        link.Node[Span]
	inUse       int

	claimed []addressRange
}

// addressRange is the memory a claimed buffer covers, [start, end)
type addressRange struct {
	start uintptr
	end   uintptr
}

func rangeOf(buffer []byte) addressRange {
	start := uintptr(unsafe.Pointer(unsafe.SliceData(buffer)))
	return addressRange{start: start, end: start + uintptr(len(buffer))}
}

func (r addressRange) overlaps(other addressRange) bool {
	return r.start < other.end && other.start < r.end
}

// NewDescriptorPool creates a pool holding capacity descriptors. A capacity of 0 selects
// DefaultDescriptorPoolSize.
func NewDescriptorPool(capacity int) *DescriptorPool {
	if capacity <= 0 {
		capacity = DefaultDescriptorPoolSize
	}

	pool := &DescriptorPool{
		descriptors: make([]descriptor, capacity),
	}
	pool.free.Init()

	for i := range pool.descriptors {
		d := &pool.descriptors[i]
		d.Init()
		pool.free.PushBack(d)
	}

	return pool
}

// Capacity is the total number of descriptors in the pool
func (p *DescriptorPool) Capacity() int {
	return len(p.descriptors)
}

// InUse is the number of descriptors currently describing a free region or an allocation
// in some arena
func (p *DescriptorPool) InUse() int {
	return p.inUse
}

// Available is the number of descriptors that can still be handed out
func (p *DescriptorPool) Available() int {
	return len(p.descriptors) - p.inUse
}

func (p *DescriptorPool) acquire(span Span) *descriptor {
	d := p.free.PopFront()
	if d == nil {
		return nil
	}

	d.Value = span
	p.inUse++
	return d
}

func (p *DescriptorPool) release(d *descriptor) {
	if d.Value.IsEmpty() {
		panic("attempted to release a descriptor that is already free")
	}

	d.Unlink()
	d.Value = Span{}
	p.free.PushBack(d)
	p.inUse--
}

// claim records buffer as owned by an arena, refusing any buffer that shares memory with one
// already claimed
func (p *DescriptorPool) claim(buffer []byte) bool {
	requested := rangeOf(buffer)
	for _, claimed := range p.claimed {
		if claimed.overlaps(requested) {
			return false
		}
	}

	p.claimed = append(p.claimed, requested)
	return true
}

func (p *DescriptorPool) unclaim(buffer []byte) {
	released := rangeOf(buffer)
	for i, claimed := range p.claimed {
		if claimed == released {
			p.claimed = append(p.claimed[:i], p.claimed[i+1:]...)
			return
		}
	}
}
