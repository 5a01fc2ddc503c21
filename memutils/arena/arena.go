package arena

import (
	"context"
	"encoding/hex"
	"sort"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/link"
)

// CreateOptions contains optional settings when creating an Arena. It is valid to leave all
// the fields blank.
type CreateOptions struct {
	// Alignment rounds every allocation size up to a multiple of this value, which keeps every
	// allocation offset aligned as well. It must be a power of two. 0 and 1 disable alignment.
	Alignment uint
	// Strategy selects how a free block is chosen for a new allocation
	Strategy AllocationStrategy
}

// Arena manages one fixed byte buffer as a list of free blocks and a list of allocated blocks.
// It never grows beyond the buffer it was created with.
//
// The free list is kept sorted by offset and adjacent free blocks are always merged as soon
// as a block is freed, so at rest no two free blocks touch. Together the two lists describe
// every byte of the buffer exactly once.
//
// An Arena is not safe for concurrent use.
type Arena struct {
	logger    *slog.Logger
	pool      *DescriptorPool
	buffer    []byte
	alignment uint
	strategy  AllocationStrategy

	freeList  link.Node[Span]
	allocList link.Node[Span]

	freeCount  int
	freeBytes  int
	allocCount int
}

var _ memutils.Validatable = &Arena{}

// New creates an Arena over buffer, borrowing block descriptors from pool. The whole buffer
// starts out as a single free block.
//
// New fails if buffer is empty, if another arena created from the same pool still manages
// buffer, or if the pool has no descriptor left.
func New(logger *slog.Logger, pool *DescriptorPool, buffer []byte, options CreateOptions) (*Arena, error) {
	if pool == nil {
		return nil, cerrors.Wrap(memutils.ErrInvalidArgument, "arena requires a descriptor pool")
	}
	if len(buffer) == 0 {
		return nil, cerrors.Wrap(memutils.ErrInvalidArgument, "arena requires a non-empty buffer")
	}

	alignment := options.Alignment
	if alignment == 0 {
		alignment = 1
	}
	if err := memutils.CheckPow2(alignment, "alignment"); err != nil {
		return nil, cerrors.Mark(err, memutils.ErrInvalidArgument)
	}

	if !pool.claim(buffer) {
		return nil, cerrors.Wrapf(memutils.ErrBufferInUse, "buffer of %d bytes", len(buffer))
	}

	a := &Arena{
		logger:    memutils.LoggerOrDiscard(logger),
		pool:      pool,
		buffer:    buffer,
		alignment: alignment,
		strategy:  options.Strategy,
	}
	a.freeList.Init()
	a.allocList.Init()

	whole := pool.acquire(Span{Offset: 0, Size: len(buffer)})
	if whole == nil {
		pool.unclaim(buffer)
		return nil, cerrors.Wrap(memutils.ErrDescriptorPoolExhausted, "no descriptor for the initial free block")
	}

	a.freeList.PushBack(whole)
	a.freeCount = 1
	a.freeBytes = len(buffer)

	return a, nil
}

// IsReady returns true if the arena has a backing buffer
func (a *Arena) IsReady() bool {
	return a != nil && len(a.buffer) > 0
}

// Size returns the size in bytes of the backing buffer
func (a *Arena) Size() int {
	return len(a.buffer)
}

// Alignment returns the allocation granularity in bytes
func (a *Arena) Alignment() uint {
	return a.alignment
}

// AllocationCount returns the number of live allocations
func (a *Arena) AllocationCount() int {
	return a.allocCount
}

// FreeRegionsCount returns the number of separate free blocks
func (a *Arena) FreeRegionsCount() int {
	return a.freeCount
}

// SumFreeSize returns the number of free bytes, whether or not they are contiguous
func (a *Arena) SumFreeSize() int {
	return a.freeBytes
}

// IsEmpty returns true if there are no live allocations
func (a *Arena) IsEmpty() bool {
	return a.allocCount == 0
}

// LargestFreeRegion returns the size of the largest free block: the largest allocation
// that can currently succeed
func (a *Arena) LargestFreeRegion() int {
	largest := 0
	for it := a.freeList.Iter(); it.Next(); {
		if size := it.Node().Value.Size; size > largest {
			largest = size
		}
	}
	return largest
}

// Bytes returns the region of the buffer described by span. The returned slice's capacity is
// limited to the span so appends cannot spill into neighbouring blocks.
func (a *Arena) Bytes(span Span) []byte {
	if span.Offset < 0 || span.Size < 0 || span.End() > len(a.buffer) {
		panic(errors.Errorf("span [%d, %d) is outside of the arena buffer of %d bytes", span.Offset, span.End(), len(a.buffer)))
	}

	return a.buffer[span.Offset:span.End():span.End()]
}

// Alloc carves size bytes out of the arena and returns the span they occupy.
//
// The free block is chosen according to the arena's AllocationStrategy. When the chosen block
// is larger than needed, the remainder stays in the free list under a descriptor borrowed
// from the pool.
func (a *Arena) Alloc(size int) (Span, error) {
	if !a.IsReady() {
		return Span{}, memutils.ErrNotReady
	}
	if size < 1 {
		return Span{}, cerrors.Wrapf(memutils.ErrInvalidArgument, "invalid allocation size: %d", size)
	}

	size = memutils.AlignUp(size, a.alignment)

	block := a.findFreeBlock(size)
	if block == nil {
		return Span{}, cerrors.Wrapf(memutils.ErrAllocationFailure,
			"no free block of %d bytes (free: %d bytes in %d blocks)", size, a.freeBytes, a.freeCount)
	}

	if block.Value.Size > size {
		remainder := a.pool.acquire(Span{Offset: block.Value.Offset + size, Size: block.Value.Size - size})
		if remainder == nil {
			err := cerrors.Wrapf(memutils.ErrDescriptorPoolExhausted,
				"cannot split a %d byte block for a %d byte allocation", block.Value.Size, size)
			return Span{}, cerrors.Mark(err, memutils.ErrAllocationFailure)
		}

		// The remainder takes the block's place, which keeps the free list in address order
		link.Append(remainder, block)
		block.Value.Size = size
		a.freeCount++
	}

	block.Unlink()
	a.allocList.PushBack(block)

	a.freeCount--
	a.freeBytes -= size
	a.allocCount++

	memutils.DebugValidate(a)

	return block.Value, nil
}

func (a *Arena) findFreeBlock(size int) *descriptor {
	var best *descriptor

	for it := a.freeList.Iter(); it.Next(); {
		candidate := it.Node()
		if candidate.Value.Size < size {
			continue
		}

		if a.strategy != AllocationStrategyBestFit {
			return candidate
		}

		if best == nil || candidate.Value.Size < best.Value.Size {
			best = candidate
		}
	}

	return best
}

// Free returns the allocation starting at span.Offset to the free list and merges it with
// any free neighbours. The freed bytes are overwritten with memutils.DebugFill.
func (a *Arena) Free(span Span) error {
	if !a.IsReady() {
		return memutils.ErrNotReady
	}

	var block *descriptor
	for it := a.allocList.Iter(); it.Next(); {
		if it.Node().Value.Offset == span.Offset {
			block = it.Node()
			break
		}
	}

	if block == nil {
		return cerrors.Wrapf(memutils.ErrNotFound, "no allocation at offset %d", span.Offset)
	}

	fill := a.Bytes(block.Value)
	for i := range fill {
		fill[i] = memutils.DebugFill
	}

	block.Unlink()
	a.allocCount--
	a.freeBytes += block.Value.Size

	a.insertFreeBlock(block)
	a.coalesce(block)

	memutils.DebugValidate(a)

	return nil
}

func (a *Arena) insertFreeBlock(block *descriptor) {
	a.freeCount++

	for it := a.freeList.Iter(); it.Next(); {
		if it.Node().Value.Offset > block.Value.Offset {
			link.Append(block, it.Node().Prev())
			return
		}
	}

	a.freeList.PushBack(block)
}

func (a *Arena) coalesce(block *descriptor) {
	// Absorb successors
	for next := block.Next(); next != &a.freeList && block.Value.Adjacent(next.Value); next = block.Next() {
		block.Value.Size += next.Value.Size
		a.pool.release(next)
		a.freeCount--
	}

	// Fold into predecessors
	for prev := block.Prev(); prev != &a.freeList && prev.Value.Adjacent(block.Value); prev = block.Prev() {
		prev.Value.Size += block.Value.Size
		a.pool.release(block)
		a.freeCount--
		block = prev
	}
}

// Clear instantly frees all allocations, leaving the whole buffer as a single free block
func (a *Arena) Clear() {
	if !a.IsReady() {
		return
	}

	for node := a.allocList.PopFront(); node != nil; node = a.allocList.PopFront() {
		a.freeList.PushBack(node)
	}

	first := a.freeList.PopFront()
	for node := a.freeList.PopFront(); node != nil; node = a.freeList.PopFront() {
		a.pool.release(node)
	}

	first.Value = Span{Offset: 0, Size: len(a.buffer)}
	a.freeList.PushBack(first)

	fill := a.buffer
	for i := range fill {
		fill[i] = memutils.DebugFill
	}

	a.freeCount = 1
	a.freeBytes = len(a.buffer)
	a.allocCount = 0
}

// Destroy returns the arena's descriptors to the pool and releases its claim on the buffer.
// It fails, logging every unreleased allocation, if any allocation is still live.
func (a *Arena) Destroy() error {
	if !a.IsReady() {
		return nil
	}

	if !a.IsEmpty() {
		a.DebugLogAllAllocations(func(logger *slog.Logger, span Span) {
			logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
				slog.Int("offset", span.Offset),
				slog.Int("size", span.Size),
			)
		})

		return errors.Errorf("%d allocations were not freed before the destruction of this arena", a.allocCount)
	}

	for node := a.freeList.PopFront(); node != nil; node = a.freeList.PopFront() {
		a.pool.release(node)
	}

	a.pool.unclaim(a.buffer)
	a.buffer = nil
	a.freeCount = 0
	a.freeBytes = 0
	return nil
}

// Validate performs internal consistency checks: the free list is sorted and fully merged,
// the bookkeeping counters are right, and the free and allocated blocks tile the buffer
// with no gaps and no overlaps.
func (a *Arena) Validate() error {
	if !a.IsReady() {
		return errors.New("arena has no backing buffer")
	}

	var spans []Span
	var freeCount, freeBytes, allocCount int

	var prev Span
	for it := a.freeList.Iter(); it.Next(); {
		span := it.Node().Value
		if span.Size < 1 {
			return errors.Errorf("free block at offset %d has invalid size %d", span.Offset, span.Size)
		}
		if freeCount > 0 {
			if prev.Offset >= span.Offset {
				return errors.Errorf("free block at offset %d is listed after the free block at offset %d", span.Offset, prev.Offset)
			}
			if prev.Adjacent(span) {
				return errors.Errorf("free blocks at offsets %d and %d are adjacent but were not merged", prev.Offset, span.Offset)
			}
		}

		freeCount++
		freeBytes += span.Size
		spans = append(spans, span)
		prev = span
	}

	for it := a.allocList.Iter(); it.Next(); {
		span := it.Node().Value
		if span.Size < 1 {
			return errors.Errorf("allocation at offset %d has invalid size %d", span.Offset, span.Size)
		}
		allocCount++
		spans = append(spans, span)
	}

	if freeCount != a.freeCount {
		return errors.Errorf("the free block count of the arena is %d, but there were %d free blocks", a.freeCount, freeCount)
	}
	if freeBytes != a.freeBytes {
		return errors.Errorf("the free size of the arena is %d, but the free blocks added up to %d", a.freeBytes, freeBytes)
	}
	if allocCount != a.allocCount {
		return errors.Errorf("the allocation count of the arena is %d, but there were %d allocated blocks", a.allocCount, allocCount)
	}

	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Offset < spans[j].Offset
	})

	nextOffset := 0
	for _, span := range spans {
		if span.Offset != nextOffset {
			return errors.Errorf("block at offset %d should begin at offset %d", span.Offset, nextOffset)
		}
		nextOffset = span.End()
	}

	if nextOffset != len(a.buffer) {
		return errors.Errorf("the arena buffer is %d bytes, but the blocks only added up to %d", len(a.buffer), nextOffset)
	}

	return nil
}

// VisitAllRegions calls handleRegion once for every free and allocated block, in address
// order. This sorts a copy of the block lists and should be used for diagnostics only.
func (a *Arena) VisitAllRegions(handleRegion func(span Span, free bool) error) error {
	type region struct {
		span Span
		free bool
	}

	regions := make([]region, 0, a.freeCount+a.allocCount)
	for it := a.freeList.Iter(); it.Next(); {
		regions = append(regions, region{span: it.Node().Value, free: true})
	}
	for it := a.allocList.Iter(); it.Next(); {
		regions = append(regions, region{span: it.Node().Value})
	}

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].span.Offset < regions[j].span.Offset
	})

	for _, r := range regions {
		if err := handleRegion(r.span, r.free); err != nil {
			return err
		}
	}

	return nil
}

// AddStatistics sums this arena's usage into stats
func (a *Arena) AddStatistics(stats *memutils.Statistics) {
	stats.ArenaCount++
	stats.ArenaBytes += len(a.buffer)
	stats.AllocationCount += a.allocCount
	stats.AllocationBytes += len(a.buffer) - a.freeBytes
}

// AddDetailedStatistics sums this arena's usage, including per-block sizes, into stats
func (a *Arena) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.ArenaCount++
	stats.ArenaBytes += len(a.buffer)

	for it := a.freeList.Iter(); it.Next(); {
		stats.AddFreeRegion(it.Node().Value.Size)
	}
	for it := a.allocList.Iter(); it.Next(); {
		stats.AddAllocation(it.Node().Value.Size)
	}
}

// WriteJSON populates a json object with information about this arena
func (a *Arena) WriteJSON(json *jwriter.ObjectState) {
	json.Name("TotalBytes").Int(len(a.buffer))
	json.Name("UnusedBytes").Int(a.freeBytes)
	json.Name("Allocations").Int(a.allocCount)
	json.Name("UnusedRanges").Int(a.freeCount)
	json.Name("LargestUnusedRange").Int(a.LargestFreeRegion())
	json.Name("Strategy").String(a.strategy.String())

	regions := json.Name("Regions").Array()
	_ = a.VisitAllRegions(func(span Span, free bool) error {
		obj := regions.Object()
		obj.Name("Offset").Int(span.Offset)
		obj.Name("Size").Int(span.Size)
		obj.Name("Free").Bool(free)
		obj.End()
		return nil
	})
	regions.End()
}

// Hexdump renders the whole backing buffer in the canonical hex+ASCII layout
func (a *Arena) Hexdump() string {
	return hex.Dump(a.buffer)
}

// DebugLogAllAllocations hands every live allocation, in allocation order, to logFunc along
// with the arena's logger
func (a *Arena) DebugLogAllAllocations(logFunc func(logger *slog.Logger, span Span)) {
	for it := a.allocList.Iter(); it.Next(); {
		logFunc(a.logger, it.Node().Value)
	}
}
