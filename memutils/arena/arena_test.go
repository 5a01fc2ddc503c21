package arena_test

import (
	"io"
	"math"
	"testing"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/arena"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard))
}

func newArena(t *testing.T, pool *arena.DescriptorPool, size int, options arena.CreateOptions) *arena.Arena {
	t.Helper()

	a, err := arena.New(testLogger(), pool, make([]byte, size), options)
	require.NoError(t, err)
	require.NoError(t, a.Validate())
	return a
}

func detailedStats(a *arena.Arena) memutils.DetailedStatistics {
	var stats memutils.DetailedStatistics
	stats.Clear()
	a.AddDetailedStatistics(&stats)
	return stats
}

func TestArenaInitFailures(t *testing.T) {
	pool := arena.NewDescriptorPool(8)

	_, err := arena.New(testLogger(), pool, nil, arena.CreateOptions{})
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)

	_, err = arena.New(testLogger(), nil, make([]byte, 10), arena.CreateOptions{})
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)

	_, err = arena.New(testLogger(), pool, make([]byte, 10), arena.CreateOptions{Alignment: 3})
	require.True(t, cerrors.Is(err, memutils.ErrInvalidArgument))
	require.ErrorIs(t, err, memutils.PowerOfTwoError)

	buffer := make([]byte, 10)
	a, err := arena.New(testLogger(), pool, buffer, arena.CreateOptions{})
	require.NoError(t, err)

	_, err = arena.New(testLogger(), pool, buffer, arena.CreateOptions{})
	require.ErrorIs(t, err, memutils.ErrBufferInUse)

	require.NoError(t, a.Destroy())
	require.False(t, a.IsReady())

	again, err := arena.New(testLogger(), pool, buffer, arena.CreateOptions{})
	require.NoError(t, err)
	require.True(t, again.IsReady())
}

func TestArenaRejectsOverlappingBuffers(t *testing.T) {
	pool := arena.NewDescriptorPool(8)
	buffer := make([]byte, 100)

	whole, err := arena.New(testLogger(), pool, buffer, arena.CreateOptions{})
	require.NoError(t, err)

	_, err = arena.New(testLogger(), pool, buffer[1:50], arena.CreateOptions{})
	require.ErrorIs(t, err, memutils.ErrBufferInUse)
	_, err = arena.New(testLogger(), pool, buffer[99:], arena.CreateOptions{})
	require.ErrorIs(t, err, memutils.ErrBufferInUse)
	require.Equal(t, 1, pool.InUse())

	require.NoError(t, whole.Destroy())

	front, err := arena.New(testLogger(), pool, buffer[:50], arena.CreateOptions{})
	require.NoError(t, err)
	back, err := arena.New(testLogger(), pool, buffer[50:], arena.CreateOptions{})
	require.NoError(t, err)

	_, err = arena.New(testLogger(), pool, buffer[40:60], arena.CreateOptions{})
	require.ErrorIs(t, err, memutils.ErrBufferInUse)

	require.NoError(t, front.Destroy())
	require.NoError(t, back.Destroy())
	require.Equal(t, 0, pool.InUse())
}

func TestArenaInitNeedsDescriptor(t *testing.T) {
	pool := arena.NewDescriptorPool(1)
	newArena(t, pool, 10, arena.CreateOptions{})

	_, err := arena.New(testLogger(), pool, make([]byte, 10), arena.CreateOptions{})
	require.ErrorIs(t, err, memutils.ErrDescriptorPoolExhausted)
}

func TestArenaBasicAlloc(t *testing.T) {
	pool := arena.NewDescriptorPool(8)
	a := newArena(t, pool, 1000, arena.CreateOptions{})

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			ArenaCount:      1,
			ArenaBytes:      1000,
			AllocationCount: 0,
			AllocationBytes: 0,
		},
		FreeRegionCount:   1,
		AllocationSizeMin: math.MaxInt,
		AllocationSizeMax: 0,
		FreeRegionSizeMin: 1000,
		FreeRegionSizeMax: 1000,
	}, detailedStats(a))

	span, err := a.Alloc(100)
	require.NoError(t, err)
	require.Equal(t, arena.Span{Offset: 0, Size: 100}, span)
	require.NoError(t, a.Validate())
	require.Equal(t, 2, pool.InUse())
	require.Equal(t, 6, pool.Available())

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			ArenaCount:      1,
			ArenaBytes:      1000,
			AllocationCount: 1,
			AllocationBytes: 100,
		},
		FreeRegionCount:   1,
		AllocationSizeMin: 100,
		AllocationSizeMax: 100,
		FreeRegionSizeMin: 900,
		FreeRegionSizeMax: 900,
	}, detailedStats(a))

	require.NoError(t, a.Free(span))
	require.NoError(t, a.Validate())
	require.Equal(t, 1, pool.InUse())
	require.Equal(t, 1000, a.SumFreeSize())
	require.Equal(t, 1, a.FreeRegionsCount())
	require.True(t, a.IsEmpty())
}

func TestArenaZeroSizeFails(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(4), 100, arena.CreateOptions{})

	_, err := a.Alloc(0)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)

	_, err = a.Alloc(-5)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)
}

func TestArenaExactFitUsesNoExtraDescriptor(t *testing.T) {
	pool := arena.NewDescriptorPool(1)
	a := newArena(t, pool, 64, arena.CreateOptions{})

	span, err := a.Alloc(64)
	require.NoError(t, err)
	require.Equal(t, arena.Span{Offset: 0, Size: 64}, span)
	require.Equal(t, 0, a.FreeRegionsCount())
	require.NoError(t, a.Validate())

	_, err = a.Alloc(1)
	require.ErrorIs(t, err, memutils.ErrAllocationFailure)
}

func TestArenaDescriptorExhaustion(t *testing.T) {
	pool := arena.NewDescriptorPool(2)
	a := newArena(t, pool, 100, arena.CreateOptions{})

	_, err := a.Alloc(10)
	require.NoError(t, err)

	// Splitting the remaining 90 bytes needs a third descriptor
	_, err = a.Alloc(10)
	require.ErrorIs(t, err, memutils.ErrDescriptorPoolExhausted)
	require.True(t, cerrors.Is(err, memutils.ErrAllocationFailure))
	require.NoError(t, a.Validate())

	// An exact fit needs no new descriptor
	_, err = a.Alloc(90)
	require.NoError(t, err)
	require.NoError(t, a.Validate())
}

func TestArenaNotEnoughSpace(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(8), 100, arena.CreateOptions{})

	_, err := a.Alloc(101)
	require.ErrorIs(t, err, memutils.ErrAllocationFailure)
	require.False(t, errors.Is(err, memutils.ErrDescriptorPoolExhausted))
}

func TestArenaFreeUnknownSpan(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(8), 100, arena.CreateOptions{})

	span, err := a.Alloc(10)
	require.NoError(t, err)

	err = a.Free(arena.Span{Offset: 5, Size: 10})
	require.ErrorIs(t, err, memutils.ErrNotFound)

	require.NoError(t, a.Free(span))
	err = a.Free(span)
	require.ErrorIs(t, err, memutils.ErrNotFound)
}

var coalesceCases = map[string]struct {
	FreeOrder []int
}{
	"LowerFirst":  {FreeOrder: []int{0, 1}},
	"HigherFirst": {FreeOrder: []int{1, 0}},
}

func TestArenaCoalesceAdjacent(t *testing.T) {
	for name, testCase := range coalesceCases {
		t.Run(name, func(t *testing.T) {
			pool := arena.NewDescriptorPool(8)
			a := newArena(t, pool, 100, arena.CreateOptions{})

			spans := make([]arena.Span, 3)
			var err error
			spans[0], err = a.Alloc(10)
			require.NoError(t, err)
			spans[1], err = a.Alloc(20)
			require.NoError(t, err)
			// Fill the rest so no trailing free block takes part in the merge
			spans[2], err = a.Alloc(70)
			require.NoError(t, err)
			require.Equal(t, 0, a.FreeRegionsCount())

			require.NoError(t, a.Free(spans[testCase.FreeOrder[0]]))
			require.Equal(t, 1, a.FreeRegionsCount())
			inUse := pool.InUse()

			require.NoError(t, a.Free(spans[testCase.FreeOrder[1]]))
			require.NoError(t, a.Validate())
			require.Equal(t, inUse-1, pool.InUse())
			require.Equal(t, 1, a.FreeRegionsCount())

			var free []arena.Span
			require.NoError(t, a.VisitAllRegions(func(span arena.Span, isFree bool) error {
				if isFree {
					free = append(free, span)
				}
				return nil
			}))
			require.Equal(t, []arena.Span{{Offset: 0, Size: 30}}, free)
		})
	}
}

func TestArenaCoalesceBothSides(t *testing.T) {
	pool := arena.NewDescriptorPool(8)
	a := newArena(t, pool, 40, arena.CreateOptions{})

	var spans []arena.Span
	for i := 0; i < 4; i++ {
		span, err := a.Alloc(10)
		require.NoError(t, err)
		spans = append(spans, span)
	}

	require.NoError(t, a.Free(spans[0]))
	require.NoError(t, a.Free(spans[2]))
	require.Equal(t, 2, a.FreeRegionsCount())
	require.Equal(t, 4, pool.InUse())

	// Freeing the block between two free blocks merges all three
	require.NoError(t, a.Free(spans[1]))
	require.NoError(t, a.Validate())
	require.Equal(t, 1, a.FreeRegionsCount())
	require.Equal(t, 2, pool.InUse())
	require.Equal(t, 30, a.LargestFreeRegion())
}

func TestArenaFragmentation(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(16), 100, arena.CreateOptions{})

	var spans []arena.Span
	for i := 0; i < 10; i++ {
		span, err := a.Alloc(10)
		require.NoError(t, err)
		spans = append(spans, span)
	}

	for i := 0; i < 10; i += 2 {
		require.NoError(t, a.Free(spans[i]))
	}

	// 50 bytes are free, but never more than 10 in a row
	require.Equal(t, 50, a.SumFreeSize())
	require.Equal(t, 5, a.FreeRegionsCount())
	_, err := a.Alloc(20)
	require.ErrorIs(t, err, memutils.ErrAllocationFailure)

	stats := detailedStats(a)
	require.InDelta(t, 0.2, stats.LargestFreeRatio(), 0.0001)

	// First fit reuses the lowest hole
	span, err := a.Alloc(10)
	require.NoError(t, err)
	require.Equal(t, 0, span.Offset)
	require.NoError(t, a.Validate())
}

func TestArenaFirstFitVersusBestFit(t *testing.T) {
	layout := func(strategy arena.AllocationStrategy) *arena.Arena {
		a := newArena(t, arena.NewDescriptorPool(16), 100, arena.CreateOptions{Strategy: strategy})
		big, err := a.Alloc(30)
		require.NoError(t, err)
		_, err = a.Alloc(10)
		require.NoError(t, err)
		small, err := a.Alloc(10)
		require.NoError(t, err)
		_, err = a.Alloc(50)
		require.NoError(t, err)

		require.NoError(t, a.Free(big))
		require.NoError(t, a.Free(small))
		return a
	}

	firstFit := layout(arena.AllocationStrategyFirstFit)
	span, err := firstFit.Alloc(8)
	require.NoError(t, err)
	require.Equal(t, 0, span.Offset)

	bestFit := layout(arena.AllocationStrategyBestFit)
	span, err = bestFit.Alloc(8)
	require.NoError(t, err)
	require.Equal(t, 40, span.Offset)
	require.NoError(t, bestFit.Validate())
}

func TestArenaAlignment(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(8), 64, arena.CreateOptions{Alignment: 8})
	require.Equal(t, uint(8), a.Alignment())

	first, err := a.Alloc(3)
	require.NoError(t, err)
	require.Equal(t, arena.Span{Offset: 0, Size: 8}, first)

	second, err := a.Alloc(9)
	require.NoError(t, err)
	require.Equal(t, arena.Span{Offset: 8, Size: 16}, second)
	require.True(t, memutils.IsAligned(second.Offset, 8))
}

func TestArenaRoundTripNeverOverlaps(t *testing.T) {
	pool := arena.NewDescriptorPool(32)
	a := newArena(t, pool, 256, arena.CreateOptions{})

	sizes := []int{7, 31, 1, 64, 13, 40, 2, 50}
	live := map[int]arena.Span{}

	for round := 0; round < 5; round++ {
		for i, size := range sizes {
			span, err := a.Alloc(size)
			require.NoError(t, err)
			for _, other := range live {
				overlap := span.Offset < other.End() && other.Offset < span.End()
				require.False(t, overlap, "span %v overlaps %v", span, other)
			}
			live[i] = span
			require.NoError(t, a.Validate())
		}

		// Free every other allocation, then the rest, in a different order each round
		for i := round % 2; i < len(sizes); i += 2 {
			require.NoError(t, a.Free(live[i]))
			delete(live, i)
		}
		for i := range live {
			require.NoError(t, a.Free(live[i]))
			delete(live, i)
		}

		require.NoError(t, a.Validate())
		require.Equal(t, 1, pool.InUse())
		require.Equal(t, 1, a.FreeRegionsCount())
		require.LessOrEqual(t, pool.InUse(), pool.Capacity())
	}
}

func TestArenaFreeZeroesMemory(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(8), 16, arena.CreateOptions{})

	span, err := a.Alloc(4)
	require.NoError(t, err)
	copy(a.Bytes(span), []byte{1, 2, 3, 4})
	require.Equal(t, []byte{1, 2, 3, 4}, a.Bytes(span))
	require.Equal(t, 4, cap(a.Bytes(span)))

	require.NoError(t, a.Free(span))
	require.Equal(t, []byte{memutils.DebugFill, memutils.DebugFill, memutils.DebugFill, memutils.DebugFill}, a.Bytes(span))
}

func TestArenaBytesOutOfRangePanics(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(8), 16, arena.CreateOptions{})

	require.Panics(t, func() {
		a.Bytes(arena.Span{Offset: 10, Size: 10})
	})
}

func TestArenaClear(t *testing.T) {
	pool := arena.NewDescriptorPool(8)
	a := newArena(t, pool, 100, arena.CreateOptions{})

	for i := 0; i < 4; i++ {
		_, err := a.Alloc(10)
		require.NoError(t, err)
	}

	a.Clear()
	require.NoError(t, a.Validate())
	require.True(t, a.IsEmpty())
	require.Equal(t, 1, pool.InUse())
	require.Equal(t, 100, a.LargestFreeRegion())
}

func TestArenaDestroyWithLiveAllocations(t *testing.T) {
	pool := arena.NewDescriptorPool(8)
	a := newArena(t, pool, 100, arena.CreateOptions{})

	span, err := a.Alloc(10)
	require.NoError(t, err)

	var live []arena.Span
	a.DebugLogAllAllocations(func(logger *slog.Logger, span arena.Span) {
		require.NotNil(t, logger)
		live = append(live, span)
	})
	require.Equal(t, []arena.Span{span}, live)

	require.Error(t, a.Destroy())
	require.True(t, a.IsReady())

	require.NoError(t, a.Free(span))
	require.NoError(t, a.Destroy())
	require.Equal(t, 0, pool.InUse())

	_, err = a.Alloc(1)
	require.ErrorIs(t, err, memutils.ErrNotReady)
}

func TestArenaWriteJSON(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(8), 32, arena.CreateOptions{})
	_, err := a.Alloc(8)
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	a.WriteJSON(&obj)
	obj.End()

	require.NoError(t, writer.Error())
	require.JSONEq(t, `{
		"TotalBytes": 32,
		"UnusedBytes": 24,
		"Allocations": 1,
		"UnusedRanges": 1,
		"LargestUnusedRange": 24,
		"Strategy": "AllocationStrategyFirstFit",
		"Regions": [
			{"Offset": 0, "Size": 8, "Free": false},
			{"Offset": 8, "Size": 24, "Free": true}
		]
	}`, string(writer.Bytes()))
}

func TestArenaHexdump(t *testing.T) {
	a := newArena(t, arena.NewDescriptorPool(8), 4, arena.CreateOptions{})
	span, err := a.Alloc(4)
	require.NoError(t, err)
	copy(a.Bytes(span), "ezmk")

	require.Contains(t, a.Hexdump(), "65 7a 6d 6b")
	require.Contains(t, a.Hexdump(), "|ezmk|")
}

func TestStatisticsAccumulate(t *testing.T) {
	pool := arena.NewDescriptorPool(8)
	first := newArena(t, pool, 100, arena.CreateOptions{})
	second := newArena(t, pool, 50, arena.CreateOptions{})

	_, err := first.Alloc(40)
	require.NoError(t, err)
	_, err = second.Alloc(5)
	require.NoError(t, err)

	var stats memutils.Statistics
	first.AddStatistics(&stats)
	second.AddStatistics(&stats)

	require.Equal(t, memutils.Statistics{
		ArenaCount:      2,
		ArenaBytes:      150,
		AllocationCount: 2,
		AllocationBytes: 45,
	}, stats)
	require.Equal(t, 105, stats.FreeBytes())
}
