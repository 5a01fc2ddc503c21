package memutils

import "math"

// Statistics sums the coarse usage of one or more arenas
type Statistics struct {
	// ArenaCount is the number of arenas that contributed to these statistics
	ArenaCount int
	// ArenaBytes is the total size of the backing buffers in bytes
	ArenaBytes int
	// AllocationCount is the number of live allocations
	AllocationCount int
	// AllocationBytes is the number of bytes held by live allocations
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.ArenaCount = 0
	s.ArenaBytes = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.ArenaCount += other.ArenaCount
	s.ArenaBytes += other.ArenaBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
}

// FreeBytes is the number of bytes not held by any allocation
func (s *Statistics) FreeBytes() int {
	return s.ArenaBytes - s.AllocationBytes
}

// DetailedStatistics extends Statistics with the shape of the free and allocated regions,
// which is what fragmentation shows up in
type DetailedStatistics struct {
	Statistics
	FreeRegionCount   int
	AllocationSizeMin int
	AllocationSizeMax int
	FreeRegionSizeMin int
	FreeRegionSizeMax int
}

// Clear must be called before a DetailedStatistics is populated so the min values start high
func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeRegionCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.FreeRegionSizeMin = math.MaxInt
	s.FreeRegionSizeMax = 0
}

func (s *DetailedStatistics) AddFreeRegion(size int) {
	s.FreeRegionCount++

	if size < s.FreeRegionSizeMin {
		s.FreeRegionSizeMin = size
	}

	if size > s.FreeRegionSizeMax {
		s.FreeRegionSizeMax = size
	}
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeRegionCount += other.FreeRegionCount

	if other.FreeRegionSizeMin < s.FreeRegionSizeMin {
		s.FreeRegionSizeMin = other.FreeRegionSizeMin
	}

	if other.FreeRegionSizeMax > s.FreeRegionSizeMax {
		s.FreeRegionSizeMax = other.FreeRegionSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}

// LargestFreeRatio is the size of the largest free region divided by all free bytes. 1 means
// the free space is one contiguous region; values near 0 mean it is badly fragmented.
func (s *DetailedStatistics) LargestFreeRatio() float64 {
	free := s.FreeBytes()
	if free <= 0 || s.FreeRegionCount == 0 {
		return 0
	}
	return float64(s.FreeRegionSizeMax) / float64(free)
}
