package arena

// AllocationStrategy selects which free block Arena.Alloc carves a new allocation from
type AllocationStrategy uint32

const (
	// AllocationStrategyFirstFit takes the lowest-addressed free block that is large enough.
	// The free list is kept in address order, so this packs allocations toward the start of
	// the buffer. This is the default.
	AllocationStrategyFirstFit AllocationStrategy = iota
	// AllocationStrategyBestFit takes the smallest free block that is large enough, at the
	// expense of walking the whole free list on every allocation
	AllocationStrategyBestFit
)

var allocationStrategyMapping = map[AllocationStrategy]string{
	AllocationStrategyFirstFit: "AllocationStrategyFirstFit",
	AllocationStrategyBestFit:  "AllocationStrategyBestFit",
}

func (s AllocationStrategy) String() string {
	return allocationStrategyMapping[s]
}
