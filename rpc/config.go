package rpc

import (
	"strings"

	"github.com/BurntSushi/toml"
	cerrors "github.com/cockroachdb/errors"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/arena"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/backing"
)

// ChecksumKind names one of the built-in frame checksums
type ChecksumKind string

const (
	ChecksumNone  ChecksumKind = "none"
	ChecksumCRC32 ChecksumKind = "crc32"
	ChecksumCRC16 ChecksumKind = "crc16"
)

// Checksum returns the implementation for the kind, or nil for ChecksumNone
func (k ChecksumKind) Checksum() (Checksum, error) {
	switch k {
	case "", ChecksumNone:
		return nil, nil
	case ChecksumCRC32:
		return CRC32{}, nil
	case ChecksumCRC16:
		return CRC16{}, nil
	}

	return nil, cerrors.Wrapf(memutils.ErrInvalidArgument, "unknown checksum %q", string(k))
}

var allocationStrategyNames = map[arena.AllocationStrategy]string{
	arena.AllocationStrategyFirstFit: "first_fit",
	arena.AllocationStrategyBestFit:  "best_fit",
}

func parseAllocationStrategy(name string) (arena.AllocationStrategy, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for strategy, strategyName := range allocationStrategyNames {
		if strategyName == name {
			return strategy, true
		}
	}
	return 0, false
}

const (
	DefaultBufferSize = 2048
	DefaultMaxRecords = 16
	DefaultWaitTicks  = 3000
)

// Config holds the engine's tunables. Zero fields take their defaults when the engine is
// created.
type Config struct {
	// BufferSize is the number of bytes OpenBuffer provides. The engine splits its buffer
	// in half between the transmit and receive queues.
	BufferSize int
	// BufferFile, if set, makes OpenBuffer map the buffer from this file instead of the heap
	BufferFile string
	// MaxRecords is the number of requests that may wait for a response at once
	MaxRecords int
	// WaitTicks is how many clock ticks a request waits for its response before it is
	// released. A request is released once more than WaitTicks ticks have passed, so 1 is
	// the shortest wait. Zero selects DefaultWaitTicks; a configuration file must not set 0.
	WaitTicks uint64
	// Checksum selects the trailer appended to every frame
	Checksum ChecksumKind
	// Encrypted sets the encrypted flag on outbound headers. Payloads are not transformed.
	Encrypted bool
	// DescriptorPoolSize is the number of block descriptors shared by both queues
	DescriptorPoolSize int
	// Alignment rounds every queue allocation up to a multiple of this power of two
	Alignment uint
	// Strategy selects how the queues' arenas choose a free block
	Strategy arena.AllocationStrategy
}

// DefaultConfig returns the configuration an engine uses when no field is overridden
func DefaultConfig() Config {
	return Config{
		BufferSize:         DefaultBufferSize,
		MaxRecords:         DefaultMaxRecords,
		WaitTicks:          DefaultWaitTicks,
		Checksum:           ChecksumNone,
		DescriptorPoolSize: arena.DefaultDescriptorPoolSize,
		Alignment:          1,
		Strategy:           arena.AllocationStrategyFirstFit,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.BufferSize == 0 {
		c.BufferSize = defaults.BufferSize
	}
	if c.MaxRecords == 0 {
		c.MaxRecords = defaults.MaxRecords
	}
	if c.WaitTicks == 0 {
		c.WaitTicks = defaults.WaitTicks
	}
	if c.Checksum == "" {
		c.Checksum = defaults.Checksum
	}
	if c.DescriptorPoolSize == 0 {
		c.DescriptorPoolSize = defaults.DescriptorPoolSize
	}
	if c.Alignment == 0 {
		c.Alignment = defaults.Alignment
	}

	return c
}

// Validate checks every field that has no sensible fallback
func (c Config) Validate() error {
	if c.BufferSize < 2 {
		return cerrors.Wrapf(memutils.ErrInvalidArgument, "buffer size %d cannot be split between two queues", c.BufferSize)
	}
	if c.MaxRecords < 1 {
		return cerrors.Wrapf(memutils.ErrInvalidArgument, "max records must be positive, got %d", c.MaxRecords)
	}
	if c.WaitTicks == 0 {
		return cerrors.Wrap(memutils.ErrInvalidArgument, "wait ticks must be positive")
	}
	if c.DescriptorPoolSize < 1 {
		return cerrors.Wrapf(memutils.ErrInvalidArgument, "descriptor pool size must be positive, got %d", c.DescriptorPoolSize)
	}
	if err := memutils.CheckPow2(c.Alignment, "alignment"); err != nil {
		return cerrors.Mark(err, memutils.ErrInvalidArgument)
	}
	if _, err := c.Checksum.Checksum(); err != nil {
		return err
	}
	if _, ok := allocationStrategyNames[c.Strategy]; !ok {
		return cerrors.Wrapf(memutils.ErrInvalidArgument, "unknown allocation strategy %d", c.Strategy)
	}

	return nil
}

type fileConfig struct {
	BufferSize         int    `toml:"buffer_size"`
	BufferFile         string `toml:"buffer_file"`
	MaxRecords         int    `toml:"max_records"`
	WaitTicks          uint64 `toml:"wait_ticks"`
	Checksum           string `toml:"checksum"`
	Encrypted          bool   `toml:"encrypted"`
	DescriptorPoolSize int    `toml:"descriptor_pool_size"`
	Alignment          uint   `toml:"alignment"`
	Strategy           string `toml:"strategy"`
}

// LoadConfig reads a TOML file on top of DefaultConfig. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, cerrors.Wrapf(err, "load rpc config %s", path)
	}

	if meta.IsDefined("buffer_size") {
		cfg.BufferSize = raw.BufferSize
	}
	if meta.IsDefined("buffer_file") {
		cfg.BufferFile = strings.TrimSpace(raw.BufferFile)
	}
	if meta.IsDefined("max_records") {
		cfg.MaxRecords = raw.MaxRecords
	}
	if meta.IsDefined("wait_ticks") {
		cfg.WaitTicks = raw.WaitTicks
	}
	if meta.IsDefined("checksum") {
		cfg.Checksum = ChecksumKind(strings.ToLower(strings.TrimSpace(raw.Checksum)))
	}
	if meta.IsDefined("encrypted") {
		cfg.Encrypted = raw.Encrypted
	}
	if meta.IsDefined("descriptor_pool_size") {
		cfg.DescriptorPoolSize = raw.DescriptorPoolSize
	}
	if meta.IsDefined("alignment") {
		cfg.Alignment = raw.Alignment
	}
	if meta.IsDefined("strategy") {
		strategy, ok := parseAllocationStrategy(raw.Strategy)
		if !ok {
			return Config{}, cerrors.Wrapf(memutils.ErrInvalidArgument, "unknown allocation strategy %q", raw.Strategy)
		}
		cfg.Strategy = strategy
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, cerrors.Wrapf(err, "load rpc config %s", path)
	}

	return cfg, nil
}

// OpenBuffer provides the engine buffer the configuration asks for: BufferSize bytes of
// heap, or a mapping of BufferFile when one is set
func OpenBuffer(cfg Config) (backing.Buffer, error) {
	cfg = cfg.withDefaults()
	if cfg.BufferFile == "" {
		heap, err := backing.NewHeap(cfg.BufferSize)
		if err != nil {
			return nil, err
		}
		return heap, nil
	}

	mapped, err := backing.OpenFile(cfg.BufferFile, cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	return mapped, nil
}
