// Package backing supplies the fixed byte regions that arenas are created over: plain heap
// slices, or memory-mapped regions that behave like a flash image persisting across runs.
package backing

import (
	"os"

	cerrors "github.com/cockroachdb/errors"
	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils"
)

// Buffer is a fixed region of memory that can back an arena. Close releases the region; the
// bytes must not be used afterward.
type Buffer interface {
	Bytes() []byte
	Close() error
}

// Heap is a Buffer allocated from the Go heap
type Heap []byte

var _ Buffer = Heap(nil)

// NewHeap allocates a zeroed Heap buffer of size bytes
func NewHeap(size int) (Heap, error) {
	if size < 1 {
		return nil, cerrors.Wrapf(memutils.ErrInvalidArgument, "invalid buffer size: %d", size)
	}
	return make(Heap, size), nil
}

func (h Heap) Bytes() []byte { return h }
func (h Heap) Close() error { return nil }

// Mapped is a Buffer backed by a memory mapping, either of a file or anonymous
type Mapped struct {
	data mmap.MMap
	file *os.File
}

var _ Buffer = &Mapped{}

// NewAnonymous maps size bytes of anonymous memory
func NewAnonymous(size int) (*Mapped, error) {
	if size < 1 {
		return nil, cerrors.Wrapf(memutils.ErrInvalidArgument, "invalid buffer size: %d", size)
	}

	data, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, errors.Wrap(err, "map anonymous region")
	}

	return &Mapped{data: data}, nil
}

// OpenFile maps the file at path as a size byte buffer. A missing file is created and
// zero-filled; an existing file must already be exactly size bytes, so a region written by
// a previous run is never silently truncated.
func OpenFile(path string, size int) (*Mapped, error) {
	if size < 1 {
		return nil, cerrors.Wrapf(memutils.ErrInvalidArgument, "invalid buffer size: %d", size)
	}

	var file *os.File
	info, err := os.Stat(path)

	if err == nil {
		if info.Size() != int64(size) {
			return nil, errors.Errorf("%s is %d bytes, expected %d", path, info.Size(), size)
		}

		if file, err = os.OpenFile(path, os.O_RDWR, 0); err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
	} else if os.IsNotExist(err) {
		if file, err = os.Create(path); err != nil {
			return nil, errors.Wrapf(err, "create %s", path)
		}

		if err = file.Truncate(int64(size)); err != nil {
			_ = file.Close()
			return nil, errors.Wrapf(err, "size %s", path)
		}
	} else {
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	data, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "map %s", path)
	}

	return &Mapped{data: data, file: file}, nil
}

func (m *Mapped) Bytes() []byte {
	return m.data
}

// Flush writes modified pages back to the mapped file
func (m *Mapped) Flush() error {
	if m.data == nil {
		return memutils.ErrNotReady
	}
	return m.data.Flush()
}

// Close unmaps the region and closes the mapped file, if any
func (m *Mapped) Close() error {
	if m.data == nil {
		return nil
	}

	err := m.data.Unmap()
	m.data = nil

	if m.file != nil {
		if closeErr := m.file.Close(); err == nil {
			err = closeErr
		}
		m.file = nil
	}

	return err
}
