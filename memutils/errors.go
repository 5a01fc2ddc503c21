package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

var (
	// ErrInvalidArgument is returned when a public operation receives an empty buffer, a nil
	// collaborator or a zero-length request
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAllocationFailure is returned when an arena has no free block large enough to satisfy
	// a request
	ErrAllocationFailure = errors.New("allocation failure")
	// ErrDescriptorPoolExhausted is returned when a block needs to be split but the descriptor
	// pool has no descriptor left to describe the remainder
	ErrDescriptorPoolExhausted = errors.New("descriptor pool exhausted")
	// ErrNotFound is returned when a span passed to Free does not describe a live allocation
	ErrNotFound = errors.New("allocation not found")
	// ErrBufferInUse is returned when a buffer is handed to a second arena while another arena
	// still manages it
	ErrBufferInUse = errors.New("buffer already in use")
	// ErrEmpty is returned when reading from or popping an empty queue
	ErrEmpty = errors.New("queue is empty")
	// ErrNotReady is returned when an operation is attempted on an object without a backing buffer
	ErrNotReady = errors.New("not ready")
)
