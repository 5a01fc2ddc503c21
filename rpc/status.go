package rpc

import (
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/link"
)

// StatusCode identifies the event an observer is being notified of
type StatusCode uint8

const (
	// StatusFrameReceived: a complete, verified frame was committed to the receive queue
	StatusFrameReceived StatusCode = iota
	// StatusAllocationFailure: an inbound frame was dropped because the receive queue was full
	StatusAllocationFailure
	// StatusFormatError: an inbound frame was dropped because its header was malformed
	StatusFormatError
	// StatusChecksumMismatch: an inbound frame was dropped because its checksum was wrong
	StatusChecksumMismatch
	// StatusNoMatchingService: an inbound request was dropped because no service handles its tag
	StatusNoMatchingService
	// StatusNoMatchingRecord: an inbound response was dropped because no request is waiting on it
	StatusNoMatchingRecord
	// StatusTimeout: a pending request was released without a response
	StatusTimeout
	// StatusResponseReceived: an inbound response released its pending request
	StatusResponseReceived
)

var statusCodeMapping = map[StatusCode]string{
	StatusFrameReceived:     "StatusFrameReceived",
	StatusAllocationFailure: "StatusAllocationFailure",
	StatusFormatError:       "StatusFormatError",
	StatusChecksumMismatch:  "StatusChecksumMismatch",
	StatusNoMatchingService: "StatusNoMatchingService",
	StatusNoMatchingRecord:  "StatusNoMatchingRecord",
	StatusTimeout:           "StatusTimeout",
	StatusResponseReceived:  "StatusResponseReceived",
}

func (c StatusCode) String() string {
	return statusCodeMapping[c]
}

// Status is delivered to observers whenever the engine drops, receives or retires a frame.
// Payload is only set for StatusResponseReceived and aliases receive queue memory, so it is
// only valid for the duration of the callback.
type Status struct {
	Code    StatusCode
	Header  Header
	Payload []byte
	Err     error
}

// Observer receives engine status notifications
type Observer func(status Status)

// Subscription is returned from Engine.Subscribe and detaches its observer when cancelled
type Subscription struct {
	node *link.Node[Observer]
}

// Unsubscribe stops delivering notifications to the subscription's observer. It is safe to
// call from inside the observer and to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.node == nil {
		return
	}

	s.node.Unlink()
	s.node = nil
}

type notifier struct {
	observers link.Node[Observer]
}

func (n *notifier) subscribe(observer Observer) *Subscription {
	node := link.New(observer)
	n.observers.PushBack(node)
	return &Subscription{node: node}
}

func (n *notifier) notify(status Status) {
	for it := n.observers.Iter(); it.Next(); {
		it.Node().Value(status)
	}
}

func (n *notifier) count() int {
	return n.observers.Size()
}
