package rpc

import "github.com/pkg/errors"

var (
	// ErrProtocolFormat is reported when an inbound frame carries an unknown message type or a
	// header that does not decode
	ErrProtocolFormat = errors.New("malformed rpc frame")
	// ErrChecksumMismatch is reported when an inbound frame's trailing checksum does not match
	// its payload
	ErrChecksumMismatch = errors.New("rpc frame checksum mismatch")
	// ErrNoMatchingService is reported when an inbound request carries a tag no service is
	// registered for
	ErrNoMatchingService = errors.New("no service registered for tag")
	// ErrNoMatchingRecord is reported when an inbound response carries a uuid that matches no
	// pending request
	ErrNoMatchingRecord = errors.New("no pending request for uuid")
	// ErrRecordTableExhausted is returned from CreateRequest when every request record is
	// waiting on a response
	ErrRecordTableExhausted = errors.New("request record table exhausted")
	// ErrRequestTimeout is reported when a pending request is released without a response
	ErrRequestTimeout = errors.New("request timed out")
)
