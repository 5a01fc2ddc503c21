package rpc

import "bytes"

// Transport moves raw frame bytes to and from the peer. Both methods must return
// immediately: Transmit reports how many leading bytes of data it accepted and Receive
// how many bytes it wrote into buffer, and either may return 0.
type Transport interface {
	Transmit(data []byte) int
	Receive(buffer []byte) int
}

// PipeEnd is one side of an in-memory transport created by Pipe
type PipeEnd struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

var _ Transport = &PipeEnd{}

// Pipe returns two connected transports: bytes transmitted on one are received on the other
func Pipe() (*PipeEnd, *PipeEnd) {
	aToB := &bytes.Buffer{}
	bToA := &bytes.Buffer{}

	return &PipeEnd{in: bToA, out: aToB}, &PipeEnd{in: aToB, out: bToA}
}

func (p *PipeEnd) Transmit(data []byte) int {
	n, _ := p.out.Write(data)
	return n
}

func (p *PipeEnd) Receive(buffer []byte) int {
	n, _ := p.in.Read(buffer)
	return n
}

// Buffered returns the number of bytes waiting to be received on this end
func (p *PipeEnd) Buffered() int {
	return p.in.Len()
}
