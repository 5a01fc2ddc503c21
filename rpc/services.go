package rpc

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils"
)

// Request is an inbound request handed to a service. Payload aliases receive queue memory
// and is only valid until the handler returns.
type Request struct {
	Header  Header
	Payload []byte
}

// Responder answers the request a handler is serving
type Responder interface {
	// Respond queues a response frame carrying payload, echoing the request's tag and uuid
	Respond(payload []byte) error
}

// Handler serves inbound requests for one tag
type Handler interface {
	Serve(request Request, responder Responder)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(request Request, responder Responder)

func (f HandlerFunc) Serve(request Request, responder Responder) {
	f(request, responder)
}

// Service binds a handler to the tag of the requests it serves
type Service struct {
	Tag     byte
	Name    string
	Handler Handler
}

type serviceTable struct {
	byTag *swiss.Map[byte, Service]
}

func newServiceTable(services []Service) (*serviceTable, error) {
	size := uint32(len(services))
	if size == 0 {
		size = 1
	}

	table := &serviceTable{
		byTag: swiss.NewMap[byte, Service](size),
	}

	for _, service := range services {
		if service.Handler == nil {
			return nil, cerrors.Wrapf(memutils.ErrInvalidArgument, "service %q for tag 0x%02x has no handler", service.Name, service.Tag)
		}
		if existing, ok := table.byTag.Get(service.Tag); ok {
			return nil, cerrors.Wrapf(memutils.ErrInvalidArgument, "services %q and %q both claim tag 0x%02x", existing.Name, service.Name, service.Tag)
		}

		table.byTag.Put(service.Tag, service)
	}

	return table, nil
}

func (t *serviceTable) lookup(tag byte) (Service, bool) {
	return t.byTag.Get(tag)
}

func (t *serviceTable) count() int {
	return t.byTag.Count()
}

type responder struct {
	engine *Engine
	header Header
}

func (r responder) Respond(payload []byte) error {
	return r.engine.CreateResponse(r.header.Tag, r.header.UUID, payload)
}
