// Command rpcloop runs a client engine and a server engine against each other over an
// in-memory pipe, then prints both engines' statistics as JSON.
//
// Usage:
//
//	rpcloop [-config engine.toml] [-requests 32]
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"

	cerrors "github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils"
	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/rpc"
)

const (
	tagEcho byte = 0x01
	tagSum  byte = 0x02

	maxRounds = 10000
)

func main() {
	configPath := flag.String("config", "", "TOML engine configuration; defaults are used when empty")
	requests := flag.Int("requests", 32, "number of requests the client sends")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr))
	if err := run(logger, *configPath, *requests, os.Stdout); err != nil {
		logger.Error("rpcloop failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// services answers the demo's requests. A response that cannot be queued is logged and the
// client sees the request time out.
type services struct {
	logger *slog.Logger
}

func (s services) respond(request rpc.Request, responder rpc.Responder, payload []byte) {
	if err := responder.Respond(payload); err != nil {
		s.logger.Warn("failed to queue response",
			slog.Uint64("uuid", uint64(request.Header.UUID)),
			slog.Int("tag", int(request.Header.Tag)),
			slog.Any("error", err),
		)
	}
}

func (s services) echo(request rpc.Request, responder rpc.Responder) {
	s.respond(request, responder, request.Payload)
}

func (s services) sum(request rpc.Request, responder rpc.Responder) {
	var total uint32
	for _, b := range request.Payload {
		total += uint32(b)
	}

	var out [4]byte
	binary.BigEndian.PutUint32(out[:], total)
	s.respond(request, responder, out[:])
}

type loop struct {
	client *rpc.Engine
	server *rpc.Engine
	clock  *rpc.TickClock
}

func (l *loop) step() {
	l.client.Run()
	l.server.Run()
	l.clock.Advance(1)
}

// send queues one request, stepping both engines while the client has no room for it
func (l *loop) send(name string, tag byte, payload []byte) error {
	for round := 0; round < maxRounds; round++ {
		_, err := l.client.CreateNamedRequest(name, tag, payload)
		if err == nil {
			return nil
		}
		if !cerrors.Is(err, rpc.ErrRecordTableExhausted) && !cerrors.Is(err, memutils.ErrAllocationFailure) {
			return err
		}

		l.step()
	}

	return cerrors.Newf("request %s could not be queued after %d rounds", name, maxRounds)
}

func (l *loop) drain() error {
	for round := 0; round < maxRounds; round++ {
		if l.client.NumOfPendingRecords() == 0 && l.client.NumOfTxPendingMsg() == 0 && l.server.NumOfTxPendingMsg() == 0 {
			return nil
		}

		l.step()
	}

	return cerrors.Newf("engines still busy after %d rounds", maxRounds)
}

func run(logger *slog.Logger, configPath string, requests int, out io.Writer) error {
	cfg := rpc.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = rpc.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}

	clientBuffer, err := rpc.OpenBuffer(cfg)
	if err != nil {
		return err
	}
	defer clientBuffer.Close()

	// only the client maps the configured file
	serverConfig := cfg
	serverConfig.BufferFile = ""
	serverBuffer, err := rpc.OpenBuffer(serverConfig)
	if err != nil {
		return err
	}
	defer serverBuffer.Close()

	clientEnd, serverEnd := rpc.Pipe()
	clock := &rpc.TickClock{}

	serverLogger := logger.With(slog.String("engine", "server"))
	handlers := services{logger: serverLogger}

	server, err := rpc.New(serverLogger, serverBuffer.Bytes(), serverConfig, rpc.Options{
		Transport: serverEnd,
		Clock:     clock,
		Services: []rpc.Service{
			{Tag: tagEcho, Name: "echo", Handler: rpc.HandlerFunc(handlers.echo)},
			{Tag: tagSum, Name: "sum", Handler: rpc.HandlerFunc(handlers.sum)},
		},
	})
	if err != nil {
		return err
	}
	defer server.Close()

	client, err := rpc.New(logger.With(slog.String("engine", "client")), clientBuffer.Bytes(), cfg, rpc.Options{
		Transport: clientEnd,
		Clock:     clock,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	client.Subscribe(func(status rpc.Status) {
		switch status.Code {
		case rpc.StatusResponseReceived:
			logger.Debug("response received",
				slog.Uint64("uuid", uint64(status.Header.UUID)),
				slog.Int("tag", int(status.Header.Tag)),
				slog.Int("payloadSize", len(status.Payload)),
			)
		case rpc.StatusTimeout:
			logger.Warn("request timed out", slog.Any("error", status.Err))
		}
	})

	l := &loop{client: client, server: server, clock: clock}
	for i := 0; i < requests; i++ {
		tag := tagEcho
		name := fmt.Sprintf("echo-%d", i)
		if i%2 == 1 {
			tag = tagSum
			name = fmt.Sprintf("sum-%d", i)
		}

		if err := l.send(name, tag, []byte(name)); err != nil {
			return err
		}
	}
	if err := l.drain(); err != nil {
		return err
	}

	writer := jwriter.NewWriter()
	obj := writer.Object()

	clientStats := obj.Name("Client").Object()
	client.WriteStatsJSON(&clientStats)
	clientStats.End()

	serverStats := obj.Name("Server").Object()
	server.WriteStatsJSON(&serverStats)
	serverStats.End()

	obj.End()
	if err := writer.Error(); err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(writer.Bytes()))
	return err
}
