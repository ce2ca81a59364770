// Package app wires together the transport listener, queue, worker pool,
// registrar, and B2BUA engine into one running server, the way the
// teacher's own app package wires its sipgo-backed equivalents.
package app

import (
	"context"
	"log/slog"

	"github.com/tinysip/tinysip/internal/b2bua"
	"github.com/tinysip/tinysip/internal/callmap"
	"github.com/tinysip/tinysip/internal/config"
	"github.com/tinysip/tinysip/internal/location"
	"github.com/tinysip/tinysip/internal/queue"
	"github.com/tinysip/tinysip/internal/registrar"
	"github.com/tinysip/tinysip/internal/sipmsg"
	"github.com/tinysip/tinysip/internal/transport"
)

// Server is the fully wired TinySIP B2BUA.
type Server struct {
	cfg       *config.Config
	listener  *transport.Listener
	queue     *queue.Queue
	pool      *queue.Pool
	registrar *registrar.Registrar
	engine    *b2bua.Engine
	locations *location.Table
	calls     *callmap.Map
}

// NewServer binds the listener and builds every collaborator. It does not
// start serving until Start is called.
func NewServer(cfg *config.Config) (*Server, error) {
	listener, err := transport.Listen(cfg.BindAddr, cfg.Port)
	if err != nil {
		return nil, err
	}

	locations := location.New(defaultUsers())
	calls := callmap.New()
	q := queue.New(cfg.QueueCapacity)

	engine := b2bua.New(calls, locations, transport.Send, cfg.AdvertiseAddr, listener.LocalAddr().Port)
	reg := registrar.New(locations)

	s := &Server{
		cfg:       cfg,
		listener:  listener,
		queue:     q,
		registrar: reg,
		engine:    engine,
		locations: locations,
		calls:     calls,
	}

	s.pool = queue.NewPool(q, cfg.Workers, s.dispatch)
	return s, nil
}

// Start runs the receive loop and worker pool until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	go s.pool.Run(ctx)

	return s.listener.Serve(ctx, func(dg transport.Datagram) {
		if !s.queue.Enqueue(dg.Payload, dg.Src.String()) {
			slog.Warn("[App] queue full, dropping datagram", "src", dg.Src)
			return
		}
	})
}

// Close closes the queue, so workers stop once it is empty, and releases
// the listening socket. It does not wait for the queue to drain.
func (s *Server) Close() error {
	s.queue.Close()
	return s.listener.Close()
}

// dispatch parses a queued datagram and routes it to the registrar or the
// B2BUA engine. Parse failures are dropped silently.
func (s *Server) dispatch(item queue.Item) {
	msg, err := sipmsg.Parse(item.Payload)
	if err != nil {
		slog.Debug("[App] dropping malformed datagram", "trace_id", item.TraceID, "src", item.SrcAddr, "error", err)
		return
	}

	src, err := resolveUDPAddr(item.SrcAddr)
	if err != nil {
		slog.Warn("[App] unresolvable source address", "trace_id", item.TraceID, "src", item.SrcAddr)
		return
	}

	if msg.Kind == sipmsg.KindRequest && msg.Method == "REGISTER" {
		out := s.registrar.HandleRegister(msg, src)
		transport.Send(src, out)
		return
	}

	s.engine.Handle(msg, src)
}
