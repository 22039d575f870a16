// Package tcp implements the plain-TCP transport: the accept loop and the
// per-connection session goroutines. Framing relies on message boundaries
// surviving single reads; each envelope is written in one Write call and
// read into a connection-sized buffer.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/classchat-io/classchat/internal/cryptox"
	"github.com/classchat-io/classchat/internal/logging"
	"github.com/classchat-io/classchat/internal/server/router"
)

// Server accepts client connections and hands each one to its own session
// goroutine. Connection failures are isolated: a session ending, for any
// reason, never affects the listener or other sessions.
type Server struct {
	addr        string
	bufSize     int
	maxFileSize int

	router *router.Router
	keys   *cryptox.ServerKeys
	logger logging.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(addr string, bufSize, maxFileSize int, r *router.Router, keys *cryptox.ServerKeys, logger logging.Logger) *Server {
	return &Server{
		addr:        addr,
		bufSize:     bufSize,
		maxFileSize: maxFileSize,
		router:      r,
		keys:        keys,
		logger:      logger.With("module", "tcp"),
	}
}

// Run listens on the configured address and accepts until the context is
// cancelled or the listener fails. It blocks; cancel the context and Run
// returns after closing the listener and waiting for active sessions.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info(ctx, "server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn(ctx, "accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			// Unblock the session's pending Read on shutdown.
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			sess := newSession(conn, s.router, s.keys, s.logger, s.bufSize, s.maxFileSize)
			sess.run(ctx)
		}()
	}

	s.wg.Wait()
	s.logger.Info(ctx, "server stopped")
	return nil
}

// Addr returns the bound listener address, for tests that listen on ":0".
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func sessionID() string {
	return uuid.NewString()
}
