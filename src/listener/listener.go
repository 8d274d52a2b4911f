// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

// Package listener binds the paste port and runs the accept loop.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"

	"github.com/casjay-forks/beans/src/logger"
	"github.com/casjay-forks/beans/src/metrics"
)

// Backlog is the pending connection queue length requested from the kernel.
const Backlog = 32

// Accept retry delays after a failed accept.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Handler serves a single accepted connection. It owns conn and must
// close it.
type Handler interface {
	Serve(ctx context.Context, conn net.Conn)
}

// Server runs the accept loop and hands each connection to Handler.
type Server struct {
	Handler Handler
	Log     logger.Logger

	// MaxConns caps concurrently served connections. 0 means no cap.
	MaxConns int

	// mu orders wg.Add against Shutdown's wg.Wait
	mu      sync.Mutex
	ln      net.Listener
	wg      sync.WaitGroup
	closing atomic.Bool
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

// Serve accepts connections on ln until ctx is done or Shutdown is called,
// handling each one on its own goroutine. It returns nil on a clean stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.MaxConns)
	}

	s.mu.Lock()
	s.ln = ln
	closed := s.closing.Load()
	s.mu.Unlock()
	if closed {
		ln.Close()
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.closing.Store(true)
		s.mu.Unlock()
		ln.Close()
	})
	defer stop()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			metrics.RecordAcceptError()
			s.Log.Error(fmt.Errorf("accept: %w", err))

			delay = nextDelay(delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		metrics.RecordAccept()

		s.mu.Lock()
		if s.closing.Load() {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			conn.Close()
			s.Log.Error(fmt.Errorf("panic serving %s: %v", conn.RemoteAddr(), r))
		}
	}()

	s.Handler.Serve(ctx, conn)
}

// Shutdown stops accepting and waits for in-flight connections to finish or
// for ctx to end, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	if s.ln != nil {
		s.ln.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
