// Package tcp accepts upload connections and runs each one through the
// handshake, the transfer negotiation and the packet pump.
package tcp

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
	"github.com/dmitrijs2005/stableftp/internal/server/transfer"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (int32, error)
}

type Planner interface {
	Plan(ctx context.Context, desc protocol.FileDescription, ownerID int32) (*transfer.Session, protocol.FileStatus, error)
}

type Receiver interface {
	Receive(ctx context.Context, peer transfer.Peer, s *transfer.Session) error
}

// Archiver copies a completed upload somewhere else.
type Archiver interface {
	Archive(ctx context.Context, name, path string) error
}

// Settings are the connection-level knobs of the server.
type Settings struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
	Version        protocol.Version
}

type Server struct {
	settings Settings
	gate     Authenticator
	planner  Planner
	pump     Receiver
	archiver Archiver
	logger   logging.Logger
}

// NewServer wires the connection handler. archiver may be nil.
func NewServer(settings Settings, l logging.Logger, gate Authenticator, planner Planner, pump Receiver, archiver Archiver) *Server {
	return &Server{
		settings: settings,
		gate:     gate,
		planner:  planner,
		pump:     pump,
		archiver: archiver,
		logger:   l.With("module", "tcp_server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.settings.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done, then waits for the
// sessions in flight. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.settings.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.settings.MaxConnections)
	}

	stop := context.AfterFunc(ctx, func() {
		s.logger.Info(ctx, "Stopping TCP server...")
		_ = ln.Close()
	})
	defer stop()

	s.logger.Info(ctx, "Starting TCP server", "address", ln.Addr().String(), "version", s.settings.Version.String())

	var sessions errgroup.Group
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				_ = sessions.Wait()
				return err
			}
			// transient, e.g. EMFILE; the listener stays open
			delay = backoff(delay)
			s.logger.Warn(ctx, "accept failed, retrying", "error", err, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		sessions.Go(func() error {
			s.handleConn(ctx, conn)
			return nil
		})
	}

	return sessions.Wait()
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}
