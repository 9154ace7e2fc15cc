package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/netx"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
	"github.com/dmitrijs2005/stableftp/internal/server/transfer"
	"github.com/google/uuid"
)

// errHandshake marks a session that ended before authentication succeeded.
var errHandshake = errors.New("handshake failed")

// handleConn runs one session to completion. Failures, panics included, end
// this connection only.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	log := s.logger.With("session", uuid.NewString(), "remote", conn.RemoteAddr().String())
	peer := protocol.NewConn(conn, s.settings.ReadTimeout, s.settings.WriteTimeout)

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "session panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
		_ = peer.Close()
	}()

	log.Debug(ctx, "connection accepted")

	owner, err := s.handshake(ctx, peer)
	if err != nil {
		log.Warn(ctx, "handshake rejected", "error", err)
		return
	}
	log = log.With("owner", owner)

	sess, err := s.negotiate(ctx, peer, owner)
	if err != nil {
		log.Warn(ctx, "negotiation rejected", "error", err)
		return
	}
	defer sess.Close()
	log = log.With("file", sess.Record.Filename)

	if sess.Complete() {
		log.Info(ctx, "file already uploaded")
		return
	}

	if err := s.pump.Receive(ctx, peer, sess); err != nil {
		s.logSessionError(ctx, log, sess, err)
		return
	}

	log.Info(ctx, "transfer complete", "total_packets", sess.Record.TotalPackets)
	if err := sess.Close(); err != nil {
		log.Error(ctx, "closing destination file", "error", err)
		return
	}
	s.archive(ctx, log, sess)
}

func (s *Server) handshake(ctx context.Context, peer *protocol.Conn) (int32, error) {
	var req protocol.AuthRequest
	if err := peer.Receive(&req); err != nil {
		if errors.Is(err, protocol.ErrMalformedMessage) {
			_ = peer.Send(&protocol.AuthResponse{Success: false, FailureReason: "malformed auth request"})
		}
		return 0, fmt.Errorf("%w: read auth request: %w", errHandshake, err)
	}

	if protocol.CompareVersions(s.settings.Version, req.Version) == protocol.Incompatible {
		reason := fmt.Sprintf("incompatible protocol version %s, server speaks %s", req.Version, s.settings.Version)
		_ = peer.Send(&protocol.AuthResponse{Success: false, FailureReason: reason})
		return 0, fmt.Errorf("%w: %s", errHandshake, reason)
	}

	owner, err := s.gate.Authenticate(ctx, req.Token)
	if err != nil {
		reason := "invalid token"
		if !errors.Is(err, common.ErrorNotFound) {
			reason = "authentication unavailable"
		}
		_ = peer.Send(&protocol.AuthResponse{Success: false, FailureReason: reason})
		return 0, fmt.Errorf("%w: %w", errHandshake, err)
	}

	if err := peer.Send(&protocol.AuthResponse{Success: true}); err != nil {
		return 0, fmt.Errorf("send auth response: %w", err)
	}
	return owner, nil
}

func (s *Server) negotiate(ctx context.Context, peer *protocol.Conn, owner int32) (*transfer.Session, error) {
	var desc protocol.FileDescription
	if err := peer.Receive(&desc); err != nil {
		if errors.Is(err, protocol.ErrMalformedMessage) {
			_ = peer.Send(protocol.FailResponse("malformed file description"))
		}
		return nil, fmt.Errorf("read file description: %w", err)
	}

	sess, status, err := s.planner.Plan(ctx, desc, owner)
	if err != nil {
		var rej *transfer.RejectError
		if errors.As(err, &rej) {
			_ = peer.Send(protocol.FailResponse(rej.Reason))
		} else {
			_ = peer.Send(protocol.FailResponse("internal error"))
		}
		return nil, fmt.Errorf("plan %q: %w", desc.Name, err)
	}

	if err := peer.Send(protocol.StatusResponse(status)); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("send file status: %w", err)
	}
	return sess, nil
}

func (s *Server) logSessionError(ctx context.Context, log logging.Logger, sess *transfer.Session, err error) {
	args := []any{"error", err, "current_packet", sess.Record.CurrentPacket, "total_packets", sess.Record.TotalPackets}
	switch {
	case netx.IsDisconnect(err), errors.Is(err, context.Canceled):
		log.Info(ctx, "transfer interrupted", args...)
	case netx.IsTimeout(err):
		log.Warn(ctx, "peer timed out", args...)
	case errors.Is(err, transfer.ErrOutOfSequence), errors.Is(err, transfer.ErrBadPacket), errors.Is(err, protocol.ErrMalformedMessage):
		log.Warn(ctx, "protocol violation", args...)
	default:
		log.Error(ctx, "transfer aborted", args...)
	}
}

func (s *Server) archive(ctx context.Context, log logging.Logger, sess *transfer.Session) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, sess.Record.Filename, sess.Path); err != nil {
		log.Error(ctx, "archiving failed", "error", err)
		return
	}
	log.Info(ctx, "archived")
}
