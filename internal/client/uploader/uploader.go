// Package uploader sends one file to a stableftp server, resuming from
// wherever the server says the previous attempt stopped.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
)

// Reporter follows the progress of an upload.
type Reporter interface {
	// Start is called once the server has told where to resume.
	Start(name string, size, startPacket, totalPackets uint64)
	// Acknowledged is called after packet part was confirmed.
	Acknowledged(part uint64)
	// Finish is called when the upload ends, successfully or not.
	Finish(err error)
}

type Settings struct {
	Address         string
	Token           string
	PacketSize      uint64
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	Version         protocol.Version
}

// Result summarizes a finished upload.
type Result struct {
	Name            string
	Size            uint64
	Status          protocol.FileStatusKind
	StartPacket     uint64
	TotalPackets    uint64
	PacketsSent     uint64
	AlreadyComplete bool
}

type Client struct {
	settings Settings
	reporter Reporter
	logger   logging.Logger
	dial     func(ctx context.Context, network, address string) (net.Conn, error)
}

// New returns a client. reporter may be nil.
func New(settings Settings, reporter Reporter, l logging.Logger) *Client {
	if reporter == nil {
		reporter = nopReporter{}
	}
	d := &net.Dialer{Timeout: settings.DialTimeout}
	return &Client{settings: settings, reporter: reporter, logger: l.With("module", "uploader"), dial: d.DialContext}
}

// Upload sends the file at path under its base name. A refusal by the
// server is returned as *RemoteError.
func (c *Client) Upload(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	desc := protocol.FileDescription{Name: filepath.Base(path), Size: uint64(st.Size()), PacketSize: c.settings.PacketSize}

	nc, err := c.dial(ctx, "tcp", c.settings.Address)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.settings.Address, err)
	}
	conn := protocol.NewConn(nc, c.settings.ResponseTimeout, c.settings.ResponseTimeout)
	defer conn.Close()

	// unblock a pending read when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	res, err := c.upload(ctx, conn, f, desc)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return res, err
}

func (c *Client) upload(ctx context.Context, conn *protocol.Conn, f io.ReaderAt, desc protocol.FileDescription) (*Result, error) {
	if err := c.authenticate(conn); err != nil {
		return nil, err
	}

	status, err := c.negotiate(conn, desc)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Name:         desc.Name,
		Size:         desc.Size,
		Status:       status.Status,
		StartPacket:  status.RequestPacket,
		TotalPackets: status.TotalPackets,
	}
	c.logger.Info(ctx, "server status", "file", desc.Name, "status", status.Status.String(),
		"request_packet", status.RequestPacket, "total_packets", status.TotalPackets, "packet_size", status.PacketSize)

	if status.Status == protocol.StatusExists {
		res.AlreadyComplete = true
		return res, nil
	}

	c.reporter.Start(desc.Name, desc.Size, status.RequestPacket, status.TotalPackets)
	sent, err := c.send(ctx, conn, f, desc.Size, status)
	res.PacketsSent = sent
	c.reporter.Finish(err)
	return res, err
}

func (c *Client) authenticate(conn *protocol.Conn) error {
	if err := conn.Send(&protocol.AuthRequest{Version: c.settings.Version, Token: c.settings.Token}); err != nil {
		return fmt.Errorf("send auth request: %w", err)
	}
	var resp protocol.AuthResponse
	if err := conn.Receive(&resp); err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if !resp.Success {
		return &RemoteError{Stage: "auth", Message: resp.FailureReason}
	}
	return nil
}

func (c *Client) negotiate(conn *protocol.Conn, desc protocol.FileDescription) (protocol.FileStatus, error) {
	if err := conn.Send(&desc); err != nil {
		return protocol.FileStatus{}, fmt.Errorf("send file description: %w", err)
	}
	var resp protocol.FileDescriptionResponse
	if err := conn.Receive(&resp); err != nil {
		return protocol.FileStatus{}, fmt.Errorf("read file status: %w", err)
	}
	if resp.Failed() {
		return protocol.FileStatus{}, &RemoteError{Stage: "negotiation", Message: resp.FailMessage}
	}

	// the server keeps the packet size of an earlier attempt
	s := *resp.Status
	if s.PacketSize == 0 || s.TotalPackets != common.NumPackets(desc.Size, s.PacketSize) || s.RequestPacket > s.TotalPackets {
		return protocol.FileStatus{}, fmt.Errorf("%w: status %+v does not describe %d bytes", ErrProtocol, s, desc.Size)
	}
	return s, nil
}

// send streams packets [status.RequestPacket, status.TotalPackets) and waits
// for each acknowledgement before sending the next one.
func (c *Client) send(ctx context.Context, conn *protocol.Conn, f io.ReaderAt, size uint64, status protocol.FileStatus) (uint64, error) {
	buf := make([]byte, status.PacketSize)
	var sent uint64

	for part := status.RequestPacket; part < status.TotalPackets; part++ {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		n := common.PacketLen(part, size, status.PacketSize)
		data := buf[:n]
		if read, err := f.ReadAt(data, int64(part*status.PacketSize)); err != nil && !(errors.Is(err, io.EOF) && uint64(read) == n) {
			return sent, fmt.Errorf("read packet %d: %w", part, err)
		}

		if err := conn.Send(&protocol.FilePart{PartNum: part, Data: data}); err != nil {
			return sent, fmt.Errorf("send packet %d: %w", part, err)
		}
		var ack protocol.FilePartResponse
		if err := conn.Receive(&ack); err != nil {
			return sent, fmt.Errorf("read ack for packet %d: %w", part, err)
		}
		if !ack.Success {
			return sent, &RemoteError{Stage: "packet", Message: ack.Message}
		}

		sent++
		c.reporter.Acknowledged(part)
	}
	return sent, nil
}

type nopReporter struct{}

func (nopReporter) Start(string, uint64, uint64, uint64) {}
func (nopReporter) Acknowledged(uint64)                  {}
func (nopReporter) Finish(error)                         {}
