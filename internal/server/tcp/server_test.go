package tcp

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
	"github.com/dmitrijs2005/stableftp/internal/server/auth"
	"github.com/dmitrijs2005/stableftp/internal/server/store"
	"github.com/dmitrijs2005/stableftp/internal/server/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

type recordingArchiver struct {
	mu    sync.Mutex
	names []string
	done  chan struct{}
}

func newRecordingArchiver() *recordingArchiver {
	return &recordingArchiver{done: make(chan struct{}, 8)}
}

func (a *recordingArchiver) Archive(_ context.Context, name, path string) error {
	a.mu.Lock()
	a.names = append(a.names, name)
	a.mu.Unlock()
	a.done <- struct{}{}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return nil
}

type harness struct {
	addr  string
	dir   string
	store *store.MemoryStore
}

type serverOption func(*Settings, *Planner)

func startServer(t *testing.T, archiver Archiver, opts ...serverOption) *harness {
	t.Helper()

	s := store.NewMemoryStore()
	_, err := s.CreateCredential(context.Background(), testToken, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	log := logging.Discard()
	settings := Settings{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Version:      protocol.MustParseVersion(common.ProtocolVersion),
	}
	var planner Planner = transfer.NewPlanner(s, dir, transfer.NewLocker(), log)
	for _, o := range opts {
		o(&settings, &planner)
	}

	srv := NewServer(settings, log, auth.NewGate(s), planner, transfer.NewPump(s, false, log), archiver)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return &harness{addr: ln.Addr().String(), dir: dir, store: s}
}

func (h *harness) dial(t *testing.T) *protocol.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", h.addr, time.Second)
	require.NoError(t, err)
	conn := protocol.NewConn(c, 5*time.Second, 5*time.Second)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) authenticate(t *testing.T, conn *protocol.Conn) {
	t.Helper()
	require.NoError(t, conn.Send(&protocol.AuthRequest{Version: protocol.MustParseVersion(common.ProtocolVersion), Token: testToken}))
	var resp protocol.AuthResponse
	require.NoError(t, conn.Receive(&resp))
	require.True(t, resp.Success, resp.FailureReason)
}

// open authenticates and negotiates, retrying while a previous session for
// the same file is still being torn down by the server.
func (h *harness) open(t *testing.T, desc protocol.FileDescription) (*protocol.Conn, protocol.FileStatus) {
	t.Helper()
	var conn *protocol.Conn
	var status protocol.FileStatus
	require.Eventually(t, func() bool {
		conn = h.dial(t)
		h.authenticate(t, conn)
		require.NoError(t, conn.Send(&desc))
		var resp protocol.FileDescriptionResponse
		require.NoError(t, conn.Receive(&resp))
		if resp.Failed() {
			require.Equal(t, "transfer already in progress", resp.FailMessage)
			_ = conn.Close()
			return false
		}
		status = *resp.Status
		return true
	}, 5*time.Second, 20*time.Millisecond)
	return conn, status
}

func sendParts(t *testing.T, conn *protocol.Conn, data []byte, packetSize, from, to uint64) {
	t.Helper()
	for i := from; i < to; i++ {
		n := common.PacketLen(i, uint64(len(data)), packetSize)
		off := i * packetSize
		require.NoError(t, conn.Send(&protocol.FilePart{PartNum: i, Data: data[off : off+n]}))
		var ack protocol.FilePartResponse
		require.NoError(t, conn.Receive(&ack))
		require.True(t, ack.Success, ack.Message)
	}
}

func TestServer_ResumableUploadEndToEnd(t *testing.T) {
	archiver := newRecordingArchiver()
	h := startServer(t, archiver)

	const size, packetSize = 10_000_000, 1_000_000
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	desc := protocol.FileDescription{Name: "movie.mkv", Size: size, PacketSize: packetSize}

	conn, status := h.open(t, desc)
	require.Equal(t, protocol.StatusNonexistent, status.Status)
	require.Equal(t, uint64(0), status.RequestPacket)
	require.Equal(t, uint64(10), status.TotalPackets)
	sendParts(t, conn, data, packetSize, 0, 4)
	require.NoError(t, conn.Close())

	conn, status = h.open(t, desc)
	require.Equal(t, protocol.StatusResumeable, status.Status)
	require.Equal(t, uint64(4), status.RequestPacket)
	require.Equal(t, uint64(10), status.TotalPackets)
	sendParts(t, conn, data, packetSize, 4, 10)
	require.NoError(t, conn.Close())

	select {
	case <-archiver.done:
	case <-time.After(5 * time.Second):
		t.Fatal("completed upload was not archived")
	}

	conn, status = h.open(t, desc)
	require.Equal(t, protocol.StatusExists, status.Status)
	require.Equal(t, uint64(10), status.RequestPacket)
	require.Equal(t, uint64(10), status.TotalPackets)

	// the server sends nothing more and hangs up
	var extra protocol.FilePartResponse
	assert.Error(t, conn.Receive(&extra))

	got, err := os.ReadFile(filepath.Join(h.dir, "movie.mkv"))
	require.NoError(t, err)
	require.Equal(t, data, got)

	archiver.mu.Lock()
	assert.Equal(t, []string{"movie.mkv"}, archiver.names)
	archiver.mu.Unlock()
}

func TestServer_HandshakeFailures(t *testing.T) {
	h := startServer(t, nil)

	tests := []struct {
		name    string
		version string
		token   string
		reason  string
	}{
		{"unknown token", common.ProtocolVersion, "wrong", "invalid token"},
		{"empty token", common.ProtocolVersion, "", "invalid token"},
		{"different major", "1.1.0", testToken, "incompatible protocol version"},
		{"newer minor", "0.2.0", testToken, "incompatible protocol version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := h.dial(t)
			require.NoError(t, conn.Send(&protocol.AuthRequest{Version: protocol.MustParseVersion(tt.version), Token: tt.token}))

			var resp protocol.AuthResponse
			require.NoError(t, conn.Receive(&resp))
			assert.False(t, resp.Success)
			assert.Contains(t, resp.FailureReason, tt.reason)

			var next protocol.FileDescriptionResponse
			assert.ErrorIs(t, conn.Receive(&next), io.EOF, "connection closed after rejection")
		})
	}
}

func TestServer_OlderPatchAndMinorAccepted(t *testing.T) {
	h := startServer(t, nil)

	for _, v := range []string{"0.1.0", "0.1.9", "0.0.3"} {
		conn := h.dial(t)
		require.NoError(t, conn.Send(&protocol.AuthRequest{Version: protocol.MustParseVersion(v), Token: testToken}))
		var resp protocol.AuthResponse
		require.NoError(t, conn.Receive(&resp))
		assert.True(t, resp.Success, v)
	}
}

func TestServer_NegotiationFailure(t *testing.T) {
	h := startServer(t, nil)

	conn := h.dial(t)
	h.authenticate(t, conn)
	require.NoError(t, conn.Send(&protocol.FileDescription{Name: "small.bin", Size: 10_000, PacketSize: common.MinPacketSize - 1}))

	var resp protocol.FileDescriptionResponse
	require.NoError(t, conn.Receive(&resp))
	require.True(t, resp.Failed())
	assert.Contains(t, resp.FailMessage, "packet size")

	var next protocol.FilePartResponse
	assert.ErrorIs(t, conn.Receive(&next), io.EOF)
}

func TestServer_OutOfSequenceClosesConnection(t *testing.T) {
	h := startServer(t, nil)
	data := make([]byte, 4096)

	conn, status := h.open(t, protocol.FileDescription{Name: "seq.bin", Size: 4096, PacketSize: 1024})
	require.Equal(t, protocol.StatusNonexistent, status.Status)

	require.NoError(t, conn.Send(&protocol.FilePart{PartNum: 2, Data: data[:1024]}))
	var ack protocol.FilePartResponse
	require.NoError(t, conn.Receive(&ack))
	assert.False(t, ack.Success)
	assert.ErrorIs(t, conn.Receive(&ack), io.EOF)

	rec, err := h.store.FindByFilename(context.Background(), "seq.bin")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rec.CurrentPacket)
}

func TestServer_MalformedInputDoesNotStopServer(t *testing.T) {
	h := startServer(t, nil)

	raw, err := net.Dial("tcp", h.addr)
	require.NoError(t, err)
	// a token length prefix that promises far more than the limit
	_, err = raw.Write([]byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)

	var resp protocol.AuthResponse
	require.NoError(t, protocol.NewConn(raw, time.Second, 0).Receive(&resp))
	assert.False(t, resp.Success)
	_ = raw.Close()

	conn := h.dial(t)
	h.authenticate(t, conn)
}

type panickingPlanner struct{}

func (panickingPlanner) Plan(context.Context, protocol.FileDescription, int32) (*transfer.Session, protocol.FileStatus, error) {
	panic("boom")
}

func TestServer_PanicIsolatedToConnection(t *testing.T) {
	h := startServer(t, nil, func(_ *Settings, p *Planner) { *p = panickingPlanner{} })

	for i := 0; i < 2; i++ {
		conn := h.dial(t)
		h.authenticate(t, conn)
		require.NoError(t, conn.Send(&protocol.FileDescription{Name: "p.bin", Size: 1, PacketSize: 1024}))

		var resp protocol.FileDescriptionResponse
		assert.Error(t, conn.Receive(&resp), "connection dropped")
	}
}

func TestServer_IdlePeerIsDropped(t *testing.T) {
	h := startServer(t, nil, func(s *Settings, _ *Planner) { s.ReadTimeout = 50 * time.Millisecond })

	conn := h.dial(t)
	var resp protocol.AuthResponse
	err := conn.Receive(&resp)
	assert.ErrorIs(t, err, io.EOF, "server hangs up on a silent peer")
}

func TestServer_MaxConnections(t *testing.T) {
	h := startServer(t, nil, func(s *Settings, _ *Planner) { s.MaxConnections = 1 })

	first := h.dial(t)
	h.authenticate(t, first)

	c, err := net.Dial("tcp", h.addr)
	require.NoError(t, err)
	second := protocol.NewConn(c, 200*time.Millisecond, time.Second)
	t.Cleanup(func() { _ = second.Close() })

	require.NoError(t, second.Send(&protocol.AuthRequest{Version: protocol.MustParseVersion(common.ProtocolVersion), Token: testToken}))
	var resp protocol.AuthResponse
	err = second.Receive(&resp)
	require.Error(t, err, "second connection is not served while the first is open")
	require.True(t, errors.Is(err, os.ErrDeadlineExceeded))

	require.NoError(t, first.Close())

	second = protocol.NewConn(c, 5*time.Second, time.Second)
	require.NoError(t, second.Receive(&resp))
	assert.True(t, resp.Success)
}

// flakyListener fails the first Accept with err.
type flakyListener struct {
	net.Listener
	once sync.Once
	err  error
}

func (l *flakyListener) Accept() (net.Conn, error) {
	var err error
	l.once.Do(func() { err = l.err })
	if err != nil {
		return nil, err
	}
	return l.Listener.Accept()
}

func TestServer_KeepsAcceptingAfterAcceptError(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.CreateCredential(context.Background(), testToken, nil)
	require.NoError(t, err)

	log := logging.Discard()
	srv := NewServer(Settings{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Version:      protocol.MustParseVersion(common.ProtocolVersion),
	}, log, auth.NewGate(s), transfer.NewPlanner(s, t.TempDir(), transfer.NewLocker(), log), transfer.NewPump(s, false, log), nil)

	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln := &flakyListener{
		Listener: inner,
		err:      &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	h := &harness{addr: inner.Addr().String(), store: s}
	conn := h.dial(t)
	h.authenticate(t, conn)
	require.NoError(t, conn.Close())

	select {
	case err := <-done:
		t.Fatalf("server stopped after a transient accept error: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_ReturnsWhenListenerClosedExternally(t *testing.T) {
	srv := NewServer(Settings{}, logging.Discard(), nil, nil, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()
	require.NoError(t, ln.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server kept running on a closed listener")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	srv := NewServer(Settings{Address: "127.0.0.1:0"}, logging.Discard(), nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewServer(Settings{Address: "127.0.0.1:99999"}, logging.Discard(), nil, nil, nil, nil)
	assert.Error(t, srv.Run(context.Background()))
}
