package uploader

import (
	"context"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
	"github.com/dmitrijs2005/stableftp/internal/server/auth"
	"github.com/dmitrijs2005/stableftp/internal/server/store"
	"github.com/dmitrijs2005/stableftp/internal/server/tcp"
	"github.com/dmitrijs2005/stableftp/internal/server/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "uploader-token"

// startServer runs a complete server over an in-memory store.
func startServer(t *testing.T) (addr, dir string) {
	t.Helper()

	s := store.NewMemoryStore()
	_, err := s.CreateCredential(context.Background(), testToken, nil)
	require.NoError(t, err)

	dir = t.TempDir()
	log := logging.Discard()
	srv := tcp.NewServer(tcp.Settings{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Version:      protocol.MustParseVersion(common.ProtocolVersion),
	}, log, auth.NewGate(s), transfer.NewPlanner(s, dir, transfer.NewLocker(), log), transfer.NewPump(s, false, log), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String(), dir
}

func settings(addr string, packetSize uint64) Settings {
	return Settings{
		Address:         addr,
		Token:           testToken,
		PacketSize:      packetSize,
		DialTimeout:     time.Second,
		ResponseTimeout: 5 * time.Second,
		Version:         protocol.MustParseVersion(common.ProtocolVersion),
	}
}

func randomFile(t *testing.T, name string, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p, data
}

type recorder struct {
	mu       sync.Mutex
	started  bool
	start    uint64
	total    uint64
	acked    []uint64
	finished error
	onAck    func(part uint64)
}

func (r *recorder) Start(_ string, _ uint64, start, total uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started, r.start, r.total = true, start, total
}

func (r *recorder) Acknowledged(part uint64) {
	r.mu.Lock()
	r.acked = append(r.acked, part)
	r.mu.Unlock()
	if r.onAck != nil {
		r.onAck(part)
	}
}

func (r *recorder) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = err
}

// uploadEventually retries while the server still holds the previous
// session for the same file.
func uploadEventually(t *testing.T, c *Client, path string) *Result {
	t.Helper()
	var res *Result
	require.Eventually(t, func() bool {
		var err error
		res, err = c.Upload(context.Background(), path)
		var re *RemoteError
		if errors.As(err, &re) && re.Message == "transfer already in progress" {
			return false
		}
		require.NoError(t, err)
		return true
	}, 5*time.Second, 20*time.Millisecond)
	return res
}

func TestUpload_FullThenAlreadyComplete(t *testing.T) {
	addr, dir := startServer(t)
	path, data := randomFile(t, "report.bin", 10_000)

	rep := &recorder{}
	c := New(settings(addr, 1024), rep, logging.Discard())

	res, err := c.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, &Result{
		Name: "report.bin", Size: 10_000, Status: protocol.StatusNonexistent,
		StartPacket: 0, TotalPackets: 10, PacketsSent: 10,
	}, res)
	assert.True(t, rep.started)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, rep.acked)
	assert.NoError(t, rep.finished)

	got, err := os.ReadFile(filepath.Join(dir, "report.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	res = uploadEventually(t, New(settings(addr, 1024), nil, logging.Discard()), path)
	assert.True(t, res.AlreadyComplete)
	assert.Equal(t, protocol.StatusExists, res.Status)
	assert.Equal(t, uint64(0), res.PacketsSent)
}

func TestUpload_ResumesAfterInterruption(t *testing.T) {
	addr, dir := startServer(t)
	path, data := randomFile(t, "movie.mkv", 10*1024+17)

	ctx, cancel := context.WithCancel(context.Background())
	rep := &recorder{onAck: func(part uint64) {
		if part == 3 {
			cancel()
		}
	}}
	_, err := New(settings(addr, 1024), rep, logging.Discard()).Upload(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, rep.finished, context.Canceled)

	// a different packet size is ignored in favour of the stored one
	res := uploadEventually(t, New(settings(addr, 4096), nil, logging.Discard()), path)
	assert.Equal(t, protocol.StatusResumeable, res.Status)
	assert.Equal(t, uint64(4), res.StartPacket)
	assert.Equal(t, uint64(11), res.TotalPackets)
	assert.Equal(t, uint64(7), res.PacketsSent)

	got, err := os.ReadFile(filepath.Join(dir, "movie.mkv"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestUpload_EmptyFile(t *testing.T) {
	addr, dir := startServer(t)
	path, _ := randomFile(t, "empty.txt", 0)

	res, err := New(settings(addr, 1024), nil, logging.Discard()).Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.TotalPackets)
	assert.Equal(t, uint64(0), res.PacketsSent)

	st, err := os.Stat(filepath.Join(dir, "empty.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Size())
}

func TestUpload_Refusals(t *testing.T) {
	addr, _ := startServer(t)
	path, _ := randomFile(t, "a.bin", 5000)

	t.Run("bad token", func(t *testing.T) {
		s := settings(addr, 1024)
		s.Token = "nope"
		_, err := New(s, nil, logging.Discard()).Upload(context.Background(), path)

		var re *RemoteError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "auth", re.Stage)
		assert.Equal(t, "invalid token", re.Message)
	})

	t.Run("incompatible version", func(t *testing.T) {
		s := settings(addr, 1024)
		s.Version = protocol.Version{Major: 9}
		_, err := New(s, nil, logging.Discard()).Upload(context.Background(), path)

		var re *RemoteError
		require.ErrorAs(t, err, &re)
		assert.Contains(t, re.Message, "incompatible protocol version")
	})

	t.Run("packet size below minimum", func(t *testing.T) {
		_, err := New(settings(addr, common.MinPacketSize-1), nil, logging.Discard()).Upload(context.Background(), path)

		var re *RemoteError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "negotiation", re.Stage)
		assert.Contains(t, re.Message, "packet size")
	})
}

func TestUpload_LocalErrors(t *testing.T) {
	c := New(settings("127.0.0.1:1", 1024), nil, logging.Discard())

	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = c.Upload(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "not a regular file")

	path, _ := randomFile(t, "a.bin", 10)
	c.dial = func(context.Context, string, string) (net.Conn, error) { return nil, errors.New("refused") }
	_, err = c.Upload(context.Background(), path)
	assert.ErrorContains(t, err, "connect 127.0.0.1:1")
}

// scripted runs fn as the server side of a net.Pipe.
func scripted(t *testing.T, c *Client, fn func(conn *protocol.Conn)) {
	t.Helper()
	c.dial = func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			conn := protocol.NewConn(server, time.Second, time.Second)
			defer conn.Close()
			fn(conn)
		}()
		return client, nil
	}
}

func acceptAndDescribe(conn *protocol.Conn, status *protocol.FileDescriptionResponse) bool {
	var auth protocol.AuthRequest
	if conn.Receive(&auth) != nil || conn.Send(&protocol.AuthResponse{Success: true}) != nil {
		return false
	}
	var desc protocol.FileDescription
	if conn.Receive(&desc) != nil {
		return false
	}
	return conn.Send(status) == nil
}

func TestUpload_ServerNack(t *testing.T) {
	path, _ := randomFile(t, "a.bin", 3000)
	rep := &recorder{}
	c := New(settings("pipe", 1024), rep, logging.Discard())

	scripted(t, c, func(conn *protocol.Conn) {
		if !acceptAndDescribe(conn, protocol.StatusResponse(protocol.FileStatus{
			ID: 1, Status: protocol.StatusNonexistent, PacketSize: 1024, TotalPackets: 3,
		})) {
			return
		}
		var part protocol.FilePart
		_ = conn.Receive(&part)
		_ = conn.Send(&protocol.FilePartResponse{Success: true})
		_ = conn.Receive(&part)
		_ = conn.Send(&protocol.FilePartResponse{Success: false, Message: "write failed"})
	})

	res, err := c.Upload(context.Background(), path)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "packet", re.Stage)
	assert.Equal(t, "write failed", re.Message)
	assert.Equal(t, uint64(1), res.PacketsSent)
	assert.Equal(t, []uint64{0}, rep.acked)
	assert.Equal(t, err, rep.finished)
}

func TestUpload_InconsistentStatus(t *testing.T) {
	path, _ := randomFile(t, "a.bin", 3000)
	c := New(settings("pipe", 1024), nil, logging.Discard())

	scripted(t, c, func(conn *protocol.Conn) {
		acceptAndDescribe(conn, protocol.StatusResponse(protocol.FileStatus{
			Status: protocol.StatusResumeable, RequestPacket: 9, PacketSize: 1024, TotalPackets: 3,
		}))
	})

	_, err := c.Upload(context.Background(), path)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestUpload_ServerHangsUp(t *testing.T) {
	path, _ := randomFile(t, "a.bin", 3000)
	c := New(settings("pipe", 1024), nil, logging.Discard())

	scripted(t, c, func(conn *protocol.Conn) {
		var auth protocol.AuthRequest
		_ = conn.Receive(&auth)
	})

	_, err := c.Upload(context.Background(), path)
	assert.ErrorContains(t, err, "read auth response")
}

func TestRemoteError(t *testing.T) {
	err := error(&RemoteError{Stage: "auth", Message: "invalid token"})
	assert.Equal(t, "server refused auth: invalid token", err.Error())
}
