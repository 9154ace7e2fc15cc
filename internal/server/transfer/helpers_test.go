package transfer

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
	"github.com/dmitrijs2005/stableftp/internal/server/store"
	"github.com/stretchr/testify/require"
)

// scriptedPeer replays a fixed list of FileParts and records the replies.
// Once the script runs out, Receive fails like a dropped connection.
type scriptedPeer struct {
	in   []protocol.FilePart
	sent []protocol.FilePartResponse
}

func (p *scriptedPeer) Receive(m protocol.Message) error {
	if len(p.in) == 0 {
		return io.EOF
	}
	*m.(*protocol.FilePart) = p.in[0]
	p.in = p.in[1:]
	return nil
}

func (p *scriptedPeer) Send(m protocol.Message) error {
	p.sent = append(p.sent, *m.(*protocol.FilePartResponse))
	return nil
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// parts slices data into the FileParts for packets [from, to).
func parts(data []byte, packetSize, from, to uint64) []protocol.FilePart {
	var out []protocol.FilePart
	for i := from; i < to; i++ {
		n := common.PacketLen(i, uint64(len(data)), packetSize)
		off := i * packetSize
		out = append(out, protocol.FilePart{PartNum: i, Data: data[off : off+n]})
	}
	return out
}

type fixture struct {
	dir     string
	store   *store.MemoryStore
	planner *Planner
	pump    *Pump
	owner   int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	c, err := s.CreateCredential(context.Background(), "tok", nil)
	require.NoError(t, err)

	dir := t.TempDir()
	log := logging.Discard()
	return &fixture{
		dir:     dir,
		store:   s,
		planner: NewPlanner(s, dir, NewLocker(), log),
		pump:    NewPump(s, false, log),
		owner:   c.ID,
	}
}

func (f *fixture) plan(t *testing.T, name string, size, packetSize uint64) (*Session, protocol.FileStatus) {
	t.Helper()
	s, status, err := f.planner.Plan(context.Background(), protocol.FileDescription{Name: name, Size: size, PacketSize: packetSize}, f.owner)
	require.NoError(t, err)
	return s, status
}
