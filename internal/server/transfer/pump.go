package transfer

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dmitrijs2005/stableftp/internal/protocol"
)

// Peer is the message stream of one connection.
type Peer interface {
	Send(m protocol.Message) error
	Receive(m protocol.Message) error
}

// Pump receives the packets of a planned session in strict order.
type Pump struct {
	store      Store
	syncWrites bool
	logger     logging.Logger
}

// NewPump returns a receiver. With syncWrites every packet is flushed to
// stable storage before its progress is recorded.
func NewPump(store Store, syncWrites bool, logger logging.Logger) *Pump {
	return &Pump{store: store, syncWrites: syncWrites, logger: logger.With("module", "pump")}
}

// Receive reads FileParts from peer, starting at the session's current
// packet, until the transfer is complete. Each packet is written at its
// offset and recorded in the store before it is acknowledged, so a packet
// acknowledged to the sender is never lost and resending an unacknowledged
// one is harmless.
func (p *Pump) Receive(ctx context.Context, peer Peer, s *Session) error {
	rec := s.Record
	size, packetSize := s.Size, rec.PacketSize

	for current := rec.CurrentPacket; current < rec.TotalPackets; {
		if err := ctx.Err(); err != nil {
			return err
		}

		var part protocol.FilePart
		if err := peer.Receive(&part); err != nil {
			return fmt.Errorf("receive packet %d: %w", current, err)
		}

		if part.PartNum != current {
			p.nack(peer, fmt.Sprintf("expected packet %d, got %d", current, part.PartNum))
			return fmt.Errorf("%w: expected %d, got %d", ErrOutOfSequence, current, part.PartNum)
		}
		if want := common.PacketLen(current, size, packetSize); uint64(len(part.Data)) != want {
			p.nack(peer, fmt.Sprintf("packet %d must carry %d bytes, got %d", current, want, len(part.Data)))
			return fmt.Errorf("%w: packet %d carries %d bytes, want %d", ErrBadPacket, current, len(part.Data), want)
		}

		if _, err := s.File.WriteAt(part.Data, int64(current*packetSize)); err != nil {
			p.nack(peer, "write failed")
			return fmt.Errorf("write packet %d: %w", current, err)
		}
		if p.syncWrites {
			if err := s.File.Sync(); err != nil {
				p.nack(peer, "write failed")
				return fmt.Errorf("sync packet %d: %w", current, err)
			}
		}

		updated, err := p.store.IncrementCurrentPacket(ctx, rec.ID)
		if err != nil {
			p.nack(peer, "progress update failed")
			return fmt.Errorf("record packet %d: %w", current, err)
		}
		if updated.CurrentPacket != current+1 {
			p.nack(peer, "progress update failed")
			return fmt.Errorf("record packet %d: store moved to %d", current, updated.CurrentPacket)
		}
		rec = updated
		s.Record = updated
		current = updated.CurrentPacket

		if err := peer.Send(&protocol.FilePartResponse{Success: true}); err != nil {
			return fmt.Errorf("acknowledge packet %d: %w", current-1, err)
		}
		p.logger.Debug(ctx, "packet stored", "file", rec.Filename, "packet", current-1, "total_packets", rec.TotalPackets)
	}

	if s.File != nil {
		if err := s.File.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", rec.Filename, err)
		}
	}
	return nil
}

// nack reports a failure for the current packet. The connection is closed
// right after, so a send error has nowhere to go.
func (p *Pump) nack(peer Peer, reason string) {
	_ = peer.Send(&protocol.FilePartResponse{Success: false, Message: reason})
}
