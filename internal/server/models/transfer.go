// Package models defines server-side data models persisted in the database.
package models

import "time"

// TransferRecord is the durable progress of one upload, keyed by filename.
//
// CurrentPacket counts the packets already written and acknowledged, so it
// is also the index of the next packet the server expects. It never exceeds
// TotalPackets. Size and PacketSize never change after the record is
// created.
type TransferRecord struct {
	ID            int32     `db:"id"`
	Filename      string    `db:"filename"`
	Size          uint64    `db:"file_size"`
	CurrentPacket uint64    `db:"current_packet"`
	TotalPackets  uint64    `db:"total_packets"`
	PacketSize    uint64    `db:"packet_size"`
	OwnerID       int32     `db:"owner_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// Complete reports whether every packet has been received.
func (r *TransferRecord) Complete() bool {
	return r.CurrentPacket == r.TotalPackets
}

// Offset is the byte position of the next expected packet.
func (r *TransferRecord) Offset() int64 {
	return int64(r.CurrentPacket * r.PacketSize)
}
