package common

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString generates size random bytes and returns them hex-encoded,
// so the resulting string is twice as long as size.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NumPackets returns how many packets of packetSize bytes are needed to carry
// size bytes, i.e. ceil(size / packetSize). It is zero only when size is zero.
// packetSize must be positive.
func NumPackets(size, packetSize uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size-1)/packetSize + 1
}

// PacketLen returns the number of payload bytes carried by packet part of a
// file of the given size.
func PacketLen(part, size, packetSize uint64) uint64 {
	off := part * packetSize
	if off >= size {
		return 0
	}
	if rest := size - off; rest < packetSize {
		return rest
	}
	return packetSize
}
