// Package common contains shared constants, sentinel errors and small helpers
// used by both the stableftp server and client.
package common

// ProtocolVersion is the version announced in AuthRequest and compared by the
// server during the handshake.
const ProtocolVersion = "0.1.0"

// TokenEnvVar is the environment variable the client falls back to when no
// token was given on the command line.
const TokenEnvVar = "STABLE_FTP_TOKEN"

const (
	// MinPacketSize is the smallest packet size the server accepts.
	MinPacketSize uint64 = 1024
	// DefaultPacketSize is used by the client when -p is not given.
	DefaultPacketSize uint64 = 2048
	// MaxPacketSize bounds a single FilePart payload.
	MaxPacketSize uint64 = 64 << 20
)

// MaxFileNameLength is the longest filename (in bytes) a transfer may use.
const MaxFileNameLength = 255
