// Package protocol implements the stableftp wire protocol: the six message
// types exchanged over one TCP stream, their binary codec, and the version
// compatibility rule checked during the handshake.
//
// # Conversation
//
//  1. client → server  AuthRequest{version, token}
//  2. server → client  AuthResponse{success, failure_reason}; the connection ends on failure
//  3. client → server  FileDescription{name, size, packet_size}
//  4. server → client  FileDescriptionResponse: Status(FileStatus) or FailMessage
//  5. repeated total_packets - request_packet times:
//     client → server  FilePart{part_num, data}
//     server → client  FilePartResponse{success, message}
//
// # Encoding
//
// There is no outer frame. A message is the concatenation of its fields,
// and both sides always know which message comes next:
//
//	uint8, bool        1 byte (bool must be 0 or 1)
//	int32, uint32      4 bytes, big-endian
//	uint64             8 bytes, big-endian
//	string, bytes      uint32 length followed by that many bytes
//	Version            three uint32
//	enum / union tag   uint8 discriminant
//
// Decoding fails with ErrMalformedMessage when the stream ends inside a
// message, a declared length exceeds its limit, or a discriminant is unknown.
package protocol
