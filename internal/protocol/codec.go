package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/dmitrijs2005/stableftp/internal/common"
)

// ErrMalformedMessage reports bytes that cannot be decoded into the expected
// message.
var ErrMalformedMessage = errors.New("malformed message")

// ErrFieldTooLong is returned when encoding a field that exceeds its limit.
var ErrFieldTooLong = errors.New("field too long")

const (
	// MaxStringLength bounds every string field on the wire.
	MaxStringLength = 64 << 10
	// MaxDataLength bounds FilePart.Data.
	MaxDataLength = uint32(common.MaxPacketSize)
)

// Message is implemented by pointers to the six protocol message types.
type Message interface {
	encode(b *buffer)
	decode(d *Decoder) error
}

// Marshal encodes m into a new byte slice.
func Marshal(m Message) ([]byte, error) {
	var b buffer
	m.encode(&b)
	if b.err != nil {
		return nil, b.err
	}
	return b.data, nil
}

// Unmarshal decodes exactly one message from data into m. Trailing bytes are
// treated as malformed input.
func Unmarshal(data []byte, m Message) error {
	d := NewDecoder(bytes.NewReader(data))
	if err := d.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty input", ErrMalformedMessage)
		}
		return err
	}
	if d.r.Buffered() > 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, d.r.Buffered())
	}
	if _, err := d.r.ReadByte(); err == nil {
		return fmt.Errorf("%w: trailing bytes", ErrMalformedMessage)
	}
	return nil
}

// Encoder writes messages to an output stream. Each call to Encode issues a
// single Write with the whole message.
type Encoder struct {
	w   io.Writer
	buf buffer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one message.
func (e *Encoder) Encode(m Message) error {
	e.buf.reset()
	m.encode(&e.buf)
	if e.buf.err != nil {
		return e.buf.err
	}
	if _, err := e.w.Write(e.buf.data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Decoder reads messages from a continuous input stream. It consumes exactly
// the bytes belonging to each decoded message.
type Decoder struct {
	r       *bufio.Reader
	scratch [8]byte
	n       int // bytes consumed by the message being decoded
}

func NewDecoder(r io.Reader) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{r: br}
}

// Decode reads the next message into m. It returns io.EOF if the stream ends
// cleanly before the first byte of the message.
func (d *Decoder) Decode(m Message) error {
	d.n = 0
	return m.decode(d)
}

func (d *Decoder) readFull(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.n += n
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if d.n == 0 {
			return io.EOF
		}
		return fmt.Errorf("%w: stream ended after %d bytes", ErrMalformedMessage, d.n)
	}
	return err
}

func (d *Decoder) uint8() (uint8, error) {
	if err := d.readFull(d.scratch[:1]); err != nil {
		return 0, err
	}
	return d.scratch[0], nil
}

func (d *Decoder) bool() (bool, error) {
	v, err := d.uint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: invalid bool %d", ErrMalformedMessage, v)
}

func (d *Decoder) uint32() (uint32, error) {
	if err := d.readFull(d.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(d.scratch[:4]), nil
}

func (d *Decoder) int32() (int32, error) {
	v, err := d.uint32()
	return int32(v), err
}

func (d *Decoder) uint64() (uint64, error) {
	if err := d.readFull(d.scratch[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(d.scratch[:8]), nil
}

func (d *Decoder) bytes(limit uint32) ([]byte, error) {
	n, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, fmt.Errorf("%w: length %d exceeds limit %d", ErrMalformedMessage, n, limit)
	}
	p := make([]byte, n)
	if err := d.readFull(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Decoder) string() (string, error) {
	p, err := d.bytes(MaxStringLength)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", fmt.Errorf("%w: invalid utf-8 string", ErrMalformedMessage)
	}
	return string(p), nil
}

func (d *Decoder) version() (Version, error) {
	var v Version
	var err error
	if v.Major, err = d.uint32(); err != nil {
		return v, err
	}
	if v.Minor, err = d.uint32(); err != nil {
		return v, err
	}
	v.Patch, err = d.uint32()
	return v, err
}

// buffer accumulates an encoded message. The first encoding error sticks.
type buffer struct {
	data []byte
	err  error
}

func (b *buffer) reset() {
	b.data = b.data[:0]
	b.err = nil
}

func (b *buffer) uint8(v uint8) {
	b.data = append(b.data, v)
}

func (b *buffer) bool(v bool) {
	if v {
		b.uint8(1)
	} else {
		b.uint8(0)
	}
}

func (b *buffer) uint32(v uint32) {
	b.data = binary.BigEndian.AppendUint32(b.data, v)
}

func (b *buffer) int32(v int32) {
	b.uint32(uint32(v))
}

func (b *buffer) uint64(v uint64) {
	b.data = binary.BigEndian.AppendUint64(b.data, v)
}

func (b *buffer) bytes(p []byte, limit uint32) {
	if uint64(len(p)) > uint64(limit) {
		if b.err == nil {
			b.err = fmt.Errorf("%w: %d bytes, limit %d", ErrFieldTooLong, len(p), limit)
		}
		return
	}
	b.uint32(uint32(len(p)))
	b.data = append(b.data, p...)
}

func (b *buffer) string(s string) {
	b.bytes([]byte(s), MaxStringLength)
}

func (b *buffer) version(v Version) {
	b.uint32(v.Major)
	b.uint32(v.Minor)
	b.uint32(v.Patch)
}
