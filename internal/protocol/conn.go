package protocol

import (
	"net"
	"time"
)

// Conn carries protocol messages over a stream connection. When a timeout is
// set, every Receive (or Send) arms a fresh deadline first, so an idle peer
// is dropped instead of holding the connection forever.
type Conn struct {
	conn         net.Conn
	enc          *Encoder
	dec          *Decoder
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps c. A zero timeout disables the corresponding deadline.
func NewConn(c net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		conn:         c,
		enc:          NewEncoder(c),
		dec:          NewDecoder(c),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Send writes one message.
func (c *Conn) Send(m Message) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.enc.Encode(m)
}

// Receive reads the next message into m.
func (c *Conn) Receive(m Message) error {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return err
		}
	}
	return c.dec.Decode(m)
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
