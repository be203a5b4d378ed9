package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

// ErrIncompleteMessage is a control signal, not a propagated error: it
// tells the reader to await more bytes.
var ErrIncompleteMessage = errors.New("rpc: incomplete message")

// ErrConnectionEnded means the peer closed the socket with unread
// partial data still buffered: a protocol error, distinct from a clean
// close.
var ErrConnectionEnded = errors.New("rpc: connection ended with partial message")

// crlf is the two-byte frame delimiter.
var crlf = []byte{'\r', '\n'}

// Connection wraps a net.Conn with the line-framed JSON codec: each
// message is followed by the literal bytes 0x0D 0x0A. Readers accumulate
// bytes in buf and parse when a delimiter appears.
type Connection struct {
	conn    net.Conn
	writer  *bufio.Writer
	buf     bytes.Buffer
	readBuf []byte
}

// NewConnection wraps conn for line-framed JSON messages.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:    conn,
		writer:  bufio.NewWriter(conn),
		readBuf: make([]byte, 4096),
	}
}

// parseMessage scans buf for the first CRLF. If found, it deserializes
// the prefix and advances buf past the delimiter, returning the
// message. If not found, including when buf holds fewer than two bytes,
// it returns ErrIncompleteMessage without consuming anything.
func (c *Connection) parseMessage() (*Message, error) {
	if c.buf.Len() < 2 {
		return nil, ErrIncompleteMessage
	}
	data := c.buf.Bytes()
	idx := bytes.Index(data, crlf)
	if idx < 0 {
		return nil, ErrIncompleteMessage
	}
	line := make([]byte, idx)
	copy(line, data[:idx])
	c.buf.Next(idx + len(crlf))

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("rpc: decode message: %w", err)
	}
	return &msg, nil
}

// ReadMessage reads exactly one message, blocking on the socket as
// needed. Returns (nil, nil) on a clean peer close with no partial data
// buffered; ErrConnectionEnded on a peer close with unread bytes still
// in the buffer.
func (c *Connection) ReadMessage() (*Message, error) {
	for {
		msg, err := c.parseMessage()
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, ErrIncompleteMessage) {
			return nil, err
		}

		n, readErr := c.conn.Read(c.readBuf)
		if n > 0 {
			c.buf.Write(c.readBuf[:n])
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// A final frame may have arrived together with the
				// close; only once no complete frame remains is the
				// leftover data a protocol error.
				msg, err := c.parseMessage()
				if err == nil {
					return msg, nil
				}
				if !errors.Is(err, ErrIncompleteMessage) {
					return nil, err
				}
				if c.buf.Len() == 0 {
					return nil, nil
				}
				return nil, ErrConnectionEnded
			}
			return nil, fmt.Errorf("rpc: read: %w", readErr)
		}
	}
}

// WriteMessage serializes msg, appends the CRLF delimiter, and flushes.
func (c *Connection) WriteMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("rpc: encode message: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("rpc: write: %w", err)
	}
	if _, err := c.writer.Write(crlf); err != nil {
		return fmt.Errorf("rpc: write: %w", err)
	}
	return c.writer.Flush()
}

// Close closes the underlying connection.
func (c *Connection) Close() error { return c.conn.Close() }
