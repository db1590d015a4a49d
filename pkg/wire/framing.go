// Package wire frames JSON messages on a byte stream.
//
// Two framings are supported: newline-delimited JSON and a 4-byte big-endian
// length prefix. Both deliver whole messages to the layer above; neither
// inspects the payload.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxMessageSize bounds a single frame.
const MaxMessageSize = 16 << 20

// ErrMessageTooLarge is returned when a frame exceeds MaxMessageSize.
var ErrMessageTooLarge = errors.New("message exceeds maximum size")

// ErrRawNewline is returned when a newline-framed message contains a newline.
var ErrRawNewline = errors.New("newline framing: message contains a raw newline")

// IsUnframeable reports whether err was raised before any byte reached the
// stream, leaving the connection usable.
func IsUnframeable(err error) bool {
	return errors.Is(err, ErrMessageTooLarge) || errors.Is(err, ErrRawNewline)
}

// Framing selects how messages are delimited on the stream.
type Framing string

// Supported framings.
const (
	Newline      Framing = "newline"
	LengthPrefix Framing = "length"
)

// ParseFraming resolves a framing name. Empty means Newline.
func ParseFraming(s string) (Framing, error) {
	switch Framing(strings.ToLower(strings.TrimSpace(s))) {
	case "", Newline:
		return Newline, nil
	case LengthPrefix, "length-prefix", "length_prefix":
		return LengthPrefix, nil
	default:
		return "", fmt.Errorf("unknown framing %q (supported: newline, length)", s)
	}
}

// Conn is a message-oriented view over a byte stream.
// ReadMessage must be called from a single goroutine; WriteMessage is safe for
// concurrent use.
type Conn struct {
	rwc     io.ReadWriteCloser
	framing Framing
	reader  *bufio.Reader

	writeMu sync.Mutex
}

// NewConn wraps rwc with the given framing.
func NewConn(rwc io.ReadWriteCloser, framing Framing) *Conn {
	if framing == "" {
		framing = Newline
	}
	return &Conn{
		rwc:     rwc,
		framing: framing,
		reader:  bufio.NewReaderSize(rwc, 64*1024),
	}
}

// ReadMessage returns the next whole message.
func (c *Conn) ReadMessage() ([]byte, error) {
	if c.framing == LengthPrefix {
		return c.readLengthPrefixed()
	}
	return c.readLine()
}

func (c *Conn) readLine() ([]byte, error) {
	for {
		line, err := c.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			line, err = c.readLongLine(line)
		}
		if err != nil {
			if err == io.EOF && len(bytes.TrimSpace(line)) > 0 {
				return copyBytes(bytes.TrimSpace(line)), nil
			}
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			// Blank lines are keep-alives.
			continue
		}
		return copyBytes(line), nil
	}
}

func (c *Conn) readLongLine(head []byte) ([]byte, error) {
	buf := copyBytes(head)
	for {
		chunk, err := c.reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > MaxMessageSize {
			return nil, ErrMessageTooLarge
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, err
	}
}

func (c *Conn) readLengthPrefixed() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.reader, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// WriteMessage writes one framed message.
func (c *Conn) WriteMessage(msg []byte) error {
	if len(msg) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	var frame []byte
	switch c.framing {
	case LengthPrefix:
		frame = make([]byte, 4+len(msg))
		binary.BigEndian.PutUint32(frame, uint32(len(msg)))
		copy(frame[4:], msg)
	default:
		if bytes.IndexByte(msg, '\n') >= 0 {
			return ErrRawNewline
		}
		frame = make([]byte, len(msg)+1)
		copy(frame, msg)
		frame[len(msg)] = '\n'
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.rwc.Write(frame)
	return err
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.rwc.Close()
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
