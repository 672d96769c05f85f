// Package rsyncwire implements the low-level binary conventions of the
// rsync wire protocol: little-endian integer framing, the 4-byte multiplex
// envelope, and byte-counting reader/writer wrappers used for transfer
// statistics.
package rsyncwire

import (
	"encoding/binary"
	"io"
)

// Conn bundles the reader/writer halves of a session after negotiation,
// exposing the small integer/string primitives the rest of the protocol is
// built from.
type Conn struct {
	Reader io.Reader
	Writer io.Writer
}

func (c *Conn) WriteByte(b byte) error {
	_, err := c.Writer.Write([]byte{b})
	return err
}

func (c *Conn) WriteInt32(v int32) error {
	return binary.Write(c.Writer, binary.LittleEndian, v)
}

// WriteInt64 sends a 32-bit integer when the value fits, otherwise -1
// followed by the full 64-bit value, matching rsync's variable-width
// varlong encoding for sizes.
func (c *Conn) WriteInt64(v int64) error {
	if v >= 0 && v <= 0x7FFFFFFF {
		return c.WriteInt32(int32(v))
	}
	if err := c.WriteInt32(-1); err != nil {
		return err
	}
	return binary.Write(c.Writer, binary.LittleEndian, v)
}

func (c *Conn) WriteString(s string) error {
	_, err := io.WriteString(c.Writer, s)
	return err
}

func (c *Conn) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (c *Conn) ReadInt32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func (c *Conn) ReadInt64() (int64, error) {
	v, err := c.ReadInt32()
	if err != nil {
		return 0, err
	}
	if v != -1 {
		return int64(v), nil
	}
	var buf [8]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// CountingReader wraps an io.Reader, tallying bytes read.
type CountingReader struct {
	R       io.Reader
	NumRead int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.NumRead += int64(n)
	return n, err
}

// CountingWriter wraps an io.Writer, tallying bytes written.
type CountingWriter struct {
	W          io.Writer
	NumWritten int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.NumWritten += int64(n)
	return n, err
}

// CounterPair wraps r and w in CountingReader/CountingWriter, the
// convention used throughout the core to report transfer statistics
// without threading counters through every call site.
func CounterPair(r io.Reader, w io.Writer) (*CountingReader, *CountingWriter) {
	return &CountingReader{R: r}, &CountingWriter{W: w}
}
