// Package rsyncbatch implements part of the batch-file format (spec §4.J):
// the header, per-file delta records, and trailer statistics. It does not
// encode a file-list section and does not write a companion shell script.
//
// Grounded on the teacher's rsyncwire.Conn primitives (reused here for
// the fixed-width header/trailer fields); the compat flags use the small
// varint defined in this file (writeVarint/readVarint), and the delta
// record shape mirrors internal/blockindex.DeltaOp.
package rsyncbatch

import (
	"encoding/binary"
	"fmt"
	"io"

	rsync "github.com/ocrsync/rsync"
	"github.com/ocrsync/rsync/internal/blockindex"
	"github.com/ocrsync/rsync/internal/rsyncwire"
)

// Header is the fixed-width preamble of a batch file.
type Header struct {
	StreamFlags     int32
	ProtocolVersion rsync.ProtocolVersion
	CompatFlags     rsync.CompatibilityFlags // only written/read for ProtocolVersion >= 30
	ChecksumSeed    int32
}

// WriteHeader writes h to w using the same little-endian int32 primitives
// the wire protocol itself uses.
func WriteHeader(w io.Writer, h Header) error {
	c := &rsyncwire.Conn{Writer: w}
	if err := c.WriteInt32(h.StreamFlags); err != nil {
		return err
	}
	if err := c.WriteInt32(int32(h.ProtocolVersion)); err != nil {
		return err
	}
	if h.ProtocolVersion >= 30 {
		if err := writeVarint(w, uint32(h.CompatFlags)); err != nil {
			return err
		}
	}
	if err := c.WriteInt32(h.ChecksumSeed); err != nil {
		return err
	}
	return nil
}

// ReadHeader reads a Header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	c := &rsyncwire.Conn{Reader: r}
	streamFlags, err := c.ReadInt32()
	if err != nil {
		return h, err
	}
	h.StreamFlags = streamFlags
	protoVersion, err := c.ReadInt32()
	if err != nil {
		return h, err
	}
	h.ProtocolVersion = rsync.ProtocolVersion(protoVersion)
	if h.ProtocolVersion >= 30 {
		flags, err := readVarint(r)
		if err != nil {
			return h, err
		}
		h.CompatFlags = rsync.CompatibilityFlags(flags)
	}
	seed, err := c.ReadInt32()
	if err != nil {
		return h, err
	}
	h.ChecksumSeed = seed
	return h, nil
}

// writeVarint writes an unsigned varint whose first byte's leading one-bits
// give the number of bytes that follow: 0xxxxxxx holds 7 bits, 10xxxxxx plus
// one byte holds 14, 110xxxxx plus two bytes holds 21, and 0xE0 is followed
// by the full value as four little-endian bytes. The value's low bits go in
// the first byte, so for values of 128 and up the bytes differ from those of
// rsync's own write_varint, which puts the high bits there.
func writeVarint(w io.Writer, v uint32) error {
	var buf []byte
	switch {
	case v < 1<<7:
		buf = []byte{byte(v)}
	case v < 1<<14:
		buf = []byte{byte(v&0x3F) | 0x80, byte(v >> 6)}
	case v < 1<<21:
		buf = []byte{byte(v&0x1F) | 0xC0, byte(v >> 5), byte(v >> 13)}
	default:
		buf = []byte{0xE0, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	}
	_, err := w.Write(buf)
	return err
}

func readVarint(r io.Reader) (uint32, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	first := b[0]
	switch {
	case first&0x80 == 0:
		return uint32(first), nil
	case first&0xC0 == 0x80:
		var rest [1]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return 0, err
		}
		return uint32(first&0x3F) | uint32(rest[0])<<6, nil
	case first&0xE0 == 0xC0:
		var rest [2]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return 0, err
		}
		return uint32(first&0x1F) | uint32(rest[0])<<5 | uint32(rest[1])<<13, nil
	default:
		var rest [4]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(rest[:]), nil
	}
}

// DeltaRecord is one file's worth of delta ops plus its whole-file strong
// checksum, as stored in the batch file's delta section.
type DeltaRecord struct {
	Ops            []blockindex.DeltaOp
	StrongChecksum []byte
}

// WriteDeltaRecord serializes one DeltaRecord.
func WriteDeltaRecord(w io.Writer, rec DeltaRecord) error {
	c := &rsyncwire.Conn{Writer: w}
	if err := c.WriteInt32(int32(len(rec.Ops))); err != nil {
		return err
	}
	for _, op := range rec.Ops {
		if err := writeDeltaOp(c, op); err != nil {
			return err
		}
	}
	if err := c.WriteInt32(int32(len(rec.StrongChecksum))); err != nil {
		return err
	}
	_, err := w.Write(rec.StrongChecksum)
	return err
}

func writeDeltaOp(c *rsyncwire.Conn, op blockindex.DeltaOp) error {
	if err := c.WriteByte(byte(op.Kind)); err != nil {
		return err
	}
	switch op.Kind {
	case blockindex.DeltaCopy:
		if err := c.WriteInt64(int64(op.SrcOffset)); err != nil {
			return err
		}
		return c.WriteInt32(int32(op.Len))
	case blockindex.DeltaLiteral:
		if err := c.WriteInt32(int32(len(op.Bytes))); err != nil {
			return err
		}
		_, err := c.Writer.Write(op.Bytes)
		return err
	case blockindex.DeltaEnd:
		return nil
	default:
		return fmt.Errorf("rsyncbatch: unknown delta op kind %d", op.Kind)
	}
}

// ReadDeltaRecord deserializes one DeltaRecord.
func ReadDeltaRecord(r io.Reader) (DeltaRecord, error) {
	var rec DeltaRecord
	c := &rsyncwire.Conn{Reader: r}
	n, err := c.ReadInt32()
	if err != nil {
		return rec, err
	}
	for i := int32(0); i < n; i++ {
		op, err := readDeltaOp(c)
		if err != nil {
			return rec, err
		}
		rec.Ops = append(rec.Ops, op)
	}
	sumLen, err := c.ReadInt32()
	if err != nil {
		return rec, err
	}
	rec.StrongChecksum = make([]byte, sumLen)
	if _, err := io.ReadFull(r, rec.StrongChecksum); err != nil {
		return rec, err
	}
	return rec, nil
}

func readDeltaOp(c *rsyncwire.Conn) (blockindex.DeltaOp, error) {
	kindByte, err := c.ReadByte()
	if err != nil {
		return blockindex.DeltaOp{}, err
	}
	kind := blockindex.DeltaOpKind(kindByte)
	switch kind {
	case blockindex.DeltaCopy:
		off, err := c.ReadInt64()
		if err != nil {
			return blockindex.DeltaOp{}, err
		}
		l, err := c.ReadInt32()
		if err != nil {
			return blockindex.DeltaOp{}, err
		}
		return blockindex.DeltaOp{Kind: kind, SrcOffset: uint64(off), Len: uint32(l)}, nil
	case blockindex.DeltaLiteral:
		l, err := c.ReadInt32()
		if err != nil {
			return blockindex.DeltaOp{}, err
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(c.Reader, buf); err != nil {
			return blockindex.DeltaOp{}, err
		}
		return blockindex.DeltaOp{Kind: kind, Bytes: buf}, nil
	case blockindex.DeltaEnd:
		return blockindex.DeltaOp{Kind: kind}, nil
	default:
		return blockindex.DeltaOp{}, fmt.Errorf("rsyncbatch: unknown delta op kind %d", kindByte)
	}
}

// Trailer is the batch file's closing statistics block.
type Trailer struct {
	TotalRead    int64
	TotalWritten int64
	TransferSize int64
	ElapsedNanos int64
}

// WriteTrailer writes t to w.
func WriteTrailer(w io.Writer, t Trailer) error {
	c := &rsyncwire.Conn{Writer: w}
	for _, v := range []int64{t.TotalRead, t.TotalWritten, t.TransferSize, t.ElapsedNanos} {
		if err := c.WriteInt64(v); err != nil {
			return err
		}
	}
	return nil
}

// ReadTrailer reads a Trailer from r.
func ReadTrailer(r io.Reader) (Trailer, error) {
	var t Trailer
	c := &rsyncwire.Conn{Reader: r}
	vals := make([]int64, 4)
	for i := range vals {
		v, err := c.ReadInt64()
		if err != nil {
			return t, err
		}
		vals[i] = v
	}
	t.TotalRead, t.TotalWritten, t.TransferSize, t.ElapsedNanos = vals[0], vals[1], vals[2], vals[3]
	return t, nil
}
