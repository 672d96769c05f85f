// Package rsyncchecksum implements the rsync delta algorithm's checksum
// kernel: the rolling (weak) checksum with its O(1) sliding-window update,
// and the strong digests (MD4, MD5, SHA-1, XXH64, XXH3-64, XXH3-128) used to
// confirm a weak-checksum hit.
package rsyncchecksum

import (
	"io"

	"github.com/ocrsync/rsync/internal/rsyncerr"
)

const modulus = 1 << 16

// RollingChecksum is the Adler-32-style weak checksum over a sliding window,
// kept as the triple (s1, s2, len) described in spec §3.
type RollingChecksum struct {
	s1, s2 uint32
	length uint32
}

// Reset restores the checksum to its empty state.
func (r *RollingChecksum) Reset() {
	r.s1, r.s2, r.length = 0, 0, 0
}

// Len returns the number of bytes currently contributing to the checksum.
func (r *RollingChecksum) Len() uint32 { return r.length }

// Update extends the window by appending data, recomputing s1/s2 for the
// extended window. It delegates to the dispatched accumulator so that the
// accelerated and scalar code paths share one entry point.
func (r *RollingChecksum) Update(data []byte) {
	if len(data) == 0 {
		return
	}
	s1, s2 := accumulate(uint64(r.s1), uint64(r.s2), data)
	r.s1, r.s2 = uint32(s1%modulus), uint32(s2%modulus)
	r.length += uint32(len(data))
}

// UpdateReaderWithBuffer reads from rd into buf repeatedly until EOF,
// retrying on io.ErrShortBuffer-free interrupted reads, folding every
// chunk read into the checksum. The total byte count saturates at
// math.MaxUint64 rather than wrapping. buf must be non-empty.
func (r *RollingChecksum) UpdateReaderWithBuffer(rd io.Reader, buf []byte) (uint64, error) {
	if len(buf) == 0 {
		return 0, &rsyncerr.InvalidArgument{Detail: "UpdateReaderWithBuffer: empty buffer"}
	}
	var total uint64
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			r.Update(buf[:n])
			if total != ^uint64(0) {
				if uint64(n) > ^uint64(0)-total {
					total = ^uint64(0)
				} else {
					total += uint64(n)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			if isInterrupted(err) {
				continue
			}
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
}

// isInterrupted reports whether err represents a transient, retryable
// interruption. Kept as a hook so platform build tags can extend it
// (e.g. syscall.EINTR) without touching callers.
func isInterrupted(err error) bool {
	type temporary interface{ Temporary() bool }
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}
	return false
}

// Roll advances the window by one byte: out leaves, in enters. The window
// length is unchanged. Returns EmptyWindow if the checksum has never been
// primed via Update.
func (r *RollingChecksum) Roll(out, in byte) error {
	if r.length == 0 {
		return &rsyncerr.EmptyWindow{}
	}
	r.s1 = (r.s1 - uint32(out) + uint32(in)) % modulus
	r.s2 = (r.s2 - r.length*uint32(out) + r.s1) % modulus
	return nil
}

// RollMany advances the window by len(out) positions in one pass, using a
// weighted-delta aggregation instead of repeated Roll calls. out and in
// must have equal, non-zero length.
func (r *RollingChecksum) RollMany(out, in []byte) error {
	if len(out) != len(in) {
		return &rsyncerr.MismatchedSliceLength{OutLen: len(out), InLen: len(in)}
	}
	if len(out) == 0 {
		return &rsyncerr.EmptyWindow{}
	}
	if r.length == 0 {
		return &rsyncerr.EmptyWindow{}
	}
	n := uint64(len(out))
	if n > uint64(^uint32(0)) {
		// Accumulation bounds exceeded: fall back to scalar roll-by-roll.
		for i := range out {
			if err := r.Roll(out[i], in[i]); err != nil {
				return err
			}
		}
		return nil
	}

	var sumOut, sumIn int64
	var weighted int64 // sum_i (n-i) * (in_i - out_i)
	for i := range out {
		d := int64(in[i]) - int64(out[i])
		sumOut += int64(out[i])
		sumIn += int64(in[i])
		weighted += (int64(n) - int64(i)) * d
	}

	s1 := int64(r.s1) + (sumIn - sumOut)
	s2 := int64(r.s2) - int64(r.length)*sumOut + int64(n)*int64(r.s1) + weighted
	r.s1 = uint32(mod64(s1, modulus))
	r.s2 = uint32(mod64(s2, modulus))
	return nil
}

func mod64(v int64, m int64) int64 {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

// Digest returns the raw (s1, s2, len) state.
func (r *RollingChecksum) Digest() (s1, s2 uint16, length uint32) {
	return uint16(r.s1), uint16(r.s2), r.length
}

// FromDigest restores a checksum from a previously captured Digest.
func FromDigest(s1, s2 uint16, length uint32) RollingChecksum {
	return RollingChecksum{s1: uint32(s1), s2: uint32(s2), length: length}
}

// Value returns the combined 32-bit rolling checksum value (s2<<16 | s1),
// matching the wire representation used by the block index.
func (r *RollingChecksum) Value() uint32 {
	return (r.s2 << 16) | r.s1
}
