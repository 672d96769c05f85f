package blockindex

import (
	"hash"

	"github.com/ocrsync/rsync/internal/rsyncchecksum"
)

// DeltaOpKind distinguishes the three delta operation shapes.
type DeltaOpKind int

const (
	DeltaCopy DeltaOpKind = iota
	DeltaLiteral
	DeltaEnd
)

// DeltaOp is one instruction in the delta stream produced by Search: reuse
// basis bytes (Copy), emit inline bytes (Literal), or terminate (End).
type DeltaOp struct {
	Kind      DeltaOpKind
	SrcOffset uint64 // valid for DeltaCopy
	Len       uint32 // valid for DeltaCopy
	Bytes     []byte // valid for DeltaLiteral
}

// StrongHasher builds the strong-checksum hash used to confirm a weak
// match, matching the algorithm the Table's entries were built with.
type StrongHasher func() hash.Hash

// Search scans data (the new/source side of a transfer) against table (the
// basis side's block index) using a rolling checksum over windows of
// blockLen, emitting delta operations to emit. Ties between overlapping
// candidate matches are broken by earliest position: once a match is found
// at a position, the search advances past it rather than considering any
// match that would have started inside the copied range.
func Search(data []byte, blockLen uint32, table *Table, newHasher StrongHasher, emit func(DeltaOp) error) error {
	if blockLen == 0 {
		blockLen = 1
	}
	n := len(data)
	pos := 0
	var literal []byte

	flushLiteral := func() error {
		if len(literal) == 0 {
			return nil
		}
		b := literal
		literal = nil
		return emit(DeltaOp{Kind: DeltaLiteral, Bytes: b})
	}

	for pos < n {
		remain := n - pos
		if uint32(remain) < blockLen {
			// Not enough bytes left for a full block: flush the tail as a
			// literal, matching the basis-tail-mismatch case.
			literal = append(literal, data[pos:]...)
			pos = n
			break
		}

		window := data[pos : pos+int(blockLen)]
		var rc rsyncchecksum.RollingChecksum
		rc.Update(window)

		if match := findStrongMatch(table, rc.Value(), window, newHasher); match != nil {
			if err := flushLiteral(); err != nil {
				return err
			}
			if err := emit(DeltaOp{
				Kind:      DeltaCopy,
				SrcOffset: uint64(match.Index) * uint64(blockLen),
				Len:       match.BlockLen,
			}); err != nil {
				return err
			}
			pos += int(blockLen)
			continue
		}

		literal = append(literal, data[pos])
		pos++
	}

	if err := flushLiteral(); err != nil {
		return err
	}
	return emit(DeltaOp{Kind: DeltaEnd})
}

func findStrongMatch(table *Table, rolling uint32, window []byte, newHasher StrongHasher) *Entry {
	// Cheap O(1) rejection before ever hashing the window's strong
	// checksum.
	if !table.tagTableHas(rolling) {
		return nil
	}
	h := newHasher()
	h.Write(window)
	strong := h.Sum(nil)
	return table.FindMatch(rolling, strong)
}

func (t *Table) tagTableHas(rolling uint32) bool {
	return t.tagTable[rolling&0xFFFF]
}
