package blockindex_test

import (
	"crypto/sha1"
	"hash"
	"testing"

	"github.com/ocrsync/rsync/internal/blockindex"
	"github.com/ocrsync/rsync/internal/rsyncchecksum"
)

func newSHA1() hash.Hash { return sha1.New() }

func blockEntries(data []byte, blockLen uint32) []blockindex.Entry {
	var entries []blockindex.Entry
	idx := 0
	for off := 0; off < len(data); off += int(blockLen) {
		end := off + int(blockLen)
		if end > len(data) {
			end = len(data)
		}
		block := data[off:end]
		var rc rsyncchecksum.RollingChecksum
		rc.Update(block)
		h := newSHA1()
		h.Write(block)
		entries = append(entries, blockindex.Entry{
			Index:           idx,
			RollingChecksum: rc.Value(),
			StrongChecksum:  h.Sum(nil),
			BlockLen:        uint32(len(block)),
		})
		idx++
	}
	return entries
}

func TestTagTableRejectsUnknownChecksum(t *testing.T) {
	table := blockindex.Build(blockEntries([]byte("aaaaaaaabbbbbbbb"), 8), false)
	if got := table.FindMatch(0xDEADBEEF, []byte("irrelevant")); got != nil {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestFindMatchConfirmsWithStrongChecksum(t *testing.T) {
	block := []byte("01234567")
	table := blockindex.Build(blockEntries(block, 8), false)

	var rc rsyncchecksum.RollingChecksum
	rc.Update(block)
	h := newSHA1()
	h.Write(block)

	got := table.FindMatch(rc.Value(), h.Sum(nil))
	if got == nil || got.Index != 0 {
		t.Fatalf("expected match at index 0, got %+v", got)
	}

	stats := table.Stats()
	if stats.TagHits == 0 || stats.StrongMatches == 0 {
		t.Fatalf("expected tag/strong hit counters to increase: %+v", stats)
	}
}

func TestSearchDeltaWithOneDifferingBlock(t *testing.T) {
	const blockLen = 8192
	const total = 204800

	source := make([]byte, total)
	for i := 0; i < 100000; i++ {
		source[i] = 0x00
	}
	for i := 100000; i < total; i++ {
		source[i] = 0xFF
	}

	dest := append([]byte(nil), source...)
	for i := 150000; i < 150100; i++ {
		dest[i] = 0x5A
	}

	table := blockindex.Build(blockEntries(dest, blockLen), false)

	var ops []blockindex.DeltaOp
	err := blockindex.Search(source, blockLen, table, newSHA1, func(op blockindex.DeltaOp) error {
		ops = append(ops, op)
		return nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if ops[len(ops)-1].Kind != blockindex.DeltaEnd {
		t.Fatalf("expected final op to be DeltaEnd, got %+v", ops[len(ops)-1])
	}

	// Reconstruct the file from ops applied to dest (the basis) and verify
	// it reproduces source exactly.
	var reconstructed []byte
	for _, op := range ops {
		switch op.Kind {
		case blockindex.DeltaCopy:
			reconstructed = append(reconstructed, dest[op.SrcOffset:op.SrcOffset+uint64(op.Len)]...)
		case blockindex.DeltaLiteral:
			reconstructed = append(reconstructed, op.Bytes...)
		}
	}
	if len(reconstructed) != len(source) {
		t.Fatalf("reconstructed length %d != source length %d", len(reconstructed), len(source))
	}
	for i := range source {
		if reconstructed[i] != source[i] {
			t.Fatalf("mismatch at offset %d: got %x want %x", i, reconstructed[i], source[i])
		}
	}

	// The divergent region spans blocks 150000/8192=18 and 150100/8192=18,
	// so at least one literal op must have been emitted while most of the
	// file is reconstructed via copies.
	var copies, literals int
	for _, op := range ops {
		switch op.Kind {
		case blockindex.DeltaCopy:
			copies++
		case blockindex.DeltaLiteral:
			literals++
		}
	}
	if copies == 0 {
		t.Fatal("expected at least one copy op")
	}
	if literals == 0 {
		t.Fatal("expected at least one literal op for the differing region")
	}
}

func TestSearchIdenticalFilesAllCopies(t *testing.T) {
	const blockLen = 700
	data := make([]byte, 7000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	table := blockindex.Build(blockEntries(data, blockLen), false)

	var literalBytes int
	err := blockindex.Search(data, blockLen, table, newSHA1, func(op blockindex.DeltaOp) error {
		if op.Kind == blockindex.DeltaLiteral {
			literalBytes += len(op.Bytes)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if literalBytes != 0 {
		t.Fatalf("expected zero literal bytes for identical files, got %d", literalBytes)
	}
}
