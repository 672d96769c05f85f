// Package blockindex implements the two-level block lookup structure used
// to search for rolling-checksum matches against a set of basis blocks: a
// 65536-entry tag table for O(1) rejection, and a chained hash table for
// exact rolling-checksum matches, confirmed by a strong checksum compare.
package blockindex

import "sort"

// Entry is one basis block: its position in the sorted block list, its
// rolling checksum, its strong checksum, and its length (the final block
// of a file may be shorter than BlockLen).
type Entry struct {
	Index           int
	RollingChecksum uint32
	StrongChecksum  []byte
	BlockLen        uint32
}

// Table is the block index built once per file from the receiver's basis
// blocks, then read only during the match search.
type Table struct {
	entries  []Entry
	tagTable [1 << 16]bool
	chainMap map[uint32][]int // rolling checksum -> indexes into entries
	sorted   bool

	stats Stats
}

// Stats exposes efficiency counters for the double-filter lookup.
type Stats struct {
	Lookups        uint64
	TagHits        uint64
	FalseTagHits   uint64
	WeakMatches    uint64
	StrongMatches  uint64
}

// Build constructs a Table from triples of (rolling checksum, strong
// checksum, block length). When sortEntries is true the entries are sorted
// ascending by rolling checksum first, enabling sequential-scan strategies
// by callers that want them; lookup correctness does not depend on it.
func Build(entries []Entry, sortEntries bool) *Table {
	t := &Table{
		entries:  append([]Entry(nil), entries...),
		chainMap: make(map[uint32][]int, len(entries)),
	}
	if sortEntries {
		sort.Slice(t.entries, func(i, j int) bool {
			return t.entries[i].RollingChecksum < t.entries[j].RollingChecksum
		})
		t.sorted = true
	}
	for i, e := range t.entries {
		t.tagTable[e.RollingChecksum&0xFFFF] = true
		t.chainMap[e.RollingChecksum] = append(t.chainMap[e.RollingChecksum], i)
	}
	return t
}

// Sorted reports whether entries are sorted ascending by rolling checksum.
func (t *Table) Sorted() bool { return t.sorted }

// Len returns the number of entries in the table.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the table's entries in build (or sorted) order. The
// returned slice must not be mutated.
func (t *Table) Entries() []Entry { return t.entries }

// Stats returns a snapshot of the lookup efficiency counters.
func (t *Table) Stats() Stats { return t.stats }

// FindMatch looks up a candidate block by its rolling checksum, confirming
// with a byte-for-byte strong checksum compare, and returns the first
// matching entry (in chain order) or nil.
func (t *Table) FindMatch(rolling uint32, strong []byte) *Entry {
	t.stats.Lookups++
	if !t.tagTable[rolling&0xFFFF] {
		return nil
	}
	t.stats.TagHits++
	chain, ok := t.chainMap[rolling]
	if !ok {
		t.stats.FalseTagHits++
		return nil
	}
	t.stats.WeakMatches++
	for _, idx := range chain {
		e := &t.entries[idx]
		if bytesEqual(e.StrongChecksum, strong) {
			t.stats.StrongMatches++
			return e
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
