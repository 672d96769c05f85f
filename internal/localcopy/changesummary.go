package localcopy

// ChangeKind classifies what happened to a processed entry.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangeCreated
	ChangeUpdated
	ChangeDeleted
	ChangeSkippedFiltered
	ChangeSkippedUnchanged
)

// SummaryFlags records which attributes differed from the destination,
// independent of ChangeKind — the same shape --itemize-changes renders
// from, though rendering itself is out of scope here (the caller's CLI
// layer formats these into text).
type SummaryFlags struct {
	SizeChanged    bool
	TimeChanged    bool
	PermsChanged   bool
	OwnerChanged   bool
	GroupChanged   bool
	ContentChanged bool
}

// ChangeSummary is the shape of a structured per-entry decision record,
// matching
// original_source/crates/cli/src/frontend/tests/itemize_format_upstream.rs's
// decision shape. No function in this package constructs or returns one,
// and the package never formats it to text.
type ChangeSummary struct {
	Name  string
	Kind  ChangeKind
	Flags SummaryFlags
}
