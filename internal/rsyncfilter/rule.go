// Package rsyncfilter compiles and evaluates rsync-style filter rules:
// include/exclude/protect/risk lists, merge-file expansion, and the
// first-match-wins matcher that gates both transfer and deletion.
package rsyncfilter

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ocrsync/rsync/internal/rsyncerr"
)

// Action is the effect a matching rule has.
type Action int

const (
	Include Action = iota
	Exclude
	Protect
	Risk
	Clear
	Merge
	DirMerge
)

func (a Action) String() string {
	switch a {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	case Protect:
		return "protect"
	case Risk:
		return "risk"
	case Clear:
		return "clear"
	case Merge:
		return "merge"
	case DirMerge:
		return "dir-merge"
	default:
		return "unknown"
	}
}

// Side records which role(s) a rule applies to.
type Side int

const (
	SideBoth Side = iota
	SideSender
	SideReceiver
)

// ModifierFlags is the set of single-character modifiers attached to a
// merge/dir-merge (or plain) rule.
type ModifierFlags struct {
	ExcludeKind  bool // '-'
	IncludeKind  bool // '+'
	CVS          bool // 'C'
	ExcludeSelf  bool // 'e'
	NoInherit    bool // 'n'
	WhitespaceSplit bool // 'w'
	Anchored     bool // '/'
}

// FilterRule is one compiled entry in a FilterSet.
type FilterRule struct {
	Action      Action
	Pattern     string
	Side        Side
	Perishable  bool
	Modifiers   ModifierFlags
	MergeFile   string // for Merge/DirMerge
	MergeOpts   ModifierFlags
	DirOnly     bool // pattern ended in '/'
	Anchored    bool // pattern began with '/'
	matcher     *patternMatcher
}

// matches reports whether path (slash-separated, relative to the transfer
// root) is matched by this rule's compiled pattern.
func (r *FilterRule) matches(path string, isDir bool) bool {
	if r.DirOnly && !isDir {
		return false
	}
	if r.matcher == nil {
		return false
	}
	return r.matcher.match(path)
}

// ParseRule parses one textual filter rule line (without merge-file
// expansion; Merge/DirMerge rules are returned unexpanded).
func ParseRule(line string) (*FilterRule, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
		return nil, nil
	}

	// Long-form keywords first.
	for kw, action := range map[string]Action{
		"include ":   Include,
		"exclude ":   Exclude,
		"protect ":   Protect,
		"risk ":      Risk,
		"hide ":      Exclude,
		"show ":      Include,
	} {
		if strings.HasPrefix(line, kw) {
			return newPatternRule(action, strings.TrimSpace(line[len(kw):]), line)
		}
	}
	if line == "clear" || line == "!" {
		return &FilterRule{Action: Clear}, nil
	}
	if strings.HasPrefix(line, "exclude-if-present=") || strings.HasPrefix(line, "exclude-if-present ") {
		marker := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "exclude-if-present="), "exclude-if-present "))
		return &FilterRule{Action: Exclude, Pattern: marker, Modifiers: ModifierFlags{}}, nil
	}
	if r, ok, err := parseMergeForm(line); ok {
		return r, err
	}

	// Short form: a single letter (possibly with modifiers), a separator,
	// then the pattern — e.g. "+ *.go", "-C" (no pattern, CVS marker only
	// appears via --cvs-exclude, not here).
	if len(line) < 1 {
		return nil, &rsyncerr.FilterCompile{Pattern: line, Source: "rule"}
	}

	head, rest, hasSpace := strings.Cut(line, " ")
	if !hasSpace {
		// Try splitting at the first char boundary, e.g. "+pattern".
		head, rest = line[:1], line[1:]
	}
	action, mods, err := classifyShortHead(head)
	if err != nil {
		return nil, err
	}
	switch action {
	case Clear:
		return &FilterRule{Action: Clear}, nil
	}
	rule, err := newPatternRule(action, strings.TrimSpace(rest), line)
	if err != nil {
		return nil, err
	}
	rule.Modifiers = mods
	rule.Perishable = false
	return rule, nil
}

func classifyShortHead(head string) (Action, ModifierFlags, error) {
	var mods ModifierFlags
	base := head
	// The first character is the directive; any trailing characters before
	// the pattern separator are modifiers (e.g. "-C" applies no pattern but
	// is handled via CVSExcludeRules directly, so this path only covers
	// per-rule modifiers like "-/" or "+/").
	if base == "" {
		return 0, mods, &rsyncerr.FilterCompile{Pattern: head, Source: "rule"}
	}
	directive := base[0]
	for _, m := range base[1:] {
		switch m {
		case '-':
			mods.ExcludeKind = true
		case '+':
			mods.IncludeKind = true
		case 'C':
			mods.CVS = true
		case 'e':
			mods.ExcludeSelf = true
		case 'n':
			mods.NoInherit = true
		case 'w':
			mods.WhitespaceSplit = true
		case '/':
			mods.Anchored = true
		}
	}
	if mods.CVS && mods.IncludeKind {
		return 0, mods, &rsyncerr.FilterCompile{Pattern: head, Source: "CVS modifier conflicts with include"}
	}
	switch directive {
	case '+':
		return Include, mods, nil
	case '-':
		return Exclude, mods, nil
	case 'P':
		return Protect, mods, nil
	case 'H':
		return Exclude, mods, nil
	case 'S':
		return Include, mods, nil
	case 'R':
		return Risk, mods, nil
	case '!':
		return Clear, mods, nil
	default:
		return 0, mods, &rsyncerr.FilterCompile{Pattern: head, Source: fmt.Sprintf("unknown directive %q", string(directive))}
	}
}

func newPatternRule(action Action, pattern string, source string) (*FilterRule, error) {
	if pattern == "" {
		return nil, &rsyncerr.FilterCompile{Pattern: source, Source: "missing pattern"}
	}
	anchored := strings.HasPrefix(pattern, "/")
	dirOnly := strings.HasSuffix(pattern, "/")
	cleanPattern := pattern
	if dirOnly {
		cleanPattern = strings.TrimSuffix(cleanPattern, "/")
	}
	m, err := compilePattern(cleanPattern, anchored)
	if err != nil {
		return nil, &rsyncerr.FilterCompile{Pattern: pattern, Source: err.Error()}
	}
	return &FilterRule{
		Action:   action,
		Pattern:  pattern,
		Anchored: anchored,
		DirOnly:  dirOnly,
		matcher:  m,
	}, nil
}

func parseMergeForm(line string) (*FilterRule, bool, error) {
	var action Action
	var rest string
	var scanMods bool
	switch {
	case strings.HasPrefix(line, "merge,"):
		action, scanMods = Merge, true
		rest = line[len("merge,"):]
	case strings.HasPrefix(line, "merge "):
		action = Merge
		rest = strings.TrimPrefix(line, "merge ")
	case line == "merge":
		return nil, false, &rsyncerr.FilterCompile{Pattern: line, Source: "missing merge file"}
	case strings.HasPrefix(line, "dir-merge,"):
		action, scanMods = DirMerge, true
		rest = line[len("dir-merge,"):]
	case strings.HasPrefix(line, "dir-merge "):
		action = DirMerge
		rest = strings.TrimPrefix(line, "dir-merge ")
	case strings.HasPrefix(line, "."):
		action, scanMods = Merge, true
		rest = strings.TrimPrefix(line, ".")
	case strings.HasPrefix(line, ":"):
		action, scanMods = DirMerge, true
		rest = strings.TrimPrefix(line, ":")
	default:
		return nil, false, nil
	}

	var mods ModifierFlags
	file := strings.TrimSpace(rest)
	if scanMods {
		mods, file = splitModsAndFile(rest)
	}
	if file == "" {
		return nil, true, &rsyncerr.FilterCompile{Pattern: line, Source: "missing merge file path"}
	}
	return &FilterRule{Action: action, MergeFile: file, MergeOpts: mods}, true, nil
}

// splitModsAndFile separates a leading mod-letter prefix (before any
// whitespace) from the trailing file path, for the ",MODS"/short-form
// merge syntaxes where modifiers directly precede the path.
func splitModsAndFile(rest string) (ModifierFlags, string) {
	var mods ModifierFlags
	i := 0
	for i < len(rest) {
		c := rest[i]
		switch c {
		case '-', '+', 'C', 'e', 'n', 'w', '/':
			i++
			continue
		}
		break
	}
	modChars, file := rest[:i], strings.TrimSpace(rest[i:])
	for _, m := range modChars {
		switch m {
		case '-':
			mods.ExcludeKind = true
		case '+':
			mods.IncludeKind = true
		case 'C':
			mods.CVS = true
		case 'e':
			mods.ExcludeSelf = true
		case 'n':
			mods.NoInherit = true
		case 'w':
			mods.WhitespaceSplit = true
		case '/':
			mods.Anchored = true
		}
	}
	return mods, file
}

type patternMatcher struct {
	raw      string
	anchored bool
}

func compilePattern(pattern string, anchored bool) (*patternMatcher, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	return &patternMatcher{raw: pattern, anchored: anchored}, nil
}

func (m *patternMatcher) match(path string) bool {
	path = strings.TrimPrefix(path, "/")
	if m.anchored {
		ok, _ := doublestar.Match(strings.TrimPrefix(m.raw, "/"), path)
		return ok
	}
	if !strings.Contains(m.raw, "/") {
		// Unanchored, separator-free patterns match against the basename
		// at any depth.
		base := path
		if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
			base = path[idx+1:]
		}
		ok, _ := doublestar.Match(m.raw, base)
		if ok {
			return true
		}
	}
	// Also try matching the pattern against any suffix of the path
	// components, mirroring rsync's non-anchored multi-component matching.
	parts := strings.Split(path, "/")
	for i := range parts {
		suffix := strings.Join(parts[i:], "/")
		if ok, _ := doublestar.Match(m.raw, suffix); ok {
			return true
		}
	}
	return false
}
