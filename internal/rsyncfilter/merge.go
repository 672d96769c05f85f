package rsyncfilter

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ocrsync/rsync/internal/rsyncerr"
)

// DefaultMaxMergeDepth bounds recursive merge-rule inlining.
const DefaultMaxMergeDepth = 10

// FileReader abstracts reading a merge file's contents, letting tests
// substitute an in-memory filesystem instead of touching disk.
type FileReader func(path string) ([]byte, error)

// OSFileReader reads merge files from the real filesystem.
func OSFileReader(path string) ([]byte, error) { return os.ReadFile(path) }

// ExpandMergeRules walks rules, recursively inlining Merge entries (reading
// their file and parsing each line as a rule) up to maxDepth. DirMerge
// entries are left untouched — they are expanded per-directory at
// traversal time by the caller, not here. If maxDepth <= 0,
// DefaultMaxMergeDepth is used.
func ExpandMergeRules(rules []*FilterRule, read FileReader, maxDepth int) ([]*FilterRule, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxMergeDepth
	}
	return expandMergeRules(rules, read, maxDepth, 0)
}

func expandMergeRules(rules []*FilterRule, read FileReader, maxDepth, depth int) ([]*FilterRule, error) {
	if depth > maxDepth {
		return nil, &rsyncerr.FilterCompile{Pattern: "", Source: fmt.Sprintf("merge depth exceeded max of %d", maxDepth)}
	}
	var out []*FilterRule
	for _, r := range rules {
		if r == nil {
			continue
		}
		if r.Action != Merge {
			out = append(out, r)
			continue
		}
		data, err := read(r.MergeFile)
		if err != nil {
			return nil, &rsyncerr.FilterCompile{Pattern: r.MergeFile, Source: fmt.Sprintf("reading merge file: %v", err)}
		}
		parsed, err := parseMergeFileContents(string(data), r.MergeOpts)
		if err != nil {
			return nil, err
		}
		if !r.MergeOpts.ExcludeSelf {
			expanded, err := expandMergeRules(parsed, read, maxDepth, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		} else {
			selfExclude, err := newPatternRule(Exclude, r.MergeFile, r.MergeFile)
			if err != nil {
				return nil, err
			}
			expanded, err := expandMergeRules(parsed, read, maxDepth, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
			out = append(out, selfExclude)
		}
	}
	return out, nil
}

func parseMergeFileContents(contents string, opts ModifierFlags) ([]*FilterRule, error) {
	var rules []*FilterRule
	scanner := bufio.NewScanner(strings.NewReader(contents))
	for scanner.Scan() {
		line := scanner.Text()
		if opts.CVS {
			for _, tok := range strings.Fields(line) {
				r, err := newPatternRule(Exclude, tok, line)
				if err != nil {
					return nil, err
				}
				r.Perishable = true
				rules = append(rules, r)
			}
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		r, err := ParseRule(applyDefaultDirective(trimmed, opts))
		if err != nil {
			return nil, err
		}
		if r != nil {
			rules = append(rules, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &rsyncerr.FilterCompile{Pattern: "", Source: err.Error()}
	}
	return rules, nil
}

// applyDefaultDirective prefixes bare patterns (no leading directive) with
// the merge's default include/exclude kind, per the '+'/'-' merge
// modifiers.
func applyDefaultDirective(line string, opts ModifierFlags) string {
	if line == "" {
		return line
	}
	switch line[0] {
	case '+', '-', '!', '.', ':', 'P', 'H', 'S', 'R':
		return line
	}
	if strings.HasPrefix(line, "merge") || strings.HasPrefix(line, "dir-merge") ||
		strings.HasPrefix(line, "include") || strings.HasPrefix(line, "exclude") ||
		strings.HasPrefix(line, "protect") || strings.HasPrefix(line, "risk") ||
		strings.HasPrefix(line, "hide") || strings.HasPrefix(line, "show") ||
		strings.HasPrefix(line, "clear") {
		return line
	}
	if opts.IncludeKind {
		return "+ " + line
	}
	return "- " + line
}
