package rsyncfilter_test

import (
	"testing"

	"github.com/ocrsync/rsync/internal/rsyncfilter"
)

func mustRules(t *testing.T, lines ...string) []*rsyncfilter.FilterRule {
	t.Helper()
	var rules []*rsyncfilter.FilterRule
	for _, l := range lines {
		r, err := rsyncfilter.ParseRule(l)
		if err != nil {
			t.Fatalf("ParseRule(%q): %v", l, err)
		}
		rules = append(rules, r)
	}
	return rules
}

func TestFirstMatchWinsFilter(t *testing.T) {
	fs := rsyncfilter.NewFilterSet(mustRules(t, "+ important.o", "- *.o", "- *"))

	cases := map[string]bool{
		"important.o": true,
		"main.o":       false,
		"notes.txt":    false,
	}
	for path, want := range cases {
		if got := fs.Allows(path, false); got != want {
			t.Errorf("Allows(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNoMatchIncludesByDefault(t *testing.T) {
	fs := rsyncfilter.NewFilterSet(mustRules(t, "- *.o"))
	if !fs.Allows("readme.md", false) {
		t.Fatal("expected unmatched path to be included")
	}
}

func TestClearDropsPriorRules(t *testing.T) {
	rules := mustRules(t, "- *.o")
	clear, err := rsyncfilter.ParseRule("clear")
	if err != nil {
		t.Fatal(err)
	}
	rules = append(rules, clear)
	fs := rsyncfilter.NewFilterSet(rules)
	if !fs.Allows("main.o", false) {
		t.Fatal("expected clear to drop the preceding exclude rule")
	}
}

func TestProtectBlocksDeletion(t *testing.T) {
	fs := rsyncfilter.NewFilterSet(mustRules(t, "P important.conf"))
	if fs.AllowsDeletion("important.conf", false) {
		t.Fatal("expected protected path to be ineligible for deletion")
	}
	if !fs.AllowsDeletion("scratch.tmp", false) {
		t.Fatal("expected unprotected path to be eligible for deletion")
	}
}

func TestDirOnlyPatternRequiresDirectory(t *testing.T) {
	fs := rsyncfilter.NewFilterSet(mustRules(t, "- build/"))
	if fs.Allows("build", false) != true {
		t.Fatal("expected non-directory named 'build' to be unaffected by a directory-only rule")
	}
	if fs.Allows("build", true) {
		t.Fatal("expected directory 'build' to be excluded")
	}
}

func TestCVSExcludeRulesMatchCommonArtifacts(t *testing.T) {
	rules, err := rsyncfilter.CVSExcludeRules(true)
	if err != nil {
		t.Fatal(err)
	}
	fs := rsyncfilter.NewFilterSet(rules)
	if fs.Allows("main.o", false) {
		t.Fatal("expected *.o to be excluded by CVS defaults")
	}
	if fs.Allows(".git", true) {
		t.Fatal("expected .git/ to be excluded by CVS defaults")
	}
	if !fs.Allows("main.go", false) {
		t.Fatal("expected main.go to remain included")
	}
}

func TestMergeExpansionInlinesFile(t *testing.T) {
	rule, err := rsyncfilter.ParseRule("merge rules.txt")
	if err != nil {
		t.Fatal(err)
	}
	reader := func(path string) ([]byte, error) {
		if path != "rules.txt" {
			t.Fatalf("unexpected merge file %q", path)
		}
		return []byte("+ keep.txt\n- *\n"), nil
	}
	expanded, err := rsyncfilter.ExpandMergeRules([]*rsyncfilter.FilterRule{rule}, reader, 0)
	if err != nil {
		t.Fatal(err)
	}
	fs := rsyncfilter.NewFilterSet(expanded)
	if !fs.Allows("keep.txt", false) {
		t.Fatal("expected keep.txt to be included after merge expansion")
	}
	if fs.Allows("other.txt", false) {
		t.Fatal("expected other.txt to be excluded after merge expansion")
	}
}

func TestMergeExpansionDepthExceeded(t *testing.T) {
	rule, err := rsyncfilter.ParseRule("merge a.txt")
	if err != nil {
		t.Fatal(err)
	}
	reader := func(path string) ([]byte, error) {
		return []byte("merge a.txt\n"), nil // self-referential, never terminates
	}
	if _, err := rsyncfilter.ExpandMergeRules([]*rsyncfilter.FilterRule{rule}, reader, 3); err == nil {
		t.Fatal("expected max-depth error for runaway merge recursion")
	}
}
