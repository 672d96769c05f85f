package localcopy

import (
	"os"
	"path/filepath"
)

// FindFuzzyBasis implements the supplemented fuzzy basis-file feature: when
// destName does not exist, look for a same-directory sibling whose name is
// "close enough" to use as a delta basis instead of transferring the file
// literally. Grounded on original_source/crates/engine/src/fuzzy.rs.
//
// The similarity measure is the raw (unnormalized) sum of the common-prefix
// and common-suffix lengths plus 2 for an equal extension — good enough to catch the common
// case (renamed or re-versioned files) without pulling in an edit-distance
// library no example in the pack uses for this purpose.
func FindFuzzyBasis(destDir, destName string) (string, bool) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", false
	}
	best := ""
	bestScore := 0
	for _, e := range entries {
		if e.IsDir() || e.Name() == destName {
			continue
		}
		score := similarity(destName, e.Name())
		if score > bestScore {
			bestScore = score
			best = e.Name()
		}
	}
	if best == "" || bestScore < minFuzzyScore {
		return "", false
	}
	return filepath.Join(destDir, best), true
}

const minFuzzyScore = 3

func similarity(a, b string) int {
	score := commonPrefixLen(a, b) + commonSuffixLen(a, b)
	if filepath.Ext(a) != "" && filepath.Ext(a) == filepath.Ext(b) {
		score += 2
	}
	return score
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}
