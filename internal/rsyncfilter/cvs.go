package rsyncfilter

// CVSExcludeDefaults lists the fixed set of patterns rsync appends when
// --cvs-exclude is requested, mirroring CVS's own default ignore list.
var CVSExcludeDefaults = []string{
	"RCS", "SCCS", "CVS", "CVS.adm",
	"RCSLOG", "cvslog.*",
	"tags", "TAGS",
	".make.state", ".nse_depinfo",
	"*~", "#*", ".#*", ",*",
	"_$*", "*$",
	"*.old", "*.bak", "*.BAK", "*.orig", "*.rej",
	".del-*",
	"*.a", "*.olb", "*.o", "*.obj", "*.so", "*.exe",
	"*.Z", "*.elc", "*.ln",
	"core", ".svn/", ".git/", ".hg/", ".bzr/",
}

// CVSExcludeRules compiles CVSExcludeDefaults into filter rules. When
// perishable is true (protocol >= 30 behavior) the rules are marked
// perishable so they don't block deletion evaluation on their own.
func CVSExcludeRules(perishable bool) ([]*FilterRule, error) {
	rules := make([]*FilterRule, 0, len(CVSExcludeDefaults))
	for _, pattern := range CVSExcludeDefaults {
		r, err := newPatternRule(Exclude, pattern, pattern)
		if err != nil {
			return nil, err
		}
		r.Perishable = perishable
		rules = append(rules, r)
	}
	return rules, nil
}
