package rsyncfilter

// FilterSet holds the two ordered rule lists the engine evaluates:
// include_exclude gates transfer eligibility, protect_risk gates deletion.
type FilterSet struct {
	IncludeExclude []*FilterRule
	ProtectRisk    []*FilterRule
}

// NewFilterSet builds a FilterSet from a flat ordered rule list, routing
// each rule to the list(s) its action belongs to. Clear drops prior rules
// from the list(s) it targets.
func NewFilterSet(rules []*FilterRule) *FilterSet {
	fs := &FilterSet{}
	for _, r := range rules {
		if r == nil {
			continue
		}
		switch r.Action {
		case Include, Exclude:
			fs.IncludeExclude = append(fs.IncludeExclude, r)
		case Protect, Risk:
			fs.ProtectRisk = append(fs.ProtectRisk, r)
		case Clear:
			switch r.Side {
			case SideReceiver:
				fs.ProtectRisk = nil
			case SideSender:
				fs.IncludeExclude = nil
			default:
				fs.IncludeExclude = nil
				fs.ProtectRisk = nil
			}
		}
	}
	return fs
}

// Allows reports whether path is eligible for transfer: the first matching
// rule in include_exclude decides; no match includes.
func (fs *FilterSet) Allows(path string, isDir bool) bool {
	for _, r := range fs.IncludeExclude {
		if r.matches(path, isDir) {
			return r.Action == Include
		}
	}
	return true
}

// AllowsDeletion reports whether path may be removed from the destination:
// it must be included by the non-perishable include_exclude rules and must
// not match any protect rule.
func (fs *FilterSet) AllowsDeletion(path string, isDir bool) bool {
	included := true
	for _, r := range fs.IncludeExclude {
		if r.Perishable {
			continue
		}
		if r.matches(path, isDir) {
			included = r.Action == Include
			break
		}
	}
	if !included {
		return false
	}
	return !fs.protects(path, isDir)
}

// AllowsDeletionWhenExcludedRemoved is the inverse policy used by
// --delete-excluded: an excluded path becomes eligible for removal unless a
// protect rule still matches it.
func (fs *FilterSet) AllowsDeletionWhenExcludedRemoved(path string, isDir bool) bool {
	return !fs.protects(path, isDir)
}

func (fs *FilterSet) protects(path string, isDir bool) bool {
	for _, r := range fs.ProtectRisk {
		if r.matches(path, isDir) {
			return r.Action == Protect
		}
	}
	return false
}
