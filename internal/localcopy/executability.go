package localcopy

import "io/fs"

const execBits = 0o111

// ReconcileExecutability implements spec §4.G "Executability": when
// --executability is set without --perms, only the three execute bits are
// carried from source to destination, and only within the read bits the
// destination already has — no other permission bits move.
func ReconcileExecutability(srcMode, dstMode fs.FileMode) fs.FileMode {
	if srcMode&execBits != 0 {
		return dstMode | readMaskFor(dstMode)
	}
	return dstMode &^ execBits
}

// readMaskFor expands each class's read bit into its own execute bit
// position, so execute is only set for classes that already have read.
func readMaskFor(mode fs.FileMode) fs.FileMode {
	var mask fs.FileMode
	if mode&0o400 != 0 {
		mask |= 0o100
	}
	if mode&0o040 != 0 {
		mask |= 0o010
	}
	if mode&0o004 != 0 {
		mask |= 0o001
	}
	return mask
}
