package rsync_test

import (
	"testing"

	rsync "github.com/ocrsync/rsync"
)

func TestProtocolVersionClamp(t *testing.T) {
	cases := []struct {
		in        rsync.ProtocolVersion
		wantClamp rsync.ProtocolVersion
		wantFlag  bool
	}{
		{32, 32, false},
		{30, 30, false},
		{40, 32, true},
		{255, 32, true},
	}
	for _, c := range cases {
		got, clamped := c.in.Clamp()
		if got != c.wantClamp || clamped != c.wantFlag {
			t.Errorf("Clamp(%d) = (%d, %v), want (%d, %v)", c.in, got, clamped, c.wantClamp, c.wantFlag)
		}
	}
}

func TestProtocolVersionValid(t *testing.T) {
	if !rsync.ProtocolVersion(30).Valid() || !rsync.ProtocolVersion(32).Valid() {
		t.Fatal("expected 30 and 32 to be valid")
	}
	if rsync.ProtocolVersion(29).Valid() || rsync.ProtocolVersion(33).Valid() {
		t.Fatal("expected 29 and 33 to be invalid")
	}
}

func TestCompatibilityFlagsRoundTripUnknownBits(t *testing.T) {
	const unknown = rsync.CompatibilityFlags(1 << 20)
	f := rsync.CompatIncRecurse | rsync.CompatSafeFList | unknown
	if !f.Has(rsync.CompatIncRecurse) || !f.Has(rsync.CompatSafeFList) {
		t.Fatal("expected known bits to remain set")
	}
	if f&unknown == 0 {
		t.Fatal("expected unknown bit to be preserved round-trip")
	}
}

func TestKnownCompatibilityFlagsAscendingOrder(t *testing.T) {
	for i := 1; i < len(rsync.KnownCompatibilityFlags); i++ {
		prev := rsync.KnownCompatibilityFlags[i-1].Flag
		cur := rsync.KnownCompatibilityFlags[i].Flag
		if prev >= cur {
			t.Fatalf("KnownCompatibilityFlags not ascending at index %d: %v >= %v", i, prev, cur)
		}
	}
}

func TestParseKnownCompatibilityFlag(t *testing.T) {
	flag, ok := rsync.ParseKnownCompatibilityFlag("CF_SAFE_FLIST")
	if !ok || flag != rsync.CompatSafeFList {
		t.Fatalf("ParseKnownCompatibilityFlag(CF_SAFE_FLIST) = (%v, %v)", flag, ok)
	}
	if _, ok := rsync.ParseKnownCompatibilityFlag("CF_NOT_A_FLAG"); ok {
		t.Fatal("expected unknown name to fail")
	}
}
