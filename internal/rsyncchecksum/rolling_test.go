package rsyncchecksum_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/ocrsync/rsync/internal/rsyncchecksum"
)

func freshSum(data []byte) rsyncchecksum.RollingChecksum {
	var r rsyncchecksum.RollingChecksum
	r.Update(data)
	return r
}

func TestUpdateSplitEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(300)
		data := make([]byte, n)
		rng.Read(data)
		for k := 0; k <= n; k++ {
			var a rsyncchecksum.RollingChecksum
			a.Update(data)

			var b rsyncchecksum.RollingChecksum
			b.Update(data[:k])
			b.Update(data[k:])

			if a != b {
				t.Fatalf("split at %d/%d mismatch: whole=%+v split=%+v", k, n, a, b)
			}
		}
	}
}

func TestRollMatchesReprime(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	data := make([]byte, 500)
	rng.Read(data)
	const w = 37
	for i := 1; i <= len(data)-w; i++ {
		var primed rsyncchecksum.RollingChecksum
		primed.Update(data[0:w])
		// advance i times by rolling
		cur := primed
		for j := 0; j < i; j++ {
			if err := cur.Roll(data[j], data[j+w]); err != nil {
				t.Fatalf("roll: %v", err)
			}
		}

		var fresh rsyncchecksum.RollingChecksum
		fresh.Update(data[i : i+w])

		if cur.Value() != fresh.Value() {
			t.Fatalf("at i=%d: rolled=%x fresh=%x", i, cur.Value(), fresh.Value())
		}
	}
}

func TestRollManyMatchesElementwiseRoll(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data := make([]byte, 400)
	rng.Read(data)
	const w = 50
	out := data[0:30]
	in := data[w : w+30]

	var viaMany rsyncchecksum.RollingChecksum
	viaMany.Update(data[0:w])
	if err := viaMany.RollMany(out, in); err != nil {
		t.Fatalf("RollMany: %v", err)
	}

	var viaRoll rsyncchecksum.RollingChecksum
	viaRoll.Update(data[0:w])
	for i := range out {
		if err := viaRoll.Roll(out[i], in[i]); err != nil {
			t.Fatalf("Roll: %v", err)
		}
	}

	if viaMany != viaRoll {
		t.Fatalf("RollMany=%+v elementwise=%+v", viaMany, viaRoll)
	}
}

func TestRollEmptyWindow(t *testing.T) {
	var r rsyncchecksum.RollingChecksum
	if err := r.Roll(1, 2); err == nil {
		t.Fatal("expected EmptyWindow error")
	}
}

func TestRollManyMismatchedLength(t *testing.T) {
	var r rsyncchecksum.RollingChecksum
	r.Update([]byte("hello"))
	if err := r.RollMany([]byte{1, 2}, []byte{1}); err == nil {
		t.Fatal("expected MismatchedSliceLength error")
	}
}

func TestDigestRoundTrip(t *testing.T) {
	var r rsyncchecksum.RollingChecksum
	r.Update([]byte("the quick brown fox"))
	s1, s2, length := r.Digest()
	restored := rsyncchecksum.FromDigest(s1, s2, length)
	if restored.Value() != r.Value() {
		t.Fatalf("restored value %x != original %x", restored.Value(), r.Value())
	}
}

func TestUpdateReaderWithBuffer(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 1000)
	var viaReader rsyncchecksum.RollingChecksum
	n, err := viaReader.UpdateReaderWithBuffer(bytes.NewReader(data), make([]byte, 64))
	if err != nil {
		t.Fatalf("UpdateReaderWithBuffer: %v", err)
	}
	if n != uint64(len(data)) {
		t.Fatalf("got %d bytes, want %d", n, len(data))
	}

	var viaUpdate rsyncchecksum.RollingChecksum
	viaUpdate.Update(data)

	if viaReader.Value() != viaUpdate.Value() {
		t.Fatalf("reader-based=%x direct=%x", viaReader.Value(), viaUpdate.Value())
	}
}

func TestUpdateReaderWithBufferEmptyBuffer(t *testing.T) {
	var r rsyncchecksum.RollingChecksum
	if _, err := r.UpdateReaderWithBuffer(bytes.NewReader([]byte("x")), nil); err == nil {
		t.Fatal("expected error for empty buffer")
	}
}

func TestResetClearsState(t *testing.T) {
	r := freshSum([]byte("non-empty"))
	r.Reset()
	if r.Value() != 0 || r.Len() != 0 {
		t.Fatalf("expected zero state after Reset, got value=%x len=%d", r.Value(), r.Len())
	}
}
