package rsyncchecksum_test

import (
	"testing"

	"github.com/ocrsync/rsync/internal/rsyncchecksum"
)

func TestNewHasherProducesStableDigest(t *testing.T) {
	algs := []rsyncchecksum.SignatureAlgorithm{
		rsyncchecksum.SignatureMD4,
		rsyncchecksum.SignatureMD5,
		rsyncchecksum.SignatureSHA1,
		rsyncchecksum.SignatureXXH64,
		rsyncchecksum.SignatureXXH3_64,
		rsyncchecksum.SignatureXXH3_128,
	}
	for _, alg := range algs {
		h1 := rsyncchecksum.NewHasher(alg, 0, rsyncchecksum.SeedAppend)
		h1.Write([]byte("hello, rsync"))
		d1 := h1.Sum(nil)

		h2 := rsyncchecksum.NewHasher(alg, 0, rsyncchecksum.SeedAppend)
		h2.Write([]byte("hello, rsync"))
		d2 := h2.Sum(nil)

		if string(d1) != string(d2) {
			t.Fatalf("alg %v: non-deterministic digest", alg)
		}
		if len(d1) == 0 {
			t.Fatalf("alg %v: empty digest", alg)
		}
	}
}

func TestMD5SeedOrderChangesDigest(t *testing.T) {
	appendH := rsyncchecksum.NewHasher(rsyncchecksum.SignatureMD5, 1234, rsyncchecksum.SeedAppend)
	appendH.Write([]byte("payload"))
	appendSum := appendH.Sum(nil)

	prependH := rsyncchecksum.NewHasher(rsyncchecksum.SignatureMD5, 1234, rsyncchecksum.SeedPrepend)
	prependH.Write([]byte("payload"))
	prependSum := prependH.Sum(nil)

	noneH := rsyncchecksum.NewHasher(rsyncchecksum.SignatureMD5, 1234, rsyncchecksum.SeedNone)
	noneH.Write([]byte("payload"))
	noneSum := noneH.Sum(nil)

	if string(appendSum) == string(prependSum) {
		t.Fatal("expected append and prepend seed placements to differ")
	}
	if string(appendSum) == string(noneSum) {
		t.Fatal("expected seeded and unseeded digests to differ")
	}
}

func TestCompareFullFileDigest(t *testing.T) {
	a := []byte("the quick brown fox")
	b := []byte("the quick brown fox")
	c := []byte("the quick brown dog")

	if !rsyncchecksum.CompareFullFileDigest(rsyncchecksum.SignatureSHA1, 0, rsyncchecksum.SeedAppend, a, b) {
		t.Fatal("expected identical content to compare equal")
	}
	if rsyncchecksum.CompareFullFileDigest(rsyncchecksum.SignatureSHA1, 0, rsyncchecksum.SeedAppend, a, c) {
		t.Fatal("expected differing content to compare unequal")
	}
}

func TestNewHasherByName(t *testing.T) {
	names := []string{"md4", "md5", "sha1", "sha256", "sha512", "xxhash", "xxh3", "xxh3-128"}
	for _, name := range names {
		h, ok := rsyncchecksum.NewHasherByName(name)
		if !ok || h == nil {
			t.Fatalf("NewHasherByName(%q) failed", name)
		}
	}
	if _, ok := rsyncchecksum.NewHasherByName("not-a-real-algo"); ok {
		t.Fatal("expected unknown algorithm name to fail")
	}
}
