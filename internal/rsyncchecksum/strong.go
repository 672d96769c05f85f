package rsyncchecksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"

	"github.com/cespare/xxhash/v2"
	"github.com/mmcloughlin/md4"
	"github.com/zeebo/xxh3"
)

// SignatureAlgorithm tags which strong digest a session negotiated.
type SignatureAlgorithm int

const (
	SignatureMD4 SignatureAlgorithm = iota
	SignatureMD5
	SignatureSHA1
	SignatureXXH64
	SignatureXXH3_64
	SignatureXXH3_128
)

// MD5SeedOrder controls whether the checksum seed is appended or prepended
// to a block before the MD5 strong digest is finalized, or omitted
// entirely. Implementations in the wild differ on corner cases when the
// peer advertises CHKSUM_SEED_FIX; "proper" (append) is the default,
// matching §9's open-question resolution.
type MD5SeedOrder int

const (
	SeedAppend MD5SeedOrder = iota
	SeedPrepend
	SeedNone
)

// NewHasher returns a fresh hash.Hash for the given algorithm. seed and
// seedOrder only affect SignatureMD5; other algorithms ignore them (MD4
// callers fold the seed in separately, matching upstream's checksum-seed
// handling for the whole-file digest used by the file-list sender).
func NewHasher(alg SignatureAlgorithm, seed int32, seedOrder MD5SeedOrder) hash.Hash {
	switch alg {
	case SignatureMD4:
		return md4.New()
	case SignatureMD5:
		return newSeededMD5(seed, seedOrder)
	case SignatureSHA1:
		return sha1.New()
	case SignatureXXH64:
		return xxhash.New()
	case SignatureXXH3_64:
		return newXXH3_64()
	case SignatureXXH3_128:
		return newXXH3_128()
	default:
		return md4.New()
	}
}

// NewHasherByName resolves a --checksum-choice style name to a hasher,
// also covering the two stdlib-only algorithms usable for --checksum whole
// file comparisons (sha256, sha512) that have no rolling-checksum role.
func NewHasherByName(name string) (hash.Hash, bool) {
	switch name {
	case "md4":
		return md4.New(), true
	case "md5":
		return md5.New(), true
	case "sha1":
		return sha1.New(), true
	case "sha256":
		return sha256.New(), true
	case "sha512":
		return sha512.New(), true
	case "xxhash", "xxh64":
		return xxhash.New(), true
	case "xxh3", "xxh3-64":
		return newXXH3_64(), true
	case "xxh3-128":
		return newXXH3_128(), true
	default:
		return nil, false
	}
}

type seededMD5 struct {
	hash.Hash
	seed      int32
	seedOrder MD5SeedOrder
	primed    bool
}

func newSeededMD5(seed int32, order MD5SeedOrder) hash.Hash {
	h := &seededMD5{Hash: md5.New(), seed: seed, seedOrder: order}
	if order == SeedPrepend {
		h.writeSeed()
		h.primed = true
	}
	return h
}

func (h *seededMD5) writeSeed() {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(h.seed))
	h.Hash.Write(buf[:])
}

func (h *seededMD5) Sum(b []byte) []byte {
	if h.seedOrder == SeedAppend && !h.primed {
		h.writeSeed()
		h.primed = true
	}
	return h.Hash.Sum(b)
}

type xxh3_128 struct {
	h xxh3.Hasher
}

func newXXH3_128() hash.Hash { return &xxh3_128{} }

func (x *xxh3_128) Write(p []byte) (int, error) { return x.h.Write(p) }
func (x *xxh3_128) Reset()                      { x.h.Reset() }
func (x *xxh3_128) Size() int                    { return 16 }
func (x *xxh3_128) BlockSize() int               { return 32 }
func (x *xxh3_128) Sum(b []byte) []byte {
	s := x.h.Sum128()
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], s.Hi)
	binary.BigEndian.PutUint64(buf[8:16], s.Lo)
	return append(b, buf[:]...)
}

func newXXH3_64() hash.Hash {
	h := xxh3.New()
	return h
}

// CompareFullFileDigest reports whether two byte streams produce the same
// strong digest under alg, the helper behind --checksum.
func CompareFullFileDigest(alg SignatureAlgorithm, seed int32, seedOrder MD5SeedOrder, a, b []byte) bool {
	ha := NewHasher(alg, seed, seedOrder)
	ha.Write(a)
	hb := NewHasher(alg, seed, seedOrder)
	hb.Write(b)
	da, db := ha.Sum(nil), hb.Sum(nil)
	if len(da) != len(db) {
		return false
	}
	for i := range da {
		if da[i] != db[i] {
			return false
		}
	}
	return true
}
