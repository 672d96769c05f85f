package daemonauth

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"

	"github.com/mmcloughlin/md4"
)

// Digest names the response hash the client and server negotiated via
// greeting-line extensions, per spec §4.I "Response verification".
type Digest string

const (
	DigestMD4    Digest = "MD4"
	DigestMD5    Digest = "MD5"
	DigestSHA1   Digest = "SHA1"
	DigestSHA256 Digest = "SHA256"
	DigestSHA512 Digest = "SHA512"
)

func newHasher(d Digest) (hash.Hash, error) {
	switch d {
	case DigestMD4:
		return md4.New(), nil
	case DigestMD5:
		return md5.New(), nil
	case DigestSHA1:
		return sha1.New(), nil
	case DigestSHA256:
		return sha256.New(), nil
	case DigestSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported daemon-auth digest %q", d)
	}
}

// ExpectedResponse computes Base64(Digest(password || challenge)), the
// value the client is expected to send.
func ExpectedResponse(d Digest, password, challenge string) (string, error) {
	h, err := newHasher(d)
	if err != nil {
		return "", err
	}
	h.Write([]byte(password))
	h.Write([]byte(challenge))
	return base64.RawStdEncoding.EncodeToString(h.Sum(nil)), nil
}

// VerifyResponse reports whether response matches the digest rsync would
// compute for password and challenge under d, using a constant-time
// comparison so timing cannot leak how many leading bytes matched.
func VerifyResponse(d Digest, password, challenge, response string) (bool, error) {
	want, err := ExpectedResponse(d, password, challenge)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(want), []byte(response)), nil
}
