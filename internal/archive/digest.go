package archive

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

const digestPrefix = "blake3:"

// Digest returns the content digest sent alongside archive transfers.
func Digest(content []byte) string {
	sum := blake3.Sum256(content)
	return digestPrefix + hex.EncodeToString(sum[:])
}

// VerifyDigest reports whether content matches a digest produced by Digest.
func VerifyDigest(content []byte, digest string) (bool, error) {
	if !strings.HasPrefix(digest, digestPrefix) {
		return false, fmt.Errorf("unsupported digest %q", digest)
	}
	want := Digest(content)
	return subtle.ConstantTimeCompare([]byte(want), []byte(digest)) == 1, nil
}
