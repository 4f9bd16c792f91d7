package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// CalculateSHA256 returns hex digest and size of data from reader.
func CalculateSHA256(r io.Reader) (string, int64, error) {
	hash := sha256.New()
	size, err := io.Copy(hash, r)
	if err != nil {
		return "", size, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}

// Fingerprint returns deterministic dedup key for a submission.
//
// Key depends on problem slug, language and code shape, so resubmits
// of the same solution map to the same fingerprint while any edit to
// the code produces a new one.
func Fingerprint(slug, language, code string) string {
	digest := sha256.Sum256([]byte(code))
	return fmt.Sprintf(
		"%s:%s:%d:%s",
		slug, strings.ToLower(language), len(code),
		hex.EncodeToString(digest[:8]),
	)
}
