package util

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// SHA256HexFromReader computes the hex digest of everything remaining in r.
func SHA256HexFromReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
