package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"
)

const tokenBytes = 16

// tokenSource is swapped in tests to force collisions.
var tokenSource io.Reader = rand.Reader

// generateToken returns 16 random bytes as 32 upper-case hex characters.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(tokenSource, buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
