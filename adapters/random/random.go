// Package random provides randomness implementations.
package random

import (
	"crypto/rand"

	"github.com/glowdesk/aimeter/ports"
)

// alphabet for token strings: unambiguous lowercase alphanumerics.
const alphabet = "abcdefghijkmnpqrstuvwxyz23456789"

// Crypto uses crypto/rand.
type Crypto struct{}

// Bytes generates n random bytes.
func (Crypto) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// String generates a random string of n characters from the token alphabet.
func (c Crypto) String(n int) (string, error) {
	b, err := c.Bytes(n)
	if err != nil {
		return "", err
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b), nil
}

// Ensure interface compliance.
var _ ports.Random = Crypto{}
