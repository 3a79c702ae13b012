package slug

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the set of characters a slug is drawn from. Every character is
// safe in a URL path segment and in a file name.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

const (
	// DefaultLength gives 192 bits of entropy.
	DefaultLength = 32
	// MaxLength is the longest file name most filesystems accept.
	MaxLength = 255
)

var ErrInvalidLength = fmt.Errorf("slug length must be between 1 and %d", MaxLength)

// New returns a random slug of n characters read from crypto/rand.
func New(n int) (string, error) {
	if n < 1 || n > MaxLength {
		return "", ErrInvalidLength
	}
	return gonanoid.Generate(Alphabet, n)
}

// Valid reports whether s is non-empty and only uses Alphabet characters.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
