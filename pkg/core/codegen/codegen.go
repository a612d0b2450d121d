// Package codegen produces random short codes.
package codegen

import "math/rand/v2"

const (
	// Alphabet is the 62-symbol set short codes are drawn from
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length of generated codes
	Length = 6
)

// Generate returns a Length-character code with every symbol drawn
// independently and uniformly from Alphabet. It is not suitable for
// secrets; collisions are resolved by the store's unique constraint.
func Generate() string {
	b := make([]byte, Length)
	for i := range b {
		b[i] = Alphabet[rand.IntN(len(Alphabet))]
	}
	return string(b)
}

// IsAlphabet reports whether s is non-empty and uses only Alphabet symbols.
func IsAlphabet(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
