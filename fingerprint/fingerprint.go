// Package fingerprint produces the fixed-width hex digests carried by evidence
// payloads. Every digest is "0x" followed by exactly 64 lowercase hex digits.
package fingerprint

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/ethereum/go-ethereum/crypto"
)

// Width is the length of an encoded fingerprint including the 0x prefix.
const Width = 66

const hexDigits = Width - 2

// Scheme selects the digest algorithm.
type Scheme string

const (
	// SchemeLegacy is the character code placeholder digest the oracle currently expects.
	SchemeLegacy Scheme = "legacy"
	// SchemeKeccak256 is a cryptographic digest with the same output contract.
	SchemeKeccak256 Scheme = "keccak256"
)

// ParseScheme validates a scheme name. The empty string selects SchemeLegacy.
func ParseScheme(name string) (Scheme, error) {
	switch Scheme(strings.ToLower(name)) {
	case "", SchemeLegacy:
		return SchemeLegacy, nil
	case SchemeKeccak256:
		return SchemeKeccak256, nil
	default:
		return "", fmt.Errorf("unknown fingerprint scheme %q", name)
	}
}

// Encode hashes input with the scheme.
func (s Scheme) Encode(input string) string {
	if s == SchemeKeccak256 {
		return Keccak256(input)
	}
	return Encode(input)
}

// Of joins parts with ':' and encodes the result.
func (s Scheme) Of(parts ...string) string {
	return s.Encode(strings.Join(parts, ":"))
}

// Encode is the legacy placeholder digest: every UTF-16 code unit of input is
// written as at least two hex digits, the concatenation is truncated to 64
// digits or left-padded with '0', and prefixed with 0x. It has no collision
// resistance.
func Encode(input string) string {
	var b strings.Builder
	for _, unit := range utf16.Encode([]rune(input)) {
		fmt.Fprintf(&b, "%02x", unit)
		if b.Len() >= hexDigits {
			break
		}
	}

	digits := b.String()
	if len(digits) > hexDigits {
		digits = digits[:hexDigits]
	}
	return "0x" + strings.Repeat("0", hexDigits-len(digits)) + digits
}

// Keccak256 returns the 0x-prefixed Keccak-256 digest of input.
func Keccak256(input string) string {
	return crypto.Keccak256Hash([]byte(input)).Hex()
}
