package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: "0x" + strings.Repeat("0", 64),
		},
		{
			name:     "short input is left padded",
			input:    "abc",
			expected: "0x" + strings.Repeat("0", 58) + "616263",
		},
		{
			name:     "long input is truncated",
			input:    strings.Repeat("a", 40),
			expected: "0x" + strings.Repeat("61", 32),
		},
		{
			name:     "code points above 0xff keep all digits",
			input:    "é€",
			expected: "0x" + strings.Repeat("0", 58) + "e920ac",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Len(t, got, Width)
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	inputs := []string{"", "x", "did:test:abc", "nonce-123:c1", strings.Repeat("z", 1000), "日本語"}
	for _, in := range inputs {
		first := Encode(in)
		assert.Equal(t, first, Encode(in))
		assert.Len(t, first, Width)
		assert.True(t, strings.HasPrefix(first, "0x"))
	}
}

func TestKeccak256(t *testing.T) {
	// Keccak-256 of the empty string.
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", Keccak256(""))
	assert.Len(t, Keccak256("did:test:abc"), Width)
	assert.NotEqual(t, Keccak256("a"), Keccak256("b"))
}

func TestSchemes(t *testing.T) {
	s, err := ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, SchemeLegacy, s)

	s, err = ParseScheme("KECCAK256")
	require.NoError(t, err)
	assert.Equal(t, SchemeKeccak256, s)

	_, err = ParseScheme("sha1")
	assert.Error(t, err)

	assert.Equal(t, Encode("a:b"), SchemeLegacy.Of("a", "b"))
	assert.Equal(t, Keccak256("a:b"), SchemeKeccak256.Of("a", "b"))
}
