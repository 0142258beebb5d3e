package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "basic URL",
			input:    "https://example.com/path",
			expected: "https://example.com/path",
		},
		{
			name:     "missing scheme defaults to https",
			input:    "example.com/path",
			expected: "https://example.com/path",
		},
		{
			name:     "uppercase host lowered",
			input:    "https://EXAMPLE.COM/Path",
			expected: "https://example.com/Path",
		},
		{
			name:     "default https port removal",
			input:    "https://example.com:443/path",
			expected: "https://example.com/path",
		},
		{
			name:     "default http port removal",
			input:    "http://example.com:80/path",
			expected: "http://example.com/path",
		},
		{
			name:     "empty path normalization",
			input:    "example.com",
			expected: "https://example.com/",
		},
		{
			name:     "query and fragment preserved",
			input:    "https://example.com/a?b=1#c",
			expected: "https://example.com/a?b=1#c",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  example.com  ",
			expected: "https://example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizeTarget(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNormalizeTargetRejectsInvalid(t *testing.T) {
	for _, input := range []string{
		"",
		"   ",
		"notahost",
		"ftp://example.com/file",
		"https://",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := NormalizeTarget(input)
			assert.Error(t, err)
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "drops query and fragment",
			input:    "https://example.com/page?utm=1#top",
			expected: "https://example.com/page",
		},
		{
			name:     "collapses trailing slashes",
			input:    "https://example.com/page///",
			expected: "https://example.com/page",
		},
		{
			name:     "lowercases host",
			input:    "https://Example.COM/Page",
			expected: "https://example.com/Page",
		},
		{
			name:     "root stays root",
			input:    "example.com",
			expected: "https://example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CanonicalKey(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCanonicalKeyIdempotent(t *testing.T) {
	inputs := []string{
		"https://example.com/page?a=1#x",
		"Example.com/Deep/Path/",
		"http://example.com:80/page//",
	}
	for _, input := range inputs {
		once, err := CanonicalKey(input)
		require.NoError(t, err)
		twice, err := CanonicalKey(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestKeyHashStable(t *testing.T) {
	a := KeyHash("https://example.com/")
	b := KeyHash("https://example.com/")
	c := KeyHash("https://example.org/")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestEquivalent(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "https://example.com/page", "https://example.com/page", true},
		{"ignores query", "https://example.com/page?x=1", "https://example.com/page", true},
		{"ignores fragment", "https://example.com/page#top", "https://example.com/page", true},
		{"ignores trailing slash", "https://example.com/page/", "https://example.com/page", true},
		{"ignores host case", "https://EXAMPLE.com/page", "https://example.com/page", true},
		{"different path", "https://example.com/other", "https://example.com/page", false},
		{"different host", "https://other.com/page", "https://example.com/page", false},
		{"path case matters", "https://example.com/Page", "https://example.com/page", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equivalent(tt.a, tt.b))
		})
	}
}

func TestFlipWWWHost(t *testing.T) {
	assert.Equal(t, "www.example.com", FlipWWWHost("example.com"))
	assert.Equal(t, "example.com", FlipWWWHost("www.example.com"))
	assert.Equal(t, "www.example.com:8080", FlipWWWHost("example.com:8080"))
	assert.Equal(t, "example.com:8080", FlipWWWHost("www.example.com:8080"))
}
