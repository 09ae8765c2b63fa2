package roomname

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z]+-[a-z]+-[a-z]+-\d{2}$`)
	seen := make(map[string]bool)
	for range 50 {
		name, err := Generate()
		require.NoError(t, err)
		assert.Regexp(t, pattern, name)
		seen[name] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestParse(t *testing.T) {
	tests := map[string]string{
		"cozy-otter-teapot-42":                             "cozy-otter-teapot-42",
		"  spaced  ":                                       "spaced",
		"https://mama-talk.onrender.com/room/cozy-otter":   "cozy-otter",
		"http://localhost:5173/room/abc/":                  "abc",
		"http://localhost:3000/room/with%20space?x=1#frag": "with space",
	}
	for in, want := range tests {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("   ")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("https://mama-talk.onrender.com/about")
	assert.ErrorIs(t, err, ErrNoRoom)

	_, err = Parse("https://mama-talk.onrender.com/room/")
	assert.ErrorIs(t, err, ErrNoRoom)
}
