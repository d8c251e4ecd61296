package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisplaySnippetCollapsesWhitespace(t *testing.T) {
	require.Equal(t, "one two three", DisplaySnippet("  one\n two\t three ", 100))
}

func TestDisplaySnippetTruncatesAtWordBoundary(t *testing.T) {
	in := "alpha beta gamma delta"
	out := DisplaySnippet(in, 12)
	require.Equal(t, "alpha beta...", out)
}

func TestDisplaySnippetShortInputUnchanged(t *testing.T) {
	require.Equal(t, "short", DisplaySnippet("short", 10))
	require.Equal(t, "", DisplaySnippet("   ", 10))
}

func TestSHA256HexFromReader(t *testing.T) {
	sum, err := SHA256HexFromReader(strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}
