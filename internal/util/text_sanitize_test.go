package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeTextStripsNULAndControls(t *testing.T) {
	in := "hello\x00 world\x01\x02"
	require.Equal(t, "hello world", SanitizeText(in))
}

func TestSanitizeTextKeepsWhitespace(t *testing.T) {
	in := "line one\n\tline two\r\n"
	require.Equal(t, "line one\n\tline two", SanitizeText(in))
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "a   b\t\tc\n\n\n\nnext  paragraph\n"
	require.Equal(t, "a b c\n\nnext paragraph", NormalizeWhitespace(in))
}
