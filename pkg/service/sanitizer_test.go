package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	cases := map[string]struct {
		size, limit int
		tooLarge    bool
	}{
		"default under":  {DefaultMaxInputSize - 1, 0, false},
		"default exact":  {DefaultMaxInputSize, 0, false},
		"default over":   {DefaultMaxInputSize + 1, 0, true},
		"explicit over":  {6, 5, true},
		"explicit large": {DefaultMaxInputSize * 2, DefaultMaxInputSize * 2, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := SanitizeInput(strings.Repeat("a", tc.size), tc.limit)
			if tc.tooLarge {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeInput_ControlChars(t *testing.T) {
	cases := map[string]struct{ in, want string }{
		"plain action":   {`{"type":"addEmptyBody"}`, `{"type":"addEmptyBody"}`},
		"kept controls":  {"a\nb\tc\r", "a\nb\tc\r"},
		"ansi escape":    {"\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		"null byte":      {"Null\x00Byte", "NullByte"},
		"bell and del":   {"Ding\x07\x7f", "Ding"},
		"unicode intact": {`{"name":"çubuk"}`, `{"name":"çubuk"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := SanitizeInput(tc.in, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("bad\xff", 0)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
