package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_LocalFormat(t *testing.T) {
	got, ok := Normalize("0123456789", "+60")
	assert.True(t, ok)
	assert.Equal(t, "+60123456789", got)
}

func TestNormalize_InternationalPrefix(t *testing.T) {
	got, ok := Normalize("0060123456789", "+60")
	assert.True(t, ok)
	assert.Equal(t, "+60123456789", got)
}

func TestNormalize_AlreadyCanonical(t *testing.T) {
	got, ok := Normalize("+60123456789", "+60")
	assert.True(t, ok)
	assert.Equal(t, "+60123456789", got)
}

func TestNormalize_StripsFormatting(t *testing.T) {
	got, ok := Normalize("012-345 6789", "+60")
	assert.True(t, ok)
	assert.Equal(t, "+60123456789", got)

	got, ok = Normalize("(60) 12-345-6789", "+60")
	assert.True(t, ok)
	assert.Equal(t, "+60123456789", got)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"0123456789", "+60123456789", "0060123456789", "6012 345 6789"}
	for _, in := range inputs {
		first, ok := Normalize(in, "+60")
		if !ok {
			continue
		}
		second, ok := Normalize(first, "+60")
		assert.True(t, ok)
		assert.Equal(t, first, second, "input %q", in)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	cases := []string{"", "abc", "12345", "+6012345678901234567"}
	for _, in := range cases {
		_, ok := Normalize(in, "+60")
		assert.False(t, ok, "input %q", in)
	}
}

func TestNormalize_DefaultCountryCodeFallback(t *testing.T) {
	got, ok := Normalize("0123456789", "")
	assert.True(t, ok)
	assert.Equal(t, "+60123456789", got)
}
