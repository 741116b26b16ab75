package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	for _, username := range []string{"admin", "j.doe", "ops-team_2", "abc"} {
		assert.NoError(t, ValidateUsername(username), username)
	}
	for _, username := range []string{"", "ab", "has space", "semi;colon", "way.too.long.name.that.exceeds.the.limit"} {
		assert.Error(t, ValidateUsername(username), username)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Skyline Catering", SanitizeString("  Skyline\x00 Catering\x1f  "))
	assert.Equal(t, "plain", SanitizeString("plain"))
	assert.Equal(t, "", SanitizeString("\x00\x1f\x7f"))
}
