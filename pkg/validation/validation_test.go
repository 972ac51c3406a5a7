package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("alice"))
	assert.NoError(t, ValidateUserID("user_42-b"))
	assert.NoError(t, ValidateUserID("  alice  "), "surrounding whitespace is trimmed")

	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("   "))
	assert.Error(t, ValidateUserID("has space"))
	assert.Error(t, ValidateUserID("émile"))
	assert.Error(t, ValidateUserID(strings.Repeat("a", 65)))
}

func TestValidateDisplayName(t *testing.T) {
	assert.NoError(t, ValidateDisplayName("Alice A."))
	assert.NoError(t, ValidateDisplayName("Émile"))

	assert.Error(t, ValidateDisplayName(""))
	assert.Error(t, ValidateDisplayName("   "))
	assert.Error(t, ValidateDisplayName(strings.Repeat("a", 101)))
}
