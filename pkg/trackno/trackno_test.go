package trackno

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "T1", Normalize("  t1 "))
	assert.Equal(t, "SF123-45_X", Normalize("sf123-45_x"))
	assert.Equal(t, "", Normalize("   "))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("T1"))
	assert.True(t, Valid("SF123-45_X"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("t1"), "lowercase is not normalized form")
	assert.False(t, Valid("T 1"))
	assert.False(t, Valid("T#1"))
}
