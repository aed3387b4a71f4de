package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSplitPart(t *testing.T) {
	part, err := GetSplitPart("Rank #42", "#", 1)
	assert.NoError(t, err)
	assert.Equal(t, "42", part)

	part, err = GetSplitPart("a#b#c", "#", 1)
	assert.NoError(t, err)
	assert.Equal(t, "b", part)

	_, err = GetSplitPart("no separator", "#", 1)
	assert.Error(t, err)

	_, err = GetSplitPart("a#b", "#", -1)
	assert.Error(t, err)
}
