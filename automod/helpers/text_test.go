package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashOfString(t *testing.T) {
	assert := assert.New(t)

	// hashing function should be consistent over time
	assert.Equal("4e6f69c0e3d10992", HashOfString("dummy-value"))
}

func TestDedupeStrings(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"a", "b"}, DedupeStrings([]string{"a", "b", "a"}))
	assert.Nil(DedupeStrings(nil))
}

func TestLetterCase(t *testing.T) {
	assert := assert.New(t)

	upper, letters := LetterCase("HELLO world 123!!")
	assert.Equal(5, upper)
	assert.Equal(10, letters)

	upper, letters = LetterCase("ÉCOLE")
	assert.Equal(5, upper)
	assert.Equal(5, letters)

	upper, letters = LetterCase("1234 :) 🎉")
	assert.Equal(0, upper)
	assert.Equal(0, letters)
}
