package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(SetLanguage("en-US"))
	assert.Equal("line 12 bad", From("line %d %v", 12, "bad"))
	assert.Equal("0x00ff", From("0x%04x", 0xff))
}

func TestSetLanguage(t *testing.T) {
	assert := assert.New(t)

	assert.Error(SetLanguage("not a language!"))
	assert.NoError(SetLanguage(""))
	assert.NotEmpty(From("ok"))
}
