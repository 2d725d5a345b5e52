package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_IsVersion7(t *testing.T) {
	v := New()
	assert.False(t, IsNil(v))
	assert.EqualValues(t, 7, v.Version())
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("123e4567-e89b-12d3-a456-426614174000"))
	assert.False(t, Valid("img_abc123"))
	assert.False(t, Valid(""))
}
