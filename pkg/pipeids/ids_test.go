package pipeids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInputIDIsUnique(t *testing.T) {
	a := NewInputID()
	b := NewInputID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}

func TestNewOutputIDIsUnique(t *testing.T) {
	a := NewOutputID()
	b := NewOutputID()
	assert.NotEqual(t, a, b)
}
