package pipeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := New(CodeEncoderInit, cause)

	assert.Equal(t, KindServer, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ENCODER_INIT_FAILED")
}

func TestNotFoundHelper(t *testing.T) {
	err := NotFound("input-1")
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, CodeNotFound, err.Code)
}

func TestAlreadyRegisteredHelper(t *testing.T) {
	err := AlreadyRegistered("input-1")
	assert.Equal(t, KindUser, err.Kind)
	assert.Equal(t, CodeAlreadyRegistered, err.Code)
}
