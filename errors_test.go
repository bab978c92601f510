package vvsfs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vvsfs/vvsfs"
)

func TestDiskoErrorWithMessage(t *testing.T) {
	newErr := vvsfs.ErrBlockDeviceRequired.WithMessage("asdfqwerty")
	assert.Equal(
		t, "Block device required: asdfqwerty", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, vvsfs.ErrBlockDeviceRequired)
}

func TestDiskoErrorWrap(t *testing.T) {
	originalErr := errors.New("original error")
	newErr := vvsfs.ErrExists.Wrap(originalErr)
	expectedMessage := "File exists: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, vvsfs.ErrExists, "vvsfs error not set as parent")
}

func TestDiskoErrorChaining(t *testing.T) {
	newErr := vvsfs.ErrNoSpace.WithMessage("inode bitmap full").WithMessage("allocate")
	assert.Equal(t, "No space left on device: inode bitmap full: allocate", newErr.Error())
	assert.ErrorIs(t, newErr, vvsfs.ErrNoSpace)
}
