package caerr

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestU_Error_MatchesKindAndCause(t *testing.T) {
	err := New("store", "ca/Root/ca.crt", ErrNotFound, fs.ErrNotExist)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, "store [ca/Root/ca.crt]: not found: file does not exist", err.Error())
}

func TestU_Error_NoCause(t *testing.T) {
	err := New("sign-csr", "", ErrNotACA, nil)

	assert.ErrorIs(t, err, ErrNotACA)
	assert.Equal(t, "sign-csr: certificate is not a CA", err.Error())
}

func TestU_Error_As(t *testing.T) {
	var wrapped error = Newf("create-ca", "Root", ErrAlreadyExists, "directory %s", "ca/Root")
	wrapped = errors.Join(errors.New("context"), wrapped)

	var target *Error
	if assert.ErrorAs(t, wrapped, &target) {
		assert.Equal(t, "create-ca", target.Op)
		assert.Equal(t, "Root", target.Name)
	}
}

func TestU_PartialTransactionError(t *testing.T) {
	cause := errors.New("rename failed")
	err := &PartialTransactionError{
		Name:      "Issuing",
		Committed: []string{"ca.crt", "ca.key"},
		Pending:   []string{"remove request"},
		Err:       cause,
	}

	assert.ErrorIs(t, err, ErrPartialTransaction)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "committed=[ca.crt, ca.key]")
}

func TestU_IsUserInput(t *testing.T) {
	assert.True(t, IsUserInput(New("wizard", "", ErrUserInput, nil)))
	assert.False(t, IsUserInput(New("wizard", "", ErrSigning, nil)))
	assert.False(t, IsUserInput(nil))
}
