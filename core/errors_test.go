package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindMatching(t *testing.T) {
	err := Errorf(UnknownTable, "table %s does not exist", "users")

	assert.True(t, errors.Is(err, ErrUnknownTable))
	assert.False(t, errors.Is(err, ErrSyntax))
	assert.Equal(t, "table users does not exist", err.Error())

	wrapped := fmt.Errorf("exec: %w", err)
	assert.Equal(t, UnknownTable, KindOf(wrapped))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, NoError, KindOf(nil))
	assert.Equal(t, StorageError, KindOf(errors.New("disk full")))
	assert.Equal(t, StorageError, KindOf(Wrap(StorageError, errors.New("disk full"), "commit failed")))
	assert.Nil(t, Wrap(StorageError, nil, "nothing"))
}

func TestErrorMessageFallsBackToKind(t *testing.T) {
	assert.Equal(t, "AlreadyClosed", ErrAlreadyClosed.Error())
}
