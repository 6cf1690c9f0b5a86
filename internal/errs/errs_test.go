package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotFound("group not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAuthorization))

	wrapped := fmt.Errorf("leave group: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Server("failed to save photo", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrServer))
	assert.Contains(t, err.Error(), "disk full")
}

func TestMessageHidesServerErrors(t *testing.T) {
	assert.Equal(t, "Internal server error", Message(Server("db down", errors.New("conn refused"))))
	assert.Equal(t, "Internal server error", Message(errors.New("plain")))
	assert.Equal(t, "invalid credentials", Message(Authentication("invalid credentials")))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}
