package zipflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	cause := errors.New("disk full")
	err := newError(KindIO, "writing entry", cause)
	require.True(t, Is(err, KindIO))
	require.False(t, Is(err, KindBadPassword))
	require.ErrorIs(t, err, cause)
}

func TestIsFalseForPlainError(t *testing.T) {
	require.False(t, Is(errors.New("plain"), KindIO))
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := newError(KindWrongState, "Finish called twice", nil)
	require.Equal(t, "zipflow: WrongState: Finish called twice", err.Error())
}
