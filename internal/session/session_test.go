package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesUUID(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	parsed, err := uuid.Parse(s.ThreadID())
	require.NoError(t, err)
	require.Equal(t, uuid.Version(4), parsed.Version())
}

func TestNew_Unique(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)
	require.NotEqual(t, a.ThreadID(), b.ThreadID())
}

func TestNew_RandomnessFailure(t *testing.T) {
	orig := newRandom
	t.Cleanup(func() { newRandom = orig })
	newRandom = func() (uuid.UUID, error) { return uuid.Nil, errors.New("entropy exhausted") }

	_, err := New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "entropy exhausted")
}

func TestShort(t *testing.T) {
	s := Session{threadID: "0f8fad5b-d9cb-469f-a165-70867728950e"}
	require.Equal(t, "0f8fad5b", s.Short())
	require.Equal(t, "abc", Session{threadID: "abc"}.Short())
}

func TestThreadID_Stable(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	first := s.ThreadID()
	for i := 0; i < 5; i++ {
		require.Equal(t, first, s.ThreadID())
	}
}
