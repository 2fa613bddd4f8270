package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackReply_UsesPickedIndex(t *testing.T) {
	orig := pickIndex
	t.Cleanup(func() { pickIndex = orig })

	for i, want := range backupReplies {
		pickIndex = func(n int) int {
			require.Equal(t, len(backupReplies), n)
			return i
		}
		require.Equal(t, want, fallbackReply())
	}
}

func TestFallbackReply_NeverEmpty(t *testing.T) {
	require.GreaterOrEqual(t, len(backupReplies), 3)
	for range 50 {
		require.NotEmpty(t, fallbackReply())
	}
}
