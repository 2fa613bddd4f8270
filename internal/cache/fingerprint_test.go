package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reply-gateway/internal/domain"
)

func TestFingerprint_Deterministic(t *testing.T) {
	turns := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}
	a := Fingerprint("附近有什么好吃的", turns)
	b := Fingerprint("附近有什么好吃的", append([]domain.ChatMessage(nil), turns...))
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestFingerprint_SensitiveToInputs(t *testing.T) {
	turns := []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}
	base := Fingerprint("hello", turns)

	require.NotEqual(t, base, Fingerprint("hello!", turns))
	require.NotEqual(t, base, Fingerprint("hello", []domain.ChatMessage{{Role: domain.RoleAssistant, Content: "hi"}}))
	require.NotEqual(t, base, Fingerprint("hello", nil))
}

func TestFingerprint_NilAndEmptyHistoryMatch(t *testing.T) {
	require.Equal(t, Fingerprint("x", nil), Fingerprint("x", []domain.ChatMessage{}))
}

func TestFingerprints_StoreAndLookup(t *testing.T) {
	f := New(time.Minute)
	_, ok := f.Lookup("k")
	require.False(t, ok)

	f.Store("k", "first")
	f.Store("k", "second")
	got, ok := f.Lookup("k")
	require.True(t, ok)
	require.Equal(t, "second", got)
	require.Equal(t, 1, f.Len())
}

func TestFingerprints_Expiry(t *testing.T) {
	f := New(30 * time.Millisecond)
	f.Store("k", "reply")

	got, ok := f.Lookup("k")
	require.True(t, ok)
	require.Equal(t, "reply", got)

	time.Sleep(80 * time.Millisecond)
	_, ok = f.Lookup("k")
	require.False(t, ok, "expired entries must not be served")
}

func TestNew_DefaultTTL(t *testing.T) {
	f := New(0)
	require.Equal(t, DefaultTTL, f.ttl)
}
