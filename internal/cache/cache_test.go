package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testValue struct {
	Name  string    `json:"name"`
	When  time.Time `json:"when"`
	Count int       `json:"count"`
}

func TestPutGetRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	in := testValue{
		Name:  "Beach cleanup",
		When:  time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
		Count: 5,
	}
	require.NoError(t, store.Put("events", in))

	var out testValue
	require.NoError(t, store.Get("events", &out))
	assert.Equal(t, in, out)
}

func TestGetMiss(t *testing.T) {
	store := NewStore(t.TempDir())

	var out testValue
	err := store.Get("events", &out)
	require.ErrorIs(t, err, ErrMiss)
}

func TestPutOverwritesWholeValue(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Put("events", []string{"a", "b", "c"}))
	require.NoError(t, store.Put("events", []string{"z"}))

	var out []string
	require.NoError(t, store.Get("events", &out))
	// Full overwrite, no merge with the previous value.
	assert.Equal(t, []string{"z"}, out)
}

func TestKeysAreIndependent(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Put("events", "events-value"))
	require.NoError(t, store.Put("profile", "profile-value"))

	var events, profile string
	require.NoError(t, store.Get("events", &events))
	require.NoError(t, store.Get("profile", &profile))
	assert.Equal(t, "events-value", events)
	assert.Equal(t, "profile-value", profile)
}

func TestEmptyKeyRejected(t *testing.T) {
	store := NewStore(t.TempDir())

	require.Error(t, store.Put("", "x"))
	var out string
	require.Error(t, store.Get("", &out))
}
