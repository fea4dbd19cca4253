package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryAddLookupRemove(t *testing.T) {
	r := NewRegistry()
	s := newTestSeed(t, 0x10, "pw")
	require.Same(t, s, r.Add(s))

	dup := FromClosed(s.Closed())
	require.Same(t, s, r.Add(dup), "same hash keeps the first handle")

	got, ok := r.LookupSeed(s.Hash())
	require.True(t, ok)
	require.Same(t, s, got)
	require.Equal(t, 1, r.Len())

	require.True(t, r.Remove(s.Hash()))
	require.False(t, s.IsOpen(), "removal locks the seed")
	_, ok = r.LookupSeed(s.Hash())
	require.False(t, ok)
	require.False(t, r.Remove(s.Hash()))
}

func TestRegistryUnlockAndLock(t *testing.T) {
	r := NewRegistry()
	s := newTestSeed(t, 0x11, "pw")
	s.Lock()
	r.Add(s)

	require.ErrorIs(t, r.Unlock(s.Hash(), []byte("bad")), ErrWrongPasswordOrCorrupt)
	require.NoError(t, r.Unlock(s.Hash(), []byte("pw")))
	require.True(t, s.IsOpen())

	require.NoError(t, r.Lock(s.Hash()))
	require.False(t, s.IsOpen())

	var unknown SeedHash
	require.ErrorIs(t, r.Unlock(unknown, []byte("pw")), ErrSeedNotFound)
	require.ErrorIs(t, r.Lock(unknown), ErrSeedNotFound)
}

func TestRegistryThrottlesUnlock(t *testing.T) {
	now := time.Unix(5000, 0)
	r := NewRegistry(WithUnlockLimit(0.1, 2), withClock(func() time.Time { return now }))
	s := newTestSeed(t, 0x12, "pw")
	s.Lock()
	r.Add(s)

	require.ErrorIs(t, r.Unlock(s.Hash(), []byte("x")), ErrWrongPasswordOrCorrupt)
	require.ErrorIs(t, r.Unlock(s.Hash(), []byte("y")), ErrWrongPasswordOrCorrupt)
	require.ErrorIs(t, r.Unlock(s.Hash(), []byte("pw")), ErrUnlockThrottled)

	now = now.Add(10 * time.Second)
	require.NoError(t, r.Unlock(s.Hash(), []byte("pw")))
}

func TestRegistryLockAllAndHashes(t *testing.T) {
	r := NewRegistry(WithUnlockLimit(0, 0))
	a := r.Add(newTestSeed(t, 0x13, "pw"))
	b := r.Add(newTestSeed(t, 0x14, "pw"))

	hashes := r.Hashes()
	require.Len(t, hashes, 2)
	require.True(t, string(hashes[0][:]) < string(hashes[1][:]))

	r.LockAll()
	require.False(t, a.IsOpen())
	require.False(t, b.IsOpen())
}
