package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayBuffersUntilFlush(t *testing.T) {
	backing := NewMemDB()
	defer backing.Close()

	overlay := NewOverlay(backing)
	require.NoError(t, overlay.Put([]byte("a"), []byte("1")))

	_, err := backing.Get([]byte("a"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	got, err := overlay.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	require.NoError(t, overlay.Flush())
	got, err = backing.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
}

func TestOverlayDiscardLeavesBackingUntouched(t *testing.T) {
	backing := NewMemDB()
	defer backing.Close()
	require.NoError(t, backing.Put([]byte("a"), []byte("1")))

	overlay := NewOverlay(backing)
	require.NoError(t, overlay.Put([]byte("a"), []byte("2")))
	require.NoError(t, overlay.Put([]byte("b"), []byte("3")))
	require.NoError(t, overlay.Delete([]byte("a")))
	overlay.Discard()

	got, err := backing.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
	ok, err := backing.Has([]byte("b"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOverlayDeleteShadowsBacking(t *testing.T) {
	backing := NewMemDB()
	defer backing.Close()
	require.NoError(t, backing.Put([]byte("a"), []byte("1")))

	overlay := NewOverlay(backing)
	require.NoError(t, overlay.Delete([]byte("a")))

	ok, err := overlay.Has([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, overlay.Flush())
	ok, err = backing.Has([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
}
