package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleKV_GetPutDel(t *testing.T) {
	kv := NewSimpleKV()

	_, err := kv.Get("a")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Put("a", []byte("1")))
	value, err := kv.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	require.NoError(t, kv.Del("a"))
	require.ErrorIs(t, kv.Del("a"), ErrKeyNotFound)
}

func TestSimpleKV_RollbackRestores(t *testing.T) {
	kv := NewSimpleKV()
	require.NoError(t, kv.Put("a", []byte("1")))
	before, err := kv.Hash()
	require.NoError(t, err)

	require.NoError(t, kv.Begin())
	require.NoError(t, kv.Put("a", []byte("2")))
	require.NoError(t, kv.Put("b", []byte("3")))
	require.NoError(t, kv.Rollback())

	after, err := kv.Hash()
	require.NoError(t, err)
	require.Equal(t, before, after)
	_, err = kv.Get("b")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.Equal(t, 0, kv.Depth())
}

func TestSimpleKV_NestedCommitThenOuterRollback(t *testing.T) {
	kv := NewSimpleKV()
	require.NoError(t, kv.Put("a", []byte("1")))

	require.NoError(t, kv.Begin())
	require.NoError(t, kv.Begin())
	require.NoError(t, kv.Put("a", []byte("2")))
	require.NoError(t, kv.Del("a"))
	require.NoError(t, kv.Commit())
	_, err := kv.Get("a")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Rollback())
	value, err := kv.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)
}

func TestSimpleKV_CommitWithoutSavepoint(t *testing.T) {
	kv := NewSimpleKV()
	require.ErrorIs(t, kv.Commit(), ErrNoSavepoint)
	require.ErrorIs(t, kv.Rollback(), ErrNoSavepoint)
}

func TestSimpleKV_HashIsOrderIndependent(t *testing.T) {
	kv1 := NewSimpleKV()
	kv2 := NewSimpleKV()
	require.NoError(t, kv1.Put("x", []byte("1")))
	require.NoError(t, kv1.Put("y", []byte("2")))
	require.NoError(t, kv2.Put("y", []byte("2")))
	require.NoError(t, kv2.Put("x", []byte("1")))

	h1, err := kv1.Hash()
	require.NoError(t, err)
	h2, err := kv2.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}
