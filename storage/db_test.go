package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()
	level, err := NewLevelDB(filepath.Join(dir, "level"))
	require.NoError(t, err)
	bolt, err := NewBoltDB(filepath.Join(dir, "state.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = level.Close()
		_ = bolt.Close()
	})
	return map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": level,
		"bolt":    bolt,
	}
}

func TestDatabaseBasicOperations(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			value, err := db.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), value)

			has, err := db.Has([]byte("k"))
			require.NoError(t, err)
			require.True(t, has)

			require.NoError(t, db.Delete([]byte("k")))
			has, err = db.Has([]byte("k"))
			require.NoError(t, err)
			require.False(t, has)
		})
	}
}

func TestBatchAppliesAllWrites(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("gone"), []byte("x")))
			batch := db.NewBatch()
			require.NoError(t, batch.Put([]byte("a"), []byte("1")))
			require.NoError(t, batch.Put([]byte("b"), []byte("2")))
			require.NoError(t, batch.Delete([]byte("gone")))
			require.Equal(t, 3, batch.Len())

			_, err := db.Get([]byte("a"))
			require.ErrorIs(t, err, ErrNotFound, "batch must not apply before Write")

			require.NoError(t, batch.Write())
			a, err := db.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), a)
			b, err := db.Get([]byte("b"))
			require.NoError(t, err)
			require.Equal(t, []byte("2"), b)
			_, err = db.Get([]byte("gone"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemDBReturnsCopies(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'
	stored, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), stored)
}
