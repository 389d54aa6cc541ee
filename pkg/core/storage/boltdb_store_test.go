package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/neo-exex/pkg/core/storage/dbconfig"
	"github.com/stretchr/testify/require"
)

func newBoltStoreForTesting(t testing.TB) Store {
	d := t.TempDir()
	testFileName := filepath.Join(d, "test_bolt_db")
	boltDBStore, err := NewBoltDBStore(dbconfig.BoltDBOptions{FilePath: testFileName})
	require.NoError(t, err)
	return boltDBStore
}

func TestROBoltDB(t *testing.T) {
	d := t.TempDir()
	testFileName := filepath.Join(d, "test_ro_bolt_db")
	cfg := dbconfig.BoltDBOptions{
		FilePath: testFileName,
		ReadOnly: true,
	}

	// If DB doesn't exist, then error should be returned.
	_, err := NewBoltDBStore(cfg)
	require.Error(t, err)

	// Create the DB and try to open it in RO mode.
	cfg.ReadOnly = false
	store, err := NewBoltDBStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.PutChangeSet(map[string][]byte{"key": []byte("value")}))
	require.NoError(t, store.Close())
	cfg.ReadOnly = true

	store, err = NewBoltDBStore(cfg)
	require.NoError(t, err)
	v, err := store.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), v)
	// Changes must be prohibited.
	require.Error(t, store.PutChangeSet(map[string][]byte{"key": nil}))
	require.NoError(t, store.Close())
}

func TestBoltDBCreatesDir(t *testing.T) {
	d := filepath.Join(t.TempDir(), "sub", "dir")
	store, err := NewBoltDBStore(dbconfig.BoltDBOptions{FilePath: filepath.Join(d, "db")})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	_, err = os.Stat(d)
	require.NoError(t, err)
}
