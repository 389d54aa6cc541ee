package storage

import (
	"testing"

	"github.com/nspcc-dev/neo-exex/pkg/core/storage/dbconfig"
	"github.com/stretchr/testify/require"
)

func newLevelDBForTesting(t testing.TB) Store {
	ldbDir := t.TempDir()
	dbConfig := dbconfig.DBConfiguration{
		Type: dbconfig.LevelDB,
		LevelDBOptions: dbconfig.LevelDBOptions{
			DataDirectoryPath: ldbDir,
		},
	}
	newLevelStore, err := NewLevelDBStore(dbConfig.LevelDBOptions)
	require.Nil(t, err, "NewLevelDBStore error")
	return newLevelStore
}

func TestLevelDBReadOnly(t *testing.T) {
	ldbDir := t.TempDir()
	s, err := NewLevelDBStore(dbconfig.LevelDBOptions{DataDirectoryPath: ldbDir})
	require.NoError(t, err)
	require.NoError(t, s.PutChangeSet(map[string][]byte{"key": []byte("value")}))
	require.NoError(t, s.Close())

	ro, err := NewLevelDBStore(dbconfig.LevelDBOptions{DataDirectoryPath: ldbDir, ReadOnly: true})
	require.NoError(t, err)
	v, err := ro.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), v)
	require.NoError(t, ro.Close())

	_, err = NewLevelDBStore(dbconfig.LevelDBOptions{DataDirectoryPath: t.TempDir() + "/missing", ReadOnly: true})
	require.Error(t, err)
}
