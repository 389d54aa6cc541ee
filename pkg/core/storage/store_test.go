package storage

import (
	"bytes"
	"reflect"
	"runtime"
	"sort"
	"testing"

	"github.com/nspcc-dev/neo-exex/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/neo-exex/pkg/util/slice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dbSetup struct {
	name   string
	create func(testing.TB) Store
}

type dbTestFunction func(*testing.T, Store)

func testStoreGetNonExistent(t *testing.T, s Store) {
	key := []byte("sparse")

	_, err := s.Get(key)
	assert.Equal(t, err, ErrKeyNotFound)
}

func testStorePutChangeSet(t *testing.T, s Store) {
	require.NoError(t, s.PutChangeSet(map[string][]byte{
		"foo": []byte("bar"),
		"baz": []byte("qux"),
	}))
	v, err := s.Get([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), v)

	require.NoError(t, s.PutChangeSet(map[string][]byte{
		"foo": nil,
		"baz": []byte("quux"),
		"new": []byte("1"),
	}))
	_, err = s.Get([]byte("foo"))
	require.ErrorIs(t, err, ErrKeyNotFound)
	v, err = s.Get([]byte("baz"))
	require.NoError(t, err)
	require.Equal(t, []byte("quux"), v)

	// Deleting missing keys is fine.
	require.NoError(t, s.PutChangeSet(map[string][]byte{"missing": nil}))
}

func pushSeekDataSet(t *testing.T, s Store) []KeyValue {
	// Use the same set of kvs to test Seek with different prefix/start values.
	kvs := []KeyValue{
		{[]byte("10"), []byte("bar")},
		{[]byte("11"), []byte("bara")},
		{[]byte("20"), []byte("barb")},
		{[]byte("21"), []byte("barc")},
		{[]byte("22"), []byte("bard")},
		{[]byte("30"), []byte("bare")},
		{[]byte("31"), []byte("barf")},
	}
	puts := make(map[string][]byte, len(kvs))
	for _, v := range kvs {
		puts[string(v.Key)] = v.Value
	}
	require.NoError(t, s.PutChangeSet(puts))
	return kvs
}

func testStoreSeek(t *testing.T, s Store) {
	kvs := pushSeekDataSet(t, s)
	check := func(t *testing.T, goodprefix, start []byte, goodkvs []KeyValue, backwards bool, cont func(k, v []byte) bool) {
		// Seek result expected to be sorted in an ascending (for forwards seeking) or descending (for backwards seeking) way.
		sort.Slice(goodkvs, func(i, j int) bool {
			res := bytes.Compare(goodkvs[i].Key, goodkvs[j].Key)
			return res != 0 && backwards == (res > 0)
		})

		rng := SeekRange{
			Prefix:    goodprefix,
			Start:     start,
			Backwards: backwards,
		}
		actual := make([]KeyValue, 0, len(goodkvs))
		s.Seek(rng, func(k, v []byte) bool {
			actual = append(actual, KeyValue{
				Key:   slice.Copy(k),
				Value: slice.Copy(v),
			})
			if cont == nil {
				return true
			}
			return cont(k, v)
		})
		assert.Equal(t, goodkvs, actual)
	}

	t.Run("non-empty prefix, empty start", func(t *testing.T) {
		t.Run("forwards", func(t *testing.T) {
			check(t, []byte("2"), nil, []KeyValue{kvs[2], kvs[3], kvs[4]}, false, nil)
			check(t, []byte("0"), nil, []KeyValue{}, false, nil)
			check(t, []byte("2"), nil, []KeyValue{kvs[2], kvs[3]}, false, func(k, v []byte) bool {
				return string(k) < "21"
			})
		})
		t.Run("backwards", func(t *testing.T) {
			check(t, []byte("2"), nil, []KeyValue{kvs[4], kvs[3], kvs[2]}, true, nil)
			check(t, []byte("0"), nil, []KeyValue{}, true, nil)
			check(t, []byte("2"), nil, []KeyValue{kvs[4], kvs[3]}, true, func(k, v []byte) bool {
				return string(k) > "21"
			})
		})
	})

	t.Run("non-empty prefix, non-empty start", func(t *testing.T) {
		t.Run("forwards", func(t *testing.T) {
			check(t, []byte("2"), []byte("1"), []KeyValue{kvs[3], kvs[4]}, false, nil)
			check(t, []byte("2"), []byte("3"), []KeyValue{}, false, nil)
		})
		t.Run("backwards", func(t *testing.T) {
			check(t, []byte("2"), []byte("1"), []KeyValue{kvs[3], kvs[2]}, true, nil)
			check(t, []byte("2"), []byte("."), []KeyValue{}, true, nil)
		})
	})

	t.Run("empty prefix", func(t *testing.T) {
		t.Run("forwards", func(t *testing.T) {
			check(t, nil, nil, append([]KeyValue(nil), kvs...), false, nil)
			check(t, nil, []byte("30"), []KeyValue{kvs[5], kvs[6]}, false, nil)
		})
		t.Run("backwards", func(t *testing.T) {
			check(t, nil, nil, append([]KeyValue(nil), kvs...), true, nil)
			check(t, nil, []byte("11"), []KeyValue{kvs[1], kvs[0]}, true, nil)
		})
	})
}

func testStoreSeekGC(t *testing.T, s Store) {
	kvs := pushSeekDataSet(t, s)
	err := s.SeekGC(SeekRange{Prefix: []byte("1")}, func(k, v []byte) bool {
		return true
	})
	require.NoError(t, err)
	for i := range kvs {
		_, err = s.Get(kvs[i].Key)
		require.NoError(t, err)
	}
	err = s.SeekGC(SeekRange{Prefix: []byte("3")}, func(k, v []byte) bool {
		return false
	})
	require.NoError(t, err)
	for i := range kvs[:5] {
		_, err = s.Get(kvs[i].Key)
		require.NoError(t, err)
	}
	for _, kv := range kvs[5:] {
		_, err = s.Get(kv.Key)
		require.Error(t, err)
	}
}

func TestAllDBs(t *testing.T) {
	var DBs = []dbSetup{
		{"BoltDB", newBoltStoreForTesting},
		{"LevelDB", newLevelDBForTesting},
		{"Memory", newMemoryStoreForTesting},
	}
	var tests = []dbTestFunction{testStoreGetNonExistent, testStorePutChangeSet,
		testStoreSeek, testStoreSeekGC}
	for _, db := range DBs {
		for _, test := range tests {
			s := db.create(t)
			twrapper := func(t *testing.T) {
				test(t, s)
			}
			fname := runtime.FuncForPC(reflect.ValueOf(test).Pointer()).Name()
			t.Run(db.name+"/"+fname, twrapper)
			require.NoError(t, s.Close())
		}
	}
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(dbconfig.DBConfiguration{Type: dbconfig.InMemoryDB})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(dbconfig.DBConfiguration{
		Type:          dbconfig.BoltDB,
		BoltDBOptions: dbconfig.BoltDBOptions{FilePath: t.TempDir() + "/bolt"},
	})
	require.NoError(t, err)
	require.IsType(t, &BoltDBStore{}, s)
	require.NoError(t, s.Close())

	s, err = NewStore(dbconfig.DBConfiguration{
		Type:           dbconfig.LevelDB,
		LevelDBOptions: dbconfig.LevelDBOptions{DataDirectoryPath: t.TempDir()},
	})
	require.NoError(t, err)
	require.IsType(t, &LevelDBStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewStore(dbconfig.DBConfiguration{Type: "redis"})
	require.Error(t, err)
}

func TestKeyPrefixBytes(t *testing.T) {
	require.Equal(t, []byte{0x01}, WALNotification.Bytes())
	require.Equal(t, []byte{0xf0}, SYSVersion.Bytes())
}
