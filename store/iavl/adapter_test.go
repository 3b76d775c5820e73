package iavl

import (
	"testing"

	"github.com/iov-one/flowtree/store"
	"github.com/iov-one/flowtree/weavetest/assert"
	dbm "github.com/tendermint/tendermint/libs/db"
)

// makeBase returns the base layer
//
// If you want to test a different kvstore implementation
// you can copy most of these tests and change makeBase.
// Once that passes, customize and extend as you wish
func makeBase() (store.CacheableKVStore, func()) {
	commit := MockCommitStore()
	return commit.Adapter(), commit.Close
}

func TestIavlGetSet(t *testing.T) {
	store.NewTestSuite(makeBase).GetSet(t)
}

func TestIavlCacheConflicts(t *testing.T) {
	store.NewTestSuite(makeBase).CacheConflicts(t)
}

func TestIavlFuzzIterator(t *testing.T) {
	store.NewTestSuite(makeBase).FuzzIterator(t)
}

func TestIavlIteratorWithConflicts(t *testing.T) {
	store.NewTestSuite(makeBase).IteratorWithConflicts(t)
}

func TestIavlNestedCacheWrap(t *testing.T) {
	store.NewTestSuite(makeBase).NestedCacheWrap(t)
}

func TestCommitAndReload(t *testing.T) {
	db := dbm.NewMemDB()
	commit := NewCommitStoreFromDB(db)

	// nothing is committed yet
	val, err := commit.Get([]byte("node"))
	assert.Nil(t, err)
	assert.Nil(t, val)

	cache := commit.CacheWrap()
	assert.Nil(t, cache.Set([]byte("node"), []byte("root")))
	assert.Nil(t, cache.Write())

	// written to the working tree, but not part of a version
	val, err = commit.Get([]byte("node"))
	assert.Nil(t, err)
	assert.Nil(t, val)

	id, err := commit.Commit()
	assert.Nil(t, err)
	assert.Equal(t, int64(1), id.Version)
	if len(id.Hash) == 0 {
		t.Fatal("commit must produce a hash")
	}

	val, err = commit.Get([]byte("node"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("root"), val)

	// a new store on the same database loads the committed state
	reloaded := NewCommitStoreFromDB(db)
	assert.Nil(t, reloaded.LoadLatestVersion())
	latest, err := reloaded.LatestVersion()
	assert.Nil(t, err)
	assert.Equal(t, id, latest)

	val, err = reloaded.Get([]byte("node"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("root"), val)
}
