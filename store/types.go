// nolint
package store

import "github.com/iov-one/flowtree"

// Move references for all storage types into this package
// for shorter names everywhere

type ReadOnlyKVStore = flowtree.ReadOnlyKVStore
type SetDeleter = flowtree.SetDeleter
type KVStore = flowtree.KVStore
type Batch = flowtree.Batch
type Iterator = flowtree.Iterator
type CacheableKVStore = flowtree.CacheableKVStore
type KVCacheWrap = flowtree.KVCacheWrap
type CommitKVStore = flowtree.CommitKVStore
type CommitID = flowtree.CommitID

// Model is a key value pair. It is used by the slice iterator and the
// operation log of a batch.
type Model = flowtree.Model

// Pair constructs a model from a key and a value.
func Pair(key, value []byte) Model {
	return flowtree.Pair(key, value)
}
