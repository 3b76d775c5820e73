package orm

import (
	"github.com/iov-one/flowtree"
)

// Model is implemented by any entity that can be stored using ModelBucket.
type Model interface {
	flowtree.Persistent
	// Validate returns error if the object is not in a valid
	// state to save to the db (eg. field missing, out of range, ...)
	Validate() error
}

// ModelBucket stores a single type of Model under a prefixed subspace of the
// database.
type ModelBucket interface {
	// One query the database for a single model instance. Lookup is done
	// by the primary index key. Result is loaded into given destination
	// model.
	// This method returns ErrNotFound if the entity does not exist in the
	// database.
	One(db flowtree.ReadOnlyKVStore, key []byte, dest Model) error

	// Has returns true if an entity with given primary key exists.
	Has(db flowtree.ReadOnlyKVStore, key []byte) (bool, error)

	// ByIndex loads the entity referenced by given unique index value into
	// dest and returns its primary key. ErrNotFound is returned if no
	// entity is indexed under that value.
	ByIndex(db flowtree.ReadOnlyKVStore, indexName string, value []byte, dest Model) ([]byte, error)

	// Put saves given model in the database.
	Put(db flowtree.KVStore, key []byte, m Model) error

	// Delete removes an entity with given primary key from the database.
	// It returns ErrNotFound if an entity with given key does not exist.
	Delete(db flowtree.KVStore, key []byte) error

	// Iterate returns an iterator over all entities which primary key
	// starts with given prefix, in ascending key order.
	Iterate(db flowtree.ReadOnlyKVStore, prefix []byte) (ModelIterator, error)

	// Sequence returns a sequence with given name that belongs to this
	// bucket.
	Sequence(name string) Sequence
}

// ModelIterator loads consecutive entities of a bucket.
type ModelIterator interface {
	// LoadNext moves the iterator to the next entity and loads it into
	// dest. It returns the primary key of that entity, or ErrIteratorDone
	// when there is nothing more to read.
	LoadNext(dest Model) ([]byte, error)

	// Release releases the Iterator.
	Release()
}

// Indexer calculates the secondary index value for a given model. Returning
// a nil value means the model is not indexed.
type Indexer func(Model) ([]byte, error)
