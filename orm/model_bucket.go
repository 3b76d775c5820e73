package orm

import (
	"bytes"
	"reflect"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

const compactIdxPrefix = "_i."

// ModelBucketOption is implemented by any function that can configure
// ModelBucket during creation.
type ModelBucketOption func(mb *modelBucket)

// WithIndex configures the bucket to build a unique index with given name.
// All changes to the bucket entities are reflected in the index. Two
// entities cannot be indexed under the same value.
func WithIndex(name string, indexer Indexer) ModelBucketOption {
	return func(mb *modelBucket) {
		if _, ok := mb.indexes[name]; ok {
			panic("index " + name + " registered twice")
		}
		mb.indexes[name] = uniqueIndex{
			id:      []byte(compactIdxPrefix + mb.b.name + "_" + name + ":"),
			indexer: indexer,
		}
	}
}

// NewModelBucket returns a ModelBucket instance. proto is used to load the
// previous state of an entity when an index must be updated.
func NewModelBucket(name string, proto Model, opts ...ModelBucketOption) ModelBucket {
	mb := &modelBucket{
		b:       NewBucket(name),
		model:   reflect.TypeOf(proto),
		indexes: make(map[string]uniqueIndex),
	}
	for _, fn := range opts {
		fn(mb)
	}
	return mb
}

type modelBucket struct {
	b       Bucket
	model   reflect.Type
	indexes map[string]uniqueIndex
}

var _ ModelBucket = (*modelBucket)(nil)

func (mb *modelBucket) One(db flowtree.ReadOnlyKVStore, key []byte, dest Model) error {
	raw, err := mb.b.Get(db, key)
	if err != nil {
		return err
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%T not in the store", dest)
	}
	if err := dest.Unmarshal(raw); err != nil {
		return errors.Wrapf(errors.ErrModel, "cannot unmarshal %T: %s", dest, err)
	}
	return nil
}

func (mb *modelBucket) Has(db flowtree.ReadOnlyKVStore, key []byte) (bool, error) {
	ok, err := db.Has(mb.b.DBKey(key))
	if err != nil {
		return false, errors.Wrap(err, "cannot read")
	}
	return ok, nil
}

func (mb *modelBucket) ByIndex(db flowtree.ReadOnlyKVStore, indexName string, value []byte, dest Model) ([]byte, error) {
	idx, ok := mb.indexes[indexName]
	if !ok {
		return nil, errors.Wrap(ErrInvalidIndex, indexName)
	}
	key, err := idx.get(db, value)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "%T not indexed under %s", dest, indexName)
	}
	if err := mb.One(db, key, dest); err != nil {
		return nil, errors.Wrap(err, "cannot load indexed entity")
	}
	return key, nil
}

func (mb *modelBucket) Put(db flowtree.KVStore, key []byte, m Model) error {
	if len(key) == 0 {
		return errors.Wrap(errors.ErrEmpty, "key")
	}
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "invalid model")
	}
	if len(mb.indexes) > 0 {
		prev, err := mb.previous(db, key)
		if err != nil {
			return err
		}
		for name, idx := range mb.indexes {
			if err := idx.update(db, key, prev, m); err != nil {
				return errors.Wrapf(err, "index %s", name)
			}
		}
	}
	raw, err := m.Marshal()
	if err != nil {
		return errors.Wrapf(errors.ErrModel, "cannot marshal: %s", err)
	}
	if err := db.Set(mb.b.DBKey(key), raw); err != nil {
		return errors.Wrap(err, "cannot store in the database")
	}
	return nil
}

func (mb *modelBucket) Delete(db flowtree.KVStore, key []byte) error {
	prev, err := mb.previous(db, key)
	if err != nil {
		return err
	}
	if prev == nil {
		return errors.Wrapf(errors.ErrNotFound, "key %X", key)
	}
	for name, idx := range mb.indexes {
		if err := idx.update(db, key, prev, nil); err != nil {
			return errors.Wrapf(err, "index %s", name)
		}
	}
	if err := db.Delete(mb.b.DBKey(key)); err != nil {
		return errors.Wrap(err, "cannot delete from the database")
	}
	return nil
}

// previous loads the currently stored entity or returns nil.
func (mb *modelBucket) previous(db flowtree.ReadOnlyKVStore, key []byte) (Model, error) {
	raw, err := mb.b.Get(db, key)
	if err != nil || raw == nil {
		return nil, err
	}
	prev := reflect.New(mb.model.Elem()).Interface().(Model)
	if err := prev.Unmarshal(raw); err != nil {
		return nil, errors.Wrapf(errors.ErrModel, "cannot unmarshal %T: %s", prev, err)
	}
	return prev, nil
}

func (mb *modelBucket) Iterate(db flowtree.ReadOnlyKVStore, prefix []byte) (ModelIterator, error) {
	start, end := prefixRange(mb.b.DBKey(prefix))
	if end == nil {
		// prefix ended with the 0xFF bytes, the bucket separator bounds it
		_, end = prefixRange(mb.b.prefix)
	}
	it, err := db.Iterator(start, end)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create iterator")
	}
	return &modelIterator{it: it, prefix: mb.b.prefix}, nil
}

func (mb *modelBucket) Sequence(name string) Sequence {
	return mb.b.Sequence(name)
}

type modelIterator struct {
	it     flowtree.Iterator
	prefix []byte
}

func (i *modelIterator) LoadNext(dest Model) ([]byte, error) {
	key, value, err := i.it.Next()
	if err != nil {
		return nil, err
	}
	// since we use raw kvstore here, we must remove the bucket prefix manually
	if !bytes.HasPrefix(key, i.prefix) {
		return nil, errors.Wrapf(errors.ErrDatabase, "key with unexpected prefix: %X", key)
	}
	if err := dest.Unmarshal(value); err != nil {
		return nil, errors.Wrapf(errors.ErrModel, "unmarshaling into %T: %s", dest, err)
	}
	return key[len(i.prefix):], nil
}

func (i *modelIterator) Release() {
	i.it.Release()
}

// uniqueIndex stores a single primary key under every indexed value.
type uniqueIndex struct {
	id      []byte
	indexer Indexer
}

func (i uniqueIndex) indexKey(value []byte) []byte {
	l := len(i.id)
	out := make([]byte, l+len(value))
	copy(out, i.id)
	copy(out[l:], value)
	return out
}

func (i uniqueIndex) get(db flowtree.ReadOnlyKVStore, value []byte) ([]byte, error) {
	key, err := db.Get(i.indexKey(value))
	if err != nil {
		return nil, errors.Wrap(err, "cannot read index")
	}
	return key, nil
}

// update moves the reference to key from the value computed for prev to
// the value computed for save. prev == nil means insert and save == nil
// means delete.
func (i uniqueIndex) update(db flowtree.KVStore, key []byte, prev, save Model) error {
	var before, after []byte
	var err error
	if prev != nil {
		if before, err = i.indexer(prev); err != nil {
			return err
		}
	}
	if save != nil {
		if after, err = i.indexer(save); err != nil {
			return err
		}
	}
	if before != nil && bytes.Equal(before, after) {
		return nil
	}
	if before != nil {
		if err := db.Delete(i.indexKey(before)); err != nil {
			return errors.Wrap(err, "cannot remove index")
		}
	}
	if after == nil {
		return nil
	}
	existing, err := i.get(db, after)
	if err != nil {
		return err
	}
	if existing != nil && !bytes.Equal(existing, key) {
		return errors.Wrapf(ErrUniqueConstraint, "value %X", after)
	}
	if err := db.Set(i.indexKey(after), key); err != nil {
		return errors.Wrap(err, "cannot store index")
	}
	return nil
}
