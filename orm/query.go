package orm

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

var _ flowtree.QueryHandler = Bucket{}

// Register registers this Bucket as a query handler.
// You can define a name here for queries, which is
// different than the bucket name used to prefix the data
func (b Bucket) Register(name string, r flowtree.QueryRouter) {
	if name == "" {
		name = b.name
	}
	r.Register("/"+name, b)
}

// Query handles queries from the QueryRouter
func (b Bucket) Query(db flowtree.ReadOnlyKVStore, mod string, data []byte) ([]flowtree.Model, error) {
	switch mod {
	case flowtree.KeyQueryMod:
		key := b.DBKey(data)
		value, err := db.Get(key)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read")
		}
		// return nothing on miss
		if value == nil {
			return nil, nil
		}
		return []flowtree.Model{flowtree.Pair(key, value)}, nil
	case flowtree.PrefixQueryMod:
		return queryPrefix(db, b.DBKey(data))
	default:
		return nil, errors.Wrapf(errors.ErrInput, "unknown mod: %s", mod)
	}
}

func queryPrefix(db flowtree.ReadOnlyKVStore, prefix []byte) ([]flowtree.Model, error) {
	start, end := prefixRange(prefix)
	itr, err := db.Iterator(start, end)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create iterator")
	}
	defer itr.Release()

	var res []flowtree.Model
	for {
		key, value, err := itr.Next()
		switch {
		case err == nil:
			res = append(res, flowtree.Pair(key, value))
		case errors.ErrIteratorDone.Is(err):
			return res, nil
		default:
			return nil, err
		}
	}
}
