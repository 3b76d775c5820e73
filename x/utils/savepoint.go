package utils

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// Savepoint will isolate all data inside of the call,
// and commit/rollback to savepoint based on if error.
// A panic inside of the call is converted into an error and rolled back
// as well.
type Savepoint struct {
	onCheck   bool
	onDeliver bool
}

var _ flowtree.Decorator = Savepoint{}

// NewSavepoint creates a Savepoint decorator,
// but you must call OnCheck/OnDeliver so it will be triggered
func NewSavepoint() Savepoint {
	return Savepoint{}
}

// OnCheck returns a savepoint that will trigger on Check
func (s Savepoint) OnCheck() Savepoint {
	return Savepoint{
		onCheck:   true,
		onDeliver: s.onDeliver,
	}
}

// OnDeliver returns a savepoint that will trigger on Deliver
func (s Savepoint) OnDeliver() Savepoint {
	return Savepoint{
		onCheck:   s.onCheck,
		onDeliver: true,
	}
}

// Check will optionally set a checkpoint
func (s Savepoint) Check(ctx flowtree.Context, store flowtree.KVStore, tx flowtree.Tx, next flowtree.Checker) (*flowtree.CheckResult, error) {
	if !s.onCheck {
		return next.Check(ctx, store, tx)
	}
	var res *flowtree.CheckResult
	err := InSavepoint(store, func(db flowtree.KVStore) error {
		var err error
		res, err = next.Check(ctx, db, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Deliver will optionally set a checkpoint
func (s Savepoint) Deliver(ctx flowtree.Context, store flowtree.KVStore, tx flowtree.Tx, next flowtree.Deliverer) (*flowtree.DeliverResult, error) {
	if !s.onDeliver {
		return next.Deliver(ctx, store, tx)
	}
	var res *flowtree.DeliverResult
	err := InSavepoint(store, func(db flowtree.KVStore) error {
		var err error
		res, err = next.Deliver(ctx, db, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// InSavepoint runs fn against a cache wrap of the store. Changes are written
// only if fn returns no error and does not panic. Stores that cannot be
// wrapped are passed through unchanged.
func InSavepoint(store flowtree.KVStore, fn func(flowtree.KVStore) error) (err error) {
	cstore, ok := store.(flowtree.CacheableKVStore)
	if !ok {
		defer errors.Recover(&err)
		return fn(store)
	}

	cache := cstore.CacheWrap()
	defer func() {
		if err != nil {
			cache.Discard()
		}
	}()
	defer errors.Recover(&err)

	if err := fn(cache); err != nil {
		return err
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(err, "writing savepoint")
	}
	return nil
}
