package stream

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/orm"
)

var supplyKey = []byte("total")

func newAccountBucket() orm.ModelBucket { return orm.NewModelBucket("account", &Account{}) }
func newPoolBucket() orm.ModelBucket    { return orm.NewModelBucket("pool", &Pool{}) }
func newMemberBucket() orm.ModelBucket  { return orm.NewModelBucket("member", &Member{}) }
func newFlowBucket() orm.ModelBucket    { return orm.NewModelBucket("flow", &Flow{}) }
func newSupplyBucket() orm.ModelBucket  { return orm.NewModelBucket("supply", &Supply{}) }

// pairKey builds a composite key that can be iterated by the first part.
// The first part is prefixed with its length.
func pairKey(first, second []byte) ([]byte, error) {
	if len(first) == 0 || len(first) > 255 {
		return nil, errors.Wrapf(errors.ErrInput, "invalid key length %d", len(first))
	}
	key := make([]byte, 0, 1+len(first)+len(second))
	key = append(key, byte(len(first)))
	key = append(key, first...)
	return append(key, second...), nil
}

// splitPairKey is the reverse of pairKey.
func splitPairKey(key []byte) (first, second []byte, err error) {
	if len(key) == 0 || int(key[0])+1 > len(key) {
		return nil, nil, errors.Wrap(errors.ErrInput, "malformed pair key")
	}
	n := int(key[0])
	return key[1 : n+1], key[n+1:], nil
}

func loadAccount(db flowtree.ReadOnlyKVStore, b orm.ModelBucket, addr flowtree.Address) (*Account, error) {
	var a Account
	switch err := b.One(db, addr, &a); {
	case err == nil:
		return &a, nil
	case errors.ErrNotFound.Is(err):
		return &Account{}, nil
	default:
		return nil, err
	}
}

func saveAccount(db flowtree.KVStore, b orm.ModelBucket, addr flowtree.Address, a *Account) error {
	if a.Balance == 0 && a.Deposit == 0 {
		switch err := b.Delete(db, addr); {
		case err == nil, errors.ErrNotFound.Is(err):
			return nil
		default:
			return err
		}
	}
	return b.Put(db, addr, a)
}
