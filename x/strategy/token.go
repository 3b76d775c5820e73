package strategy

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/flow"
)

// TokenWeightedName is the name the TokenWeighted strategy is registered
// with.
const TokenWeightedName = "token_weighted"

// Balances provides the account balances used as weights.
type Balances interface {
	BalanceOf(db flowtree.ReadOnlyKVStore, addr flowtree.Address) (int64, error)
	TotalIssued(db flowtree.ReadOnlyKVStore) (int64, error)
}

// TokenWeighted lets every account allocate with a weight equal to its
// balance. The allocation key is the caller address.
//
// The weight is read when the allocation is made. A balance change is
// reflected on the next allocation of the account.
type TokenWeighted struct {
	balances Balances
}

var _ flow.AllocationStrategy = (*TokenWeighted)(nil)

// NewTokenWeighted returns a strategy factory reading balances from b. The
// strategy takes no parameters.
func NewTokenWeighted(b Balances) flow.StrategyFactory {
	return func(params []byte) (flow.AllocationStrategy, error) {
		if len(params) != 0 {
			return nil, errors.Wrap(errors.ErrInput, "token weighted strategy takes no parameters")
		}
		return &TokenWeighted{balances: b}, nil
	}
}

func (s *TokenWeighted) AllocationKey(db flowtree.ReadOnlyKVStore, caller flowtree.Address, aux []byte) ([]byte, error) {
	if err := caller.Validate(); err != nil {
		return nil, errors.Wrap(err, "caller")
	}
	return caller, nil
}

func (s *TokenWeighted) CanAllocate(db flowtree.ReadOnlyKVStore, key []byte, caller flowtree.Address) (bool, error) {
	if !caller.Equals(key) {
		return false, nil
	}
	balance, err := s.balances.BalanceOf(db, caller)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}

func (s *TokenWeighted) CurrentWeight(db flowtree.ReadOnlyKVStore, key []byte) (int64, error) {
	return s.balances.BalanceOf(db, key)
}

func (s *TokenWeighted) TotalAllocationWeight(db flowtree.ReadOnlyKVStore) (int64, error) {
	return s.balances.TotalIssued(db)
}

// Register adds all strategies of this package to the registry.
func Register(r *flow.StrategyRegistry, b Balances) {
	r.Register(SingleName, NewSingle)
	r.Register(TokenWeightedName, NewTokenWeighted(b))
}
