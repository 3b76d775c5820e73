package flow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// AllocationStrategy decides who can allocate and with what weight.
type AllocationStrategy interface {
	// AllocationKey derives the key under which the allocation of the
	// caller is stored. aux is opaque data passed with the allocation.
	AllocationKey(db flowtree.ReadOnlyKVStore, caller flowtree.Address, aux []byte) ([]byte, error)
	// CanAllocate returns true if the caller may allocate under the key.
	CanAllocate(db flowtree.ReadOnlyKVStore, key []byte, caller flowtree.Address) (bool, error)
	// CurrentWeight returns the weight of the key.
	CurrentWeight(db flowtree.ReadOnlyKVStore, key []byte) (int64, error)
	// TotalAllocationWeight returns the sum of weights of all possible
	// keys.
	TotalAllocationWeight(db flowtree.ReadOnlyKVStore) (int64, error)
}

// StrategyFactory builds a strategy from its serialized parameters.
type StrategyFactory func(params []byte) (AllocationStrategy, error)

// StrategyRegistry keeps all strategies a node can be configured with.
type StrategyRegistry struct {
	factories map[string]StrategyFactory
}

// NewStrategyRegistry returns an empty registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{factories: make(map[string]StrategyFactory)}
}

// Register adds a strategy factory. It panics if the name is already
// taken.
func (r *StrategyRegistry) Register(name string, f StrategyFactory) {
	if _, ok := r.factories[name]; ok {
		panic(fmt.Sprintf("strategy %q already registered", name))
	}
	r.factories[name] = f
}

// Build returns the strategy described by the reference.
func (r *StrategyRegistry) Build(ref *StrategyRef) (AllocationStrategy, error) {
	if ref == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "strategy")
	}
	f, ok := r.factories[ref.Name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "strategy %q, registered: %s", ref.Name, strings.Join(r.Names(), ", "))
	}
	s, err := f(ref.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "strategy %q", ref.Name)
	}
	return s, nil
}

// Names returns all registered names in alphabetical order.
func (r *StrategyRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
