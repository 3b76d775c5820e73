package strategy

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/flow"
)

// SingleName is the name the Single strategy is registered with.
const SingleName = "single"

// singleKey is the only allocation key of the Single strategy. A new vote
// always replaces the previous one.
var singleKey = []byte("single")

// SingleParams configure the Single strategy.
type SingleParams struct {
	Allocator flowtree.Address `protobuf:"bytes,1,opt,name=allocator,proto3" json:"allocator,omitempty"`
	Weight    int64            `protobuf:"varint,2,opt,name=weight,proto3" json:"weight,omitempty"`
}

func (p *SingleParams) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Allocator", p.Allocator.Validate())
	if p.Weight <= 0 {
		errs = errors.AppendField(errs, "Weight", errors.ErrAmount)
	}
	return errs
}

type singleParamsCodec SingleParams

func (m *singleParamsCodec) Reset()         { *m = singleParamsCodec{} }
func (m *singleParamsCodec) String() string { return proto.CompactTextString(m) }
func (*singleParamsCodec) ProtoMessage()    {}

func (p *SingleParams) Marshal() ([]byte, error) { return proto.Marshal((*singleParamsCodec)(p)) }
func (p *SingleParams) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*singleParamsCodec)(p))
}

// SingleRef returns a node strategy reference to a Single strategy.
func SingleRef(allocator flowtree.Address, weight int64) (*flow.StrategyRef, error) {
	p := SingleParams{Allocator: allocator, Weight: weight}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := p.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal params")
	}
	return &flow.StrategyRef{Name: SingleName, Params: raw}, nil
}

// Single lets a single address allocate a fixed weight.
type Single struct {
	params SingleParams
}

var _ flow.AllocationStrategy = (*Single)(nil)

// NewSingle builds the strategy from serialized SingleParams.
func NewSingle(raw []byte) (flow.AllocationStrategy, error) {
	var s Single
	if err := s.params.Unmarshal(raw); err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Single) AllocationKey(db flowtree.ReadOnlyKVStore, caller flowtree.Address, aux []byte) ([]byte, error) {
	return singleKey, nil
}

func (s *Single) CanAllocate(db flowtree.ReadOnlyKVStore, key []byte, caller flowtree.Address) (bool, error) {
	return caller.Equals(s.params.Allocator), nil
}

func (s *Single) CurrentWeight(db flowtree.ReadOnlyKVStore, key []byte) (int64, error) {
	return s.params.Weight, nil
}

func (s *Single) TotalAllocationWeight(db flowtree.ReadOnlyKVStore) (int64, error) {
	return s.params.Weight, nil
}
