package flow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/gconf"
	"github.com/iov-one/flowtree/store"
	"github.com/iov-one/flowtree/weavetest"
	"github.com/iov-one/flowtree/weavetest/assert"
	"github.com/iov-one/flowtree/x/stream"
)

var genesisTime = time.Unix(1500000000, 0)

func ctxAt(sec int64) flowtree.Context {
	return flowtree.WithBlockTime(context.Background(), genesisTime.Add(time.Duration(sec)*time.Second))
}

// fixedStrategy grants each address a weight declared in its parameters.
// The allocation key is the caller address.
type fixedStrategy struct {
	weights map[string]int64
}

func newFixedStrategy(params []byte) (AllocationStrategy, error) {
	var p struct {
		Weights map[string]int64 `json:"weights"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	return &fixedStrategy{weights: p.Weights}, nil
}

func (s *fixedStrategy) AllocationKey(db flowtree.ReadOnlyKVStore, caller flowtree.Address, aux []byte) ([]byte, error) {
	return caller, nil
}

func (s *fixedStrategy) CanAllocate(db flowtree.ReadOnlyKVStore, key []byte, caller flowtree.Address) (bool, error) {
	return s.weights[flowtree.Address(key).String()] > 0, nil
}

func (s *fixedStrategy) CurrentWeight(db flowtree.ReadOnlyKVStore, key []byte) (int64, error) {
	return s.weights[flowtree.Address(key).String()], nil
}

func (s *fixedStrategy) TotalAllocationWeight(flowtree.ReadOnlyKVStore) (int64, error) {
	var total int64
	for _, w := range s.weights {
		total += w
	}
	return total, nil
}

func fixedRef(t testing.TB, weights map[string]int64) *StrategyRef {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"weights": weights})
	if err != nil {
		t.Fatalf("cannot serialize weights: %s", err)
	}
	return &StrategyRef{Name: "fixed", Params: raw}
}

type fixture struct {
	db     flowtree.CacheableKVStore
	stream *stream.Controller
	ctrl   *Controller
}

func newFixture(t testing.TB, bufferPeriod int64) *fixture {
	t.Helper()
	db := store.MemStore()
	sconf := stream.Configuration{
		Owner:        weavetest.NewCondition().Address(),
		BufferPeriod: bufferPeriod,
	}
	if err := gconf.Save(db, "stream", &sconf); err != nil {
		t.Fatalf("cannot save stream configuration: %s", err)
	}
	if err := gconf.Save(db, confPkg, DefaultConfiguration()); err != nil {
		t.Fatalf("cannot save flow configuration: %s", err)
	}
	strategies := NewStrategyRegistry()
	strategies.Register("fixed", newFixedStrategy)
	s := stream.NewController()
	return &fixture{db: db, stream: s, ctrl: NewController(s, strategies)}
}

func (f *fixture) node(t testing.TB, conf *NodeConfig, reward flowtree.Address, strategies ...*StrategyRef) *Node {
	t.Helper()
	n, err := f.ctrl.CreateNode(f.db, weavetest.NewCondition().Address(), conf, strategies, reward)
	if err != nil {
		t.Fatalf("cannot create node: %s", err)
	}
	return n
}

func (f *fixture) fund(t testing.TB, n *Node, amount int64) {
	t.Helper()
	if err := f.stream.Issue(f.db, n.Address(), amount); err != nil {
		t.Fatalf("cannot fund node: %s", err)
	}
}

func (f *fixture) reload(t testing.TB, n *Node) *Node {
	t.Helper()
	fresh, err := f.ctrl.Node(f.db, n.ID)
	if err != nil {
		t.Fatalf("cannot load node: %s", err)
	}
	return fresh
}

func (f *fixture) memberRate(t testing.TB, n *Node, addr flowtree.Address) int64 {
	t.Helper()
	rate, err := f.ctrl.memberRate(f.db, f.reload(t, n), addr)
	if err != nil {
		t.Fatalf("cannot compute member rate: %s", err)
	}
	return rate
}

func (f *fixture) bonusUnits(t testing.TB, n *Node, addr flowtree.Address) int64 {
	t.Helper()
	u, err := f.stream.MemberUnits(f.db, bonusPool(n.ID), addr)
	if err != nil {
		t.Fatalf("cannot get units: %s", err)
	}
	return u
}

func fullBaseline() *NodeConfig {
	return &NodeConfig{BaselinePercent: flowtree.Scale, QuorumPercent: flowtree.Scale}
}

func TestCreateNode(t *testing.T) {
	f := newFixture(t, 1)
	n := f.node(t, fullBaseline(), nil)
	assert.Equal(t, idLength, len(n.ID))
	assert.Equal(t, int64(0), n.TotalRate)

	second := f.node(t, fullBaseline(), nil)
	if string(n.ID) == string(second.ID) {
		t.Fatal("node IDs must be unique")
	}

	_, err := f.ctrl.CreateNode(f.db, weavetest.NewCondition().Address(), fullBaseline(), []*StrategyRef{{Name: "unknown"}}, nil)
	if !errors.ErrNotFound.Is(err) {
		t.Fatalf("want ErrNotFound for an unknown strategy, got %+v", err)
	}

	total, err := f.stream.TotalUnits(f.db, baselinePool(n.ID))
	assert.Nil(t, err)
	assert.Equal(t, int64(0), total)
}

func TestSetFlowRateAuthorization(t *testing.T) {
	f := newFixture(t, 1)
	n := f.node(t, fullBaseline(), nil)
	ctx := ctxAt(0)

	stranger := weavetest.NewCondition().Address()
	err := f.ctrl.SetFlowRate(ctx, f.db, stranger, n.ID, 10)
	if !errors.ErrUnauthorized.Is(err) {
		t.Fatalf("want ErrUnauthorized, got %+v", err)
	}
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, n.Manager, n.ID, 10))
	rate, err := f.ctrl.TotalFlowRate(f.db, n.ID)
	assert.Nil(t, err)
	assert.Equal(t, int64(10), rate)

	// Without recipients nothing is streamed.
	assert.Equal(t, Rates{}, f.reload(t, n).CurrentRates())

	// Setting the same rate again changes nothing.
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, n.Manager, n.ID, 10))

	if err := f.ctrl.SetFlowRate(ctx, f.db, n.Manager, n.ID, -1); !errors.ErrAmount.Is(err) {
		t.Fatalf("want ErrAmount, got %+v", err)
	}
}

func TestOwnPoolIncreaseIsDeferred(t *testing.T) {
	f := newFixture(t, 1)
	n := f.node(t, fullBaseline(), nil)
	ctx := ctxAt(0)
	_, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)

	// Without funds the rate is kept but nothing streams yet.
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, n.Manager, n.ID, 100))
	got := f.reload(t, n)
	assert.Equal(t, int64(100), got.TotalRate)
	assert.Equal(t, true, got.PoolsPending)
	assert.Equal(t, Rates{}, got.CurrentRates())

	f.fund(t, n, 100)
	_, err = f.ctrl.DrainChildUpdates(ctx, f.db, n.ID, 1)
	assert.Nil(t, err)
	got = f.reload(t, n)
	assert.Equal(t, false, got.PoolsPending)
	assert.Equal(t, Rates{Baseline: 100}, got.CurrentRates())
}

func TestAllocateWithoutBonusFunds(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	voter := weavetest.NewCondition().Address()
	conf := &NodeConfig{BaselinePercent: 5000, QuorumPercent: flowtree.Scale}
	n := f.node(t, conf, nil, fixedRef(t, map[string]int64{voter.String(): 100}))
	r, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)
	f.fund(t, n, 500)
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, n.Manager, n.ID, 1000))
	assert.Equal(t, Rates{Baseline: 500}, f.reload(t, n).CurrentRates())

	// The vote is recorded even though the bonus pool cannot grow.
	_, err = f.ctrl.Allocate(ctx, f.db, voter, &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{r.ID},
		BasisPoints:  []flowtree.BasisPoints{flowtree.Scale},
	})
	assert.Nil(t, err)
	got := f.reload(t, n)
	assert.Equal(t, int64(100), got.ActiveWeight)
	assert.Equal(t, true, got.PoolsPending)
	assert.Equal(t, Rates{Baseline: 500}, got.CurrentRates())
	assert.Equal(t, int64(100), f.bonusUnits(t, n, r.Address))

	f.fund(t, n, 500)
	_, err = f.ctrl.DrainChildUpdates(ctx, f.db, n.ID, 1)
	assert.Nil(t, err)
	got = f.reload(t, n)
	assert.Equal(t, false, got.PoolsPending)
	assert.Equal(t, Rates{Baseline: 500, Bonus: 500}, got.CurrentRates())
}

func TestFailedAllocateWritesNothing(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	voter := weavetest.NewCondition().Address()
	n := f.node(t, fullBaseline(), nil, fixedRef(t, map[string]int64{voter.String(): 100}))
	r, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)

	before := f.reload(t, n)

	// An unreadable configuration fails the call once the vote is stored.
	assert.Nil(t, f.db.Set(gconf.Key(confPkg), []byte{0xff, 0xff}))
	_, err = f.ctrl.Allocate(ctx, f.db, voter, &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{r.ID},
		BasisPoints:  []flowtree.BasisPoints{flowtree.Scale},
	})
	if err == nil {
		t.Fatal("want an error")
	}
	assert.Equal(t, before, f.reload(t, n))
	assert.Equal(t, int64(0), f.bonusUnits(t, n, r.Address))
	has, err := f.ctrl.heads.Has(f.db, allocationKey(n.ID, 0, voter))
	assert.Nil(t, err)
	assert.Equal(t, false, has)
}

func TestLiquidatedNodeRestarts(t *testing.T) {
	cases := map[string]struct {
		restart func(f *fixture, n *Node) error
	}{
		"drain": {
			restart: func(f *fixture, n *Node) error {
				_, err := f.ctrl.DrainChildUpdates(ctxAt(2), f.db, n.ID, 1)
				return err
			},
		},
		"same rate": {
			restart: func(f *fixture, n *Node) error {
				return f.ctrl.SetFlowRate(ctxAt(2), f.db, n.Manager, n.ID, 100)
			},
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t, 1)
			n := f.node(t, fullBaseline(), nil)
			recipient := weavetest.NewCondition().Address()
			_, err := f.ctrl.AddRecipient(ctxAt(0), f.db, n.ID, recipient, "")
			assert.Nil(t, err)
			f.fund(t, n, 150)
			assert.Nil(t, f.ctrl.SetFlowRate(ctxAt(0), f.db, n.Manager, n.ID, 100))

			liquidated, err := f.stream.Settle(ctxAt(1), f.db)
			assert.Nil(t, err)
			assert.Equal(t, []flowtree.Address{n.Address()}, liquidated)
			synced, err := f.ctrl.inSync(f.db, f.reload(t, n))
			assert.Nil(t, err)
			assert.Equal(t, false, synced)

			f.fund(t, n, 100000)
			assert.Nil(t, tc.restart(f, n))
			rate, err := f.stream.PoolRate(f.db, baselinePool(n.ID))
			assert.Nil(t, err)
			assert.Equal(t, int64(100), rate)
			assert.Equal(t, Rates{Baseline: 100}, f.reload(t, n).CurrentRates())

			_, err = f.stream.Settle(ctxAt(12), f.db)
			assert.Nil(t, err)
			balance, err := f.stream.BalanceOf(f.db, recipient)
			assert.Nil(t, err)
			assert.Equal(t, int64(1100), balance)
		})
	}
}

func TestStalledChildIsRestarted(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	parent := f.node(t, fullBaseline(), nil)
	child := f.node(t, fullBaseline(), nil)
	r, err := f.ctrl.AddChildRecipient(ctx, f.db, parent.ID, child.ID, "")
	assert.Nil(t, err)
	_, err = f.ctrl.AddRecipient(ctx, f.db, child.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)
	f.fund(t, parent, 1000)
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, parent.Manager, parent.ID, 10))
	_, err = f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, Rates{Baseline: 10}, f.reload(t, child).CurrentRates())

	// The child stops streaming while its cached rate stays the same.
	assert.Nil(t, f.stream.DistributeAtRate(ctx, f.db, baselinePool(child.ID), 0))
	assert.Nil(t, f.ctrl.markPending(f.db, parent.ID, r.ID))

	res, err := f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, &DrainResult{Processed: 1, Pushed: 1}, res)
	rate, err := f.stream.PoolRate(f.db, baselinePool(child.ID))
	assert.Nil(t, err)
	assert.Equal(t, int64(10), rate)
}

// A single voter holding the whole weight splits its allocation evenly
// between two recipients.
func TestVoteAndRateSplit(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	voter := weavetest.NewCondition().Address()
	target := weavetest.NewCondition().Address()
	conf := &NodeConfig{BaselinePercent: 5000, RewardPercent: 1000, QuorumPercent: flowtree.Scale}
	n := f.node(t, conf, target, fixedRef(t, map[string]int64{voter.String(): 100}))
	f.fund(t, n, 2000)

	x, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "x")
	assert.Nil(t, err)
	y, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "y")
	assert.Nil(t, err)
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, n.Manager, n.ID, 1000))

	// Nobody voted yet, there is no bonus.
	assert.Equal(t, Rates{Baseline: 450, Reward: 100}, f.reload(t, n).CurrentRates())

	res, err := f.ctrl.Allocate(ctx, f.db, voter, &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{x.ID, y.ID},
		BasisPoints:  []flowtree.BasisPoints{5000, 5000},
	})
	assert.Nil(t, err)
	assert.Equal(t, int64(100), res.Weight)

	got := f.reload(t, n)
	assert.Equal(t, Rates{Baseline: 450, Bonus: 450, Reward: 100}, got.CurrentRates())
	assert.Equal(t, int64(100), got.ActiveWeight)
	if got.CurrentRates().Sum() > got.TotalRate {
		t.Fatalf("streaming %d out of %d", got.CurrentRates().Sum(), got.TotalRate)
	}
	assert.Equal(t, int64(50), f.bonusUnits(t, n, x.Address))
	assert.Equal(t, int64(50), f.bonusUnits(t, n, y.Address))
	assert.Equal(t, int64(450), f.memberRate(t, n, x.Address))
	assert.Equal(t, int64(450), f.memberRate(t, n, y.Address))

	reward, err := f.stream.FlowRate(f.db, n.Address(), target)
	assert.Nil(t, err)
	assert.Equal(t, int64(100), reward)

	head, list, err := f.ctrl.Allocation(f.db, n.ID, 0, voter)
	assert.Nil(t, err)
	assert.Equal(t, int64(100), head.Weight)
	assert.Equal(t, int64(100), list.TotalUnits())

	// Moving the whole vote to a single recipient takes all units back
	// from the other one.
	_, err = f.ctrl.Allocate(ctx, f.db, voter, &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{y.ID},
		BasisPoints:  []flowtree.BasisPoints{flowtree.Scale},
	})
	assert.Nil(t, err)
	assert.Equal(t, int64(0), f.bonusUnits(t, n, x.Address))
	assert.Equal(t, int64(100), f.bonusUnits(t, n, y.Address))
	assert.Equal(t, int64(100), f.reload(t, n).ActiveWeight)
	assert.Equal(t, int64(225), f.memberRate(t, n, x.Address))
	assert.Equal(t, int64(675), f.memberRate(t, n, y.Address))
}

func TestReplayedAllocation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	voter := weavetest.NewCondition().Address()
	n := f.node(t, fullBaseline(), nil, fixedRef(t, map[string]int64{voter.String(): 40}))
	x, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)

	alloc := &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{x.ID},
		BasisPoints:  []flowtree.BasisPoints{flowtree.Scale},
	}
	for i := 0; i < 3; i++ {
		_, err := f.ctrl.Allocate(ctx, f.db, voter, alloc)
		assert.Nil(t, err)
		assert.Equal(t, int64(40), f.bonusUnits(t, n, x.Address))
		assert.Equal(t, int64(40), f.reload(t, n).ActiveWeight)
	}
}

func TestAllocateErrors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	voter := weavetest.NewCondition().Address()
	n := f.node(t, fullBaseline(), nil, fixedRef(t, map[string]int64{voter.String(): 10}))
	x, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)
	removed, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)
	_, err = f.ctrl.RemoveRecipient(ctx, f.db, n.ID, removed.ID)
	assert.Nil(t, err)

	cases := map[string]struct {
		caller  flowtree.Address
		alloc   *Allocation
		wantErr *errors.Error
	}{
		"caller without weight": {
			caller:  weavetest.NewCondition().Address(),
			alloc:   &Allocation{NodeID: n.ID, RecipientIDs: [][]byte{x.ID}, BasisPoints: []flowtree.BasisPoints{flowtree.Scale}},
			wantErr: ErrNotAuthorizedToAllocate,
		},
		"unknown recipient": {
			caller:  voter,
			alloc:   &Allocation{NodeID: n.ID, RecipientIDs: [][]byte{weavetest.SequenceID(999)}, BasisPoints: []flowtree.BasisPoints{flowtree.Scale}},
			wantErr: ErrRecipientNotFound,
		},
		"removed recipient": {
			caller:  voter,
			alloc:   &Allocation{NodeID: n.ID, RecipientIDs: [][]byte{removed.ID}, BasisPoints: []flowtree.BasisPoints{flowtree.Scale}},
			wantErr: ErrRecipientNotFound,
		},
		"basis points do not sum to 100%": {
			caller:  voter,
			alloc:   &Allocation{NodeID: n.ID, RecipientIDs: [][]byte{x.ID}, BasisPoints: []flowtree.BasisPoints{9000}},
			wantErr: ErrAllocationWeightsInvalid,
		},
		"unknown strategy index": {
			caller:  voter,
			alloc:   &Allocation{NodeID: n.ID, StrategyIndex: 3, RecipientIDs: [][]byte{x.ID}, BasisPoints: []flowtree.BasisPoints{flowtree.Scale}},
			wantErr: errors.ErrInput,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			cache := f.db.CacheWrap()
			defer cache.Discard()
			if _, err := f.ctrl.Allocate(ctx, cache, tc.caller, tc.alloc); !tc.wantErr.Is(err) {
				t.Fatalf("want %q error, got %+v", tc.wantErr, err)
			}
		})
	}
}

func TestAllocateWithWitness(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	voter := weavetest.NewCondition().Address()
	n := f.node(t, fullBaseline(), nil, fixedRef(t, map[string]int64{voter.String(): 30}))
	x, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)
	y, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)

	first := &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{x.ID, y.ID},
		BasisPoints:  []flowtree.BasisPoints{3000, 7000},
	}

	// A first vote must attest there was nothing before.
	_, err = f.ctrl.AllocateWithWitness(ctx, f.db, voter, first, &Witness{Weight: 30, RecipientIDs: [][]byte{x.ID}, BasisPoints: []flowtree.BasisPoints{flowtree.Scale}})
	if !ErrWitnessMismatch.Is(err) {
		t.Fatalf("want ErrWitnessMismatch, got %+v", err)
	}
	_, err = f.ctrl.AllocateWithWitness(ctx, f.db, voter, first, &Witness{})
	assert.Nil(t, err)
	assert.Equal(t, int64(9), f.bonusUnits(t, n, x.Address))
	assert.Equal(t, int64(21), f.bonusUnits(t, n, y.Address))

	second := &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{x.ID},
		BasisPoints:  []flowtree.BasisPoints{flowtree.Scale},
	}
	cases := map[string]*Witness{
		"empty witness":   {},
		"wrong weight":    {Weight: 31, RecipientIDs: first.RecipientIDs, BasisPoints: first.BasisPoints},
		"wrong split":     {Weight: 30, RecipientIDs: first.RecipientIDs, BasisPoints: []flowtree.BasisPoints{7000, 3000}},
		"wrong recipient": {Weight: 30, RecipientIDs: [][]byte{y.ID, x.ID}, BasisPoints: first.BasisPoints},
	}
	for testName, w := range cases {
		t.Run(testName, func(t *testing.T) {
			cache := f.db.CacheWrap()
			defer cache.Discard()
			if _, err := f.ctrl.AllocateWithWitness(ctx, cache, voter, second, w); !ErrWitnessMismatch.Is(err) {
				t.Fatalf("want ErrWitnessMismatch, got %+v", err)
			}
		})
	}

	_, err = f.ctrl.AllocateWithWitness(ctx, f.db, voter, second, &Witness{
		Weight:       30,
		RecipientIDs: first.RecipientIDs,
		BasisPoints:  first.BasisPoints,
	})
	assert.Nil(t, err)
	assert.Equal(t, int64(30), f.bonusUnits(t, n, x.Address))
	assert.Equal(t, int64(0), f.bonusUnits(t, n, y.Address))
}

func TestRemoveAndAddAgain(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	voter := weavetest.NewCondition().Address()
	n := f.node(t, fullBaseline(), nil, fixedRef(t, map[string]int64{voter.String(): 10}))
	addr := weavetest.NewCondition().Address()
	x, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, addr, "x")
	assert.Nil(t, err)
	y, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "y")
	assert.Nil(t, err)

	_, err = f.ctrl.AddRecipient(ctx, f.db, n.ID, addr, "again")
	if !errors.ErrDuplicate.Is(err) {
		t.Fatalf("want ErrDuplicate, got %+v", err)
	}

	_, err = f.ctrl.Allocate(ctx, f.db, voter, &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{x.ID},
		BasisPoints:  []flowtree.BasisPoints{flowtree.Scale},
	})
	assert.Nil(t, err)
	assert.Equal(t, int64(10), f.bonusUnits(t, n, addr))

	_, err = f.ctrl.RemoveRecipient(ctx, f.db, n.ID, x.ID)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), f.bonusUnits(t, n, addr))
	exists, err := f.ctrl.RecipientExists(f.db, n.ID, addr)
	assert.Nil(t, err)
	assert.Equal(t, false, exists)

	if _, err := f.ctrl.RemoveRecipient(ctx, f.db, n.ID, x.ID); !ErrRecipientNotFound.Is(err) {
		t.Fatalf("want ErrRecipientNotFound, got %+v", err)
	}

	back, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, addr, "back")
	assert.Nil(t, err)
	assert.Equal(t, x.ID, back.ID)
	assert.Equal(t, "back", back.Metadata)
	if back.ActivatedAt <= x.ActivatedAt {
		t.Fatalf("activation clock not increased: %d <= %d", back.ActivatedAt, x.ActivatedAt)
	}
	assert.Equal(t, int64(0), f.bonusUnits(t, n, addr))
	assert.Equal(t, int64(2), f.reload(t, n).ActiveRecipients)

	// The vote cast before the removal is not taken back from the
	// recipient again.
	_, err = f.ctrl.Allocate(ctx, f.db, voter, &Allocation{
		NodeID:       n.ID,
		RecipientIDs: [][]byte{y.ID},
		BasisPoints:  []flowtree.BasisPoints{flowtree.Scale},
	})
	assert.Nil(t, err)
	assert.Equal(t, int64(0), f.bonusUnits(t, n, addr))
	assert.Equal(t, int64(10), f.bonusUnits(t, n, y.Address))

	all, err := f.ctrl.Recipients(f.db, n.ID)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(all))
}

func TestMaxRecipients(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	assert.Nil(t, gconf.Save(f.db, confPkg, &Configuration{DrainCap: 5, MaxRecipients: 1}))
	n := f.node(t, fullBaseline(), nil)

	_, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)
	_, err = f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	if !errors.ErrState.Is(err) {
		t.Fatalf("want ErrState, got %+v", err)
	}
}

func TestTreeShape(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	a := f.node(t, fullBaseline(), nil)
	b := f.node(t, fullBaseline(), nil)
	c := f.node(t, fullBaseline(), nil)

	_, err := f.ctrl.AddChildRecipient(ctx, f.db, a.ID, b.ID, "")
	assert.Nil(t, err)
	assert.Equal(t, a.ID, f.reload(t, b).ParentID)

	cases := map[string]struct {
		parent, child []byte
		wantErr       *errors.Error
	}{
		"self":              {parent: a.ID, child: a.ID, wantErr: ErrCycle},
		"parent as a child": {parent: b.ID, child: a.ID, wantErr: ErrCycle},
		"second parent":     {parent: c.ID, child: b.ID, wantErr: errors.ErrState},
		"same child twice":  {parent: a.ID, child: b.ID, wantErr: errors.ErrDuplicate},
		"unknown child":     {parent: a.ID, child: weavetest.SequenceID(404), wantErr: errors.ErrNotFound},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			cache := f.db.CacheWrap()
			defer cache.Discard()
			if _, err := f.ctrl.AddChildRecipient(ctx, cache, tc.parent, tc.child, ""); !tc.wantErr.Is(err) {
				t.Fatalf("want %q error, got %+v", tc.wantErr, err)
			}
		})
	}
}

// The parent rate reaches a child only when the parent can fund the child
// buffer. A deferred child is pushed by a later drain.
func TestDeferredChild(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	parent := f.node(t, fullBaseline(), nil)
	child := f.node(t, fullBaseline(), nil)
	_, err := f.ctrl.AddChildRecipient(ctx, f.db, parent.ID, child.ID, "")
	assert.Nil(t, err)

	f.fund(t, parent, 140)
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, parent.Manager, parent.ID, 100))

	work, err := f.ctrl.PendingChildWork(f.db, parent.ID)
	assert.Nil(t, err)
	assert.Equal(t, []flowtree.Address{child.Address()}, work)

	res, err := f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, &DrainResult{Processed: 1, Deferred: 1, Remaining: 1}, res)
	assert.Equal(t, int64(0), f.reload(t, child).TotalRate)

	f.fund(t, parent, 60)
	res, err = f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, &DrainResult{Processed: 1, Pushed: 1}, res)
	assert.Equal(t, int64(100), f.reload(t, child).TotalRate)

	balance, err := f.stream.BalanceOf(f.db, child.Address())
	assert.Nil(t, err)
	assert.Equal(t, int64(100), balance)

	// Nothing left, another drain is a no-op.
	res, err = f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, &DrainResult{}, res)

	// Decreasing the parent rate releases the child rate on the next
	// drain, no funds needed.
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, parent.Manager, parent.ID, 50))
	res, err = f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), res.Pushed)
	assert.Equal(t, int64(50), f.reload(t, child).TotalRate)
}

func TestBoundedDrain(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	parent := f.node(t, fullBaseline(), nil)
	var children []*Node
	for i := 0; i < 15; i++ {
		c := f.node(t, fullBaseline(), nil)
		_, err := f.ctrl.AddChildRecipient(ctx, f.db, parent.ID, c.ID, "")
		assert.Nil(t, err)
		children = append(children, c)
	}
	f.fund(t, parent, 300)
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, parent.Manager, parent.ID, 150))

	res, err := f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, &DrainResult{Processed: 10, Pushed: 10, Remaining: 5}, res)

	res, err = f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, &DrainResult{Processed: 5, Pushed: 5}, res)

	for i, c := range children {
		if rate := f.reload(t, c).TotalRate; rate != 10 {
			t.Fatalf("child #%d: want rate 10, got %d", i, rate)
		}
	}
}

func TestRemovedChildIsStopped(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	parent := f.node(t, fullBaseline(), nil)
	child := f.node(t, fullBaseline(), nil)
	r, err := f.ctrl.AddChildRecipient(ctx, f.db, parent.ID, child.ID, "")
	assert.Nil(t, err)
	_, err = f.ctrl.AddRecipient(ctx, f.db, parent.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)

	f.fund(t, parent, 1000)
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, parent.Manager, parent.ID, 100))
	_, err = f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, int64(50), f.reload(t, child).TotalRate)

	_, err = f.ctrl.RemoveRecipient(ctx, f.db, parent.ID, r.ID)
	assert.Nil(t, err)
	_, err = f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), f.reload(t, child).TotalRate)
}

func TestRewardPending(t *testing.T) {
	f := newFixture(t, 1)
	ctx := ctxAt(0)
	target := weavetest.NewCondition().Address()
	conf := &NodeConfig{BaselinePercent: 5000, RewardPercent: 1000, QuorumPercent: flowtree.Scale}
	n := f.node(t, conf, target)
	_, err := f.ctrl.AddRecipient(ctx, f.db, n.ID, weavetest.NewCondition().Address(), "")
	assert.Nil(t, err)

	f.fund(t, n, 450)
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, n.Manager, n.ID, 1000))
	got := f.reload(t, n)
	assert.Equal(t, true, got.RewardPending)
	assert.Equal(t, Rates{Baseline: 450}, got.CurrentRates())

	f.fund(t, n, 200)
	_, err = f.ctrl.DrainChildUpdates(ctx, f.db, n.ID, 1)
	assert.Nil(t, err)
	got = f.reload(t, n)
	assert.Equal(t, false, got.RewardPending)
	assert.Equal(t, Rates{Baseline: 450, Reward: 100}, got.CurrentRates())

	// Changing the target stops the stream to the previous one.
	other := weavetest.NewCondition().Address()
	_, err = f.ctrl.UpdateNode(ctx, f.db, n.ID, conf, other)
	assert.Nil(t, err)
	prev, err := f.stream.FlowRate(f.db, n.Address(), target)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), prev)
}

func TestStreamSettlesThroughTree(t *testing.T) {
	f := newFixture(t, 1)
	parent := f.node(t, fullBaseline(), nil)
	child := f.node(t, fullBaseline(), nil)
	leaf := weavetest.NewCondition().Address()

	ctx := ctxAt(0)
	_, err := f.ctrl.AddChildRecipient(ctx, f.db, parent.ID, child.ID, "")
	assert.Nil(t, err)
	_, err = f.ctrl.AddRecipient(ctx, f.db, child.ID, leaf, "")
	assert.Nil(t, err)
	f.fund(t, parent, 1000)
	assert.Nil(t, f.ctrl.SetFlowRate(ctx, f.db, parent.Manager, parent.ID, 10))
	_, err = f.ctrl.DrainChildUpdates(ctx, f.db, parent.ID, 10)
	assert.Nil(t, err)

	_, err = f.stream.Settle(ctxAt(5), f.db)
	assert.Nil(t, err)

	// The child received 5 seconds of the parent stream on top of its
	// buffer, and paid 5 seconds to the leaf.
	balance, err := f.stream.BalanceOf(f.db, leaf)
	assert.Nil(t, err)
	assert.Equal(t, int64(50), balance)
}
