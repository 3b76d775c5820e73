package stream

import (
	"context"
	"testing"
	"time"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/gconf"
	"github.com/iov-one/flowtree/store"
	"github.com/iov-one/flowtree/weavetest"
	"github.com/iov-one/flowtree/weavetest/assert"
)

var genesisTime = time.Unix(1500000000, 0)

// ctxAt returns a context with the block time set to given number of
// seconds after genesis.
func ctxAt(sec int64) flowtree.Context {
	return flowtree.WithBlockTime(context.Background(), genesisTime.Add(time.Duration(sec)*time.Second))
}

func newTestStore(t testing.TB, bufferPeriod int64) flowtree.CacheableKVStore {
	t.Helper()
	db := store.MemStore()
	conf := Configuration{
		Owner:        weavetest.NewCondition().Address(),
		BufferPeriod: bufferPeriod,
	}
	if err := gconf.Save(db, confPkg, &conf); err != nil {
		t.Fatalf("cannot save configuration: %s", err)
	}
	return db
}

func assertBalance(t testing.TB, db flowtree.ReadOnlyKVStore, c *Controller, addr flowtree.Address, want int64) {
	t.Helper()
	got, err := c.BalanceOf(db, addr)
	if err != nil {
		t.Fatalf("cannot get balance: %s", err)
	}
	if got != want {
		t.Fatalf("want balance %d, got %d", want, got)
	}
}

func TestIssueAndTransfer(t *testing.T) {
	db := newTestStore(t, 1)
	c := NewController()
	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()

	assert.Nil(t, c.Issue(db, alice, 100))
	assert.Nil(t, c.Issue(db, alice, 20))
	total, err := c.TotalIssued(db)
	assert.Nil(t, err)
	assert.Equal(t, int64(120), total)

	assert.Nil(t, c.Transfer(db, alice, bob, 30))
	assertBalance(t, db, c, alice, 90)
	assertBalance(t, db, c, bob, 30)

	assert.IsErr(t, errors.ErrInsufficientAmount, c.Transfer(db, bob, alice, 31))
	assert.IsErr(t, errors.ErrAmount, c.Transfer(db, bob, alice, 0))
	assert.IsErr(t, errors.ErrInput, c.Transfer(db, bob, bob, 1))
	assert.IsErr(t, errors.ErrAmount, c.Issue(db, bob, -1))

	// Transfers do not change the supply.
	total, err = c.TotalIssued(db)
	assert.Nil(t, err)
	assert.Equal(t, int64(120), total)
}

func TestRequiredBufferFor(t *testing.T) {
	db := newTestStore(t, 60)
	c := NewController()

	got, err := c.RequiredBufferFor(db, 10)
	assert.Nil(t, err)
	assert.Equal(t, int64(600), got)

	_, err = c.RequiredBufferFor(db, -1)
	assert.IsErr(t, errors.ErrAmount, err)

	_, err = c.RequiredBufferFor(store.MemStore(), 1)
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestPoolDistribution(t *testing.T) {
	db := newTestStore(t, 1)
	c := NewController()
	dist := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()
	carl := weavetest.NewCondition().Address()
	pool := []byte("pool-1")

	assert.Nil(t, c.Issue(db, dist, 1000))
	assert.Nil(t, c.CreatePool(db, pool, dist))
	assert.IsErr(t, errors.ErrDuplicate, c.CreatePool(db, pool, dist))

	// Cannot stream to a pool without members.
	assert.IsErr(t, errors.ErrState, c.DistributeAtRate(ctxAt(0), db, pool, 100))

	assert.Nil(t, c.SetMemberUnits(ctxAt(0), db, pool, bob, 1))
	assert.Nil(t, c.SetMemberUnits(ctxAt(0), db, pool, carl, 3))
	total, err := c.TotalUnits(db, pool)
	assert.Nil(t, err)
	assert.Equal(t, int64(4), total)

	assert.Nil(t, c.DistributeAtRate(ctxAt(0), db, pool, 100))
	acc, err := c.Account(db, dist)
	assert.Nil(t, err)
	assert.Equal(t, int64(100), acc.Deposit)
	assert.Equal(t, int64(900), acc.Available())

	// The deposit cannot be transferred.
	assert.IsErr(t, errors.ErrInsufficientAmount, c.Transfer(db, dist, bob, 901))

	liquidated, err := c.Settle(ctxAt(2), db)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(liquidated))
	assertBalance(t, db, c, dist, 800)
	assertBalance(t, db, c, bob, 50)
	assertBalance(t, db, c, carl, 150)

	// Changing units settles first, so carl is paid for the elapsed
	// second with the previous share.
	assert.Nil(t, c.SetMemberUnits(ctxAt(3), db, pool, carl, 0))
	assertBalance(t, db, c, carl, 225)
	assertBalance(t, db, c, bob, 75)
	units, err := c.MemberUnits(db, pool, carl)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), units)

	// Decreasing the rate releases the deposit.
	assert.Nil(t, c.DistributeAtRate(ctxAt(3), db, pool, 10))
	acc, err = c.Account(db, dist)
	assert.Nil(t, err)
	assert.Equal(t, int64(10), acc.Deposit)
}

func TestPoolRounding(t *testing.T) {
	db := newTestStore(t, 1)
	c := NewController()
	dist := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()
	carl := weavetest.NewCondition().Address()
	pool := []byte("pool-1")

	assert.Nil(t, c.Issue(db, dist, 1000))
	assert.Nil(t, c.CreatePool(db, pool, dist))
	assert.Nil(t, c.SetMemberUnits(ctxAt(0), db, pool, bob, 1))
	assert.Nil(t, c.SetMemberUnits(ctxAt(0), db, pool, carl, 2))
	assert.Nil(t, c.DistributeAtRate(ctxAt(0), db, pool, 100))

	_, err := c.Settle(ctxAt(1), db)
	assert.Nil(t, err)
	assertBalance(t, db, c, bob, 33)
	assertBalance(t, db, c, carl, 66)
	// Rounding leftover stays with the distributor.
	assertBalance(t, db, c, dist, 901)
}

func TestDistributeInsufficientDeposit(t *testing.T) {
	db := newTestStore(t, 1)
	c := NewController()
	dist := weavetest.NewCondition().Address()
	pool := []byte("pool-1")

	assert.Nil(t, c.Issue(db, dist, 50))
	assert.Nil(t, c.CreatePool(db, pool, dist))
	assert.Nil(t, c.SetMemberUnits(ctxAt(0), db, pool, weavetest.NewCondition().Address(), 1))
	assert.IsErr(t, errors.ErrInsufficientAmount, c.DistributeAtRate(ctxAt(0), db, pool, 100))

	p, err := c.Pool(db, pool)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), p.Rate)
}

func TestDirectFlow(t *testing.T) {
	db := newTestStore(t, 2)
	c := NewController()
	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()

	assert.Nil(t, c.Issue(db, alice, 100))
	assert.IsErr(t, errors.ErrInput, c.SetFlow(ctxAt(0), db, alice, alice, 1))

	assert.Nil(t, c.SetFlow(ctxAt(0), db, alice, bob, 10))
	rate, err := c.FlowRate(db, alice, bob)
	assert.Nil(t, err)
	assert.Equal(t, int64(10), rate)
	acc, err := c.Account(db, alice)
	assert.Nil(t, err)
	assert.Equal(t, int64(20), acc.Deposit)

	_, err = c.Settle(ctxAt(5), db)
	assert.Nil(t, err)
	assertBalance(t, db, c, bob, 50)
	assertBalance(t, db, c, alice, 50)

	// Zero rate deletes the flow and releases the deposit.
	assert.Nil(t, c.SetFlow(ctxAt(6), db, alice, bob, 0))
	rate, err = c.FlowRate(db, alice, bob)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), rate)
	acc, err = c.Account(db, alice)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), acc.Deposit)
	assert.Equal(t, int64(40), acc.Balance)
	assertBalance(t, db, c, bob, 60)
}

func TestLiquidation(t *testing.T) {
	db := newTestStore(t, 1)
	c := NewController()
	dist := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()
	pool := []byte("pool-1")

	assert.Nil(t, c.Issue(db, dist, 150))
	assert.Nil(t, c.CreatePool(db, pool, dist))
	assert.Nil(t, c.SetMemberUnits(ctxAt(0), db, pool, bob, 1))
	assert.Nil(t, c.DistributeAtRate(ctxAt(0), db, pool, 100))

	res, err := c.Tick(ctxAt(1), db)
	assert.Nil(t, err)
	assert.Equal(t, []flowtree.Tag{{Key: "stream.liquidated", Value: dist.String()}}, res.Tags)

	p, err := c.Pool(db, pool)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), p.Rate)
	assert.Equal(t, int64(0), p.Deposit)
	rate, err := c.PoolRate(db, pool)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), rate)
	acc, err := c.Account(db, dist)
	assert.Nil(t, err)
	assert.Equal(t, int64(50), acc.Balance)
	assert.Equal(t, int64(0), acc.Deposit)
	assertBalance(t, db, c, bob, 100)

	// Nothing more is paid once liquidated.
	res, err = c.Tick(ctxAt(10), db)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(res.Tags))
	assertBalance(t, db, c, bob, 100)
}

func TestSettleRequiresBlockTime(t *testing.T) {
	db := newTestStore(t, 1)
	_, err := NewController().Settle(context.Background(), db)
	assert.IsErr(t, errors.ErrHuman, err)
}

func TestPairKey(t *testing.T) {
	key, err := pairKey([]byte("ab"), []byte("cde"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("\x02abcde"), key)

	first, second, err := splitPairKey(key)
	assert.Nil(t, err)
	assert.Equal(t, []byte("ab"), first)
	assert.Equal(t, []byte("cde"), second)

	_, err = pairKey(nil, []byte("x"))
	assert.IsErr(t, errors.ErrInput, err)
	_, _, err = splitPairKey([]byte{9, 1})
	assert.IsErr(t, errors.ErrInput, err)
}
