package stream

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/orm"
)

// Controller manages accounts, pools and flows. It is the only way other
// extensions should access the stream state.
type Controller struct {
	accounts orm.ModelBucket
	pools    orm.ModelBucket
	members  orm.ModelBucket
	flows    orm.ModelBucket
	supply   orm.ModelBucket
}

// NewController returns a controller using the default buckets.
func NewController() *Controller {
	return &Controller{
		accounts: newAccountBucket(),
		pools:    newPoolBucket(),
		members:  newMemberBucket(),
		flows:    newFlowBucket(),
		supply:   newSupplyBucket(),
	}
}

// Issue creates new value and assigns it to the given address.
func (c *Controller) Issue(db flowtree.KVStore, to flowtree.Address, amount int64) error {
	if amount <= 0 {
		return errors.Wrap(errors.ErrAmount, "issued amount must be positive")
	}
	if err := to.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}

	var s Supply
	if err := c.supply.One(db, supplyKey, &s); err != nil && !errors.ErrNotFound.Is(err) {
		return errors.Wrap(err, "load supply")
	}
	total, err := flowtree.Add(s.Total, amount)
	if err != nil {
		return err
	}
	s.Total = total
	if err := c.supply.Put(db, supplyKey, &s); err != nil {
		return errors.Wrap(err, "save supply")
	}

	acc, err := loadAccount(db, c.accounts, to)
	if err != nil {
		return err
	}
	if acc.Balance, err = flowtree.Add(acc.Balance, amount); err != nil {
		return err
	}
	return saveAccount(db, c.accounts, to, acc)
}

// TotalIssued returns the sum of all issued value.
func (c *Controller) TotalIssued(db flowtree.ReadOnlyKVStore) (int64, error) {
	var s Supply
	switch err := c.supply.One(db, supplyKey, &s); {
	case err == nil:
		return s.Total, nil
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, err
	}
}

// BalanceOf returns the balance of the account, including its locked
// deposit.
func (c *Controller) BalanceOf(db flowtree.ReadOnlyKVStore, addr flowtree.Address) (int64, error) {
	acc, err := loadAccount(db, c.accounts, addr)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Account returns the full state of an account.
func (c *Controller) Account(db flowtree.ReadOnlyKVStore, addr flowtree.Address) (*Account, error) {
	return loadAccount(db, c.accounts, addr)
}

// Transfer moves the amount between two accounts. Only the available (not
// locked) balance can be transferred.
func (c *Controller) Transfer(db flowtree.KVStore, from, to flowtree.Address, amount int64) error {
	if amount <= 0 {
		return errors.Wrap(errors.ErrAmount, "transferred amount must be positive")
	}
	if from.Equals(to) {
		return errors.Wrap(errors.ErrInput, "cannot transfer to self")
	}
	if err := to.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}
	src, err := loadAccount(db, c.accounts, from)
	if err != nil {
		return err
	}
	if src.Available() < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "available %d, requested %d", src.Available(), amount)
	}
	dst, err := loadAccount(db, c.accounts, to)
	if err != nil {
		return err
	}
	src.Balance -= amount
	if dst.Balance, err = flowtree.Add(dst.Balance, amount); err != nil {
		return err
	}
	if err := saveAccount(db, c.accounts, from, src); err != nil {
		return err
	}
	return saveAccount(db, c.accounts, to, dst)
}

// RequiredBufferFor returns the deposit that must be locked to stream at
// the given rate.
func (c *Controller) RequiredBufferFor(db flowtree.ReadOnlyKVStore, rate int64) (int64, error) {
	if rate < 0 {
		return 0, errors.Wrap(errors.ErrAmount, "negative rate")
	}
	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	return flowtree.Mul(rate, conf.BufferPeriod)
}

// CreatePool registers a new pool distributed by the given address.
func (c *Controller) CreatePool(db flowtree.KVStore, pool []byte, distributor flowtree.Address) error {
	if len(pool) == 0 || len(pool) > 255 {
		return errors.Wrap(errors.ErrInput, "invalid pool id")
	}
	switch has, err := c.pools.Has(db, pool); {
	case err != nil:
		return err
	case has:
		return errors.Wrapf(errors.ErrDuplicate, "pool %X", pool)
	}
	return c.pools.Put(db, pool, &Pool{Distributor: distributor})
}

// Pool returns the current state of a pool.
func (c *Controller) Pool(db flowtree.ReadOnlyKVStore, pool []byte) (*Pool, error) {
	var p Pool
	if err := c.pools.One(db, pool, &p); err != nil {
		return nil, errors.Wrapf(err, "pool %X", pool)
	}
	return &p, nil
}

// PoolRate returns the distribution rate of the pool. It is zero after the
// distributor was liquidated.
func (c *Controller) PoolRate(db flowtree.ReadOnlyKVStore, pool []byte) (int64, error) {
	p, err := c.Pool(db, pool)
	if err != nil {
		return 0, err
	}
	return p.Rate, nil
}

// MemberUnits returns the units of the member, zero if not a member.
func (c *Controller) MemberUnits(db flowtree.ReadOnlyKVStore, pool []byte, member flowtree.Address) (int64, error) {
	key, err := pairKey(pool, member)
	if err != nil {
		return 0, err
	}
	var m Member
	switch err := c.members.One(db, key, &m); {
	case err == nil:
		return m.Units, nil
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, err
	}
}

// TotalUnits returns the sum of units of all members of the pool.
func (c *Controller) TotalUnits(db flowtree.ReadOnlyKVStore, pool []byte) (int64, error) {
	p, err := c.Pool(db, pool)
	if err != nil {
		return 0, err
	}
	return p.TotalUnits, nil
}

// SetMemberUnits settles the pool and changes the units of a member. Zero
// units remove the member.
func (c *Controller) SetMemberUnits(ctx flowtree.Context, db flowtree.KVStore, pool []byte, member flowtree.Address, units int64) error {
	if units < 0 {
		return errors.Wrap(errors.ErrAmount, "negative units")
	}
	if err := member.Validate(); err != nil {
		return errors.Wrap(err, "member")
	}
	now, err := flowtree.BlockUnixTime(ctx)
	if err != nil {
		return err
	}
	p, err := c.Pool(db, pool)
	if err != nil {
		return err
	}
	if _, err := c.settlePool(db, pool, p, now); err != nil {
		return err
	}

	prev, err := c.MemberUnits(db, pool, member)
	if err != nil {
		return err
	}
	key, err := pairKey(pool, member)
	if err != nil {
		return err
	}
	if units == 0 {
		if prev != 0 {
			if err := c.members.Delete(db, key); err != nil {
				return err
			}
		}
	} else if err := c.members.Put(db, key, &Member{Units: units}); err != nil {
		return err
	}

	if p.TotalUnits, err = flowtree.Add(p.TotalUnits, units-prev); err != nil {
		return err
	}
	return c.pools.Put(db, pool, p)
}

// DistributeAtRate settles the pool and changes its distribution rate. An
// increase locks additional deposit from the distributor and fails with
// ErrInsufficientAmount if its available balance is too low.
func (c *Controller) DistributeAtRate(ctx flowtree.Context, db flowtree.KVStore, pool []byte, rate int64) error {
	if rate < 0 {
		return errors.Wrap(errors.ErrAmount, "negative rate")
	}
	now, err := flowtree.BlockUnixTime(ctx)
	if err != nil {
		return err
	}
	p, err := c.Pool(db, pool)
	if err != nil {
		return err
	}
	if rate > 0 && p.TotalUnits == 0 {
		return errors.Wrapf(errors.ErrState, "pool %X has no members", pool)
	}
	if _, err := c.settlePool(db, pool, p, now); err != nil {
		return err
	}
	deposit, err := c.RequiredBufferFor(db, rate)
	if err != nil {
		return err
	}
	if err := c.lockDeposit(db, p.Distributor, p.Deposit, deposit); err != nil {
		return err
	}
	p.Rate = rate
	p.Deposit = deposit
	return c.pools.Put(db, pool, p)
}

// SetFlow settles and changes the direct stream between two addresses. A
// zero rate deletes the stream.
func (c *Controller) SetFlow(ctx flowtree.Context, db flowtree.KVStore, from, to flowtree.Address, rate int64) error {
	if rate < 0 {
		return errors.Wrap(errors.ErrAmount, "negative rate")
	}
	if from.Equals(to) {
		return errors.Wrap(errors.ErrInput, "cannot stream to self")
	}
	if err := to.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}
	now, err := flowtree.BlockUnixTime(ctx)
	if err != nil {
		return err
	}
	key, err := pairKey(from, to)
	if err != nil {
		return err
	}

	var f Flow
	switch err := c.flows.One(db, key, &f); {
	case err == nil:
		if _, err := c.settleFlow(db, from, to, &f, now); err != nil {
			return err
		}
	case errors.ErrNotFound.Is(err):
		f = Flow{UpdatedAt: now}
	default:
		return err
	}

	deposit, err := c.RequiredBufferFor(db, rate)
	if err != nil {
		return err
	}
	if err := c.lockDeposit(db, from, f.Deposit, deposit); err != nil {
		return err
	}
	if rate == 0 {
		switch err := c.flows.Delete(db, key); {
		case err == nil, errors.ErrNotFound.Is(err):
			return nil
		default:
			return err
		}
	}
	f.Rate = rate
	f.Deposit = deposit
	return c.flows.Put(db, key, &f)
}

// FlowRate returns the rate of the direct stream, zero if none.
func (c *Controller) FlowRate(db flowtree.ReadOnlyKVStore, from, to flowtree.Address) (int64, error) {
	key, err := pairKey(from, to)
	if err != nil {
		return 0, err
	}
	var f Flow
	switch err := c.flows.One(db, key, &f); {
	case err == nil:
		return f.Rate, nil
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, err
	}
}

// lockDeposit changes the deposit locked by the account for a single
// stream from prev to next.
func (c *Controller) lockDeposit(db flowtree.KVStore, addr flowtree.Address, prev, next int64) error {
	if prev == next {
		return nil
	}
	acc, err := loadAccount(db, c.accounts, addr)
	if err != nil {
		return err
	}
	delta := next - prev
	if delta > 0 && acc.Available() < delta {
		return errors.Wrapf(errors.ErrInsufficientAmount, "deposit of %d required, %d available", delta, acc.Available())
	}
	acc.Deposit += delta
	if acc.Deposit < 0 {
		acc.Deposit = 0
	}
	return saveAccount(db, c.accounts, addr, acc)
}
