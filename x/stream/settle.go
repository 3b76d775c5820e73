package stream

import (
	"math"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

var _ flowtree.Ticker = (*Controller)(nil)

// Tick settles all streams up to the current block time and liquidates
// insolvent distributors.
func (c *Controller) Tick(ctx flowtree.Context, db flowtree.KVStore) (*flowtree.TickResult, error) {
	liquidated, err := c.Settle(ctx, db)
	if err != nil {
		return nil, err
	}
	res := &flowtree.TickResult{}
	for _, addr := range liquidated {
		res.Tags = append(res.Tags, flowtree.Tag{Key: "stream.liquidated", Value: addr.String()})
	}
	return res, nil
}

// Settle pays out all pools and flows up to the current block time. Every
// distributor that cannot cover its locked deposit afterwards is liquidated
// and returned.
func (c *Controller) Settle(ctx flowtree.Context, db flowtree.KVStore) ([]flowtree.Address, error) {
	now, err := flowtree.BlockUnixTime(ctx)
	if err != nil {
		return nil, err
	}

	pools, err := c.allPools(db)
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		if _, err := c.settlePool(db, p.id, p.pool, now); err != nil {
			return nil, errors.Wrapf(err, "settle pool %X", p.id)
		}
		if err := c.pools.Put(db, p.id, p.pool); err != nil {
			return nil, err
		}
	}
	flows, err := c.allFlows(db)
	if err != nil {
		return nil, err
	}
	for _, f := range flows {
		if _, err := c.settleFlow(db, f.from, f.to, f.flow, now); err != nil {
			return nil, errors.Wrap(err, "settle flow")
		}
		if err := c.flows.Put(db, f.key, f.flow); err != nil {
			return nil, err
		}
	}

	var insolvent flowtree.AddressSet
	for _, p := range pools {
		if p.pool.Rate == 0 {
			continue
		}
		if bad, err := c.isInsolvent(db, p.pool.Distributor); err != nil {
			return nil, err
		} else if bad {
			insolvent.Add(p.pool.Distributor)
		}
	}
	for _, f := range flows {
		if bad, err := c.isInsolvent(db, f.from); err != nil {
			return nil, err
		} else if bad {
			insolvent.Add(f.from)
		}
	}
	if len(insolvent.List()) == 0 {
		return nil, nil
	}

	for _, p := range pools {
		if p.pool.Rate == 0 || !insolvent.Has(p.pool.Distributor) {
			continue
		}
		if err := c.lockDeposit(db, p.pool.Distributor, p.pool.Deposit, 0); err != nil {
			return nil, err
		}
		p.pool.Rate = 0
		p.pool.Deposit = 0
		if err := c.pools.Put(db, p.id, p.pool); err != nil {
			return nil, err
		}
	}
	for _, f := range flows {
		if !insolvent.Has(f.from) {
			continue
		}
		if err := c.lockDeposit(db, f.from, f.flow.Deposit, 0); err != nil {
			return nil, err
		}
		if err := c.flows.Delete(db, f.key); err != nil {
			return nil, err
		}
	}

	liquidated := insolvent.List()
	logger := flowtree.GetLogger(ctx)
	for _, addr := range liquidated {
		logger.Info("distributor liquidated", "address", addr)
	}
	return liquidated, nil
}

func (c *Controller) isInsolvent(db flowtree.ReadOnlyKVStore, addr flowtree.Address) (bool, error) {
	acc, err := loadAccount(db, c.accounts, addr)
	if err != nil {
		return false, err
	}
	return acc.Available() < 0, nil
}

// settlePool pays the pool members for the time elapsed since the last
// update. The distributor can never pay more than its balance. Rounding
// leftovers stay with the distributor. The pool is updated in place but not
// saved.
func (c *Controller) settlePool(db flowtree.KVStore, id []byte, p *Pool, now flowtree.UnixTime) (int64, error) {
	elapsed := now.Elapsed(p.UpdatedAt)
	if p.UpdatedAt.IsZero() {
		elapsed = 0
	}
	if now > p.UpdatedAt {
		p.UpdatedAt = now
	}
	if elapsed == 0 || p.Rate == 0 || p.TotalUnits == 0 {
		return 0, nil
	}

	dist, err := loadAccount(db, c.accounts, p.Distributor)
	if err != nil {
		return 0, err
	}
	due := owed(p.Rate, elapsed)
	if due > dist.Balance {
		due = dist.Balance
	}
	if due <= 0 {
		return 0, nil
	}

	type share struct {
		addr  flowtree.Address
		units int64
	}
	var shares []share
	prefix, err := pairKey(id, nil)
	if err != nil {
		return 0, err
	}
	it, err := c.members.Iterate(db, prefix)
	if err != nil {
		return 0, err
	}
	for {
		var m Member
		key, err := it.LoadNext(&m)
		if errors.ErrIteratorDone.Is(err) {
			break
		}
		if err != nil {
			it.Release()
			return 0, err
		}
		_, member, err := splitPairKey(key)
		if err != nil {
			it.Release()
			return 0, err
		}
		shares = append(shares, share{addr: member, units: m.Units})
	}
	it.Release()

	var paid int64
	amounts := make([]int64, len(shares))
	for i, s := range shares {
		amount, err := flowtree.MulDiv(due, s.units, p.TotalUnits)
		if err != nil {
			return 0, err
		}
		amounts[i] = amount
		paid += amount
	}

	dist.Balance -= paid
	if err := saveAccount(db, c.accounts, p.Distributor, dist); err != nil {
		return 0, err
	}
	for i, s := range shares {
		if amounts[i] == 0 {
			continue
		}
		acc, err := loadAccount(db, c.accounts, s.addr)
		if err != nil {
			return 0, err
		}
		if acc.Balance, err = flowtree.Add(acc.Balance, amounts[i]); err != nil {
			return 0, err
		}
		if err := saveAccount(db, c.accounts, s.addr, acc); err != nil {
			return 0, err
		}
	}
	return paid, nil
}

// settleFlow pays the receiver of a direct stream. The flow is updated in
// place but not saved.
func (c *Controller) settleFlow(db flowtree.KVStore, from, to flowtree.Address, f *Flow, now flowtree.UnixTime) (int64, error) {
	elapsed := now.Elapsed(f.UpdatedAt)
	if now > f.UpdatedAt {
		f.UpdatedAt = now
	}
	if elapsed == 0 || f.Rate == 0 {
		return 0, nil
	}
	src, err := loadAccount(db, c.accounts, from)
	if err != nil {
		return 0, err
	}
	due := owed(f.Rate, elapsed)
	if due > src.Balance {
		due = src.Balance
	}
	if due <= 0 {
		return 0, nil
	}
	src.Balance -= due
	if err := saveAccount(db, c.accounts, from, src); err != nil {
		return 0, err
	}
	dst, err := loadAccount(db, c.accounts, to)
	if err != nil {
		return 0, err
	}
	if dst.Balance, err = flowtree.Add(dst.Balance, due); err != nil {
		return 0, err
	}
	return due, saveAccount(db, c.accounts, to, dst)
}

// owed returns rate * elapsed, saturated on overflow.
func owed(rate, elapsed int64) int64 {
	v, err := flowtree.Mul(rate, elapsed)
	if err != nil {
		return math.MaxInt64
	}
	return v
}

type storedPool struct {
	id   []byte
	pool *Pool
}

func (c *Controller) allPools(db flowtree.ReadOnlyKVStore) ([]storedPool, error) {
	it, err := c.pools.Iterate(db, nil)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var res []storedPool
	for {
		var p Pool
		key, err := it.LoadNext(&p)
		switch {
		case err == nil:
			res = append(res, storedPool{id: key, pool: &p})
		case errors.ErrIteratorDone.Is(err):
			return res, nil
		default:
			return nil, err
		}
	}
}

type storedFlow struct {
	key      []byte
	from, to flowtree.Address
	flow     *Flow
}

func (c *Controller) allFlows(db flowtree.ReadOnlyKVStore) ([]storedFlow, error) {
	it, err := c.flows.Iterate(db, nil)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var res []storedFlow
	for {
		var f Flow
		key, err := it.LoadNext(&f)
		switch {
		case err == nil:
			from, to, err := splitPairKey(key)
			if err != nil {
				return nil, err
			}
			res = append(res, storedFlow{key: key, from: from, to: to, flow: &f})
		case errors.ErrIteratorDone.Is(err):
			return res, nil
		default:
			return nil, err
		}
	}
}
