package flow

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/utils"
)

// StreamController is the streaming primitive used to pay recipients.
// A pool pays each member rate * memberUnits / totalUnits continuously.
type StreamController interface {
	CreatePool(db flowtree.KVStore, pool []byte, distributor flowtree.Address) error
	SetMemberUnits(ctx flowtree.Context, db flowtree.KVStore, pool []byte, member flowtree.Address, units int64) error
	MemberUnits(db flowtree.ReadOnlyKVStore, pool []byte, member flowtree.Address) (int64, error)
	TotalUnits(db flowtree.ReadOnlyKVStore, pool []byte) (int64, error)
	DistributeAtRate(ctx flowtree.Context, db flowtree.KVStore, pool []byte, rate int64) error
	PoolRate(db flowtree.ReadOnlyKVStore, pool []byte) (int64, error)
	// SetFlow starts, changes or, with a zero rate, deletes a direct
	// stream.
	SetFlow(ctx flowtree.Context, db flowtree.KVStore, from, to flowtree.Address, rate int64) error
	FlowRate(db flowtree.ReadOnlyKVStore, from, to flowtree.Address) (int64, error)
	RequiredBufferFor(db flowtree.ReadOnlyKVStore, rate int64) (int64, error)
	BalanceOf(db flowtree.ReadOnlyKVStore, addr flowtree.Address) (int64, error)
	Transfer(db flowtree.KVStore, from, to flowtree.Address, amount int64) error
}

// createPools creates both pools of a new node.
func (c *Controller) createPools(db flowtree.KVStore, node *Node) error {
	if err := c.stream.CreatePool(db, baselinePool(node.ID), node.Address()); err != nil {
		return errors.Wrap(err, "baseline pool")
	}
	if err := c.stream.CreatePool(db, bonusPool(node.ID), node.Address()); err != nil {
		return errors.Wrap(err, "bonus pool")
	}
	return nil
}

// addBonusUnits changes the bonus units of a member by delta.
func (c *Controller) addBonusUnits(ctx flowtree.Context, db flowtree.KVStore, nodeID []byte, member flowtree.Address, delta int64) error {
	if delta == 0 {
		return nil
	}
	pool := bonusPool(nodeID)
	units, err := c.stream.MemberUnits(db, pool, member)
	if err != nil {
		return err
	}
	units += delta
	if units < 0 {
		return errors.Wrapf(errors.ErrState, "negative bonus units of %s", member)
	}
	return c.stream.SetMemberUnits(ctx, db, pool, member, units)
}

// unitsOf returns the baseline and bonus units of a member.
func (c *Controller) unitsOf(db flowtree.ReadOnlyKVStore, nodeID []byte, member flowtree.Address) (baseline, bonus int64, err error) {
	if baseline, err = c.stream.MemberUnits(db, baselinePool(nodeID), member); err != nil {
		return 0, 0, err
	}
	if bonus, err = c.stream.MemberUnits(db, bonusPool(nodeID), member); err != nil {
		return 0, 0, err
	}
	return baseline, bonus, nil
}

// memberRate returns the rate a member of both pools of the node receives.
func (c *Controller) memberRate(db flowtree.ReadOnlyKVStore, node *Node, member flowtree.Address) (int64, error) {
	rates := node.CurrentRates()
	baseline, bonus, err := c.unitsOf(db, node.ID, member)
	if err != nil {
		return 0, err
	}
	fromBaseline, err := share(db, c.stream, baselinePool(node.ID), rates.Baseline, baseline)
	if err != nil {
		return 0, err
	}
	fromBonus, err := share(db, c.stream, bonusPool(node.ID), rates.Bonus, bonus)
	if err != nil {
		return 0, err
	}
	return flowtree.Add(fromBaseline, fromBonus)
}

func share(db flowtree.ReadOnlyKVStore, s StreamController, pool []byte, rate, units int64) (int64, error) {
	if rate == 0 || units == 0 {
		return 0, nil
	}
	total, err := s.TotalUnits(db, pool)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return flowtree.MulDiv(rate, units, total)
}

// streamedRates returns the rates the streaming primitive pays out for the
// node. They are lower than the cached rates once the node was liquidated.
func (c *Controller) streamedRates(db flowtree.ReadOnlyKVStore, node *Node) (Rates, error) {
	var (
		r   Rates
		err error
	)
	if r.Baseline, err = c.stream.PoolRate(db, baselinePool(node.ID)); err != nil {
		return r, errors.Wrap(err, "baseline rate")
	}
	if r.Bonus, err = c.stream.PoolRate(db, bonusPool(node.ID)); err != nil {
		return r, errors.Wrap(err, "bonus rate")
	}
	if len(node.RewardTarget) != 0 {
		if r.Reward, err = c.stream.FlowRate(db, node.Address(), node.RewardTarget); err != nil {
			return r, errors.Wrap(err, "reward rate")
		}
	}
	return r, nil
}

// inSync reports whether the node streams the cached rates and has no
// stream change waiting for funds.
func (c *Controller) inSync(db flowtree.ReadOnlyKVStore, node *Node) (bool, error) {
	if node.RewardPending || node.PoolsPending {
		return false, nil
	}
	streamed, err := c.streamedRates(db, node)
	if err != nil {
		return false, err
	}
	return streamed == node.CurrentRates(), nil
}

// applyRates recomputes the split of the node total rate and updates the
// streams, starting from what the streaming primitive currently pays.
// Decreases are applied first so that released deposits can fund the
// increases. A pool without members does not stream.
//
// Increases the node cannot fund keep the current rate and set
// PoolsPending or RewardPending, a later drain retries them. The node is
// updated but not saved.
func (c *Controller) applyRates(ctx flowtree.Context, db flowtree.KVStore, node *Node) error {
	totalWeight, err := c.totalWeight(db, node)
	if err != nil {
		return err
	}
	want, err := SplitRate(node.TotalRate, node.Config, node.ActiveWeight, totalWeight)
	if err != nil {
		return errors.Wrap(err, "split rate")
	}
	baselineUnits, err := c.stream.TotalUnits(db, baselinePool(node.ID))
	if err != nil {
		return err
	}
	if baselineUnits == 0 {
		want.Baseline = 0
	}
	bonusUnits, err := c.stream.TotalUnits(db, bonusPool(node.ID))
	if err != nil {
		return err
	}
	if bonusUnits == 0 {
		want.Bonus = 0
	}
	if len(node.RewardTarget) == 0 {
		want.Reward = 0
	}

	cur, err := c.streamedRates(db, node)
	if err != nil {
		return err
	}
	addr := node.Address()

	if want.Baseline < cur.Baseline {
		if err := c.stream.DistributeAtRate(ctx, db, baselinePool(node.ID), want.Baseline); err != nil {
			return errors.Wrap(err, "baseline rate")
		}
		cur.Baseline = want.Baseline
	}
	if want.Bonus < cur.Bonus {
		if err := c.stream.DistributeAtRate(ctx, db, bonusPool(node.ID), want.Bonus); err != nil {
			return errors.Wrap(err, "bonus rate")
		}
		cur.Bonus = want.Bonus
	}
	if want.Reward < cur.Reward {
		if err := c.stream.SetFlow(ctx, db, addr, node.RewardTarget, want.Reward); err != nil {
			return errors.Wrap(err, "reward rate")
		}
		cur.Reward = want.Reward
	}

	node.PoolsPending = false
	if want.Baseline > cur.Baseline {
		raised, err := c.raisePool(ctx, db, node, "baseline", baselinePool(node.ID), want.Baseline)
		if err != nil {
			return errors.Wrap(err, "baseline rate")
		}
		if raised {
			cur.Baseline = want.Baseline
		} else {
			node.PoolsPending = true
		}
	}
	if want.Bonus > cur.Bonus {
		raised, err := c.raisePool(ctx, db, node, "bonus", bonusPool(node.ID), want.Bonus)
		if err != nil {
			return errors.Wrap(err, "bonus rate")
		}
		if raised {
			cur.Bonus = want.Bonus
		} else {
			node.PoolsPending = true
		}
	}
	node.RewardPending = false
	if want.Reward > cur.Reward {
		target := node.RewardTarget
		admitted, err := c.admit(ctx, db, node, target, want.Reward, func(db flowtree.KVStore) error {
			return c.stream.SetFlow(ctx, db, addr, target, want.Reward)
		})
		if err != nil {
			return errors.Wrap(err, "reward rate")
		}
		if admitted {
			cur.Reward = want.Reward
		} else {
			node.RewardPending = true
		}
	}

	node.Rates = &cur
	return nil
}

// raisePool increases the distribution rate of one of the node pools. The
// node locks the deposit itself. When it cannot, nothing changes and false
// is returned.
func (c *Controller) raisePool(ctx flowtree.Context, db flowtree.KVStore, node *Node, kind string, pool []byte, rate int64) (bool, error) {
	err := utils.InSavepoint(db, func(db flowtree.KVStore) error {
		return c.stream.DistributeAtRate(ctx, db, pool, rate)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.ErrInsufficientAmount.Is(err):
		bufferShortfalls.WithLabelValues(kind).Inc()
		flowtree.GetLogger(ctx).Info("stream change deferred", "node", nodeLabel(node.ID), "pool", kind, "rate", rate, "reason", err.Error())
		return false, nil
	default:
		return false, err
	}
}

// totalWeight returns the sum of total weights of all node strategies.
func (c *Controller) totalWeight(db flowtree.ReadOnlyKVStore, node *Node) (int64, error) {
	var total int64
	for i, ref := range node.Strategies {
		s, err := c.strategies.Build(ref)
		if err != nil {
			return 0, err
		}
		w, err := s.TotalAllocationWeight(db)
		if err != nil {
			return 0, errors.Wrapf(err, "total weight of strategy #%d", i)
		}
		if total, err = flowtree.Add(total, w); err != nil {
			return 0, err
		}
	}
	return total, nil
}
