package flow

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// SplitRate partitions the total rate of a node into the baseline, bonus
// and reward rates.
//
// The reward is taken first. The baseline is a percentage of what is left.
// The bonus is the rest, scaled by the participation ratio: the active
// weight divided by the quorum part of the total weight, capped at 1. With
// no possible weight there is no bonus. Unused bonus capacity is not
// streamed.
//
// The sum of the returned rates never exceeds total.
func SplitRate(total int64, conf *NodeConfig, activeWeight, totalWeight int64) (Rates, error) {
	if total < 0 {
		return Rates{}, errors.Wrap(errors.ErrAmount, "negative total rate")
	}
	if activeWeight < 0 || totalWeight < 0 {
		return Rates{}, errors.Wrap(errors.ErrAmount, "negative weight")
	}
	if err := conf.Validate(); err != nil {
		return Rates{}, err
	}

	reward, err := conf.RewardPercent.Of(total)
	if err != nil {
		return Rates{}, errors.Wrap(err, "reward")
	}
	remaining := total - reward
	baseline, err := conf.BaselinePercent.Of(remaining)
	if err != nil {
		return Rates{}, errors.Wrap(err, "baseline")
	}
	bonus, err := scaleByQuorum(remaining-baseline, conf.QuorumPercent, activeWeight, totalWeight)
	if err != nil {
		return Rates{}, errors.Wrap(err, "bonus")
	}
	return Rates{Baseline: baseline, Bonus: bonus, Reward: reward}, nil
}

func scaleByQuorum(capacity int64, quorum flowtree.BasisPoints, activeWeight, totalWeight int64) (int64, error) {
	if totalWeight == 0 || capacity == 0 {
		return 0, nil
	}
	quorumCap, err := quorum.Of(totalWeight)
	if err != nil {
		return 0, err
	}
	if quorumCap == 0 {
		return 0, nil
	}
	if activeWeight >= quorumCap {
		return capacity, nil
	}
	return flowtree.MulDiv(capacity, activeWeight, quorumCap)
}
