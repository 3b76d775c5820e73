package flow

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/utils"
)

// admit ensures the target holds the buffer required to receive a stream at
// the given rate and then calls start. A missing part of the buffer is
// transferred from the node. Both run in a single savepoint.
//
// Insufficient funds are not an error: false is returned and nothing is
// changed, so that the caller can retry later.
func (c *Controller) admit(ctx flowtree.Context, db flowtree.KVStore, node *Node, target flowtree.Address, rate int64, start func(flowtree.KVStore) error) (bool, error) {
	kind := "child"
	if target.Equals(node.RewardTarget) {
		kind = "reward"
	}

	var topUp int64
	err := utils.InSavepoint(db, func(db flowtree.KVStore) error {
		buffer, err := c.stream.RequiredBufferFor(db, rate)
		if err != nil {
			return err
		}
		balance, err := c.stream.BalanceOf(db, target)
		if err != nil {
			return err
		}
		if balance < buffer {
			topUp = buffer - balance
			if err := c.stream.Transfer(db, node.Address(), target, topUp); err != nil {
				return errors.Wrap(err, "buffer top up")
			}
		}
		return start(db)
	})

	logger := flowtree.GetLogger(ctx)
	switch {
	case err == nil:
		if topUp > 0 {
			bufferTopUps.WithLabelValues(kind).Inc()
			bufferTopUpAmount.WithLabelValues(kind).Add(float64(topUp))
			logger.Debug("buffer topped up", "node", nodeLabel(node.ID), "target", target, "amount", topUp)
		}
		return true, nil
	case errors.ErrInsufficientAmount.Is(err):
		bufferShortfalls.WithLabelValues(kind).Inc()
		logger.Info("stream change deferred", "node", nodeLabel(node.ID), "target", target, "rate", rate, "reason", err.Error())
		return false, nil
	default:
		return false, err
	}
}
