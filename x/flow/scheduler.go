package flow

import (
	"bytes"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/utils"
)

// DrainResult describes the work done by a single drain.
type DrainResult struct {
	// Processed is the number of children taken from the queue.
	Processed int64
	// Pushed is the number of children which rate was changed.
	Pushed int64
	// Deferred is the number of children put back to the queue because
	// the node could not fund their buffer.
	Deferred int64
	// Remaining is the number of children still waiting.
	Remaining int64
}

// markPending puts the child at the end of the queue unless it is already
// waiting.
func (c *Controller) markPending(db flowtree.KVStore, nodeID, recipientID []byte) error {
	ixKey := concat(nodeID, recipientID)
	switch has, err := c.pendingIx.Has(db, ixKey); {
	case err != nil:
		return err
	case has:
		return nil
	}
	seq := c.pending.Sequence("seq")
	pos, err := seq.NextVal(db)
	if err != nil {
		return err
	}
	if err := c.pending.Put(db, concat(nodeID, pos), &PendingEntry{RecipientID: recipientID}); err != nil {
		return err
	}
	return c.pendingIx.Put(db, ixKey, &PendingIndex{Seq: pos})
}

// unmarkPending removes the child from the queue. It is a no-op if the
// child is not waiting.
func (c *Controller) unmarkPending(db flowtree.KVStore, nodeID, recipientID []byte) error {
	ixKey := concat(nodeID, recipientID)
	var ix PendingIndex
	switch err := c.pendingIx.One(db, ixKey, &ix); {
	case errors.ErrNotFound.Is(err):
		return nil
	case err != nil:
		return err
	}
	if err := c.pending.Delete(db, concat(nodeID, ix.Seq)); err != nil {
		return err
	}
	return c.pendingIx.Delete(db, ixKey)
}

// markAllChildrenPending queues every active child of the node.
func (c *Controller) markAllChildrenPending(db flowtree.KVStore, nodeID []byte) error {
	recipients, err := c.Recipients(db, nodeID)
	if err != nil {
		return err
	}
	for _, r := range recipients {
		if r.Kind != RecipientChildNode || r.Removed {
			continue
		}
		if err := c.markPending(db, nodeID, r.ID); err != nil {
			return err
		}
	}
	return nil
}

// pendingIDs returns up to limit recipient IDs from the head of the queue.
// A negative limit returns all.
func (c *Controller) pendingIDs(db flowtree.ReadOnlyKVStore, nodeID []byte, limit int64) ([][]byte, error) {
	it, err := c.pending.Iterate(db, nodeID)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var ids [][]byte
	for limit < 0 || int64(len(ids)) < limit {
		var e PendingEntry
		switch _, err := it.LoadNext(&e); {
		case err == nil:
			ids = append(ids, e.RecipientID)
		case errors.ErrIteratorDone.Is(err):
			return ids, nil
		default:
			return nil, err
		}
	}
	return ids, nil
}

// PendingChildWork returns the addresses of children waiting for a rate
// push, in queue order.
func (c *Controller) PendingChildWork(db flowtree.ReadOnlyKVStore, nodeID []byte) ([]flowtree.Address, error) {
	ids, err := c.pendingIDs(db, nodeID, -1)
	if err != nil {
		return nil, err
	}
	addrs := make([]flowtree.Address, 0, len(ids))
	for _, id := range ids {
		r, err := c.RecipientByID(db, nodeID, id)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, r.Address)
	}
	return addrs, nil
}

// DrainChildUpdates pushes rates to at most limit pending children of the
// node. Stream increases the node could not fund before are retried and
// streams stopped by a liquidation are restarted. Anyone may call it.
func (c *Controller) DrainChildUpdates(ctx flowtree.Context, db flowtree.KVStore, nodeID []byte, limit int64) (*DrainResult, error) {
	return c.drain(ctx, db, nodeID, nil, limit)
}

// drain processes the priority children first, if they are pending, and
// then the head of the queue, pushing at most limit children.
func (c *Controller) drain(ctx flowtree.Context, db flowtree.KVStore, nodeID []byte, priority [][]byte, limit int64) (*DrainResult, error) {
	if limit < 0 {
		return nil, errors.Wrap(errors.ErrInput, "negative drain limit")
	}
	node, err := c.Node(db, nodeID)
	if err != nil {
		return nil, err
	}
	if err := c.resync(ctx, db, node); err != nil {
		return nil, err
	}

	var batch [][]byte
	for _, id := range priority {
		if int64(len(batch)) >= limit {
			break
		}
		if has, err := c.pendingIx.Has(db, concat(nodeID, id)); err != nil {
			return nil, err
		} else if has && !containsID(batch, id) {
			batch = append(batch, id)
		}
	}
	if rest := limit - int64(len(batch)); rest > 0 {
		head, err := c.pendingIDs(db, nodeID, rest+int64(len(batch)))
		if err != nil {
			return nil, err
		}
		for _, id := range head {
			if int64(len(batch)) >= limit {
				break
			}
			if !containsID(batch, id) {
				batch = append(batch, id)
			}
		}
	}

	res := &DrainResult{}
	for _, id := range batch {
		if err := c.unmarkPending(db, nodeID, id); err != nil {
			return nil, err
		}
		res.Processed++
		r, err := c.RecipientByID(db, nodeID, id)
		if err != nil {
			return nil, err
		}
		switch pushed, err := c.pushChild(ctx, db, node, r); {
		case err != nil:
			return nil, errors.Wrapf(err, "push to child %s", nodeLabel(r.ChildNodeID))
		case pushed == pushDeferred:
			res.Deferred++
			if err := c.markPending(db, nodeID, id); err != nil {
				return nil, err
			}
		case pushed == pushDone:
			res.Pushed++
		}
	}

	left, err := c.pendingIDs(db, nodeID, -1)
	if err != nil {
		return nil, err
	}
	res.Remaining = int64(len(left))

	drainedChildren.Observe(float64(res.Processed))
	deferredChildren.Add(float64(res.Deferred))
	if res.Processed > 0 {
		flowtree.GetLogger(ctx).Debug("children drained",
			"node", nodeLabel(nodeID),
			"processed", res.Processed,
			"pushed", res.Pushed,
			"deferred", res.Deferred,
			"remaining", res.Remaining)
	}
	return res, nil
}

type pushResult int

const (
	pushUpToDate pushResult = iota
	pushDone
	pushDeferred
)

// pushChild recomputes the rate the node streams to the child and sets it
// as the child rate. A child already at that rate is only updated when its
// own streams fell behind. An increase is admitted first, when it cannot be
// funded the push is deferred.
func (c *Controller) pushChild(ctx flowtree.Context, db flowtree.KVStore, node *Node, r *Recipient) (pushResult, error) {
	if r.Kind != RecipientChildNode {
		return pushUpToDate, nil
	}
	rate, err := c.memberRate(db, node, r.Address)
	if err != nil {
		return pushUpToDate, err
	}
	child, err := c.Node(db, r.ChildNodeID)
	if err != nil {
		return pushUpToDate, err
	}
	if child.TotalRate == rate {
		switch synced, err := c.inSync(db, child); {
		case err != nil:
			return pushUpToDate, err
		case synced:
			ratePushes.WithLabelValues("up_to_date").Inc()
			return pushUpToDate, nil
		}
	}

	setRate := func(db flowtree.KVStore) error {
		return c.setFlowRate(ctx, db, child, rate)
	}
	if rate < child.TotalRate {
		err = utils.InSavepoint(db, setRate)
		if errors.ErrInsufficientAmount.Is(err) {
			ratePushes.WithLabelValues("deferred").Inc()
			return pushDeferred, nil
		}
		if err != nil {
			return pushUpToDate, err
		}
	} else {
		ok, err := c.admit(ctx, db, node, child.Address(), rate, setRate)
		if err != nil {
			return pushUpToDate, err
		}
		if !ok {
			ratePushes.WithLabelValues("deferred").Inc()
			return pushDeferred, nil
		}
	}
	ratePushes.WithLabelValues("pushed").Inc()
	flowtree.GetLogger(ctx).Info("child rate pushed", "node", nodeLabel(node.ID), "child", nodeLabel(child.ID), "rate", rate)
	return pushDone, nil
}

func containsID(ids [][]byte, id []byte) bool {
	for _, x := range ids {
		if bytes.Equal(x, id) {
			return true
		}
	}
	return false
}
