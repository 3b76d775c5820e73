package flow

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/orm"
)

// RegisterQuery exposes the stored state of the flow extension.
//
//	/flow/nodes          node by ID
//	/flow/recipients     recipients, prefix query by node ID
//	/flow/pending        children waiting for a rate push, by node ID
//	/flow/allocations    allocation heads, by node ID
func RegisterQuery(qr flowtree.QueryRouter) {
	orm.NewBucket("node").Register("flow/nodes", qr)
	orm.NewBucket("recipient").Register("flow/recipients", qr)
	orm.NewBucket("pending").Register("flow/pending", qr)
	orm.NewBucket("alloc_head").Register("flow/allocations", qr)
}

// Allocation returns the stored allocation of the given key. ErrNotFound is
// returned if the key never allocated.
func (c *Controller) Allocation(db flowtree.ReadOnlyKVStore, nodeID []byte, strategyIdx uint32, key []byte) (*AllocationHead, *AllocationList, error) {
	storeKey := allocationKey(nodeID, strategyIdx, key)
	var head AllocationHead
	if err := c.heads.One(db, storeKey, &head); err != nil {
		return nil, nil, err
	}
	var list AllocationList
	if err := c.lists.One(db, storeKey, &list); err != nil {
		return nil, nil, errors.Wrap(err, "allocation entries")
	}
	return &head, &list, nil
}
