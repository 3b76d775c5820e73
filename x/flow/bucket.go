package flow

import (
	"encoding/binary"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/orm"
)

const (
	// idLength is the length of node and recipient IDs, both generated by
	// a sequence.
	idLength          = 8
	digestLength      = 32
	maxMetadataLength = 256
)

func newNodeBucket() orm.ModelBucket {
	return orm.NewModelBucket("node", &Node{})
}

// newRecipientBucket returns a bucket of recipients, keyed by node ID and
// recipient ID. The address index ensures an address is a recipient of a
// node only once.
func newRecipientBucket() orm.ModelBucket {
	return orm.NewModelBucket("recipient", &Recipient{},
		orm.WithIndex("address", recipientAddressIndexer))
}

func recipientAddressIndexer(m orm.Model) ([]byte, error) {
	r, ok := m.(*Recipient)
	if !ok {
		return nil, errors.WithType(errors.ErrType, m)
	}
	return recipientAddressKey(r.NodeID, r.Address), nil
}

func recipientKey(nodeID, recipientID []byte) []byte {
	return concat(nodeID, recipientID)
}

func recipientAddressKey(nodeID []byte, addr flowtree.Address) []byte {
	return concat(nodeID, addr)
}

func newAllocationHeadBucket() orm.ModelBucket {
	return orm.NewModelBucket("alloc_head", &AllocationHead{})
}

func newAllocationListBucket() orm.ModelBucket {
	return orm.NewModelBucket("alloc_list", &AllocationList{})
}

// allocationKey returns the storage key of an allocation.
func allocationKey(nodeID []byte, strategyIdx uint32, key []byte) []byte {
	idx := make([]byte, 4)
	binary.BigEndian.PutUint32(idx, strategyIdx)
	return concat(nodeID, idx, key)
}

// newPendingBucket returns the queue of children waiting for a rate push,
// keyed by node ID and a sequence value so that iteration is FIFO.
func newPendingBucket() orm.ModelBucket {
	return orm.NewModelBucket("pending", &PendingEntry{})
}

// newPendingIndexBucket returns the position of a child in the pending
// queue, keyed by node ID and recipient ID.
func newPendingIndexBucket() orm.ModelBucket {
	return orm.NewModelBucket("pending_ix", &PendingIndex{})
}

// baselinePool returns the stream pool ID of the node baseline pool.
func baselinePool(nodeID []byte) []byte {
	return concat([]byte("flow:baseline:"), nodeID)
}

// bonusPool returns the stream pool ID of the node bonus pool.
func bonusPool(nodeID []byte) []byte {
	return concat([]byte("flow:bonus:"), nodeID)
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func validID(id []byte) error {
	if len(id) != idLength {
		return errors.Wrapf(errors.ErrInput, "invalid id length %d", len(id))
	}
	return nil
}
