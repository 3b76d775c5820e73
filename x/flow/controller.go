package flow

import (
	"bytes"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/orm"
)

// Controller is the distribution engine. All state changes of nodes go
// through it. Nodes never modify each other records, a parent changes the
// rate of a child by calling SetFlowRate as the authorized caller.
type Controller struct {
	stream     StreamController
	strategies *StrategyRegistry

	nodes      orm.ModelBucket
	recipients orm.ModelBucket
	heads      orm.ModelBucket
	lists      orm.ModelBucket
	pending    orm.ModelBucket
	pendingIx  orm.ModelBucket
}

// NewController returns an engine streaming with the given primitive and
// building strategies from the registry.
func NewController(stream StreamController, strategies *StrategyRegistry) *Controller {
	return &Controller{
		stream:     stream,
		strategies: strategies,
		nodes:      newNodeBucket(),
		recipients: newRecipientBucket(),
		heads:      newAllocationHeadBucket(),
		lists:      newAllocationListBucket(),
		pending:    newPendingBucket(),
		pendingIx:  newPendingIndexBucket(),
	}
}

// CreateNode creates a node with no recipients and a zero rate.
func (c *Controller) CreateNode(db flowtree.KVStore, manager flowtree.Address, conf *NodeConfig, strategies []*StrategyRef, rewardTarget flowtree.Address) (*Node, error) {
	for i, ref := range strategies {
		if _, err := c.strategies.Build(ref); err != nil {
			return nil, errors.Wrapf(err, "strategy #%d", i)
		}
	}
	seq := c.nodes.Sequence("id")
	id, err := seq.NextVal(db)
	if err != nil {
		return nil, errors.Wrap(err, "node id")
	}
	node := &Node{
		ID:           id,
		Manager:      manager,
		Config:       conf,
		Strategies:   strategies,
		RewardTarget: rewardTarget,
		Rates:        &Rates{},
	}
	if err := c.nodes.Put(db, id, node); err != nil {
		return nil, err
	}
	if err := c.createPools(db, node); err != nil {
		return nil, err
	}
	return node, nil
}

// Node returns the node with the given ID.
func (c *Controller) Node(db flowtree.ReadOnlyKVStore, id []byte) (*Node, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	var n Node
	if err := c.nodes.One(db, id, &n); err != nil {
		return nil, errors.Wrapf(err, "node %s", nodeLabel(id))
	}
	return &n, nil
}

func (c *Controller) saveNode(db flowtree.KVStore, n *Node) error {
	return c.nodes.Put(db, n.ID, n)
}

// TotalFlowRate returns the cached incoming rate of the node.
func (c *Controller) TotalFlowRate(db flowtree.ReadOnlyKVStore, nodeID []byte) (int64, error) {
	n, err := c.Node(db, nodeID)
	if err != nil {
		return 0, err
	}
	return n.TotalRate, nil
}

// SetFlowRate changes the incoming rate of the node. The caller must be the
// node manager or its parent node. The new rate is split and streamed,
// children are marked pending but not pushed: a rate change propagates
// through the tree one drain at a time.
//
// Setting the current rate again only restarts streams that fell behind.
func (c *Controller) SetFlowRate(ctx flowtree.Context, db flowtree.KVStore, caller flowtree.Address, nodeID []byte, rate int64) error {
	if rate < 0 {
		return errors.Wrap(errors.ErrAmount, "negative rate")
	}
	node, err := c.Node(db, nodeID)
	if err != nil {
		return err
	}
	if !c.canSetRate(node, caller) {
		return errors.Wrap(errors.ErrUnauthorized, "only the manager or the parent can set the rate")
	}
	return c.setFlowRate(ctx, db, node, rate)
}

func (c *Controller) canSetRate(node *Node, caller flowtree.Address) bool {
	if len(caller) == 0 {
		return false
	}
	if caller.Equals(node.Manager) {
		return true
	}
	return len(node.ParentID) != 0 && caller.Equals(NodeCondition(node.ParentID).Address())
}

func (c *Controller) setFlowRate(ctx flowtree.Context, db flowtree.KVStore, node *Node, rate int64) error {
	if node.TotalRate == rate {
		return c.resync(ctx, db, node)
	}
	node.TotalRate = rate
	if err := c.applyRates(ctx, db, node); err != nil {
		return err
	}
	if err := c.markAllChildrenPending(db, node.ID); err != nil {
		return err
	}
	flowtree.GetLogger(ctx).Debug("node rate set", "node", nodeLabel(node.ID), "rate", rate)
	return c.saveNode(db, node)
}

// resync applies the node rates again when the streams differ from the
// cached rates or an increase is pending, and saves the node.
func (c *Controller) resync(ctx flowtree.Context, db flowtree.KVStore, node *Node) error {
	synced, err := c.inSync(db, node)
	if err != nil || synced {
		return err
	}
	before := node.CurrentRates()
	if err := c.applyRates(ctx, db, node); err != nil {
		return err
	}
	flowtree.GetLogger(ctx).Info("node streams resynced", "node", nodeLabel(node.ID), "before", before.Sum(), "after", node.CurrentRates().Sum())
	return c.saveNode(db, node)
}

// UpdateNode replaces the split configuration and the reward target. The
// streams are updated right away.
func (c *Controller) UpdateNode(ctx flowtree.Context, db flowtree.KVStore, nodeID []byte, conf *NodeConfig, rewardTarget flowtree.Address) (*Node, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	node, err := c.Node(db, nodeID)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(node.RewardTarget, rewardTarget) {
		streamed, err := c.streamedRates(db, node)
		if err != nil {
			return nil, err
		}
		if streamed.Reward > 0 {
			if err := c.stream.SetFlow(ctx, db, node.Address(), node.RewardTarget, 0); err != nil {
				return nil, errors.Wrap(err, "stop reward stream")
			}
		}
		node.RewardTarget = rewardTarget
	}
	node.Config = conf
	if err := c.applyRates(ctx, db, node); err != nil {
		return nil, err
	}
	if err := c.markAllChildrenPending(db, node.ID); err != nil {
		return nil, err
	}
	return node, c.saveNode(db, node)
}

// AddRecipient adds an external address as a recipient of the node. A
// removed recipient with the same address is activated again, keeping its
// ID.
func (c *Controller) AddRecipient(ctx flowtree.Context, db flowtree.KVStore, nodeID []byte, addr flowtree.Address, metadata string) (*Recipient, error) {
	if err := addr.Validate(); err != nil {
		return nil, errors.Wrap(err, "address")
	}
	return c.addRecipient(ctx, db, nodeID, &Recipient{
		Address:  addr,
		Kind:     RecipientExternal,
		Metadata: metadata,
	})
}

// AddChildRecipient adds another node as a recipient of the node. A node
// can have a single parent and the tree cannot contain cycles.
func (c *Controller) AddChildRecipient(ctx flowtree.Context, db flowtree.KVStore, nodeID, childID []byte, metadata string) (*Recipient, error) {
	child, err := c.Node(db, childID)
	if err != nil {
		return nil, err
	}
	if len(child.ParentID) != 0 && !bytes.Equal(child.ParentID, nodeID) {
		return nil, errors.Wrapf(errors.ErrState, "node %s already has a parent", nodeLabel(childID))
	}
	for cur := nodeID; len(cur) != 0; {
		if bytes.Equal(cur, childID) {
			return nil, errors.Wrapf(ErrCycle, "node %s is an ancestor of %s", nodeLabel(childID), nodeLabel(nodeID))
		}
		n, err := c.Node(db, cur)
		if err != nil {
			return nil, err
		}
		cur = n.ParentID
	}

	r, err := c.addRecipient(ctx, db, nodeID, &Recipient{
		Address:     child.Address(),
		Kind:        RecipientChildNode,
		ChildNodeID: childID,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}
	if len(child.ParentID) == 0 {
		child.ParentID = nodeID
		if err := c.saveNode(db, child); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (c *Controller) addRecipient(ctx flowtree.Context, db flowtree.KVStore, nodeID []byte, r *Recipient) (*Recipient, error) {
	node, err := c.Node(db, nodeID)
	if err != nil {
		return nil, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	if conf.MaxRecipients > 0 && node.ActiveRecipients >= conf.MaxRecipients {
		return nil, errors.Wrapf(errors.ErrState, "node has the maximum of %d recipients", conf.MaxRecipients)
	}

	var existing Recipient
	_, err = c.recipients.ByIndex(db, "address", recipientAddressKey(nodeID, r.Address), &existing)
	switch {
	case err == nil:
		if !existing.Removed {
			return nil, errors.Wrapf(errors.ErrDuplicate, "recipient %s", r.Address)
		}
		existing.Removed = false
		existing.Metadata = r.Metadata
		r = &existing
	case errors.ErrNotFound.Is(err):
		seq := c.recipients.Sequence("id")
		id, err := seq.NextVal(db)
		if err != nil {
			return nil, errors.Wrap(err, "recipient id")
		}
		r.ID = id
		r.NodeID = nodeID
	default:
		return nil, err
	}

	node.Clock++
	r.ActivatedAt = node.Clock
	node.ActiveRecipients++
	if err := c.recipients.Put(db, recipientKey(nodeID, r.ID), r); err != nil {
		return nil, err
	}
	// A re-activated recipient starts with no bonus units.
	if err := c.stream.SetMemberUnits(ctx, db, bonusPool(nodeID), r.Address, 0); err != nil {
		return nil, err
	}
	if err := c.stream.SetMemberUnits(ctx, db, baselinePool(nodeID), r.Address, 1); err != nil {
		return nil, err
	}
	if err := c.recipientsChanged(ctx, db, node); err != nil {
		return nil, err
	}
	flowtree.GetLogger(ctx).Info("recipient added", "node", nodeLabel(nodeID), "recipient", r.Address, "kind", r.Kind)
	return r, nil
}

// RemoveRecipient removes all units of the recipient. The recipient record
// is kept so that its ID stays resolvable.
func (c *Controller) RemoveRecipient(ctx flowtree.Context, db flowtree.KVStore, nodeID, recipientID []byte) (*Recipient, error) {
	node, err := c.Node(db, nodeID)
	if err != nil {
		return nil, err
	}
	r, err := c.RecipientByID(db, nodeID, recipientID)
	if err != nil {
		return nil, err
	}
	if r.Removed {
		return nil, errors.Wrap(ErrRecipientNotFound, "already removed")
	}
	r.Removed = true
	node.ActiveRecipients--
	if err := c.recipients.Put(db, recipientKey(nodeID, r.ID), r); err != nil {
		return nil, err
	}
	if err := c.stream.SetMemberUnits(ctx, db, baselinePool(nodeID), r.Address, 0); err != nil {
		return nil, err
	}
	if err := c.stream.SetMemberUnits(ctx, db, bonusPool(nodeID), r.Address, 0); err != nil {
		return nil, err
	}
	if r.Kind == RecipientChildNode {
		if err := c.markPending(db, nodeID, r.ID); err != nil {
			return nil, err
		}
	}
	if err := c.recipientsChanged(ctx, db, node); err != nil {
		return nil, err
	}
	flowtree.GetLogger(ctx).Info("recipient removed", "node", nodeLabel(nodeID), "recipient", r.Address)
	return r, nil
}

// recipientsChanged updates the streams after the pool units changed and
// saves the node.
func (c *Controller) recipientsChanged(ctx flowtree.Context, db flowtree.KVStore, node *Node) error {
	if err := c.applyRates(ctx, db, node); err != nil {
		return err
	}
	if err := c.markAllChildrenPending(db, node.ID); err != nil {
		return err
	}
	return c.saveNode(db, node)
}

// RecipientByID returns a recipient of the node, removed or not.
func (c *Controller) RecipientByID(db flowtree.ReadOnlyKVStore, nodeID, recipientID []byte) (*Recipient, error) {
	if err := validID(recipientID); err != nil {
		return nil, err
	}
	var r Recipient
	switch err := c.recipients.One(db, recipientKey(nodeID, recipientID), &r); {
	case err == nil:
		return &r, nil
	case errors.ErrNotFound.Is(err):
		return nil, errors.Wrapf(ErrRecipientNotFound, "id %X", recipientID)
	default:
		return nil, err
	}
}

// RecipientExists returns true if the address is an active recipient of the
// node.
func (c *Controller) RecipientExists(db flowtree.ReadOnlyKVStore, nodeID []byte, addr flowtree.Address) (bool, error) {
	var r Recipient
	switch _, err := c.recipients.ByIndex(db, "address", recipientAddressKey(nodeID, addr), &r); {
	case err == nil:
		return !r.Removed, nil
	case errors.ErrNotFound.Is(err):
		return false, nil
	default:
		return false, err
	}
}

// Recipients returns all recipients of the node in the order they were
// created.
func (c *Controller) Recipients(db flowtree.ReadOnlyKVStore, nodeID []byte) ([]*Recipient, error) {
	it, err := c.recipients.Iterate(db, nodeID)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var res []*Recipient
	for {
		var r Recipient
		switch _, err := it.LoadNext(&r); {
		case err == nil:
			res = append(res, &r)
		case errors.ErrIteratorDone.Is(err):
			return res, nil
		default:
			return nil, err
		}
	}
}
