package flow

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// NodeConfig holds the percentages used to split the node rate.
type NodeConfig struct {
	// BaselinePercent is the part of the rate left after the reward that
	// is shared equally by all active recipients.
	BaselinePercent flowtree.BasisPoints `protobuf:"varint,1,opt,name=baseline_percent,json=baselinePercent,proto3" json:"baseline_percent,omitempty"`
	// RewardPercent is the part of the rate streamed to the reward target.
	RewardPercent flowtree.BasisPoints `protobuf:"varint,2,opt,name=reward_percent,json=rewardPercent,proto3" json:"reward_percent,omitempty"`
	// QuorumPercent is the part of the total allocation weight that must
	// be allocated for the bonus pool to stream at its full rate.
	QuorumPercent flowtree.BasisPoints `protobuf:"varint,3,opt,name=quorum_percent,json=quorumPercent,proto3" json:"quorum_percent,omitempty"`
}

func (c *NodeConfig) Validate() error {
	if c == nil {
		return errors.Wrap(errors.ErrEmpty, "node configuration")
	}
	var errs error
	errs = errors.AppendField(errs, "BaselinePercent", c.BaselinePercent.Validate())
	errs = errors.AppendField(errs, "RewardPercent", c.RewardPercent.Validate())
	if c.BaselinePercent+c.RewardPercent > flowtree.Scale {
		errs = errors.Append(errs, errors.Field("RewardPercent", errors.ErrInput, "baseline and reward exceed 100%"))
	}
	if c.QuorumPercent <= 0 || c.QuorumPercent > flowtree.Scale {
		errs = errors.AppendField(errs, "QuorumPercent", errors.Wrap(errors.ErrInput, "must be in (0, 100%]"))
	}
	return errs
}

// Rates are the rates a node currently streams.
type Rates struct {
	Baseline int64 `protobuf:"varint,1,opt,name=baseline,proto3" json:"baseline,omitempty"`
	Bonus    int64 `protobuf:"varint,2,opt,name=bonus,proto3" json:"bonus,omitempty"`
	Reward   int64 `protobuf:"varint,3,opt,name=reward,proto3" json:"reward,omitempty"`
}

// Sum returns the total streamed rate.
func (r Rates) Sum() int64 {
	return r.Baseline + r.Bonus + r.Reward
}

// StrategyRef references an allocation strategy by the name it was
// registered with.
type StrategyRef struct {
	Name   string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Params []byte `protobuf:"bytes,2,opt,name=params,proto3" json:"params,omitempty"`
}

// Node is a single distribution node.
type Node struct {
	ID       []byte           `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Manager  flowtree.Address `protobuf:"bytes,2,opt,name=manager,proto3" json:"manager,omitempty"`
	ParentID []byte           `protobuf:"bytes,3,opt,name=parent_id,json=parentId,proto3" json:"parent_id,omitempty"`
	// TotalRate is the cached incoming rate. It is changed only by the
	// node rate setting entry point.
	TotalRate    int64            `protobuf:"varint,4,opt,name=total_rate,json=totalRate,proto3" json:"total_rate,omitempty"`
	Config       *NodeConfig      `protobuf:"bytes,5,opt,name=config,proto3" json:"config,omitempty"`
	Strategies   []*StrategyRef   `protobuf:"bytes,6,rep,name=strategies,proto3" json:"strategies,omitempty"`
	RewardTarget flowtree.Address `protobuf:"bytes,7,opt,name=reward_target,json=rewardTarget,proto3" json:"reward_target,omitempty"`
	Rates        *Rates           `protobuf:"bytes,8,opt,name=rates,proto3" json:"rates,omitempty"`
	// RewardPending is set when the reward stream could not be increased
	// because of an insufficient buffer.
	RewardPending    bool  `protobuf:"varint,9,opt,name=reward_pending,json=rewardPending,proto3" json:"reward_pending,omitempty"`
	ActiveRecipients int64 `protobuf:"varint,10,opt,name=active_recipients,json=activeRecipients,proto3" json:"active_recipients,omitempty"`
	// ActiveWeight is the sum of weights of all stored allocations.
	ActiveWeight int64 `protobuf:"varint,11,opt,name=active_weight,json=activeWeight,proto3" json:"active_weight,omitempty"`
	// Clock is increased for every vote and recipient activation.
	Clock int64 `protobuf:"varint,12,opt,name=clock,proto3" json:"clock,omitempty"`
	// PoolsPending is set when a pool rate could not be increased because
	// the node could not lock the deposit.
	PoolsPending bool `protobuf:"varint,13,opt,name=pools_pending,json=poolsPending,proto3" json:"pools_pending,omitempty"`
}

func (n *Node) Validate() error {
	var errs error
	if len(n.ID) != idLength {
		errs = errors.AppendField(errs, "ID", errors.ErrInput)
	}
	errs = errors.AppendField(errs, "Manager", n.Manager.Validate())
	if len(n.ParentID) != 0 && len(n.ParentID) != idLength {
		errs = errors.AppendField(errs, "ParentID", errors.ErrInput)
	}
	if n.TotalRate < 0 {
		errs = errors.AppendField(errs, "TotalRate", errors.ErrAmount)
	}
	errs = errors.AppendField(errs, "Config", n.Config.Validate())
	for i, s := range n.Strategies {
		if s == nil || s.Name == "" {
			errs = errors.Append(errs, errors.Field("Strategies", errors.ErrEmpty, "strategy #%d", i))
		}
	}
	if len(n.RewardTarget) != 0 {
		errs = errors.AppendField(errs, "RewardTarget", n.RewardTarget.Validate())
	}
	if n.ActiveRecipients < 0 {
		errs = errors.AppendField(errs, "ActiveRecipients", errors.ErrState)
	}
	if n.ActiveWeight < 0 {
		errs = errors.AppendField(errs, "ActiveWeight", errors.ErrState)
	}
	return errs
}

// Address returns the address of the account the node streams from.
func (n *Node) Address() flowtree.Address {
	return NodeCondition(n.ID).Address()
}

// CurrentRates returns the rates the node streamed when it was last
// updated.
func (n *Node) CurrentRates() Rates {
	if n.Rates == nil {
		return Rates{}
	}
	return *n.Rates
}

// NodeCondition returns the condition owning the node account.
func NodeCondition(id []byte) flowtree.Condition {
	return flowtree.NewCondition("flow", "node", id)
}

type nodeCodec Node

func (m *nodeCodec) Reset()         { *m = nodeCodec{} }
func (m *nodeCodec) String() string { return proto.CompactTextString(m) }
func (*nodeCodec) ProtoMessage()    {}

func (n *Node) Marshal() ([]byte, error)   { return proto.Marshal((*nodeCodec)(n)) }
func (n *Node) Unmarshal(raw []byte) error { return proto.Unmarshal(raw, (*nodeCodec)(n)) }

// RecipientKind tells what kind of target a recipient is.
type RecipientKind int32

const (
	RecipientExternal  RecipientKind = 1
	RecipientChildNode RecipientKind = 2
)

func (k RecipientKind) String() string {
	switch k {
	case RecipientExternal:
		return "external"
	case RecipientChildNode:
		return "child"
	default:
		return "unknown"
	}
}

// Recipient is a member of both pools of a node. Recipients are never
// deleted, a removed recipient holds no units.
type Recipient struct {
	ID          []byte           `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	NodeID      []byte           `protobuf:"bytes,2,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	Address     flowtree.Address `protobuf:"bytes,3,opt,name=address,proto3" json:"address,omitempty"`
	Kind        RecipientKind    `protobuf:"varint,4,opt,name=kind,proto3" json:"kind,omitempty"`
	ChildNodeID []byte           `protobuf:"bytes,5,opt,name=child_node_id,json=childNodeId,proto3" json:"child_node_id,omitempty"`
	Removed     bool             `protobuf:"varint,6,opt,name=removed,proto3" json:"removed,omitempty"`
	// ActivatedAt is the node clock value when the recipient was added or
	// last re-added.
	ActivatedAt int64  `protobuf:"varint,7,opt,name=activated_at,json=activatedAt,proto3" json:"activated_at,omitempty"`
	Metadata    string `protobuf:"bytes,8,opt,name=metadata,proto3" json:"metadata,omitempty"`
}

func (r *Recipient) Validate() error {
	var errs error
	if len(r.ID) != idLength {
		errs = errors.AppendField(errs, "ID", errors.ErrInput)
	}
	if len(r.NodeID) != idLength {
		errs = errors.AppendField(errs, "NodeID", errors.ErrInput)
	}
	errs = errors.AppendField(errs, "Address", r.Address.Validate())
	switch r.Kind {
	case RecipientExternal:
		if len(r.ChildNodeID) != 0 {
			errs = errors.AppendField(errs, "ChildNodeID", errors.Wrap(errors.ErrInput, "external recipient"))
		}
	case RecipientChildNode:
		if len(r.ChildNodeID) != idLength {
			errs = errors.AppendField(errs, "ChildNodeID", errors.ErrInput)
		}
	default:
		errs = errors.AppendField(errs, "Kind", errors.ErrInput)
	}
	if len(r.Metadata) > maxMetadataLength {
		errs = errors.AppendField(errs, "Metadata", errors.ErrInput)
	}
	return errs
}

type recipientCodec Recipient

func (m *recipientCodec) Reset()         { *m = recipientCodec{} }
func (m *recipientCodec) String() string { return proto.CompactTextString(m) }
func (*recipientCodec) ProtoMessage()    {}

func (r *Recipient) Marshal() ([]byte, error)   { return proto.Marshal((*recipientCodec)(r)) }
func (r *Recipient) Unmarshal(raw []byte) error { return proto.Unmarshal(raw, (*recipientCodec)(r)) }

// AllocationHead is the summary of a single allocation. It is enough to
// verify an attested previous allocation.
type AllocationHead struct {
	Weight  int64  `protobuf:"varint,1,opt,name=weight,proto3" json:"weight,omitempty"`
	VotedAt int64  `protobuf:"varint,2,opt,name=voted_at,json=votedAt,proto3" json:"voted_at,omitempty"`
	Digest  []byte `protobuf:"bytes,3,opt,name=digest,proto3" json:"digest,omitempty"`
}

func (h *AllocationHead) Validate() error {
	var errs error
	if h.Weight < 0 {
		errs = errors.AppendField(errs, "Weight", errors.ErrAmount)
	}
	if len(h.Digest) != digestLength {
		errs = errors.AppendField(errs, "Digest", errors.ErrInput)
	}
	return errs
}

type allocationHeadCodec AllocationHead

func (m *allocationHeadCodec) Reset()         { *m = allocationHeadCodec{} }
func (m *allocationHeadCodec) String() string { return proto.CompactTextString(m) }
func (*allocationHeadCodec) ProtoMessage()    {}

func (h *AllocationHead) Marshal() ([]byte, error) {
	return proto.Marshal((*allocationHeadCodec)(h))
}

func (h *AllocationHead) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*allocationHeadCodec)(h))
}

// AllocationEntry is the share of an allocation granted to a recipient.
type AllocationEntry struct {
	RecipientID []byte               `protobuf:"bytes,1,opt,name=recipient_id,json=recipientId,proto3" json:"recipient_id,omitempty"`
	BasisPoints flowtree.BasisPoints `protobuf:"varint,2,opt,name=basis_points,json=basisPoints,proto3" json:"basis_points,omitempty"`
	Units       int64                `protobuf:"varint,3,opt,name=units,proto3" json:"units,omitempty"`
}

// AllocationList is the ordered list of entries of a single allocation.
type AllocationList struct {
	Entries []*AllocationEntry `protobuf:"bytes,1,rep,name=entries,proto3" json:"entries,omitempty"`
}

func (l *AllocationList) Validate() error {
	var (
		errs  error
		total flowtree.BasisPoints
	)
	for i, e := range l.Entries {
		if e == nil || len(e.RecipientID) != idLength {
			errs = errors.Append(errs, errors.Field("Entries", errors.ErrInput, "entry #%d", i))
			continue
		}
		if e.Units < 0 {
			errs = errors.Append(errs, errors.Field("Entries", errors.ErrAmount, "entry #%d units", i))
		}
		total += e.BasisPoints
	}
	if len(l.Entries) != 0 && total != flowtree.Scale {
		errs = errors.Append(errs, errors.Wrapf(ErrAllocationWeightsInvalid, "sum is %d", total))
	}
	return errs
}

// TotalUnits returns the sum of units granted by all entries.
func (l *AllocationList) TotalUnits() int64 {
	var n int64
	for _, e := range l.Entries {
		n += e.Units
	}
	return n
}

type allocationListCodec AllocationList

func (m *allocationListCodec) Reset()         { *m = allocationListCodec{} }
func (m *allocationListCodec) String() string { return proto.CompactTextString(m) }
func (*allocationListCodec) ProtoMessage()    {}

func (l *AllocationList) Marshal() ([]byte, error) {
	return proto.Marshal((*allocationListCodec)(l))
}

func (l *AllocationList) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*allocationListCodec)(l))
}

// PendingEntry is a single child waiting for a rate push.
type PendingEntry struct {
	RecipientID []byte `protobuf:"bytes,1,opt,name=recipient_id,json=recipientId,proto3" json:"recipient_id,omitempty"`
}

func (p *PendingEntry) Validate() error {
	if len(p.RecipientID) != idLength {
		return errors.Field("RecipientID", errors.ErrInput, "invalid length")
	}
	return nil
}

type pendingEntryCodec PendingEntry

func (m *pendingEntryCodec) Reset()         { *m = pendingEntryCodec{} }
func (m *pendingEntryCodec) String() string { return proto.CompactTextString(m) }
func (*pendingEntryCodec) ProtoMessage()    {}

func (p *PendingEntry) Marshal() ([]byte, error) { return proto.Marshal((*pendingEntryCodec)(p)) }
func (p *PendingEntry) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*pendingEntryCodec)(p))
}

// PendingIndex points from a child to its position in the pending queue.
type PendingIndex struct {
	Seq []byte `protobuf:"bytes,1,opt,name=seq,proto3" json:"seq,omitempty"`
}

func (p *PendingIndex) Validate() error {
	if len(p.Seq) != 8 {
		return errors.Field("Seq", errors.ErrInput, "invalid length")
	}
	return nil
}

type pendingIndexCodec PendingIndex

func (m *pendingIndexCodec) Reset()         { *m = pendingIndexCodec{} }
func (m *pendingIndexCodec) String() string { return proto.CompactTextString(m) }
func (*pendingIndexCodec) ProtoMessage()    {}

func (p *PendingIndex) Marshal() ([]byte, error) { return proto.Marshal((*pendingIndexCodec)(p)) }
func (p *PendingIndex) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*pendingIndexCodec)(p))
}
