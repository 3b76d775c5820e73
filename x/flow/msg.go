package flow

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

const (
	pathCreateNodeMsg          = "flow/create_node"
	pathUpdateNodeConfigMsg    = "flow/update_node_config"
	pathSetFlowRateMsg         = "flow/set_flow_rate"
	pathAddRecipientMsg        = "flow/add_recipient"
	pathAddChildRecipientMsg   = "flow/add_child_recipient"
	pathRemoveRecipientMsg     = "flow/remove_recipient"
	pathAllocateMsg            = "flow/allocate"
	pathAllocateWithWitnessMsg = "flow/allocate_with_witness"
	pathDrainChildUpdatesMsg   = "flow/drain_child_updates"
	pathUpdateConfigurationMsg = "flow/update_configuration"
)

var (
	_ flowtree.Msg = (*CreateNodeMsg)(nil)
	_ flowtree.Msg = (*UpdateNodeConfigMsg)(nil)
	_ flowtree.Msg = (*SetFlowRateMsg)(nil)
	_ flowtree.Msg = (*AddRecipientMsg)(nil)
	_ flowtree.Msg = (*AddChildRecipientMsg)(nil)
	_ flowtree.Msg = (*RemoveRecipientMsg)(nil)
	_ flowtree.Msg = (*AllocateMsg)(nil)
	_ flowtree.Msg = (*AllocateWithWitnessMsg)(nil)
	_ flowtree.Msg = (*DrainChildUpdatesMsg)(nil)
	_ flowtree.Msg = (*UpdateConfigurationMsg)(nil)
)

// CreateNodeMsg creates a new distribution node. It must be signed by the
// manager.
type CreateNodeMsg struct {
	Manager      flowtree.Address `protobuf:"bytes,1,opt,name=manager,proto3" json:"manager,omitempty"`
	Config       *NodeConfig      `protobuf:"bytes,2,opt,name=config,proto3" json:"config,omitempty"`
	Strategies   []*StrategyRef   `protobuf:"bytes,3,rep,name=strategies,proto3" json:"strategies,omitempty"`
	RewardTarget flowtree.Address `protobuf:"bytes,4,opt,name=reward_target,json=rewardTarget,proto3" json:"reward_target,omitempty"`
}

func (CreateNodeMsg) Path() string { return pathCreateNodeMsg }

func (m *CreateNodeMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Manager", m.Manager.Validate())
	errs = errors.AppendField(errs, "Config", m.Config.Validate())
	for i, s := range m.Strategies {
		if s == nil || s.Name == "" {
			errs = errors.Append(errs, errors.Field("Strategies", errors.ErrEmpty, "strategy #%d", i))
		}
	}
	if len(m.RewardTarget) != 0 {
		errs = errors.AppendField(errs, "RewardTarget", m.RewardTarget.Validate())
	}
	return errs
}

// UpdateNodeConfigMsg changes the split configuration and the reward target
// of a node. It must be signed by the node manager.
type UpdateNodeConfigMsg struct {
	NodeID       []byte           `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	Config       *NodeConfig      `protobuf:"bytes,2,opt,name=config,proto3" json:"config,omitempty"`
	RewardTarget flowtree.Address `protobuf:"bytes,3,opt,name=reward_target,json=rewardTarget,proto3" json:"reward_target,omitempty"`
}

func (UpdateNodeConfigMsg) Path() string { return pathUpdateNodeConfigMsg }

func (m *UpdateNodeConfigMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "NodeID", validID(m.NodeID))
	errs = errors.AppendField(errs, "Config", m.Config.Validate())
	if len(m.RewardTarget) != 0 {
		errs = errors.AppendField(errs, "RewardTarget", m.RewardTarget.Validate())
	}
	return errs
}

// SetFlowRateMsg sets the incoming rate of a node. It must be signed by the
// node manager.
type SetFlowRateMsg struct {
	NodeID []byte `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	Rate   int64  `protobuf:"varint,2,opt,name=rate,proto3" json:"rate,omitempty"`
}

func (SetFlowRateMsg) Path() string { return pathSetFlowRateMsg }

func (m *SetFlowRateMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "NodeID", validID(m.NodeID))
	if m.Rate < 0 {
		errs = errors.AppendField(errs, "Rate", errors.ErrAmount)
	}
	return errs
}

// AddRecipientMsg adds an external recipient to a node. It must be signed
// by the node manager.
type AddRecipientMsg struct {
	NodeID   []byte           `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	Address  flowtree.Address `protobuf:"bytes,2,opt,name=address,proto3" json:"address,omitempty"`
	Metadata string           `protobuf:"bytes,3,opt,name=metadata,proto3" json:"metadata,omitempty"`
}

func (AddRecipientMsg) Path() string { return pathAddRecipientMsg }

func (m *AddRecipientMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "NodeID", validID(m.NodeID))
	errs = errors.AppendField(errs, "Address", m.Address.Validate())
	if len(m.Metadata) > maxMetadataLength {
		errs = errors.AppendField(errs, "Metadata", errors.ErrInput)
	}
	return errs
}

// AddChildRecipientMsg adds a node as a recipient of another node. It must
// be signed by the managers of both nodes.
type AddChildRecipientMsg struct {
	NodeID      []byte `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	ChildNodeID []byte `protobuf:"bytes,2,opt,name=child_node_id,json=childNodeId,proto3" json:"child_node_id,omitempty"`
	Metadata    string `protobuf:"bytes,3,opt,name=metadata,proto3" json:"metadata,omitempty"`
}

func (AddChildRecipientMsg) Path() string { return pathAddChildRecipientMsg }

func (m *AddChildRecipientMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "NodeID", validID(m.NodeID))
	errs = errors.AppendField(errs, "ChildNodeID", validID(m.ChildNodeID))
	if len(m.Metadata) > maxMetadataLength {
		errs = errors.AppendField(errs, "Metadata", errors.ErrInput)
	}
	return errs
}

// RemoveRecipientMsg removes a recipient from a node. It must be signed by
// the node manager.
type RemoveRecipientMsg struct {
	NodeID      []byte `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	RecipientID []byte `protobuf:"bytes,2,opt,name=recipient_id,json=recipientId,proto3" json:"recipient_id,omitempty"`
}

func (RemoveRecipientMsg) Path() string { return pathRemoveRecipientMsg }

func (m *RemoveRecipientMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "NodeID", validID(m.NodeID))
	errs = errors.AppendField(errs, "RecipientID", validID(m.RecipientID))
	return errs
}

// AllocateMsg allocates the weight of the signer between recipients of a
// node.
type AllocateMsg struct {
	NodeID        []byte                 `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	StrategyIndex uint32                 `protobuf:"varint,2,opt,name=strategy_index,json=strategyIndex,proto3" json:"strategy_index,omitempty"`
	AuxData       []byte                 `protobuf:"bytes,3,opt,name=aux_data,json=auxData,proto3" json:"aux_data,omitempty"`
	RecipientIDs  [][]byte               `protobuf:"bytes,4,rep,name=recipient_ids,json=recipientIds,proto3" json:"recipient_ids,omitempty"`
	BasisPoints   []flowtree.BasisPoints `protobuf:"varint,5,rep,packed,name=basis_points,json=basisPoints,proto3" json:"basis_points,omitempty"`
}

func (AllocateMsg) Path() string { return pathAllocateMsg }

func (m *AllocateMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "NodeID", validID(m.NodeID))
	errs = errors.AppendField(errs, "BasisPoints", ValidateAllocation(m.RecipientIDs, m.BasisPoints))
	return errs
}

// Allocation returns the allocation requested by the message.
func (m *AllocateMsg) Allocation() *Allocation {
	return &Allocation{
		NodeID:        m.NodeID,
		StrategyIndex: m.StrategyIndex,
		AuxData:       m.AuxData,
		RecipientIDs:  m.RecipientIDs,
		BasisPoints:   m.BasisPoints,
	}
}

// AllocateWithWitnessMsg is AllocateMsg that carries the previous
// allocation of the signer.
type AllocateWithWitnessMsg struct {
	NodeID           []byte                 `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	StrategyIndex    uint32                 `protobuf:"varint,2,opt,name=strategy_index,json=strategyIndex,proto3" json:"strategy_index,omitempty"`
	AuxData          []byte                 `protobuf:"bytes,3,opt,name=aux_data,json=auxData,proto3" json:"aux_data,omitempty"`
	RecipientIDs     [][]byte               `protobuf:"bytes,4,rep,name=recipient_ids,json=recipientIds,proto3" json:"recipient_ids,omitempty"`
	BasisPoints      []flowtree.BasisPoints `protobuf:"varint,5,rep,packed,name=basis_points,json=basisPoints,proto3" json:"basis_points,omitempty"`
	PrevWeight       int64                  `protobuf:"varint,6,opt,name=prev_weight,json=prevWeight,proto3" json:"prev_weight,omitempty"`
	PrevRecipientIDs [][]byte               `protobuf:"bytes,7,rep,name=prev_recipient_ids,json=prevRecipientIds,proto3" json:"prev_recipient_ids,omitempty"`
	PrevBasisPoints  []flowtree.BasisPoints `protobuf:"varint,8,rep,packed,name=prev_basis_points,json=prevBasisPoints,proto3" json:"prev_basis_points,omitempty"`
}

func (AllocateWithWitnessMsg) Path() string { return pathAllocateWithWitnessMsg }

func (m *AllocateWithWitnessMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "NodeID", validID(m.NodeID))
	errs = errors.AppendField(errs, "BasisPoints", ValidateAllocation(m.RecipientIDs, m.BasisPoints))
	if m.PrevWeight < 0 {
		errs = errors.AppendField(errs, "PrevWeight", errors.ErrAmount)
	}
	if len(m.PrevRecipientIDs) != len(m.PrevBasisPoints) {
		errs = errors.AppendField(errs, "PrevBasisPoints", ErrAllocationWeightsInvalid)
	}
	return errs
}

// Allocation returns the allocation requested by the message.
func (m *AllocateWithWitnessMsg) Allocation() *Allocation {
	return &Allocation{
		NodeID:        m.NodeID,
		StrategyIndex: m.StrategyIndex,
		AuxData:       m.AuxData,
		RecipientIDs:  m.RecipientIDs,
		BasisPoints:   m.BasisPoints,
	}
}

// Witness returns the previous allocation attested by the message.
func (m *AllocateWithWitnessMsg) Witness() *Witness {
	return &Witness{
		Weight:       m.PrevWeight,
		RecipientIDs: m.PrevRecipientIDs,
		BasisPoints:  m.PrevBasisPoints,
	}
}

// DrainChildUpdatesMsg pushes rates to pending children of a node and
// retries a pending reward stream. Anyone can send it.
type DrainChildUpdatesMsg struct {
	NodeID []byte `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	// Cap limits the number of children processed. It cannot exceed the
	// configured DrainCap. Zero means DrainCap.
	Cap int64 `protobuf:"varint,2,opt,name=cap,proto3" json:"cap,omitempty"`
}

func (DrainChildUpdatesMsg) Path() string { return pathDrainChildUpdatesMsg }

func (m *DrainChildUpdatesMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "NodeID", validID(m.NodeID))
	if m.Cap < 0 {
		errs = errors.AppendField(errs, "Cap", errors.ErrInput)
	}
	return errs
}

// UpdateConfigurationMsg patches the flow configuration.
type UpdateConfigurationMsg struct {
	Patch *Configuration `protobuf:"bytes,1,opt,name=patch,proto3" json:"patch,omitempty"`
}

func (UpdateConfigurationMsg) Path() string { return pathUpdateConfigurationMsg }

func (m *UpdateConfigurationMsg) Validate() error {
	if m.Patch == nil {
		return errors.Field("Patch", errors.ErrEmpty, "required")
	}
	var errs error
	if m.Patch.DrainCap < 0 {
		errs = errors.AppendField(errs, "Patch.DrainCap", errors.ErrInput)
	}
	if m.Patch.MaxRecipients < 0 {
		errs = errors.AppendField(errs, "Patch.MaxRecipients", errors.ErrInput)
	}
	return errs
}
