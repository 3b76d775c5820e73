package flow

import (
	"github.com/gogo/protobuf/proto"
)

// Message codecs. Every message is encoded with the protobuf wire format
// described in codec.proto.

type createNodeMsgCodec CreateNodeMsg

func (m *createNodeMsgCodec) Reset()         { *m = createNodeMsgCodec{} }
func (m *createNodeMsgCodec) String() string { return proto.CompactTextString(m) }
func (*createNodeMsgCodec) ProtoMessage()    {}

func (m *CreateNodeMsg) Marshal() ([]byte, error) { return proto.Marshal((*createNodeMsgCodec)(m)) }
func (m *CreateNodeMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*createNodeMsgCodec)(m))
}

type updateNodeConfigMsgCodec UpdateNodeConfigMsg

func (m *updateNodeConfigMsgCodec) Reset()         { *m = updateNodeConfigMsgCodec{} }
func (m *updateNodeConfigMsgCodec) String() string { return proto.CompactTextString(m) }
func (*updateNodeConfigMsgCodec) ProtoMessage()    {}

func (m *UpdateNodeConfigMsg) Marshal() ([]byte, error) {
	return proto.Marshal((*updateNodeConfigMsgCodec)(m))
}
func (m *UpdateNodeConfigMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*updateNodeConfigMsgCodec)(m))
}

type setFlowRateMsgCodec SetFlowRateMsg

func (m *setFlowRateMsgCodec) Reset()         { *m = setFlowRateMsgCodec{} }
func (m *setFlowRateMsgCodec) String() string { return proto.CompactTextString(m) }
func (*setFlowRateMsgCodec) ProtoMessage()    {}

func (m *SetFlowRateMsg) Marshal() ([]byte, error) { return proto.Marshal((*setFlowRateMsgCodec)(m)) }
func (m *SetFlowRateMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*setFlowRateMsgCodec)(m))
}

type addRecipientMsgCodec AddRecipientMsg

func (m *addRecipientMsgCodec) Reset()         { *m = addRecipientMsgCodec{} }
func (m *addRecipientMsgCodec) String() string { return proto.CompactTextString(m) }
func (*addRecipientMsgCodec) ProtoMessage()    {}

func (m *AddRecipientMsg) Marshal() ([]byte, error) { return proto.Marshal((*addRecipientMsgCodec)(m)) }
func (m *AddRecipientMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*addRecipientMsgCodec)(m))
}

type addChildRecipientMsgCodec AddChildRecipientMsg

func (m *addChildRecipientMsgCodec) Reset()         { *m = addChildRecipientMsgCodec{} }
func (m *addChildRecipientMsgCodec) String() string { return proto.CompactTextString(m) }
func (*addChildRecipientMsgCodec) ProtoMessage()    {}

func (m *AddChildRecipientMsg) Marshal() ([]byte, error) {
	return proto.Marshal((*addChildRecipientMsgCodec)(m))
}
func (m *AddChildRecipientMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*addChildRecipientMsgCodec)(m))
}

type removeRecipientMsgCodec RemoveRecipientMsg

func (m *removeRecipientMsgCodec) Reset()         { *m = removeRecipientMsgCodec{} }
func (m *removeRecipientMsgCodec) String() string { return proto.CompactTextString(m) }
func (*removeRecipientMsgCodec) ProtoMessage()    {}

func (m *RemoveRecipientMsg) Marshal() ([]byte, error) {
	return proto.Marshal((*removeRecipientMsgCodec)(m))
}
func (m *RemoveRecipientMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*removeRecipientMsgCodec)(m))
}

type allocateMsgCodec AllocateMsg

func (m *allocateMsgCodec) Reset()         { *m = allocateMsgCodec{} }
func (m *allocateMsgCodec) String() string { return proto.CompactTextString(m) }
func (*allocateMsgCodec) ProtoMessage()    {}

func (m *AllocateMsg) Marshal() ([]byte, error) { return proto.Marshal((*allocateMsgCodec)(m)) }
func (m *AllocateMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*allocateMsgCodec)(m))
}

type allocateWithWitnessMsgCodec AllocateWithWitnessMsg

func (m *allocateWithWitnessMsgCodec) Reset()         { *m = allocateWithWitnessMsgCodec{} }
func (m *allocateWithWitnessMsgCodec) String() string { return proto.CompactTextString(m) }
func (*allocateWithWitnessMsgCodec) ProtoMessage()    {}

func (m *AllocateWithWitnessMsg) Marshal() ([]byte, error) {
	return proto.Marshal((*allocateWithWitnessMsgCodec)(m))
}
func (m *AllocateWithWitnessMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*allocateWithWitnessMsgCodec)(m))
}

type drainChildUpdatesMsgCodec DrainChildUpdatesMsg

func (m *drainChildUpdatesMsgCodec) Reset()         { *m = drainChildUpdatesMsgCodec{} }
func (m *drainChildUpdatesMsgCodec) String() string { return proto.CompactTextString(m) }
func (*drainChildUpdatesMsgCodec) ProtoMessage()    {}

func (m *DrainChildUpdatesMsg) Marshal() ([]byte, error) {
	return proto.Marshal((*drainChildUpdatesMsgCodec)(m))
}
func (m *DrainChildUpdatesMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*drainChildUpdatesMsgCodec)(m))
}

type updateConfigurationMsgCodec UpdateConfigurationMsg

func (m *updateConfigurationMsgCodec) Reset()         { *m = updateConfigurationMsgCodec{} }
func (m *updateConfigurationMsgCodec) String() string { return proto.CompactTextString(m) }
func (*updateConfigurationMsgCodec) ProtoMessage()    {}

func (m *UpdateConfigurationMsg) Marshal() ([]byte, error) {
	return proto.Marshal((*updateConfigurationMsgCodec)(m))
}
func (m *UpdateConfigurationMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*updateConfigurationMsgCodec)(m))
}
