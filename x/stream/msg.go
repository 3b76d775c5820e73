package stream

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

const (
	pathIssueMsg               = "stream/issue"
	pathTransferMsg            = "stream/transfer"
	pathUpdateConfigurationMsg = "stream/update_configuration"
)

// IssueMsg mints new value. It must be signed by the configuration owner.
type IssueMsg struct {
	Destination flowtree.Address `protobuf:"bytes,1,opt,name=destination,proto3" json:"destination,omitempty"`
	Amount      int64            `protobuf:"varint,2,opt,name=amount,proto3" json:"amount,omitempty"`
}

var _ flowtree.Msg = (*IssueMsg)(nil)

func (IssueMsg) Path() string { return pathIssueMsg }

func (m *IssueMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Destination", m.Destination.Validate())
	if m.Amount <= 0 {
		errs = errors.AppendField(errs, "Amount", errors.ErrAmount)
	}
	return errs
}

type issueMsgCodec IssueMsg

func (m *issueMsgCodec) Reset()         { *m = issueMsgCodec{} }
func (m *issueMsgCodec) String() string { return proto.CompactTextString(m) }
func (*issueMsgCodec) ProtoMessage()    {}

func (m *IssueMsg) Marshal() ([]byte, error)   { return proto.Marshal((*issueMsgCodec)(m)) }
func (m *IssueMsg) Unmarshal(raw []byte) error { return proto.Unmarshal(raw, (*issueMsgCodec)(m)) }

// TransferMsg moves available value between two accounts. It must be signed
// by the source.
type TransferMsg struct {
	Source      flowtree.Address `protobuf:"bytes,1,opt,name=source,proto3" json:"source,omitempty"`
	Destination flowtree.Address `protobuf:"bytes,2,opt,name=destination,proto3" json:"destination,omitempty"`
	Amount      int64            `protobuf:"varint,3,opt,name=amount,proto3" json:"amount,omitempty"`
}

var _ flowtree.Msg = (*TransferMsg)(nil)

func (TransferMsg) Path() string { return pathTransferMsg }

func (m *TransferMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Source", m.Source.Validate())
	errs = errors.AppendField(errs, "Destination", m.Destination.Validate())
	if m.Source.Equals(m.Destination) {
		errs = errors.AppendField(errs, "Destination", errors.Wrap(errors.ErrInput, "same as source"))
	}
	if m.Amount <= 0 {
		errs = errors.AppendField(errs, "Amount", errors.ErrAmount)
	}
	return errs
}

type transferMsgCodec TransferMsg

func (m *transferMsgCodec) Reset()         { *m = transferMsgCodec{} }
func (m *transferMsgCodec) String() string { return proto.CompactTextString(m) }
func (*transferMsgCodec) ProtoMessage()    {}

func (m *TransferMsg) Marshal() ([]byte, error) { return proto.Marshal((*transferMsgCodec)(m)) }
func (m *TransferMsg) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*transferMsgCodec)(m))
}

// UpdateConfigurationMsg patches the stream configuration.
type UpdateConfigurationMsg struct {
	Patch *Configuration `protobuf:"bytes,1,opt,name=patch,proto3" json:"patch,omitempty"`
}

var _ flowtree.Msg = (*UpdateConfigurationMsg)(nil)

func (UpdateConfigurationMsg) Path() string { return pathUpdateConfigurationMsg }

func (m *UpdateConfigurationMsg) Validate() error {
	if m.Patch == nil {
		return errors.Field("Patch", errors.ErrEmpty, "required")
	}
	if m.Patch.BufferPeriod < 0 {
		return errors.Field("Patch.BufferPeriod", errors.ErrInput, "must not be negative")
	}
	return nil
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
