package stream

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// Account holds the balance of a single address. Deposit is the part of
// the balance locked as the solvency buffer of streams started by this
// account.
type Account struct {
	Balance int64 `protobuf:"varint,1,opt,name=balance,proto3" json:"balance,omitempty"`
	Deposit int64 `protobuf:"varint,2,opt,name=deposit,proto3" json:"deposit,omitempty"`
}

// Available returns the part of the balance that is not locked. It is
// negative for a distributor that must be liquidated.
func (a *Account) Available() int64 {
	return a.Balance - a.Deposit
}

func (a *Account) Validate() error {
	var errs error
	if a.Balance < 0 {
		errs = errors.AppendField(errs, "Balance", errors.ErrAmount)
	}
	if a.Deposit < 0 {
		errs = errors.AppendField(errs, "Deposit", errors.ErrAmount)
	}
	return errs
}

type accountCodec Account

func (m *accountCodec) Reset()         { *m = accountCodec{} }
func (m *accountCodec) String() string { return proto.CompactTextString(m) }
func (*accountCodec) ProtoMessage()    {}

func (a *Account) Marshal() ([]byte, error)   { return proto.Marshal((*accountCodec)(a)) }
func (a *Account) Unmarshal(raw []byte) error { return proto.Unmarshal(raw, (*accountCodec)(a)) }

// Pool distributes Rate per second among its members.
type Pool struct {
	Distributor flowtree.Address  `protobuf:"bytes,1,opt,name=distributor,proto3" json:"distributor,omitempty"`
	Rate        int64             `protobuf:"varint,2,opt,name=rate,proto3" json:"rate,omitempty"`
	TotalUnits  int64             `protobuf:"varint,3,opt,name=total_units,json=totalUnits,proto3" json:"total_units,omitempty"`
	Deposit     int64             `protobuf:"varint,4,opt,name=deposit,proto3" json:"deposit,omitempty"`
	UpdatedAt   flowtree.UnixTime `protobuf:"varint,5,opt,name=updated_at,json=updatedAt,proto3" json:"updated_at,omitempty"`
}

func (p *Pool) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Distributor", p.Distributor.Validate())
	if p.Rate < 0 {
		errs = errors.AppendField(errs, "Rate", errors.ErrAmount)
	}
	if p.TotalUnits < 0 {
		errs = errors.AppendField(errs, "TotalUnits", errors.ErrAmount)
	}
	if p.Deposit < 0 {
		errs = errors.AppendField(errs, "Deposit", errors.ErrAmount)
	}
	errs = errors.AppendField(errs, "UpdatedAt", p.UpdatedAt.Validate())
	return errs
}

type poolCodec Pool

func (m *poolCodec) Reset()         { *m = poolCodec{} }
func (m *poolCodec) String() string { return proto.CompactTextString(m) }
func (*poolCodec) ProtoMessage()    {}

func (p *Pool) Marshal() ([]byte, error)   { return proto.Marshal((*poolCodec)(p)) }
func (p *Pool) Unmarshal(raw []byte) error { return proto.Unmarshal(raw, (*poolCodec)(p)) }

// Member is the share of a single address in a pool.
type Member struct {
	Units int64 `protobuf:"varint,1,opt,name=units,proto3" json:"units,omitempty"`
}

func (m *Member) Validate() error {
	if m.Units <= 0 {
		return errors.Field("Units", errors.ErrAmount, "must be positive")
	}
	return nil
}

type memberCodec Member

func (m *memberCodec) Reset()         { *m = memberCodec{} }
func (m *memberCodec) String() string { return proto.CompactTextString(m) }
func (*memberCodec) ProtoMessage()    {}

func (m *Member) Marshal() ([]byte, error)   { return proto.Marshal((*memberCodec)(m)) }
func (m *Member) Unmarshal(raw []byte) error { return proto.Unmarshal(raw, (*memberCodec)(m)) }

// Flow is a direct stream between two addresses.
type Flow struct {
	Rate      int64             `protobuf:"varint,1,opt,name=rate,proto3" json:"rate,omitempty"`
	Deposit   int64             `protobuf:"varint,2,opt,name=deposit,proto3" json:"deposit,omitempty"`
	UpdatedAt flowtree.UnixTime `protobuf:"varint,3,opt,name=updated_at,json=updatedAt,proto3" json:"updated_at,omitempty"`
}

func (f *Flow) Validate() error {
	var errs error
	if f.Rate <= 0 {
		errs = errors.AppendField(errs, "Rate", errors.ErrAmount)
	}
	if f.Deposit < 0 {
		errs = errors.AppendField(errs, "Deposit", errors.ErrAmount)
	}
	errs = errors.AppendField(errs, "UpdatedAt", f.UpdatedAt.Validate())
	return errs
}

type flowCodec Flow

func (m *flowCodec) Reset()         { *m = flowCodec{} }
func (m *flowCodec) String() string { return proto.CompactTextString(m) }
func (*flowCodec) ProtoMessage()    {}

func (f *Flow) Marshal() ([]byte, error)   { return proto.Marshal((*flowCodec)(f)) }
func (f *Flow) Unmarshal(raw []byte) error { return proto.Unmarshal(raw, (*flowCodec)(f)) }

// Supply is the total amount ever issued.
type Supply struct {
	Total int64 `protobuf:"varint,1,opt,name=total,proto3" json:"total,omitempty"`
}

func (s *Supply) Validate() error {
	if s.Total < 0 {
		return errors.Field("Total", errors.ErrAmount, "must not be negative")
	}
	return nil
}

type supplyCodec Supply

func (m *supplyCodec) Reset()         { *m = supplyCodec{} }
func (m *supplyCodec) String() string { return proto.CompactTextString(m) }
func (*supplyCodec) ProtoMessage()    {}

func (s *Supply) Marshal() ([]byte, error)   { return proto.Marshal((*supplyCodec)(s)) }
func (s *Supply) Unmarshal(raw []byte) error { return proto.Unmarshal(raw, (*supplyCodec)(s)) }
