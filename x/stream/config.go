package stream

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/gconf"
)

const confPkg = "stream"

// Configuration of the stream extension. Owner can issue new value and
// update this configuration.
type Configuration struct {
	Owner flowtree.Address `protobuf:"bytes,1,opt,name=owner,proto3" json:"owner,omitempty"`
	// BufferPeriod is the number of seconds of streaming that must be
	// locked as a deposit when a stream is started.
	BufferPeriod int64 `protobuf:"varint,2,opt,name=buffer_period,json=bufferPeriod,proto3" json:"buffer_period,omitempty"`
}

var _ gconf.OwnedConfig = (*Configuration)(nil)

func (c *Configuration) GetOwner() flowtree.Address {
	return c.Owner
}

func (c *Configuration) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Owner", c.Owner.Validate())
	if c.BufferPeriod < 0 {
		errs = errors.AppendField(errs, "BufferPeriod", errors.ErrInput)
	}
	return errs
}

type configurationCodec Configuration

func (m *configurationCodec) Reset()         { *m = configurationCodec{} }
func (m *configurationCodec) String() string { return proto.CompactTextString(m) }
func (*configurationCodec) ProtoMessage()    {}

func (c *Configuration) Marshal() ([]byte, error) {
	return proto.Marshal((*configurationCodec)(c))
}

func (c *Configuration) Unmarshal(raw []byte) error {
	return proto.Unmarshal(raw, (*configurationCodec)(c))
}

func loadConf(db gconf.ReadStore) (*Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, confPkg, &conf); err != nil {
		return nil, errors.Wrap(err, "load stream configuration")
	}
	return &conf, nil
}
