package flow

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/gconf"
)

const (
	confPkg = "flow"

	// DefaultDrainCap is the number of children a single call pushes
	// rates to when not configured otherwise.
	DefaultDrainCap = 10
)

// Configuration of the flow extension.
type Configuration struct {
	// Owner can update the configuration. No one can when empty.
	Owner flowtree.Address `protobuf:"bytes,1,opt,name=owner,proto3" json:"owner,omitempty"`
	// DrainCap is the maximum number of child rate pushes per call.
	DrainCap int64 `protobuf:"varint,2,opt,name=drain_cap,json=drainCap,proto3" json:"drain_cap,omitempty"`
	// MaxRecipients limits the number of active recipients of a node.
	// Zero means no limit.
	MaxRecipients int64 `protobuf:"varint,3,opt,name=max_recipients,json=maxRecipients,proto3" json:"max_recipients,omitempty"`
}

var _ gconf.OwnedConfig = (*Configuration)(nil)

// DefaultConfiguration is used when no configuration was declared.
func DefaultConfiguration() *Configuration {
	return &Configuration{DrainCap: DefaultDrainCap}
}

func (c *Configuration) GetOwner() flowtree.Address {
	return c.Owner
}

func (c *Configuration) Validate() error {
	var errs error
	if len(c.Owner) != 0 {
		errs = errors.AppendField(errs, "Owner", c.Owner.Validate())
	}
	if c.DrainCap <= 0 {
		errs = errors.AppendField(errs, "DrainCap", errors.Wrap(errors.ErrInput, "must be positive"))
	}
	if c.MaxRecipients < 0 {
		errs = errors.AppendField(errs, "MaxRecipients", errors.Wrap(errors.ErrInput, "must not be negative"))
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
	switch err := gconf.Load(db, confPkg, &conf); {
	case err == nil:
		return &conf, nil
	case errors.ErrNotFound.Is(err):
		return DefaultConfiguration(), nil
	default:
		return nil, errors.Wrap(err, "load flow configuration")
	}
}
