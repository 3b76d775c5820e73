package flow

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/gconf"
)

// Initializer loads the optional flow configuration from the genesis. The
// default configuration is stored when none is declared.
type Initializer struct{}

var _ flowtree.Initializer = (*Initializer)(nil)

func (*Initializer) FromGenesis(opts flowtree.Options, db flowtree.KVStore) error {
	conf := gconf.Initializer{
		Pkg:     confPkg,
		New:     func() gconf.Configuration { return &Configuration{} },
		Default: func() gconf.Configuration { return DefaultConfiguration() },
	}
	return conf.FromGenesis(opts, db)
}
