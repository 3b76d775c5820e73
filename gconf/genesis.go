package gconf

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// Initializer loads configuration of a single package from the genesis
// file. When the genesis does not declare it, the configuration returned by
// Default is saved instead. A nil Default makes the configuration mandatory.
type Initializer struct {
	Pkg     string
	New     func() Configuration
	Default func() Configuration
}

var _ flowtree.Initializer = Initializer{}

// FromGenesis implements flowtree.Initializer interface.
func (i Initializer) FromGenesis(opts flowtree.Options, db flowtree.KVStore) error {
	err := InitConfig(db, opts, i.Pkg, i.New())
	switch {
	case err == nil:
		return nil
	case errors.ErrNotFound.Is(err) && i.Default != nil:
		return Save(db, i.Pkg, i.Default())
	default:
		return err
	}
}
