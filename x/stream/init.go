package stream

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/gconf"
)

// GenesisAccount is an account funded at genesis.
type GenesisAccount struct {
	Address flowtree.Address `json:"address"`
	Amount  int64            `json:"amount"`
}

// Initializer fulfils the Initializer interface to load data from the
// genesis file. It requires the configuration and issues the declared
// accounts.
type Initializer struct {
	Ctrl *Controller
}

var _ flowtree.Initializer = (*Initializer)(nil)

// FromGenesis will parse initial account info from genesis and save it in
// the database.
func (i *Initializer) FromGenesis(opts flowtree.Options, db flowtree.KVStore) error {
	conf := gconf.Initializer{
		Pkg: confPkg,
		New: func() gconf.Configuration { return &Configuration{} },
	}
	if err := conf.FromGenesis(opts, db); err != nil {
		return errors.Wrap(err, "stream configuration")
	}

	var genesis struct {
		Accounts []GenesisAccount `json:"accounts"`
	}
	if err := opts.ReadOptions("stream", &genesis); err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	ctrl := i.Ctrl
	if ctrl == nil {
		ctrl = NewController()
	}
	for n, a := range genesis.Accounts {
		if err := ctrl.Issue(db, a.Address, a.Amount); err != nil {
			return errors.Wrapf(err, "account #%d", n)
		}
	}
	return nil
}
