package gconf

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// ReadStore is the read half of a KVStore.
type ReadStore interface {
	Get([]byte) ([]byte, error)
}

// Store is the part of a KVStore configuration writes need.
type Store interface {
	ReadStore
	Set([]byte, []byte) error
}

// ValidMarshaler is a configuration that can check and serialize itself.
type ValidMarshaler interface {
	Marshal() ([]byte, error)
	Validate() error
}

type Unmarshaler interface {
	Unmarshal([]byte) error
}

// Configuration is the settings object of one extension, for example the
// flow package drain cap.
type Configuration interface {
	ValidMarshaler
	Unmarshaler
}

// Key is where the configuration of pkg is stored.
func Key(pkg string) []byte {
	return append([]byte("_c:"), pkg...)
}

// Save validates src and stores it as the configuration of pkg, replacing
// any previous one.
func Save(db Store, pkg string, src ValidMarshaler) error {
	if err := src.Validate(); err != nil {
		return errors.Wrapf(err, "invalid %s configuration", pkg)
	}
	raw, err := src.Marshal()
	if err != nil {
		return errors.Wrapf(err, "marshal %s configuration", pkg)
	}
	return db.Set(Key(pkg), raw)
}

// Load reads the configuration of pkg into dst. It fails with ErrNotFound
// if pkg was never configured.
func Load(db ReadStore, pkg string, dst Unmarshaler) error {
	raw, err := db.Get(Key(pkg))
	switch {
	case err != nil:
		return err
	case raw == nil:
		return errors.Wrapf(errors.ErrNotFound, "no %s configuration", pkg)
	}
	if err := dst.Unmarshal(raw); err != nil {
		return errors.Wrapf(err, "unmarshal %s configuration", pkg)
	}
	return nil
}

// InitConfig reads opts["conf"][pkg] into conf and saves it. ErrNotFound
// means the genesis does not configure pkg, callers may fall back to a
// default.
func InitConfig(db Store, opts flowtree.Options, pkg string, conf Configuration) error {
	var all flowtree.Options
	if err := opts.ReadOptions("conf", &all); err != nil {
		return errors.Wrapf(errors.ErrInput, "genesis conf: %s", err)
	}
	if len(all[pkg]) == 0 {
		return errors.Wrapf(errors.ErrNotFound, "genesis has no %s configuration", pkg)
	}
	if err := all.ReadOptions(pkg, conf); err != nil {
		return errors.Wrapf(errors.ErrInput, "genesis %s configuration: %s", pkg, err)
	}
	return Save(db, pkg, conf)
}
