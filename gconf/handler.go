package gconf

import (
	"reflect"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x"
)

// OwnedConfig is a configuration that names who may change it.
type OwnedConfig interface {
	Configuration
	GetOwner() flowtree.Address
}

// UpdateConfigurationHandler applies a configuration patch. The message
// must hold a Patch field of the configuration type, and must be signed by
// the current owner. Zero fields of the patch keep the stored value.
type UpdateConfigurationHandler struct {
	pkg    string
	config OwnedConfig
	auth   x.Authenticator
}

var _ flowtree.Handler = (*UpdateConfigurationHandler)(nil)

// NewUpdateConfigurationHandler handles patches of the pkg configuration.
// config is the instance loaded and patched on every call. The
// configuration must already exist, genesis creates it.
func NewUpdateConfigurationHandler(pkg string, config OwnedConfig, auth x.Authenticator) UpdateConfigurationHandler {
	return UpdateConfigurationHandler{pkg: pkg, config: config, auth: auth}
}

func (h UpdateConfigurationHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if err := h.update(ctx, db, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h UpdateConfigurationHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	if err := h.update(ctx, db, tx); err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{}, nil
}

func (h UpdateConfigurationHandler) update(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) error {
	if err := Load(db, h.pkg, h.config); err != nil {
		return err
	}
	if err := x.RequireSigner(ctx, h.auth, h.pkg+" configuration owner", h.config.GetOwner()); err != nil {
		return err
	}
	p, err := patchOf(tx)
	if err != nil {
		return err
	}
	if err := apply(h.config, p); err != nil {
		return err
	}
	return Save(db, h.pkg, h.config)
}

// apply copies every non zero field of p into config. Both must be
// pointers to the same struct type.
func apply(config, p OwnedConfig) error {
	if reflect.TypeOf(config) != reflect.TypeOf(p) {
		return errors.Wrapf(errors.ErrMsg, "cannot patch %T with %T", config, p)
	}
	dst := reflect.ValueOf(config).Elem()
	src := reflect.ValueOf(p).Elem()
	for i := 0; i < dst.NumField(); i++ {
		field := src.Field(i)
		if !dst.Field(i).CanSet() {
			continue
		}
		if reflect.DeepEqual(field.Interface(), reflect.Zero(field.Type()).Interface()) {
			continue
		}
		dst.Field(i).Set(field)
	}
	return nil
}

// patchOf returns the Patch field of the transaction message.
func patchOf(tx flowtree.Tx) (OwnedConfig, error) {
	msg, err := tx.GetMsg()
	if err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	v := reflect.ValueOf(msg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, errors.Wrapf(errors.ErrInput, "%T is not a struct pointer", msg)
	}
	field := v.Elem().FieldByName("Patch")
	switch {
	case !field.IsValid() || field.Kind() != reflect.Ptr:
		return nil, errors.Wrapf(errors.ErrInput, "%T has no Patch field", msg)
	case field.IsNil():
		return nil, errors.Wrap(errors.ErrState, "empty patch")
	}
	p, ok := field.Interface().(OwnedConfig)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInput, "patch of type %s is not a configuration", field.Type())
	}
	return p, nil
}
