package utils

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// Recovery is a decorator to recover from panics in messages,
// so we can log them as errors
type Recovery struct{}

var _ flowtree.Decorator = Recovery{}

// NewRecovery creates a Recovery decorator
func NewRecovery() Recovery {
	return Recovery{}
}

// Check turns panics into normal errors
func (r Recovery) Check(ctx flowtree.Context, store flowtree.KVStore, tx flowtree.Tx, next flowtree.Checker) (_ *flowtree.CheckResult, err error) {
	defer recoverLogged(ctx, &err)
	return next.Check(ctx, store, tx)
}

// Deliver turns panics into normal errors
func (r Recovery) Deliver(ctx flowtree.Context, store flowtree.KVStore, tx flowtree.Tx, next flowtree.Deliverer) (_ *flowtree.DeliverResult, err error) {
	defer recoverLogged(ctx, &err)
	return next.Deliver(ctx, store, tx)
}

// recoverLogged must be deferred directly for recover to work.
func recoverLogged(ctx flowtree.Context, err *error) {
	if r := recover(); r != nil {
		*err = errors.Wrapf(errors.ErrPanic, "%v", r)
		flowtree.GetLogger(ctx).Error("recovered from panic", "err", *err)
	}
}
