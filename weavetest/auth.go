package weavetest

import (
	"context"
	"fmt"

	"github.com/iov-one/flowtree"
)

// Auth authenticates a fixed set of conditions: Signer, if set, and all of
// Signers.
type Auth struct {
	Signer  flowtree.Condition
	Signers []flowtree.Condition
}

func (a *Auth) GetConditions(flowtree.Context) []flowtree.Condition {
	if a.Signer == nil {
		return a.Signers
	}
	return append(a.Signers, a.Signer)
}

func (a *Auth) HasAddress(ctx flowtree.Context, addr flowtree.Address) bool {
	return hasAddress(a.GetConditions(ctx), addr)
}

// CtxAuth reads the authenticated conditions from the context, under Key.
type CtxAuth struct {
	Key string
}

// SetConditions returns a context authenticating conds.
func (a *CtxAuth) SetConditions(ctx flowtree.Context, conds ...flowtree.Condition) flowtree.Context {
	return context.WithValue(ctx, a.Key, conds)
}

func (a *CtxAuth) GetConditions(ctx flowtree.Context) []flowtree.Condition {
	switch conds := ctx.Value(a.Key).(type) {
	case nil:
		return nil
	case []flowtree.Condition:
		return conds
	default:
		panic(fmt.Sprintf("context key %q holds %T", a.Key, conds))
	}
}

func (a *CtxAuth) HasAddress(ctx flowtree.Context, addr flowtree.Address) bool {
	return hasAddress(a.GetConditions(ctx), addr)
}

func hasAddress(conds []flowtree.Condition, addr flowtree.Address) bool {
	for _, c := range conds {
		if addr.Equals(c.Address()) {
			return true
		}
	}
	return false
}
