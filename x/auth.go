package x

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
)

// Authenticator tells handlers who signed the message being processed.
// Handlers receive it on construction, so the command line and the tests
// can plug in their own.
type Authenticator interface {
	// GetConditions returns the signing conditions, main signer first.
	GetConditions(flowtree.Context) []flowtree.Condition
	HasAddress(flowtree.Context, flowtree.Address) bool
}

// MainSigner returns the first signer, or nil when nobody signed.
func MainSigner(ctx flowtree.Context, auth Authenticator) flowtree.Condition {
	if signers := auth.GetConditions(ctx); len(signers) != 0 {
		return signers[0]
	}
	return nil
}

// HasAnyAddress reports whether any non empty address of allowed signed.
func HasAnyAddress(ctx flowtree.Context, auth Authenticator, allowed ...flowtree.Address) bool {
	for _, a := range allowed {
		if len(a) != 0 && auth.HasAddress(ctx, a) {
			return true
		}
	}
	return false
}

// RequireSigner fails with ErrUnauthorized unless one of allowed signed.
// role names the expected signer in the error, for example "node manager".
func RequireSigner(ctx flowtree.Context, auth Authenticator, role string, allowed ...flowtree.Address) error {
	if HasAnyAddress(ctx, auth, allowed...) {
		return nil
	}
	return errors.Wrapf(errors.ErrUnauthorized, "%s did not sign", role)
}

// StaticAuth authenticates the same conditions for every message. flowd
// uses it for the signers given with --as.
type StaticAuth struct {
	Conditions []flowtree.Condition
}

var _ Authenticator = StaticAuth{}

func (a StaticAuth) GetConditions(flowtree.Context) []flowtree.Condition {
	return a.Conditions
}

func (a StaticAuth) HasAddress(_ flowtree.Context, addr flowtree.Address) bool {
	for _, c := range a.Conditions {
		if addr.Equals(c.Address()) {
			return true
		}
	}
	return false
}
