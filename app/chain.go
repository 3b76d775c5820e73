package app

import (
	"reflect"

	"github.com/iov-one/flowtree"
)

// Decorators holds a chain of decorators, not yet resolved by a Handler
type Decorators struct {
	chain []flowtree.Decorator
}

/*
ChainDecorators takes a chain of decorators,
and upon adding a final Handler (often a Router),
returns a Handler that will execute this whole stack.

	app.ChainDecorators(
	  utils.NewLogging(),
	  utils.NewRecovery(),
	  utils.NewSavepoint().OnDeliver(),
	).WithHandler(
	  router,
	)
*/
func ChainDecorators(chain ...flowtree.Decorator) Decorators {
	return Decorators{}.Chain(chain...)
}

// Chain allows us to keep adding more Decorators to the chain. Nil
// decorators are skipped so that optional decorators can be passed inline.
func (d Decorators) Chain(chain ...flowtree.Decorator) Decorators {
	newChain := make([]flowtree.Decorator, 0, len(d.chain)+len(chain))
	newChain = append(newChain, d.chain...)
	for _, dc := range chain {
		if isNil(dc) {
			continue
		}
		newChain = append(newChain, dc)
	}
	return Decorators{newChain}
}

func isNil(d flowtree.Decorator) bool {
	if d == nil {
		return true
	}
	v := reflect.ValueOf(d)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// WithHandler resolves the stack and returns a concrete Handler
// that will pass through the chain of decorators before calling
// the final Handler.
func (d Decorators) WithHandler(h flowtree.Handler) flowtree.Handler {
	// start wrapping the handler from last decorator to first one
	// as the top of the chain is understood to be executed first
	for i := len(d.chain) - 1; i >= 0; i-- {
		h = step{d: d.chain[i], next: h}
	}
	return h
}

// step captures one step executing a decorator around a
// specific Handler. Simplified version of a closure.
type step struct {
	d    flowtree.Decorator
	next flowtree.Handler
}

var _ flowtree.Handler = step{}

// Check passes the handler into the decorator, implements Handler
func (s step) Check(ctx flowtree.Context, store flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	return s.d.Check(ctx, store, tx, s.next)
}

// Deliver passes the handler into the decorator, implements Handler
func (s step) Deliver(ctx flowtree.Context, store flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	return s.d.Deliver(ctx, store, tx, s.next)
}
