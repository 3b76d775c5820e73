package app

import (
	"context"
	"testing"

	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/weavetest"
	"github.com/iov-one/flowtree/x/utils"
	"github.com/stretchr/testify/assert"
)

func TestChain(t *testing.T) {
	c1 := &weavetest.Decorator{}
	c2 := &weavetest.Decorator{}
	var skipped *weavetest.Decorator
	h := &weavetest.Handler{}

	stack := ChainDecorators(
		c1,
		utils.NewLogging(),
		skipped,
		utils.NewRecovery(),
		c2,
	).WithHandler(h)

	bg := context.Background()

	_, err := stack.Check(bg, nil, nil)
	assert.NoError(t, err)
	_, err = stack.Deliver(bg, nil, nil)
	assert.NoError(t, err)

	assert.Equal(t, 2, c1.CallCount())
	assert.Equal(t, 2, c2.CallCount())
	assert.Equal(t, 2, h.CallCount())

	// an error stops the chain
	c2.DeliverErr = errors.ErrUnauthorized
	_, err = stack.Deliver(bg, nil, nil)
	assert.True(t, errors.ErrUnauthorized.Is(err))
	assert.Equal(t, 3, c2.CallCount())
	assert.Equal(t, 2, h.CallCount())

	// a panic in the handler is recovered below the logging decorator
	panicking := ChainDecorators(c1, utils.NewRecovery()).
		WithHandler(weavetest.PanicHandler{Msg: "boom"})
	_, err = panicking.Deliver(bg, nil, nil)
	assert.True(t, errors.ErrPanic.Is(err))
	assert.Equal(t, 4, c1.CallCount())
}
