package flowtree

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tendermint/tendermint/libs/log"
)

func TestContext(t *testing.T) {
	bg := context.Background()

	// try logger with default
	newLogger := log.NewTMLogger(os.Stdout)
	ctx := WithLogger(bg, newLogger)
	assert.Equal(t, DefaultLogger, GetLogger(bg))
	assert.Equal(t, newLogger, GetLogger(ctx))

	// block time - uninitialized
	_, ok := BlockTime(ctx)
	assert.False(t, ok)

	now := time.Date(2019, 4, 4, 11, 35, 40, 0, time.UTC)
	ctx = WithBlockTime(ctx, now)
	got, ok := BlockTime(ctx)
	assert.True(t, ok)
	assert.Equal(t, now, got)

	// block time cannot be overwritten
	assert.Panics(t, func() { WithBlockTime(ctx, now.Add(time.Hour)) })

	// log info keeps the value in the derived logger
	ctx = WithLogInfo(ctx, "node", 1)
	assert.NotEqual(t, newLogger, GetLogger(ctx))
}
