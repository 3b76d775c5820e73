package app

import (
	"testing"
	"time"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/store/iavl"
	"github.com/iov-one/flowtree/weavetest"
	"github.com/iov-one/flowtree/weavetest/assert"
)

type tickCounter struct {
	calls int
}

func (t *tickCounter) Tick(ctx flowtree.Context, db flowtree.KVStore) (*flowtree.TickResult, error) {
	t.calls++
	if _, ok := flowtree.BlockTime(ctx); !ok {
		return nil, errors.Wrap(errors.ErrState, "no block time")
	}
	return &flowtree.TickResult{}, db.Set([]byte("tick"), []byte{byte(t.calls)})
}

type genesisWriter struct{}

func (genesisWriter) FromGenesis(opts flowtree.Options, db flowtree.KVStore) error {
	var v string
	if err := opts.ReadOptions("value", &v); err != nil {
		return err
	}
	return db.Set([]byte("genesis"), []byte(v))
}

func TestStoreAppDeliver(t *testing.T) {
	router := NewRouter()
	router.Handle("ok", weavetest.WriteHandler{Key: []byte("ok"), Value: []byte("1")})
	router.Handle("fail", weavetest.WriteHandler{Key: []byte("fail"), Value: []byte("1"), Err: errors.ErrState})

	ticker := &tickCounter{}
	db := iavl.MockCommitStore()
	app := NewStoreApp("test", db, router, flowtree.NewQueryRouter()).
		WithTicker(ticker).
		WithInit(genesisWriter{})

	id, err := app.InitState(flowtree.Options{"value": []byte(`"hello"`)})
	assert.Nil(t, err)
	assert.Equal(t, int64(1), id.Version)

	_, err = app.InitState(flowtree.Options{})
	assert.IsErr(t, errors.ErrDuplicate, err)

	now := time.Now()

	_, id, err = app.Deliver(now, &weavetest.Msg{RoutePath: "ok"})
	assert.Nil(t, err)
	assert.Equal(t, int64(2), id.Version)

	// A failed message is rolled back but the tick is committed.
	_, id, err = app.Deliver(now, &weavetest.Msg{RoutePath: "fail"})
	assert.IsErr(t, errors.ErrState, err)
	assert.Equal(t, int64(3), id.Version)

	assertValue(t, db, "genesis", []byte("hello"))
	assertValue(t, db, "ok", []byte("1"))
	assertValue(t, db, "fail", nil)
	assertValue(t, db, "tick", []byte{2})

	// Check never modifies the state.
	_, err = app.Check(now, &weavetest.Msg{RoutePath: "ok"})
	assert.Nil(t, err)
	latest, err := app.LatestVersion()
	assert.Nil(t, err)
	assert.Equal(t, int64(3), latest.Version)

	_, id, err = app.Tick(now)
	assert.Nil(t, err)
	assert.Equal(t, int64(4), id.Version)
	assertValue(t, db, "tick", []byte{3})
}

func TestStoreAppQuery(t *testing.T) {
	qr := flowtree.NewQueryRouter()
	qr.Register("/static", staticQuery{})
	app := NewStoreApp("test", iavl.MockCommitStore(), NewRouter(), qr)

	res, err := app.Query("/static", flowtree.KeyQueryMod, []byte("x"))
	assert.Nil(t, err)
	assert.Equal(t, []flowtree.Model{flowtree.Pair([]byte("x"), nil)}, res)

	_, err = app.Query("/missing", flowtree.KeyQueryMod, nil)
	assert.IsErr(t, errors.ErrNotFound, err)
}

type staticQuery struct{}

func (staticQuery) Query(db flowtree.ReadOnlyKVStore, mod string, data []byte) ([]flowtree.Model, error) {
	val, err := db.Get(data)
	if err != nil {
		return nil, err
	}
	return []flowtree.Model{flowtree.Pair(data, val)}, nil
}

func assertValue(t testing.TB, db flowtree.CommitKVStore, key string, want []byte) {
	t.Helper()
	got, err := db.Get([]byte(key))
	assert.Nil(t, err)
	assert.Equal(t, want, got)
}
