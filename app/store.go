package app

import (
	"context"
	"sync"
	"time"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/utils"
	"github.com/tendermint/tendermint/libs/log"
)

// genesisKey marks a store that was initialized from a genesis.
var genesisKey = []byte("_flowtree:genesis")

// StoreApp contains a data store and all info needed to process messages
// and queries against it.
//
// Each Deliver call runs the ticker and the message handler in a single
// batch that is committed as a new version of the store. Calls are
// serialized, the store is never accessed by two writers at once.
type StoreApp struct {
	mu sync.Mutex

	logger log.Logger

	// name is used in logs
	name string

	// Database state
	store flowtree.CommitKVStore

	// Code to initialize from a genesis file
	initializer flowtree.Initializer

	handler flowtree.Handler
	ticker  flowtree.Ticker

	// How to handle queries
	queryRouter flowtree.QueryRouter
}

// NewStoreApp initializes this app into a ready state with some defaults.
func NewStoreApp(name string, store flowtree.CommitKVStore, handler flowtree.Handler, queryRouter flowtree.QueryRouter) *StoreApp {
	return &StoreApp{
		name:        name,
		store:       store,
		handler:     handler,
		queryRouter: queryRouter,
		logger:      log.NewNopLogger(),
	}
}

// WithInit is used to set the init function we call
func (s *StoreApp) WithInit(init flowtree.Initializer) *StoreApp {
	s.initializer = init
	return s
}

// WithTicker sets the ticker that is run before every delivered message.
func (s *StoreApp) WithTicker(t flowtree.Ticker) *StoreApp {
	s.ticker = t
	return s
}

// WithLogger sets the logger on the StoreApp and returns it,
// to make it easy to chain in initialization
func (s *StoreApp) WithLogger(logger log.Logger) *StoreApp {
	s.logger = logger.With("module", s.name)
	return s
}

// Logger returns the application base logger
func (s *StoreApp) Logger() log.Logger {
	return s.logger
}

// LatestVersion returns the last committed version of the store.
func (s *StoreApp) LatestVersion() (flowtree.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LatestVersion()
}

// InitState loads the genesis options into the store and commits them as
// the first version. A store can be initialized only once.
func (s *StoreApp) InitState(opts flowtree.Options) (flowtree.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initializer == nil {
		return flowtree.CommitID{}, errors.Wrap(errors.ErrHuman, "no initializer")
	}
	if raw, err := s.store.Get(genesisKey); err != nil {
		return flowtree.CommitID{}, errors.Wrap(err, "read genesis marker")
	} else if raw != nil {
		return flowtree.CommitID{}, errors.Wrap(errors.ErrDuplicate, "state already initialized")
	}

	cache := s.store.CacheWrap()
	if err := s.initializer.FromGenesis(opts, cache); err != nil {
		cache.Discard()
		return flowtree.CommitID{}, errors.Wrap(err, "genesis")
	}
	if err := cache.Set(genesisKey, []byte{1}); err != nil {
		cache.Discard()
		return flowtree.CommitID{}, err
	}
	if err := cache.Write(); err != nil {
		return flowtree.CommitID{}, errors.Wrap(err, "write genesis")
	}
	id, err := s.store.Commit()
	if err != nil {
		return id, errors.Wrap(err, "commit genesis")
	}
	s.logger.Info("genesis loaded", "version", id.Version)
	return id, nil
}

// Deliver runs the ticker and then the message handler at the given block
// time. Ticker changes are committed even if the message fails, message
// changes are committed only if it succeeds.
func (s *StoreApp) Deliver(now time.Time, msg flowtree.Msg) (*flowtree.DeliverResult, flowtree.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.blockContext(now, "deliver")
	cache := s.store.CacheWrap()

	if err := s.tick(ctx, cache); err != nil {
		cache.Discard()
		return nil, flowtree.CommitID{}, err
	}

	ctx = flowtree.WithLogInfo(ctx, "path", msg.Path())
	var res *flowtree.DeliverResult
	msgErr := utils.InSavepoint(cache, func(db flowtree.KVStore) error {
		var err error
		res, err = s.handler.Deliver(ctx, db, &flowtree.MsgTx{Msg: msg})
		return err
	})

	id, err := s.commit(cache)
	if err != nil {
		return nil, id, err
	}
	if msgErr != nil {
		return nil, id, msgErr
	}
	return res, id, nil
}

// Check runs the message handler against a throw away copy of the state.
func (s *StoreApp) Check(now time.Time, msg flowtree.Msg) (*flowtree.CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.blockContext(now, "check")
	cache := s.store.CacheWrap()
	defer cache.Discard()
	return s.handler.Check(ctx, cache, &flowtree.MsgTx{Msg: msg})
}

// Tick runs only the ticker and commits its changes.
func (s *StoreApp) Tick(now time.Time) (*flowtree.TickResult, flowtree.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.blockContext(now, "tick")
	cache := s.store.CacheWrap()
	res := &flowtree.TickResult{}
	if s.ticker != nil {
		r, err := s.ticker.Tick(ctx, cache)
		if err != nil {
			cache.Discard()
			return nil, flowtree.CommitID{}, err
		}
		res = r
	}
	id, err := s.commit(cache)
	return res, id, err
}

// Query dispatches the query to the registered handler. Queries always run
// against the last committed state.
func (s *StoreApp) Query(path, mod string, data []byte) ([]flowtree.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.queryRouter.Handler(path)
	if h == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "no query handler for path %q", path)
	}
	cache := s.store.CacheWrap()
	defer cache.Discard()
	return h.Query(cache, mod, data)
}

func (s *StoreApp) blockContext(now time.Time, call string) flowtree.Context {
	ctx := flowtree.WithLogger(flowtree.WithBlockTime(context.Background(), now), s.logger)
	return flowtree.WithLogInfo(ctx, "call", call)
}

func (s *StoreApp) tick(ctx flowtree.Context, db flowtree.KVStore) error {
	if s.ticker == nil {
		return nil
	}
	if _, err := s.ticker.Tick(ctx, db); err != nil {
		return errors.Wrap(err, "tick")
	}
	return nil
}

func (s *StoreApp) commit(cache flowtree.KVCacheWrap) (flowtree.CommitID, error) {
	if err := cache.Write(); err != nil {
		return flowtree.CommitID{}, errors.Wrap(err, "write cache")
	}
	id, err := s.store.Commit()
	if err != nil {
		return id, errors.Wrap(err, "commit")
	}
	s.logger.Debug("committed", "version", id.Version)
	return id, nil
}
