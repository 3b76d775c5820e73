package commands

import (
	"os"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/app"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/store/iavl"
	"github.com/iov-one/flowtree/x"
	"github.com/iov-one/flowtree/x/flow"
	"github.com/iov-one/flowtree/x/strategy"
	"github.com/iov-one/flowtree/x/stream"
	"github.com/iov-one/flowtree/x/utils"
	"github.com/tendermint/tendermint/libs/log"
)

// dbName is the name of the goleveldb directory inside of the home.
const dbName = "flowtree"

// flowApp is a StoreApp opened over the home directory together with the
// controllers it was built from.
type flowApp struct {
	*app.StoreApp
	store   iavl.CommitStore
	streams *stream.Controller
	flows   *flow.Controller
}

// Close releases the database.
func (a *flowApp) Close() {
	a.store.Close()
}

// openApp loads the latest version of the state stored in the home
// directory. Messages are authorized by the --as conditions.
func (c *cli) openApp() (*flowApp, error) {
	conds, err := c.signers()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.config.Home, 0750); err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "home: %s", err)
	}
	db, err := iavl.NewCommitStore(c.config.Home, dbName)
	if err != nil {
		return nil, err
	}
	if err := db.LoadLatestVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return newFlowApp(db, x.StaticAuth{Conditions: conds}, c.logger), nil
}

func newFlowApp(db iavl.CommitStore, auth x.Authenticator, logger log.Logger) *flowApp {
	streams := stream.NewController()
	strategies := flow.NewStrategyRegistry()
	strategy.Register(strategies, streams)
	flows := flow.NewController(streams, strategies)

	router := app.NewRouter()
	stream.RegisterRoutes(router, auth, streams)
	flow.RegisterRoutes(router, auth, flows)

	queries := flowtree.NewQueryRouter()
	queries.RegisterAll(stream.RegisterQuery, flow.RegisterQuery)

	handler := app.ChainDecorators(
		utils.NewLogging(),
		utils.NewRecovery(),
		utils.NewSavepoint().OnDeliver(),
	).WithHandler(router)

	genesis := flowtree.ChainInitializers(
		&stream.Initializer{Ctrl: streams},
		&flow.Initializer{},
	)

	sa := app.NewStoreApp("flowd", db, handler, queries).
		WithInit(genesis).
		WithTicker(streams).
		WithLogger(logger)
	return &flowApp{StoreApp: sa, store: db, streams: streams, flows: flows}
}
