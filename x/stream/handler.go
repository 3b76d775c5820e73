package stream

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/gconf"
	"github.com/iov-one/flowtree/orm"
	"github.com/iov-one/flowtree/x"
)

// RegisterRoutes will instantiate and register all handlers in this
// package.
func RegisterRoutes(r flowtree.Registry, auth x.Authenticator, ctrl *Controller) {
	r.Handle(pathIssueMsg, &issueHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathTransferMsg, &transferHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathUpdateConfigurationMsg, NewConfigHandler(auth))
}

// RegisterQuery exposes accounts under "/stream/accounts" and pools under
// "/stream/pools".
func RegisterQuery(qr flowtree.QueryRouter) {
	orm.NewBucket("account").Register("stream/accounts", qr)
	orm.NewBucket("pool").Register("stream/pools", qr)
}

// NewConfigHandler returns a handler of UpdateConfigurationMsg.
func NewConfigHandler(auth x.Authenticator) flowtree.Handler {
	var conf Configuration
	return gconf.NewUpdateConfigurationHandler(confPkg, &conf, auth)
}

type issueHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *issueHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h *issueHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if err := h.ctrl.Issue(db, msg.Destination, msg.Amount); err != nil {
		return nil, errors.Wrap(err, "issue")
	}
	return &flowtree.DeliverResult{}, nil
}

func (h *issueHandler) validate(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*IssueMsg, error) {
	var msg IssueMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	if err := x.RequireSigner(ctx, h.auth, "stream owner", conf.Owner); err != nil {
		return nil, err
	}
	return &msg, nil
}

type transferHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *transferHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, err := h.validate(ctx, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h *transferHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, err := h.validate(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := h.ctrl.Transfer(db, msg.Source, msg.Destination, msg.Amount); err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{}, nil
}

func (h *transferHandler) validate(ctx flowtree.Context, tx flowtree.Tx) (*TransferMsg, error) {
	var msg TransferMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if err := x.RequireSigner(ctx, h.auth, "transfer source", msg.Source); err != nil {
		return nil, err
	}
	return &msg, nil
}
