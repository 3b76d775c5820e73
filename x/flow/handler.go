package flow

import (
	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/gconf"
	"github.com/iov-one/flowtree/x"
)

// RegisterRoutes will instantiate and register all handlers in this
// package.
func RegisterRoutes(r flowtree.Registry, auth x.Authenticator, ctrl *Controller) {
	r.Handle(pathCreateNodeMsg, &createNodeHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathUpdateNodeConfigMsg, &updateNodeConfigHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathSetFlowRateMsg, &setFlowRateHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathAddRecipientMsg, &addRecipientHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathAddChildRecipientMsg, &addChildRecipientHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathRemoveRecipientMsg, &removeRecipientHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathAllocateMsg, &allocateHandler{auth: auth, ctrl: ctrl})
	r.Handle(pathAllocateWithWitnessMsg, &allocateHandler{auth: auth, ctrl: ctrl, witness: true})
	r.Handle(pathDrainChildUpdatesMsg, &drainHandler{ctrl: ctrl})
	r.Handle(pathUpdateConfigurationMsg, NewConfigHandler(auth))
}

// NewConfigHandler returns a handler of UpdateConfigurationMsg.
func NewConfigHandler(auth x.Authenticator) flowtree.Handler {
	var conf Configuration
	return gconf.NewUpdateConfigurationHandler(confPkg, &conf, auth)
}

// loadNodeAsManager returns the node if the manager signed the
// transaction.
func loadNodeAsManager(ctx flowtree.Context, db flowtree.KVStore, auth x.Authenticator, ctrl *Controller, id []byte) (*Node, error) {
	node, err := ctrl.Node(db, id)
	if err != nil {
		return nil, err
	}
	if err := x.RequireSigner(ctx, auth, "manager of node "+nodeLabel(id), node.Manager); err != nil {
		return nil, err
	}
	return node, nil
}

type createNodeHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *createNodeHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, err := h.validate(ctx, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h *createNodeHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, err := h.validate(ctx, tx)
	if err != nil {
		return nil, err
	}
	node, err := h.ctrl.CreateNode(db, msg.Manager, msg.Config, msg.Strategies, msg.RewardTarget)
	if err != nil {
		return nil, err
	}
	flowtree.GetLogger(ctx).Info("node created", "node", nodeLabel(node.ID), "manager", node.Manager)
	return &flowtree.DeliverResult{Data: node.ID}, nil
}

func (h *createNodeHandler) validate(ctx flowtree.Context, tx flowtree.Tx) (*CreateNodeMsg, error) {
	var msg CreateNodeMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if err := x.RequireSigner(ctx, h.auth, "node manager", msg.Manager); err != nil {
		return nil, err
	}
	return &msg, nil
}

type updateNodeConfigHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *updateNodeConfigHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h *updateNodeConfigHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if _, err := h.ctrl.UpdateNode(ctx, db, msg.NodeID, msg.Config, msg.RewardTarget); err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{Data: msg.NodeID}, nil
}

func (h *updateNodeConfigHandler) validate(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*UpdateNodeConfigMsg, error) {
	var msg UpdateNodeConfigMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if _, err := loadNodeAsManager(ctx, db, h.auth, h.ctrl, msg.NodeID); err != nil {
		return nil, err
	}
	return &msg, nil
}

type setFlowRateHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *setFlowRateHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h *setFlowRateHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	node, err := h.ctrl.Node(db, msg.NodeID)
	if err != nil {
		return nil, err
	}
	if err := h.ctrl.SetFlowRate(ctx, db, node.Manager, msg.NodeID, msg.Rate); err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{Data: msg.NodeID}, nil
}

func (h *setFlowRateHandler) validate(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*SetFlowRateMsg, error) {
	var msg SetFlowRateMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if _, err := loadNodeAsManager(ctx, db, h.auth, h.ctrl, msg.NodeID); err != nil {
		return nil, err
	}
	return &msg, nil
}

type addRecipientHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *addRecipientHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h *addRecipientHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	r, err := h.ctrl.AddRecipient(ctx, db, msg.NodeID, msg.Address, msg.Metadata)
	if err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{Data: r.ID}, nil
}

func (h *addRecipientHandler) validate(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*AddRecipientMsg, error) {
	var msg AddRecipientMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if _, err := loadNodeAsManager(ctx, db, h.auth, h.ctrl, msg.NodeID); err != nil {
		return nil, err
	}
	return &msg, nil
}

type addChildRecipientHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *addChildRecipientHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h *addChildRecipientHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	r, err := h.ctrl.AddChildRecipient(ctx, db, msg.NodeID, msg.ChildNodeID, msg.Metadata)
	if err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{Data: r.ID}, nil
}

// validate requires signatures of both managers. A child accepts its
// parent.
func (h *addChildRecipientHandler) validate(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*AddChildRecipientMsg, error) {
	var msg AddChildRecipientMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if _, err := loadNodeAsManager(ctx, db, h.auth, h.ctrl, msg.NodeID); err != nil {
		return nil, err
	}
	if _, err := loadNodeAsManager(ctx, db, h.auth, h.ctrl, msg.ChildNodeID); err != nil {
		return nil, errors.Wrap(err, "child")
	}
	return &msg, nil
}

type removeRecipientHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *removeRecipientHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h *removeRecipientHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if _, err := h.ctrl.RemoveRecipient(ctx, db, msg.NodeID, msg.RecipientID); err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{Data: msg.RecipientID}, nil
}

func (h *removeRecipientHandler) validate(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*RemoveRecipientMsg, error) {
	var msg RemoveRecipientMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if _, err := loadNodeAsManager(ctx, db, h.auth, h.ctrl, msg.NodeID); err != nil {
		return nil, err
	}
	return &msg, nil
}

// allocateHandler processes both AllocateMsg and AllocateWithWitnessMsg.
// The allocation is made in the name of the main signer.
type allocateHandler struct {
	auth    x.Authenticator
	ctrl    *Controller
	witness bool
}

func (h *allocateHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{Cost: conf.DrainCap}, nil
}

func (h *allocateHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	caller, alloc, witness, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	var res *AllocateResult
	if h.witness {
		res, err = h.ctrl.AllocateWithWitness(ctx, db, caller, alloc, witness)
	} else {
		res, err = h.ctrl.Allocate(ctx, db, caller, alloc)
	}
	if err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{Data: res.Key, Tags: drainTags(alloc.NodeID, res.Drain)}, nil
}

func (h *allocateHandler) validate(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (flowtree.Address, *Allocation, *Witness, error) {
	signer := x.MainSigner(ctx, h.auth)
	if signer == nil {
		return nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	if h.witness {
		var msg AllocateWithWitnessMsg
		if err := flowtree.LoadMsg(tx, &msg); err != nil {
			return nil, nil, nil, errors.Wrap(err, "load msg")
		}
		return signer.Address(), msg.Allocation(), msg.Witness(), nil
	}
	var msg AllocateMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "load msg")
	}
	return signer.Address(), msg.Allocation(), nil, nil
}

type drainHandler struct {
	ctrl *Controller
}

func (h *drainHandler) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.CheckResult, error) {
	_, limit, err := h.validate(db, tx)
	if err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{Cost: limit}, nil
}

func (h *drainHandler) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx) (*flowtree.DeliverResult, error) {
	msg, limit, err := h.validate(db, tx)
	if err != nil {
		return nil, err
	}
	res, err := h.ctrl.DrainChildUpdates(ctx, db, msg.NodeID, limit)
	if err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{Tags: drainTags(msg.NodeID, res)}, nil
}

// validate returns the message and the number of children it may process.
func (h *drainHandler) validate(db flowtree.KVStore, tx flowtree.Tx) (*DrainChildUpdatesMsg, int64, error) {
	var msg DrainChildUpdatesMsg
	if err := flowtree.LoadMsg(tx, &msg); err != nil {
		return nil, 0, errors.Wrap(err, "load msg")
	}
	if _, err := h.ctrl.Node(db, msg.NodeID); err != nil {
		return nil, 0, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, 0, err
	}
	limit := conf.DrainCap
	if msg.Cap > 0 && msg.Cap < limit {
		limit = msg.Cap
	}
	return &msg, limit, nil
}

func drainTags(nodeID []byte, res *DrainResult) []flowtree.Tag {
	if res == nil || res.Remaining == 0 {
		return nil
	}
	return []flowtree.Tag{{Key: "flow.pending", Value: nodeLabel(nodeID)}}
}
