package flow

import (
	"bytes"
	"encoding/binary"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/x/utils"
	"golang.org/x/crypto/blake2b"
)

// Allocation is a request to split the weight of the caller between
// recipients of a node.
type Allocation struct {
	NodeID        []byte
	StrategyIndex uint32
	AuxData       []byte
	RecipientIDs  [][]byte
	BasisPoints   []flowtree.BasisPoints
}

// Witness is the attested previous state of an allocation.
type Witness struct {
	Weight       int64
	RecipientIDs [][]byte
	BasisPoints  []flowtree.BasisPoints
}

// IsEmpty returns true if the witness attests that there was no previous
// allocation.
func (w *Witness) IsEmpty() bool {
	return w.Weight == 0 && len(w.RecipientIDs) == 0 && len(w.BasisPoints) == 0
}

// AllocateResult describes the effects of an allocation.
type AllocateResult struct {
	// Key is the allocation key derived by the strategy.
	Key []byte
	// Weight is the weight granted by the strategy.
	Weight int64
	Drain  *DrainResult
}

// ValidateAllocation checks that the recipients and basis points describe a
// complete distribution.
func ValidateAllocation(ids [][]byte, bps []flowtree.BasisPoints) error {
	if len(ids) == 0 {
		return errors.Wrap(ErrAllocationWeightsInvalid, "no recipients")
	}
	if len(ids) != len(bps) {
		return errors.Wrapf(ErrAllocationWeightsInvalid, "%d recipients and %d basis points", len(ids), len(bps))
	}
	var total flowtree.BasisPoints
	for i, id := range ids {
		if err := validID(id); err != nil {
			return errors.Wrapf(err, "recipient #%d", i)
		}
		if containsID(ids[:i], id) {
			return errors.Wrapf(ErrAllocationWeightsInvalid, "duplicated recipient %X", id)
		}
		if bps[i] <= 0 || bps[i] > flowtree.Scale {
			return errors.Wrapf(ErrAllocationWeightsInvalid, "basis points #%d out of range", i)
		}
		total += bps[i]
	}
	if total != flowtree.Scale {
		return errors.Wrapf(ErrAllocationWeightsInvalid, "basis points sum to %d", total)
	}
	return nil
}

// SplitUnits distributes the weight according to the basis points. The
// last entry absorbs the rounding remainder so that the units always sum to
// the weight.
func SplitUnits(weight int64, bps []flowtree.BasisPoints) ([]int64, error) {
	units := make([]int64, len(bps))
	if len(bps) == 0 {
		return units, nil
	}
	var sum int64
	for i, b := range bps[:len(bps)-1] {
		u, err := b.Of(weight)
		if err != nil {
			return nil, err
		}
		units[i] = u
		sum += u
	}
	units[len(bps)-1] = weight - sum
	return units, nil
}

// Digest returns a hash of the allocation used to verify a witness.
func Digest(weight int64, ids [][]byte, bps []flowtree.BasisPoints) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only a too long key can fail.
		panic(err)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(weight))
	h.Write(buf)
	for i, id := range ids {
		h.Write([]byte{byte(len(id))})
		h.Write(id)
		binary.BigEndian.PutUint64(buf, uint64(bps[i]))
		h.Write(buf)
	}
	return h.Sum(nil)
}

// Allocate replaces the allocation of the caller. Units granted by the
// previous allocation are taken back and the current weight of the caller
// is split between the new recipients. The node rates are recomputed and
// children are pushed, starting with those whose units changed. Nothing is
// written when the call fails.
func (c *Controller) Allocate(ctx flowtree.Context, db flowtree.KVStore, caller flowtree.Address, a *Allocation) (*AllocateResult, error) {
	return c.allocateAtomic(ctx, db, caller, a, nil)
}

// AllocateWithWitness is Allocate using the attested previous allocation
// instead of reading the stored entries. The witness is verified against
// the stored allocation head and the call fails with ErrWitnessMismatch if
// it does not match.
func (c *Controller) AllocateWithWitness(ctx flowtree.Context, db flowtree.KVStore, caller flowtree.Address, a *Allocation, w *Witness) (*AllocateResult, error) {
	if w == nil {
		return nil, errors.Wrap(ErrWitnessMismatch, "missing witness")
	}
	return c.allocateAtomic(ctx, db, caller, a, w)
}

// allocateAtomic runs allocate in a savepoint, a failed vote leaves no
// entries, units or stream changes behind.
func (c *Controller) allocateAtomic(ctx flowtree.Context, db flowtree.KVStore, caller flowtree.Address, a *Allocation, w *Witness) (*AllocateResult, error) {
	var res *AllocateResult
	err := utils.InSavepoint(db, func(db flowtree.KVStore) error {
		var err error
		res, err = c.allocate(ctx, db, caller, a, w)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Controller) allocate(ctx flowtree.Context, db flowtree.KVStore, caller flowtree.Address, a *Allocation, w *Witness) (*AllocateResult, error) {
	if err := ValidateAllocation(a.RecipientIDs, a.BasisPoints); err != nil {
		return nil, err
	}
	node, err := c.Node(db, a.NodeID)
	if err != nil {
		return nil, err
	}
	if int(a.StrategyIndex) >= len(node.Strategies) {
		return nil, errors.Wrapf(errors.ErrInput, "node has no strategy #%d", a.StrategyIndex)
	}
	strategy, err := c.strategies.Build(node.Strategies[a.StrategyIndex])
	if err != nil {
		return nil, err
	}
	key, err := strategy.AllocationKey(db, caller, a.AuxData)
	if err != nil {
		return nil, errors.Wrap(err, "allocation key")
	}
	switch ok, err := strategy.CanAllocate(db, key, caller); {
	case err != nil:
		return nil, err
	case !ok:
		return nil, errors.Wrapf(ErrNotAuthorizedToAllocate, "caller %s", caller)
	}

	recipients := make([]*Recipient, len(a.RecipientIDs))
	for i, id := range a.RecipientIDs {
		r, err := c.RecipientByID(db, node.ID, id)
		if err != nil {
			return nil, err
		}
		if r.Removed {
			return nil, errors.Wrapf(ErrRecipientNotFound, "recipient %X is removed", id)
		}
		recipients[i] = r
	}

	storeKey := allocationKey(node.ID, a.StrategyIndex, key)
	var head AllocationHead
	hasHead := true
	if err := c.heads.One(db, storeKey, &head); err != nil {
		if !errors.ErrNotFound.Is(err) {
			return nil, err
		}
		hasHead = false
	}

	var prev []*AllocationEntry
	if w == nil {
		if hasHead {
			var list AllocationList
			if err := c.lists.One(db, storeKey, &list); err != nil {
				return nil, errors.Wrap(err, "allocation entries")
			}
			prev = list.Entries
		}
	} else {
		if prev, err = verifyWitness(w, hasHead, &head); err != nil {
			return nil, err
		}
	}

	// Units of the previous allocation are taken back, unless the
	// recipient was removed or activated again after the vote. Those
	// units were already cleared.
	changes := newUnitChanges()
	for _, e := range prev {
		r, err := c.RecipientByID(db, node.ID, e.RecipientID)
		if err != nil {
			return nil, err
		}
		if r.Removed || r.ActivatedAt > head.VotedAt {
			continue
		}
		changes.add(r, -e.Units)
	}

	weight, err := strategy.CurrentWeight(db, key)
	if err != nil {
		return nil, errors.Wrap(err, "current weight")
	}
	if weight < 0 {
		return nil, errors.Wrap(errors.ErrState, "negative weight")
	}
	units, err := SplitUnits(weight, a.BasisPoints)
	if err != nil {
		return nil, err
	}
	entries := make([]*AllocationEntry, len(recipients))
	for i, r := range recipients {
		changes.add(r, units[i])
		entries[i] = &AllocationEntry{
			RecipientID: r.ID,
			BasisPoints: a.BasisPoints[i],
			Units:       units[i],
		}
	}

	var changedChildren [][]byte
	for _, ch := range changes.list {
		if ch.delta == 0 {
			continue
		}
		if err := c.addBonusUnits(ctx, db, node.ID, ch.recipient.Address, ch.delta); err != nil {
			return nil, err
		}
		if ch.recipient.Kind == RecipientChildNode {
			changedChildren = append(changedChildren, ch.recipient.ID)
		}
	}

	node.Clock++
	newHead := AllocationHead{
		Weight:  weight,
		VotedAt: node.Clock,
		Digest:  Digest(weight, a.RecipientIDs, a.BasisPoints),
	}
	if err := c.heads.Put(db, storeKey, &newHead); err != nil {
		return nil, err
	}
	if err := c.lists.Put(db, storeKey, &AllocationList{Entries: entries}); err != nil {
		return nil, err
	}

	active := node.ActiveWeight - head.Weight
	if active, err = flowtree.Add(active, weight); err != nil {
		return nil, err
	}
	if active < 0 {
		return nil, errors.Wrap(errors.ErrState, "negative active weight")
	}
	node.ActiveWeight = active

	if err := c.applyRates(ctx, db, node); err != nil {
		return nil, err
	}
	if err := c.markAllChildrenPending(db, node.ID); err != nil {
		return nil, err
	}
	if err := c.saveNode(db, node); err != nil {
		return nil, err
	}

	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	drained, err := c.drain(ctx, db, node.ID, changedChildren, conf.DrainCap)
	if err != nil {
		return nil, err
	}
	flowtree.GetLogger(ctx).Info("allocated",
		"node", nodeLabel(node.ID),
		"caller", caller,
		"weight", weight,
		"active_weight", node.ActiveWeight)
	return &AllocateResult{Key: key, Weight: weight, Drain: drained}, nil
}

// verifyWitness checks the witness against the stored head and returns the
// previous entries it describes.
func verifyWitness(w *Witness, hasHead bool, head *AllocationHead) ([]*AllocationEntry, error) {
	if !hasHead {
		if !w.IsEmpty() {
			return nil, errors.Wrap(ErrWitnessMismatch, "no previous allocation")
		}
		return nil, nil
	}
	if w.IsEmpty() {
		return nil, errors.Wrap(ErrWitnessMismatch, "previous allocation exists")
	}
	if err := ValidateAllocation(w.RecipientIDs, w.BasisPoints); err != nil {
		return nil, errors.Wrap(ErrWitnessMismatch, err.Error())
	}
	if w.Weight != head.Weight {
		return nil, errors.Wrapf(ErrWitnessMismatch, "weight %d, stored %d", w.Weight, head.Weight)
	}
	if !bytes.Equal(Digest(w.Weight, w.RecipientIDs, w.BasisPoints), head.Digest) {
		return nil, errors.Wrap(ErrWitnessMismatch, "digest")
	}
	units, err := SplitUnits(w.Weight, w.BasisPoints)
	if err != nil {
		return nil, err
	}
	entries := make([]*AllocationEntry, len(units))
	for i := range units {
		entries[i] = &AllocationEntry{
			RecipientID: w.RecipientIDs[i],
			BasisPoints: w.BasisPoints[i],
			Units:       units[i],
		}
	}
	return entries, nil
}

type unitChange struct {
	recipient *Recipient
	delta     int64
}

// unitChanges accumulates unit deltas per recipient, keeping the order in
// which recipients were first seen.
type unitChanges struct {
	list []*unitChange
}

func newUnitChanges() *unitChanges {
	return &unitChanges{}
}

func (u *unitChanges) add(r *Recipient, delta int64) {
	for _, ch := range u.list {
		if bytes.Equal(ch.recipient.ID, r.ID) {
			ch.delta += delta
			return
		}
	}
	u.list = append(u.list, &unitChange{recipient: r, delta: delta})
}
