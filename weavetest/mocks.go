package weavetest

import "github.com/iov-one/flowtree"

// calls counts the invocations of a mock.
type calls struct {
	checks   int
	delivers int
}

func (c *calls) CheckCallCount() int   { return c.checks }
func (c *calls) DeliverCallCount() int { return c.delivers }
func (c *calls) CallCount() int        { return c.checks + c.delivers }

// Handler returns the configured result or error and counts its calls.
type Handler struct {
	calls

	CheckResult flowtree.CheckResult
	CheckErr    error

	DeliverResult flowtree.DeliverResult
	DeliverErr    error
}

var _ flowtree.Handler = (*Handler)(nil)

func (h *Handler) Check(flowtree.Context, flowtree.KVStore, flowtree.Tx) (*flowtree.CheckResult, error) {
	h.checks++
	if h.CheckErr != nil {
		return nil, h.CheckErr
	}
	res := h.CheckResult
	return &res, nil
}

func (h *Handler) Deliver(flowtree.Context, flowtree.KVStore, flowtree.Tx) (*flowtree.DeliverResult, error) {
	h.delivers++
	if h.DeliverErr != nil {
		return nil, h.DeliverErr
	}
	res := h.DeliverResult
	return &res, nil
}

// Decorator passes every call to the next handler unless an error is
// configured for it. Calls are counted either way.
type Decorator struct {
	calls

	CheckErr   error
	DeliverErr error
}

var _ flowtree.Decorator = (*Decorator)(nil)

func (d *Decorator) Check(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx, next flowtree.Checker) (*flowtree.CheckResult, error) {
	d.checks++
	if d.CheckErr != nil {
		return &flowtree.CheckResult{}, d.CheckErr
	}
	return next.Check(ctx, db, tx)
}

func (d *Decorator) Deliver(ctx flowtree.Context, db flowtree.KVStore, tx flowtree.Tx, next flowtree.Deliverer) (*flowtree.DeliverResult, error) {
	d.delivers++
	if d.DeliverErr != nil {
		return &flowtree.DeliverResult{}, d.DeliverErr
	}
	return next.Deliver(ctx, db, tx)
}

// WriteHandler sets Key to Value and then fails with Err, if any. A
// savepoint must roll the write back on failure.
type WriteHandler struct {
	Key   []byte
	Value []byte
	Err   error
}

var _ flowtree.Handler = WriteHandler{}

func (h WriteHandler) write(db flowtree.KVStore) error {
	if err := db.Set(h.Key, h.Value); err != nil {
		return err
	}
	return h.Err
}

func (h WriteHandler) Check(_ flowtree.Context, db flowtree.KVStore, _ flowtree.Tx) (*flowtree.CheckResult, error) {
	if err := h.write(db); err != nil {
		return nil, err
	}
	return &flowtree.CheckResult{}, nil
}

func (h WriteHandler) Deliver(_ flowtree.Context, db flowtree.KVStore, _ flowtree.Tx) (*flowtree.DeliverResult, error) {
	if err := h.write(db); err != nil {
		return nil, err
	}
	return &flowtree.DeliverResult{}, nil
}

// PanicHandler panics with Msg.
type PanicHandler struct {
	Msg string
}

var _ flowtree.Handler = PanicHandler{}

func (h PanicHandler) Check(flowtree.Context, flowtree.KVStore, flowtree.Tx) (*flowtree.CheckResult, error) {
	panic(h.Msg)
}

func (h PanicHandler) Deliver(flowtree.Context, flowtree.KVStore, flowtree.Tx) (*flowtree.DeliverResult, error) {
	panic(h.Msg)
}
