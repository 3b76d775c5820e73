package utils

import (
	"time"

	"github.com/iov-one/flowtree"
)

// Logging writes one log line per message: failures at error level,
// deliveries at info level and checks at debug level. Every line carries
// the message path and the handling time in microseconds.
type Logging struct{}

var _ flowtree.Decorator = Logging{}

func NewLogging() Logging {
	return Logging{}
}

func (Logging) Check(ctx flowtree.Context, store flowtree.KVStore, tx flowtree.Tx, next flowtree.Checker) (*flowtree.CheckResult, error) {
	start := time.Now()
	res, err := next.Check(ctx, store, tx)
	var text string
	if err == nil {
		text = res.Log
	}
	logResult(ctx, tx, start, text, err, true)
	return res, err
}

func (Logging) Deliver(ctx flowtree.Context, store flowtree.KVStore, tx flowtree.Tx, next flowtree.Deliverer) (*flowtree.DeliverResult, error) {
	start := time.Now()
	res, err := next.Deliver(ctx, store, tx)
	var text string
	if err == nil {
		text = res.Log
	}
	logResult(ctx, tx, start, text, err, false)
	return res, err
}

// logResult emits the line even when text is empty, the keyvals carry the
// information.
func logResult(ctx flowtree.Context, tx flowtree.Tx, start time.Time, text string, err error, check bool) {
	keyvals := []interface{}{"duration", time.Since(start) / time.Microsecond}
	if path := msgPath(tx); path != "" {
		keyvals = append(keyvals, "path", path)
	}
	logger := flowtree.GetLogger(ctx)
	switch {
	case err != nil:
		logger.Error(text, append(keyvals, "err", err)...)
	case check:
		logger.Debug(text, keyvals...)
	default:
		logger.Info(text, keyvals...)
	}
}

func msgPath(tx flowtree.Tx) string {
	if tx == nil {
		return ""
	}
	if msg, err := tx.GetMsg(); err == nil && msg != nil {
		return msg.Path()
	}
	return ""
}
