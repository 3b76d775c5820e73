package flow

import (
	"encoding/binary"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ratePushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtree",
		Subsystem: "flow",
		Name:      "rate_pushes_total",
		Help:      "Number of child rate pushes by result.",
	}, []string{"result"})

	bufferTopUps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtree",
		Subsystem: "flow",
		Name:      "buffer_top_ups_total",
		Help:      "Number of receiver buffer top ups by target kind.",
	}, []string{"target"})

	bufferTopUpAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtree",
		Subsystem: "flow",
		Name:      "buffer_top_up_amount_total",
		Help:      "Value transferred to receivers to cover their stream buffer.",
	}, []string{"target"})

	bufferShortfalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtree",
		Subsystem: "flow",
		Name:      "buffer_shortfalls_total",
		Help:      "Number of stream changes deferred because the node could not fund the buffer.",
	}, []string{"target"})

	drainedChildren = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flowtree",
		Subsystem: "flow",
		Name:      "drained_children",
		Help:      "Number of children processed by a single drain.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})

	deferredChildren = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flowtree",
		Subsystem: "flow",
		Name:      "deferred_children_total",
		Help:      "Number of children put back to the pending queue.",
	})
)

// nodeLabel returns a human readable node ID for logs.
func nodeLabel(id []byte) string {
	if len(id) != idLength {
		return "invalid"
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(id), 10)
}
