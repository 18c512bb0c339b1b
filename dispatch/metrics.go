package dispatch

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromSink is the Prometheus implementation of Sink.
type PromSink struct {
	fills *prometheus.CounterVec
}

// NewPromSink creates and registers the fill counter on the given
// registerer. Construct once per process.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	return &PromSink{
		fills: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "fillfeed",
			Name:      "fills_total",
			Help:      "Total number of fill events dispatched, by market and fill attributes",
		}, []string{"market", "is_global", "taker_is_buy"}),
	}
}

// RecordFill implements Sink.
func (s *PromSink) RecordFill(market string, makerIsGlobal, takerIsBuy bool) {
	s.fills.WithLabelValues(
		market,
		strconv.FormatBool(makerIsGlobal),
		strconv.FormatBool(takerIsBuy),
	).Inc()
}
