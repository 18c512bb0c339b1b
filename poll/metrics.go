package poll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the ingestion pipeline.
type Metrics struct {
	PollCycles          prometheus.Counter
	SignaturesProcessed prometheus.Counter
	TransactionsSkipped *prometheus.CounterVec
	EventsDecoded       *prometheus.CounterVec
	DecodeFailures      prometheus.Counter
	LastUpdate          prometheus.Gauge
}

// NewMetrics creates and registers the pipeline metrics on the given
// registerer. Construct once per process; poller instances created across
// restarts share the same metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PollCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fillfeed",
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Total number of completed poll cycles",
		}),
		SignaturesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fillfeed",
			Subsystem: "poll",
			Name:      "signatures_processed_total",
			Help:      "Total number of signatures fully processed",
		}),
		TransactionsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fillfeed",
			Subsystem: "poll",
			Name:      "transactions_skipped_total",
			Help:      "Total number of signatures or transactions skipped, by reason",
		}, []string{"reason"}),
		EventsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fillfeed",
			Subsystem: "poll",
			Name:      "events_decoded_total",
			Help:      "Total number of events decoded, by event type",
		}, []string{"type"}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fillfeed",
			Subsystem: "poll",
			Name:      "decode_failures_total",
			Help:      "Total number of malformed payloads under a known discriminator",
		}),
		LastUpdate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fillfeed",
			Subsystem: "poll",
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last batch that advanced the cursor",
		}),
	}
}
