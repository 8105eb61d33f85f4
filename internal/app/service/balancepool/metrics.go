package balancepool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of a Pool.
type Metrics struct {
	// --- Liveness ---
	Generation    prometheus.Gauge
	Consumers     prometheus.Gauge
	ModuleErrors  *prometheus.CounterVec
	PersistErrors prometheus.Counter

	// --- Subscription lifecycle ---
	SubscriptionsOpened  prometheus.Counter
	SubscriptionsClosed  prometheus.Counter
	SubscriptionRestarts prometheus.Counter
	DiscardedUpdates     prometheus.Counter

	// --- Data ---
	RecordsTracked  prometheus.Gauge
	Publishes       prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics creates the pool metrics and registers them with reg, labeled by
// pool name. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, poolName string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"pool": poolName}
	return &Metrics{
		Generation: factory.NewGauge(prometheus.GaugeOpts{
			ConstLabels: labels,
			Name:        "balance_pool_generation",
			Help:        "The current subscription generation of the balance pool.",
		}),
		Consumers: factory.NewGauge(prometheus.GaugeOpts{
			ConstLabels: labels,
			Name:        "balance_pool_consumers",
			Help:        "The number of consumers currently subscribed to the pool.",
		}),
		ModuleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			ConstLabels: labels,
			Name:        "balance_pool_module_errors_total",
			Help:        "Errors reported by balance modules, labeled by module and kind (stale or unexpected).",
		}, []string{"module", "kind"}),
		PersistErrors: factory.NewCounter(prometheus.CounterOpts{
			ConstLabels: labels,
			Name:        "balance_pool_persist_errors_total",
			Help:        "Failed attempts to snapshot or hydrate the durable balance cache.",
		}),
		SubscriptionsOpened: factory.NewCounter(prometheus.CounterOpts{
			ConstLabels: labels,
			Name:        "balance_pool_subscriptions_opened_total",
			Help:        "Number of times module subscriptions were opened.",
		}),
		SubscriptionsClosed: factory.NewCounter(prometheus.CounterOpts{
			ConstLabels: labels,
			Name:        "balance_pool_subscriptions_closed_total",
			Help:        "Number of times module subscriptions were closed.",
		}),
		SubscriptionRestarts: factory.NewCounter(prometheus.CounterOpts{
			ConstLabels: labels,
			Name:        "balance_pool_subscription_restarts_total",
			Help:        "Number of restarts caused by a changed watch list.",
		}),
		DiscardedUpdates: factory.NewCounter(prometheus.CounterOpts{
			ConstLabels: labels,
			Name:        "balance_pool_discarded_updates_total",
			Help:        "Module updates dropped because they belonged to a superseded generation.",
		}),
		RecordsTracked: factory.NewGauge(prometheus.GaugeOpts{
			ConstLabels: labels,
			Name:        "balance_pool_records",
			Help:        "Number of balance records held in memory.",
		}),
		Publishes: factory.NewCounter(prometheus.CounterOpts{
			ConstLabels: labels,
			Name:        "balance_pool_publishes_total",
			Help:        "Number of debounced publishes to consumers.",
		}),
		PersistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			ConstLabels: labels,
			Name:        "balance_pool_persist_duration_seconds",
			Help:        "Time taken to snapshot the balance map to durable storage.",
			Buckets:     prometheus.DefBuckets,
		}),
	}
}
