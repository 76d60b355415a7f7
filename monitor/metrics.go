package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Auctions
	OrdersSeen     prometheus.Counter
	OffersSent     *prometheus.CounterVec
	OrdersSkipped  *prometheus.CounterVec
	ActiveAuctions prometheus.Gauge
	Slot           prometheus.Gauge

	// Transactions
	Transactions  *prometheus.CounterVec
	SubmitLatency *prometheus.HistogramVec
	InFlight      prometheus.Gauge

	// Settlement
	SettlementsQueued prometheus.Gauge
	Settlements       *prometheus.CounterVec

	// Payers
	PayersEnabled prometheus.Gauge

	// Network
	NetworkLatency *prometheus.GaugeVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "fast_transfer_solver"
	}
	factory := promauto.With(reg)
	return &Metrics{
		OrdersSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "orders_seen_total",
			Help:      "Fast orders received",
		}),
		OffersSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "offers_sent_total",
			Help:      "Offers submitted by kind",
		}, []string{"kind"}),
		OrdersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "orders_skipped_total",
			Help:      "Orders not bid on by reason",
		}, []string{"reason"}),
		ActiveAuctions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "active",
			Help:      "Auctions currently tracked for execution",
		}),
		Slot: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "slot",
			Help:      "Latest slot seen",
		}),
		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transactions_total",
			Help:      "Submitted transactions by kind and status",
		}, []string{"kind", "status"}),
		SubmitLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "submit_latency_seconds",
			Help:      "Time from submit to node acceptance",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4},
		}, []string{"kind"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "in_flight",
			Help:      "Transactions sent and not yet answered",
		}),
		SettlementsQueued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "queued",
			Help:      "Finalized orders waiting for attestations",
		}),
		Settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "total",
			Help:      "Settlement outcomes",
		}, []string{"outcome"}),
		PayersEnabled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "payers",
			Name:      "enabled",
			Help:      "Payers with enough lamports and tokens",
		}),
		NetworkLatency: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "latency_seconds",
			Help:      "Round trip time to the rpc host",
		}, []string{"host"}),
	}
}
