package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes the engine's operational instruments.
type Metrics struct {
	ReceiptsSubmitted   *prometheus.CounterVec
	ReceiptsComputed    prometheus.Counter
	ReceiptGrandTotal   prometheus.Histogram
	RedemptionsApplied  prometheus.Counter
	RedemptionsRejected *prometheus.CounterVec
	PointsAccrued       prometheus.Counter
}

// New registers the engine metrics against the given registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ReceiptsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_receipts_submitted_total",
			Help: "Receipts submitted by settlement status.",
		}, []string{"payment_status"}),
		ReceiptsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tally_receipts_computed_total",
			Help: "Receipt compute (non-persisting) pipeline runs.",
		}),
		ReceiptGrandTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tally_receipt_grand_total_minor_units",
			Help:    "Grand total distribution of submitted receipts in minor units.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		}),
		RedemptionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tally_redemptions_applied_total",
			Help: "Loyalty redemptions committed with a receipt.",
		}),
		RedemptionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_redemptions_rejected_total",
			Help: "Loyalty redemptions rejected by low-cardinality reason.",
		}, []string{"reason"}),
		PointsAccrued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tally_loyalty_points_accrued_total",
			Help: "Loyalty points credited through receipt accrual.",
		}),
	}

	registerer.MustRegister(
		m.ReceiptsSubmitted,
		m.ReceiptsComputed,
		m.ReceiptGrandTotal,
		m.RedemptionsApplied,
		m.RedemptionsRejected,
		m.PointsAccrued,
	)
	return m
}

func provide() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

var Module = fx.Module("observability.metrics",
	fx.Provide(provide),
)
