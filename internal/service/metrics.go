package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcomes recorded in storefront_checkouts_total.
const (
	outcomeCreated    = "created"
	outcomeReplayed   = "replayed"
	outcomeEmptyCart  = "empty_cart"
	outcomeFailed     = "failed"
	outcomeIDConflict = "id_collision"
)

var (
	checkoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})

	orderValueRupees = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_order_value_rupees",
		Help:    "Grand total of recorded orders.",
		Buckets: []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000},
	})
)
