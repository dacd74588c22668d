package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	firesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsebot_scheduler_fires_total",
			Help: "Timer fires by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	deliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsebot_scheduler_delivery_failures_total",
			Help: "Failed scheduled deliveries by reason",
		},
		[]string{"reason"},
	)

	fireDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulsebot_scheduler_fire_duration_seconds",
			Help:    "Time from fire start to delivery outcome",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"category"},
	)

	timersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulsebot_scheduler_timers_active",
			Help: "Armed timers",
		},
	)

	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsebot_scheduler_reconcile_total",
			Help: "Reconcile runs by result",
		},
		[]string{"result"},
	)
)
