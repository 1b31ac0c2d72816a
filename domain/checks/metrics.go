package checks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "release_qa_runs_total",
		Help: "Total number of completed check runs",
	})

	CheckDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "release_qa_check_duration_seconds",
		Help:    "Wall time of a single check",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"check"})

	CheckAnomalies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "release_qa_check_anomalies",
		Help: "Anomalies reported by the latest execution of a check",
	}, []string{"check"})

	CheckFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "release_qa_check_failures_total",
		Help: "Checks that failed and were skipped",
	}, []string{"check"})

	QueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "release_qa_query_failures_total",
		Help: "Relation queries that failed and were skipped inside a check",
	}, []string{"check"})
)
