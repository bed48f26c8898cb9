package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docuflow_worker_runs_total",
		Help: "Processing runs by final status",
	}, []string{"status"})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docuflow_worker_steps_total",
		Help: "Executed workflow steps by status",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docuflow_worker_run_duration_seconds",
		Help:    "Duration of processing runs",
		Buckets: prometheus.DefBuckets,
	})
)
