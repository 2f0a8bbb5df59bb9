package runner

import "github.com/prometheus/client_golang/prometheus"

var (
	statementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakerun_statements_total",
			Help: "Total number of executed statements by mode and final status.",
		},
		[]string{"mode", "status"},
	)
	statementDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lakerun_statement_duration_seconds",
			Help:    "Wall clock duration of statement executions from submit to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"mode"},
	)
	pollCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakerun_poll_cycles_total",
			Help: "Total number of status poll requests issued against the backend.",
		},
	)
	timeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakerun_timeouts_total",
			Help: "Total number of statements abandoned after the poll deadline expired.",
		},
	)
	partitionRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakerun_partition_repairs_total",
			Help: "Total number of partition repair statements by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		statementsTotal,
		statementDurationSeconds,
		pollCyclesTotal,
		timeoutsTotal,
		partitionRepairsTotal,
	)
}
