package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradpipe_tasks_published_total",
			Help: "Total task messages published to the queue",
		},
		[]string{"kind"},
	)

	TasksConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradpipe_tasks_consumed_total",
			Help: "Total task messages consumed from the queue",
		},
		[]string{"kind"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradpipe_tasks_completed_total",
			Help: "Total task messages handled, by outcome",
		},
		[]string{"kind", "status"}, // status=acked/nacked/requeued
	)

	RowsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradpipe_rows_inserted_total",
			Help: "Total admission rows inserted, by origin",
		},
		[]string{"source"}, // scrape, seed
	)

	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gradpipe_pages_fetched_total",
			Help: "Total survey and result pages fetched",
		},
	)

	EntriesScraped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gradpipe_entries_scraped_total",
			Help: "Total entries extracted from survey pages",
		},
	)

	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradpipe_recovery_attempts_total",
			Help: "Edge case recovery attempts, by outcome",
		},
		[]string{"outcome"}, // recovered, failed
	)
)
