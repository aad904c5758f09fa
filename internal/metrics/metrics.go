// Package metrics exposes process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_analyses_total",
			Help: "Total number of file analyses by outcome",
		},
		[]string{"status"},
	)

	LinesScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_lines_scanned_total",
			Help: "Total number of lines fed to a scanner",
		},
		[]string{"log_type"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sleuth_analysis_duration_seconds",
			Help:    "Time taken to analyse one file",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"log_type"},
	)

	InsightsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_insights_generated_total",
			Help: "Total number of insights generated",
		},
		[]string{"category", "severity"},
	)

	AlertsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_alerts_dropped_total",
			Help: "Alerts discarded after the per-file alert cap was reached",
		},
	)

	PatternTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_pattern_timeouts_total",
			Help: "Custom entity pattern evaluations abandoned on timeout",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_cache_hits_total",
			Help: "Analyses served from the result cache",
		},
	)

	ReportsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_reports_published_total",
			Help: "Reports broadcast to live subscribers",
		},
	)

	ReportsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_reports_dropped_total",
			Help: "Reports not delivered to a slow subscriber",
		},
	)
)
