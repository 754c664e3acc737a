// SPDX-License-Identifier: MIT

// Package metrics exposes the URLens domain metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractionTotal counts provider metadata fetches by operation and result.
	ExtractionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "urlens_extraction_total",
		Help: "Total number of extraction provider calls by operation and result",
	}, []string{"operation", "result"})

	// ExtractionDuration tracks how long provider metadata fetches take.
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "urlens_extraction_duration_seconds",
		Help:    "Extraction provider call latency",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30},
	}, []string{"operation"})

	// ProxyRequestsTotal counts streaming relays by mode and result.
	ProxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "urlens_proxy_requests_total",
		Help: "Total number of proxied streams by mode and result",
	}, []string{"mode", "result"})

	// ProxyBytesTotal counts bytes relayed to callers.
	ProxyBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "urlens_proxy_bytes_total",
		Help: "Total bytes relayed to callers by mode",
	}, []string{"mode"})

	// MergeJobsTotal counts merge deliveries by result.
	MergeJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "urlens_merge_jobs_total",
		Help: "Total number of merge delivery jobs by result",
	}, []string{"result"})

	// MergeDuration tracks end-to-end merge delivery time.
	MergeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "urlens_merge_duration_seconds",
		Help:    "Merge delivery duration including executor and streaming",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160, 320},
	})

	// MergeActive tracks merge jobs currently holding an executor slot.
	MergeActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "urlens_merge_active",
		Help: "Merge delivery jobs currently running",
	})
)

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveExtraction records one provider call.
func ObserveExtraction(operation string, duration time.Duration, err error) {
	ExtractionTotal.WithLabelValues(operation, result(err)).Inc()
	ExtractionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncProxyRequest records one streaming relay outcome.
func IncProxyRequest(mode string, err error) {
	ProxyRequestsTotal.WithLabelValues(mode, result(err)).Inc()
}

// AddProxyBytes records bytes relayed to a caller.
func AddProxyBytes(mode string, n int64) {
	if n > 0 {
		ProxyBytesTotal.WithLabelValues(mode).Add(float64(n))
	}
}

// ObserveMerge records one merge delivery.
func ObserveMerge(duration time.Duration, err error) {
	MergeJobsTotal.WithLabelValues(result(err)).Inc()
	MergeDuration.Observe(duration.Seconds())
}
