package main

import (
	"github.com/meikuraledutech/flow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	registry      *prometheus.Registry
	batchSaves    *prometheus.CounterVec
	batchDuration prometheus.Histogram
	batchChanges  *prometheus.CounterVec
	validations   *prometheus.CounterVec
}

// newMetrics registers the server's collectors on a fresh registry.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		batchSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_batch_saves_total",
			Help: "Batch saves by result",
		}, []string{"result"}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flow_batch_save_duration_seconds",
			Help:    "Duration of batch saves",
			Buckets: prometheus.DefBuckets,
		}),
		batchChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_batch_changes_total",
			Help: "Entities changed by batch saves",
		}, []string{"entity", "op"}),
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_connection_validations_total",
			Help: "Connection validations by outcome",
		}, []string{"allowed"}),
	}
}

func (m *metrics) observeStats(s flow.BatchStats) {
	m.batchChanges.WithLabelValues("node", "create").Add(float64(s.NodesCreated))
	m.batchChanges.WithLabelValues("node", "update").Add(float64(s.NodesUpdated))
	m.batchChanges.WithLabelValues("node", "delete").Add(float64(s.NodesDeleted))
	m.batchChanges.WithLabelValues("edge", "create").Add(float64(s.EdgesCreated))
	m.batchChanges.WithLabelValues("edge", "update").Add(float64(s.EdgesUpdated))
	m.batchChanges.WithLabelValues("edge", "delete").Add(float64(s.EdgesDeleted))
}
