// Package metrics exposes the scheduler's and queueing layer's own
// bookkeeping as Prometheus collectors: task cycle counts the scheduler
// already keeps, RX/TX/drop counters the NIC driver already produces, and
// MPSC/GroupBy queue depth gauges. None of this is an external
// telemetry/measurement harness; it is the framework exporting counters
// it maintains regardless of whether anything scrapes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the dataplane core registers. A nil
// *prometheus.Registry passed to New disables export: the collectors still
// exist and still get updated, but nothing exposes them over /metrics,
// matching the "opt-in, pay nothing extra by default" design.
type Metrics struct {
	TaskCycles   *prometheus.CounterVec
	TaskRuns     *prometheus.CounterVec
	Received     *prometheus.CounterVec
	Sent         *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	QueueDepth   *prometheus.GaugeVec
	QueueDropped *prometheus.CounterVec
}

// New constructs the collector set. Pass reg=nil to keep the collectors
// unregistered (they still work, just aren't scraped by anything).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TaskCycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowcore_task_cycle_seconds_total",
			Help: "Cumulative wall-clock time spent executing a scheduled task.",
		}, []string{"scheduler", "task"}),
		TaskRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowcore_task_runs_total",
			Help: "Number of times a scheduled task's Execute was called.",
		}, []string{"scheduler", "task"}),
		Received: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowcore_packets_received_total",
			Help: "Packets pulled from a NIC driver's RX queue.",
		}, []string{"port"}),
		Sent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowcore_packets_sent_total",
			Help: "Packets handed to a NIC driver's TX queue.",
		}, []string{"port"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowcore_packets_dropped_total",
			Help: "Packets freed by a pipeline operator instead of forwarded.",
		}, []string{"stage", "reason"}),
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flowcore_queue_depth",
			Help: "Current occupancy of an MPSC or GroupBy group queue.",
		}, []string{"queue"}),
		QueueDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowcore_queue_dropped_total",
			Help: "Packets freed because a GroupBy group's queue was full.",
		}, []string{"queue"}),
	}
}
