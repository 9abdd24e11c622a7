// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package metrics exposes prometheus.Collector adapters over the
// statistics snapshots pool.Pool, bus.Bus, and deadlock.Engine publish.
// Presentation only: nothing in the core's pass/fail behavior depends on
// whether these are scraped.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coreward/halcore/pkg/bus"
	"github.com/coreward/halcore/pkg/deadlock"
	"github.com/coreward/halcore/pkg/pool"
)

// PoolCollector adapts a named pool.Pool's Stats into Prometheus gauges.
type PoolCollector struct {
	name    string
	statsFn func() pool.Stats
	descs   map[string]*prometheus.Desc
}

// NewPoolCollector builds a collector for the pool identified by name
// (e.g. "small_objects"), reading its current Stats from statsFn on every
// Collect.
func NewPoolCollector(name string, statsFn func() pool.Stats) *PoolCollector {
	labels := []string{"pool"}
	mk := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc("hal_pool_"+metric, help, labels, nil)
	}
	return &PoolCollector{
		name:    name,
		statsFn: statsFn,
		descs: map[string]*prometheus.Desc{
			"total_bytes":      mk("total_bytes", "Total bytes backing the pool."),
			"used_bytes":       mk("used_bytes", "Bytes currently allocated from the pool."),
			"used_blocks":      mk("used_blocks", "Blocks currently allocated."),
			"peak_used_blocks": mk("peak_used_blocks", "Highest concurrent used-block count observed."),
			"alloc_total":      mk("alloc_total", "Cumulative Alloc() calls that returned a block."),
			"dealloc_total":    mk("dealloc_total", "Cumulative Dealloc() calls that freed a block."),
		},
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statsFn()
	ch <- prometheus.MustNewConstMetric(c.descs["total_bytes"], prometheus.GaugeValue, float64(s.TotalSize), c.name)
	ch <- prometheus.MustNewConstMetric(c.descs["used_bytes"], prometheus.GaugeValue, float64(s.UsedSize), c.name)
	ch <- prometheus.MustNewConstMetric(c.descs["used_blocks"], prometheus.GaugeValue, float64(s.UsedBlocks), c.name)
	ch <- prometheus.MustNewConstMetric(c.descs["peak_used_blocks"], prometheus.GaugeValue, float64(s.PeakUsedBlocks), c.name)
	ch <- prometheus.MustNewConstMetric(c.descs["alloc_total"], prometheus.CounterValue, float64(s.AllocCount), c.name)
	ch <- prometheus.MustNewConstMetric(c.descs["dealloc_total"], prometheus.CounterValue, float64(s.DeallocCount), c.name)
}

// BusCollector adapts bus.Bus's Stats into Prometheus metrics.
type BusCollector struct {
	statsFn func() bus.Stats
	descs   map[string]*prometheus.Desc
}

// NewBusCollector builds a collector reading the bus's current Stats from
// statsFn on every Collect.
func NewBusCollector(statsFn func() bus.Stats) *BusCollector {
	mk := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc("hal_bus_"+metric, help, nil, nil)
	}
	return &BusCollector{
		statsFn: statsFn,
		descs: map[string]*prometheus.Desc{
			"messages_sent_total":      mk("messages_sent_total", "Messages submitted to the bus, including dropped ones."),
			"messages_received_total":  mk("messages_received_total", "Messages dequeued and routed."),
			"messages_dropped_total":   mk("messages_dropped_total", "Messages rejected because the ring was full."),
			"messages_expired_total":   mk("messages_expired_total", "Messages dropped for exceeding their timeout before delivery."),
			"requests_sent_total":      mk("requests_sent_total", "send_request calls issued."),
			"requests_timeout_total":   mk("requests_timeout_total", "send_request calls that timed out."),
			"average_response_time_ms": mk("average_response_time_ms", "Mean request/response latency in milliseconds over all answered requests."),
		},
	}
}

func (c *BusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *BusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statsFn()
	ch <- prometheus.MustNewConstMetric(c.descs["messages_sent_total"], prometheus.CounterValue, float64(s.MessagesSent))
	ch <- prometheus.MustNewConstMetric(c.descs["messages_received_total"], prometheus.CounterValue, float64(s.MessagesReceived))
	ch <- prometheus.MustNewConstMetric(c.descs["messages_dropped_total"], prometheus.CounterValue, float64(s.MessagesDropped))
	ch <- prometheus.MustNewConstMetric(c.descs["messages_expired_total"], prometheus.CounterValue, float64(s.MessagesExpired))
	ch <- prometheus.MustNewConstMetric(c.descs["requests_sent_total"], prometheus.CounterValue, float64(s.RequestsSent))
	ch <- prometheus.MustNewConstMetric(c.descs["requests_timeout_total"], prometheus.CounterValue, float64(s.RequestsTimeout))
	ch <- prometheus.MustNewConstMetric(c.descs["average_response_time_ms"], prometheus.GaugeValue, s.AverageResponseTimeMs)
}

// DeadlockCollector adapts deadlock.Engine's Stats into Prometheus metrics.
type DeadlockCollector struct {
	statsFn func() deadlock.Stats
	descs   map[string]*prometheus.Desc
}

// NewDeadlockCollector builds a collector reading the engine's current
// Stats from statsFn on every Collect.
func NewDeadlockCollector(statsFn func() deadlock.Stats) *DeadlockCollector {
	mk := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc("hal_deadlock_"+metric, help, nil, nil)
	}
	return &DeadlockCollector{
		statsFn: statsFn,
		descs: map[string]*prometheus.Desc{
			"requests_denied_total":       mk("requests_denied_total", "Acquisitions denied for a static ordering violation."),
			"deadlocks_detected_total":    mk("deadlocks_detected_total", "Cycles found by DetectDeadlock."),
			"deadlocks_resolved_total":    mk("deadlocks_resolved_total", "Cycles broken by ResolveDeadlock."),
			"preemptions_performed_total": mk("preemptions_performed_total", "Resources force-released from a victim requester."),
		},
	}
}

func (c *DeadlockCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *DeadlockCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statsFn()
	ch <- prometheus.MustNewConstMetric(c.descs["requests_denied_total"], prometheus.CounterValue, float64(s.RequestsDenied))
	ch <- prometheus.MustNewConstMetric(c.descs["deadlocks_detected_total"], prometheus.CounterValue, float64(s.DeadlocksDetected))
	ch <- prometheus.MustNewConstMetric(c.descs["deadlocks_resolved_total"], prometheus.CounterValue, float64(s.DeadlocksResolved))
	ch <- prometheus.MustNewConstMetric(c.descs["preemptions_performed_total"], prometheus.CounterValue, float64(s.PreemptionsPerformed))
}
