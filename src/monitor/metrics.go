package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NewRegistry returns a registry carrying the Go and process collectors. Every
// metric registered through the returned registerer is labelled with role.
func NewRegistry(role string) (*prometheus.Registry, prometheus.Registerer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return reg, prometheus.WrapRegistererWith(prometheus.Labels{"role": role}, reg)
}

// Metrics are the gauges and counters updated on every monitor cycle.
type Metrics struct {
	BlockHeight    prometheus.Gauge
	BlockSize      prometheus.Gauge
	PoolSize       prometheus.Gauge
	Seed           prometheus.Gauge
	Cycles         prometheus.Counter
	PushFailures   prometheus.Counter
	ReportFailures prometheus.Counter
}

// NewMetrics registers the monitor metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "block_height",
			Help:      "Height of the last committed block",
		}),
		BlockSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "block_size",
			Help:      "Number of transactions in the last committed block",
		}),
		PoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "pool_size",
			Help:      "Number of unconfirmed transactions",
		}),
		Seed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "seed",
			Help:      "Current value of the deterministic seed",
		}),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Number of completed monitor cycles",
		}),
		PushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "push_failures_total",
			Help:      "Number of failed pushes to the collector",
		}),
		ReportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "report_failures_total",
			Help:      "Number of failed report file writes",
		}),
	}

	reg.MustRegister(
		m.BlockHeight,
		m.BlockSize,
		m.PoolSize,
		m.Seed,
		m.Cycles,
		m.PushFailures,
		m.ReportFailures,
	)

	return m
}

func (m *Metrics) observe(s *Status) {
	if s.LastBlock != nil {
		m.BlockHeight.Set(float64(s.LastBlock.Block.Data.Height))
		m.BlockSize.Set(float64(s.LastBlock.Block.Data.Size))
	}

	if s.UnconfirmedPool != nil {
		m.PoolSize.Set(float64(s.UnconfirmedPool.Size))
	} else {
		m.PoolSize.Set(0)
	}

	m.Seed.Set(float64(s.Seed))
}
