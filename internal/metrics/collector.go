package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// JobStats provides the collector access to job manager state.
type JobStats interface {
	ActiveJobs() int
	QueuedJobs() int
}

// ModelStats reports how many models are ready for use.
type ModelStats interface {
	ReadyModels() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool   *pgxpool.Pool
	jobs   JobStats
	models ModelStats

	activeJobs      *prometheus.Desc
	queuedJobs      *prometheus.Desc
	readyModels     *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// Any argument may be nil; the corresponding gauges then report 0.
func NewCollector(pool *pgxpool.Pool, jobs JobStats, models ModelStats) *Collector {
	return &Collector{
		pool:   pool,
		jobs:   jobs,
		models: models,
		activeJobs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_active"),
			"Transcription jobs currently processing.",
			nil, nil,
		),
		queuedJobs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_queued"),
			"Transcription jobs waiting for a worker.",
			nil, nil,
		),
		readyModels: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "models_ready"),
			"Engine models marked ready in the readiness cache.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total media library database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Media library database pool connections currently in use.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeJobs
	ch <- c.queuedJobs
	ch <- c.readyModels
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var active, queued, ready float64
	if c.jobs != nil {
		active = float64(c.jobs.ActiveJobs())
		queued = float64(c.jobs.QueuedJobs())
	}
	if c.models != nil {
		ready = float64(c.models.ReadyModels())
	}
	ch <- prometheus.MustNewConstMetric(c.activeJobs, prometheus.GaugeValue, active)
	ch <- prometheus.MustNewConstMetric(c.queuedJobs, prometheus.GaugeValue, queued)
	ch <- prometheus.MustNewConstMetric(c.readyModels, prometheus.GaugeValue, ready)

	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
	}
}
