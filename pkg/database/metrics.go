package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStater is implemented by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// PoolStatsCollector exposes pgxpool statistics as Prometheus metrics.
type PoolStatsCollector struct {
	pool  PoolStater
	store string

	acquiredConns   *prometheus.Desc
	idleConns       *prometheus.Desc
	totalConns      *prometheus.Desc
	maxConns        *prometheus.Desc
	acquireCount    *prometheus.Desc
	acquireDuration *prometheus.Desc
	emptyAcquires   *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for pool labeled with store.
func NewPoolStatsCollector(pool PoolStater, store string) *PoolStatsCollector {
	labels := []string{"store"}
	return &PoolStatsCollector{
		pool:  pool,
		store: store,
		acquiredConns: prometheus.NewDesc("db_pool_acquired_connections",
			"Number of currently acquired connections", labels, nil),
		idleConns: prometheus.NewDesc("db_pool_idle_connections",
			"Number of currently idle connections", labels, nil),
		totalConns: prometheus.NewDesc("db_pool_total_connections",
			"Total number of connections in the pool", labels, nil),
		maxConns: prometheus.NewDesc("db_pool_max_connections",
			"Maximum number of connections allowed", labels, nil),
		acquireCount: prometheus.NewDesc("db_pool_acquire_count_total",
			"Total number of successful connection acquisitions", labels, nil),
		acquireDuration: prometheus.NewDesc("db_pool_acquire_duration_seconds_total",
			"Total time spent acquiring connections", labels, nil),
		emptyAcquires: prometheus.NewDesc("db_pool_empty_acquire_count_total",
			"Acquisitions that had to wait for a connection", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.acquireDuration
	ch <- c.emptyAcquires
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()

	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()), c.store)
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stat.IdleConns()), c.store)
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stat.TotalConns()), c.store)
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stat.MaxConns()), c.store)
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stat.AcquireCount()), c.store)
	ch <- prometheus.MustNewConstMetric(c.acquireDuration, prometheus.CounterValue, stat.AcquireDuration().Seconds(), c.store)
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(stat.EmptyAcquireCount()), c.store)
}

// RegisterPoolMetrics registers a collector for pool on reg. Registering the
// same store twice is an error.
func RegisterPoolMetrics(reg prometheus.Registerer, pool PoolStater, store string) error {
	return reg.Register(NewPoolStatsCollector(pool, store))
}
