package rdfimport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the import pipeline. A nil
// *Metrics records nothing.
type Metrics struct {
	triplesParsed prometheus.Counter
	triplesMapped prometheus.Counter
	// triplesDropped counts mapped statements later rejected by strict
	// type checking.
	triplesDropped prometheus.Counter
	flushes        *prometheus.CounterVec // status: ok, failed
	flushDuration  prometheus.Histogram
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	imports        *prometheus.CounterVec // status: OK, KO
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests use.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		triplesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "n10s",
			Subsystem: "import",
			Name:      "triples_parsed_total",
			Help:      "Total number of statements read from RDF input",
		}),
		triplesMapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "n10s",
			Subsystem: "import",
			Name:      "triples_mapped_total",
			Help:      "Total number of statements mapped onto the graph",
		}),
		triplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "n10s",
			Subsystem: "import",
			Name:      "triples_dropped_total",
			Help:      "Total number of mapped statements dropped by strict type checking",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "n10s",
			Subsystem: "import",
			Name:      "flushes_total",
			Help:      "Total number of batch flushes by outcome",
		}, []string{"status"}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "n10s",
			Subsystem: "import",
			Name:      "flush_duration_seconds",
			Help:      "Batch flush duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "n10s",
			Subsystem: "import",
			Name:      "node_cache_hits_total",
			Help:      "Node identity cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "n10s",
			Subsystem: "import",
			Name:      "node_cache_misses_total",
			Help:      "Node identity cache misses",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "n10s",
			Subsystem: "import",
			Name:      "imports_total",
			Help:      "Total number of import runs by terminal status",
		}, []string{"status"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.triplesParsed, m.triplesMapped, m.triplesDropped, m.flushes, m.flushDuration,
		m.cacheHits, m.cacheMisses, m.imports,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordParsed() {
	if m == nil {
		return
	}
	m.triplesParsed.Inc()
}

func (m *Metrics) recordMapped() {
	if m == nil {
		return
	}
	m.triplesMapped.Inc()
}

func (m *Metrics) recordDropped(n int) {
	if m == nil {
		return
	}
	m.triplesDropped.Add(float64(n))
}

func (m *Metrics) recordFlush(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.flushes.WithLabelValues(status).Inc()
	m.flushDuration.Observe(d.Seconds())
}

func (m *Metrics) recordImport(status Status) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(string(status)).Inc()
}

// cacheCounters returns the hit and miss counters for cache.NodeCache.
func (m *Metrics) cacheCounters() (hits, misses prometheus.Counter) {
	if m == nil {
		return nil, nil
	}
	return m.cacheHits, m.cacheMisses
}
