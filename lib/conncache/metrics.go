package conncache

import (
	"github.com/VictoriaMetrics/metrics"
	"io"
)

// disconnect reasons, used as metric label and in log messages
const (
	reasonInvalidated = "invalidated"
	reasonSuspect     = "suspect"
	reasonLost        = "lost"
	reasonXactEnd     = "xact_end"
	reasonClose       = "close"
)

// cacheMetrics holds the counters of one cache. Every cache has its own set, so
// several caches in one process do not share counters.
type cacheMetrics struct {
	set *metrics.Set

	connects      *metrics.Counter
	connectErrors *metrics.Counter
	hits          *metrics.Counter
	invalidations *metrics.Counter
	fatalErrors   *metrics.Counter
	disconnects   map[string]*metrics.Counter
}

// newCacheMetrics creates the metric set, pending reports the number of queued
// invalidation notifications
func newCacheMetrics(pending func() int) *cacheMetrics {
	set := metrics.NewSet()
	m := &cacheMetrics{
		set:           set,
		connects:      set.NewCounter("chbridge_conncache_connects_total"),
		connectErrors: set.NewCounter("chbridge_conncache_connect_errors_total"),
		hits:          set.NewCounter("chbridge_conncache_hits_total"),
		invalidations: set.NewCounter("chbridge_conncache_invalidations_total"),
		fatalErrors:   set.NewCounter("chbridge_conncache_connection_lost_total"),
		disconnects:   make(map[string]*metrics.Counter),
	}
	set.NewGauge("chbridge_conncache_pending_invalidations", func() float64 {
		return float64(pending())
	})
	for _, reason := range []string{reasonInvalidated, reasonSuspect, reasonLost, reasonXactEnd, reasonClose} {
		m.disconnects[reason] = set.NewCounter(`chbridge_conncache_disconnects_total{reason="` + reason + `"}`)
	}
	return m
}

// WriteMetrics writes the counters of the cache in Prometheus text format to w
func (c *Cache) WriteMetrics(w io.Writer) {
	c.metrics.set.WritePrometheus(w)
}
