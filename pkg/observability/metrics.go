package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the graph sync engine and the
// remote data source clients
type Metrics struct {
	RemoteFetches     *prometheus.CounterVec
	RemoteFetchErrors *prometheus.CounterVec
	RemoteLatency     *prometheus.HistogramVec
	NodesMerged       prometheus.Counter
	EdgesMerged       prometheus.Counter
	DedupHits         prometheus.Counter
	PagesCached       prometheus.Counter
	FocusResolutions  *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
}

// NewMetrics creates and registers all metrics on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RemoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "versegraph",
			Name:      "remote_fetches_total",
			Help:      "Remote graph data source calls by operation.",
		}, []string{"operation"}),
		RemoteFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "versegraph",
			Name:      "remote_fetch_errors_total",
			Help:      "Remote graph data source failures by operation and kind.",
		}, []string{"operation", "kind"}),
		RemoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "versegraph",
			Name:      "remote_fetch_duration_seconds",
			Help:      "Remote graph data source call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		NodesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "versegraph",
			Name:      "nodes_merged_total",
			Help:      "Nodes inserted into canonical state through the dedup gate.",
		}),
		EdgesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "versegraph",
			Name:      "edges_merged_total",
			Help:      "Edges inserted into canonical state through the dedup gate.",
		}),
		DedupHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "versegraph",
			Name:      "dedup_hits_total",
			Help:      "Fetch results dropped because the node or edge already existed.",
		}),
		PagesCached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "versegraph",
			Name:      "neighborhood_pages_cached_total",
			Help:      "Neighborhood loads answered from the page memo without a fetch.",
		}),
		FocusResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "versegraph",
			Name:      "focus_resolutions_total",
			Help:      "focusOn outcomes by resolution step.",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "versegraph",
			Name:      "active_sessions",
			Help:      "Graph sessions currently resident in memory.",
		}),
	}

	reg.MustRegister(
		m.RemoteFetches,
		m.RemoteFetchErrors,
		m.RemoteLatency,
		m.NodesMerged,
		m.EdgesMerged,
		m.DedupHits,
		m.PagesCached,
		m.FocusResolutions,
		m.ActiveSessions,
	)

	return m
}

// NewNopMetrics returns metrics backed by a throwaway registry, for tests
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
