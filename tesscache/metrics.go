package tesscache

import "github.com/prometheus/client_golang/prometheus"

const (
	levelL1 = "l1"
	levelL2 = "l2"
)

type metrics struct {
	accesses  prometheus.Counter
	hits      *prometheus.CounterVec
	misses    prometheus.Counter
	evictions *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		accesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accel",
			Subsystem: "tess_cache",
			Name:      "accesses_total",
			Help:      "Number of patch subtree lookups.",
		}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accel",
			Subsystem: "tess_cache",
			Name:      "hits_total",
			Help:      "Number of lookups served by a cache level.",
		}, []string{"level"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accel",
			Subsystem: "tess_cache",
			Name:      "misses_total",
			Help:      "Number of lookups that required tessellating a patch.",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accel",
			Subsystem: "tess_cache",
			Name:      "evictions_total",
			Help:      "Number of valid entries replaced by another patch.",
		}, []string{"level"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.accesses, m.hits, m.misses, m.evictions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
