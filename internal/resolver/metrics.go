package resolver

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "titlelink",
		Subsystem: "resolver",
		Name:      "cache_lookups_total",
		Help:      "Title cache lookups by result.",
	}, []string{"kind", "result"})

	sharedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "titlelink",
		Subsystem: "resolver",
		Name:      "shared_fetches_total",
		Help:      "Resolutions answered by a fetch already in flight for the same link.",
	}, []string{"kind"})

	fetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "titlelink",
		Subsystem: "resolver",
		Name:      "fetches_total",
		Help:      "Upstream fetches by tier and outcome.",
	}, []string{"kind", "tier", "outcome"})

	authWallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "titlelink",
		Subsystem: "resolver",
		Name:      "auth_walls_total",
		Help:      "Fetches that hit a sign-in wall.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(cacheLookupsTotal, sharedTotal, fetchesTotal, authWallsTotal)
}
