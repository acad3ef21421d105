package push

import "github.com/prometheus/client_golang/prometheus"

var pushEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "titlelink",
	Subsystem: "push",
	Name:      "events_delivered_total",
	Help:      "Number of push events delivered to interceptor instances.",
}, []string{"type"})

func init() {
	prometheus.MustRegister(pushEventsTotal)
}
