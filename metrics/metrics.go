// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	votes             *prometheus.CounterVec
	voteRollbacks     prometheus.Counter
	cacheInvalidation prometheus.Counter
	upstreamRequests  *prometheus.CounterVec
	tokenRefreshes    *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadline",
			Name:      "votes_total",
			Help:      "Optimistic votes applied, by transition.",
		}, []string{"action"}),
		voteRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadline",
			Name:      "vote_rollbacks_total",
			Help:      "Optimistic votes undone after the upstream rejected them.",
		}),
		cacheInvalidation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadline",
			Name:      "post_cache_invalidations_total",
			Help:      "Full post cache clears caused by post creation.",
		}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadline",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the REST backend.",
		}, []string{"method", "status"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadline",
			Name:      "token_refreshes_total",
			Help:      "Access token refresh attempts.",
		}, []string{"result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "threadline",
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
	}
	reg.MustRegister(
		m.votes,
		m.voteRollbacks,
		m.cacheInvalidation,
		m.upstreamRequests,
		m.tokenRefreshes,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) VoteApplied(action string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(action).Inc()
}

func (m *Metrics) VoteRolledBack() {
	if m == nil {
		return
	}
	m.voteRollbacks.Inc()
}

func (m *Metrics) CacheInvalidated() {
	if m == nil {
		return
	}
	m.cacheInvalidation.Inc()
}

// UpstreamRequest records one upstream call. status is 0 for transport errors.
func (m *Metrics) UpstreamRequest(method string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(method, label).Inc()
}

func (m *Metrics) TokenRefresh(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.tokenRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
