package metrics

import (
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the Prometheus collectors for the CodeMate client.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP client metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Token refresh metrics.
	RefreshesTotal *prometheus.CounterVec
	RefreshWaiters prometheus.Gauge

	// Auth metrics.
	AuthFailuresTotal prometheus.Counter

	// Team cache metrics.
	CacheLookupsTotal *prometheus.CounterVec
}

// New creates and registers all client metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codemate_http_requests_total",
			Help: "Total number of API requests.",
		}, []string{"method", "resource", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codemate_http_request_duration_seconds",
			Help:    "API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "resource"}),

		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codemate_token_refreshes_total",
			Help: "Total number of access-token refresh attempts by outcome.",
		}, []string{"outcome"}),

		RefreshWaiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codemate_refresh_waiters",
			Help: "Number of requests queued behind an in-flight token refresh.",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codemate_auth_failures_total",
			Help: "Total number of unrecoverable authentication failures.",
		}),

		CacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codemate_team_cache_lookups_total",
			Help: "Total number of team list cache lookups by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RefreshesTotal,
		m.RefreshWaiters,
		m.AuthFailuresTotal,
		m.CacheLookupsTotal,
	)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncRequests increments the request counter.
func (m *Metrics) IncRequests(method, resource string, statusCode int) {
	m.HTTPRequestsTotal.WithLabelValues(method, resource, fmt.Sprintf("%d", statusCode)).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(method, resource string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, resource).Observe(seconds)
}

// IncRefresh increments the refresh counter for the given outcome
// ("success" or "failure").
func (m *Metrics) IncRefresh(outcome string) {
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
}

// SetRefreshWaiters records the current refresh queue depth.
func (m *Metrics) SetRefreshWaiters(n int) {
	m.RefreshWaiters.Set(float64(n))
}

// IncAuthFailure increments the unrecoverable-auth-failure counter.
func (m *Metrics) IncAuthFailure() {
	m.AuthFailuresTotal.Inc()
}

// IncCacheLookup increments the team cache lookup counter for the given
// outcome ("hit", "miss" or "forced").
func (m *Metrics) IncCacheLookup(outcome string) {
	m.CacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// DumpText writes the non-zero codemate_* metrics to w in a compact
// human-readable form. Used by the CLI's debug mode on exit.
func (m *Metrics) DumpText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})

	for _, mf := range families {
		name := mf.GetName()
		if len(name) < 9 || name[:9] != "codemate_" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			value := metricValue(mf.GetType(), metric)
			if value == 0 {
				continue
			}
			fmt.Fprintf(w, "%s%s %g\n", name, labelString(metric), value)
		}
	}
	return nil
}

func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	default:
		return 0
	}
}

func labelString(m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return ""
	}
	s := "{"
	for i, lp := range m.GetLabel() {
		if i > 0 {
			s += ","
		}
		s += lp.GetName() + "=" + lp.GetValue()
	}
	return s + "}"
}
