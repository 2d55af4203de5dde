// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Set bundles the engine's counters on a private registry, so each engine
// instance (and each test) gets isolated metrics.
type Set struct {
	registry *prometheus.Registry

	remediations        *prometheus.CounterVec
	resolutionFallbacks *prometheus.CounterVec
	patchRetries        prometheus.Counter
	authFailures        prometheus.Counter
}

// NewSet creates and registers the engine's counters.
func NewSet() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),
		remediations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selfheal_remediations_total",
			Help: "Remediation requests by action and outcome.",
		}, []string{"action", "outcome"}),
		resolutionFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selfheal_resolution_fallbacks_total",
			Help: "Ownership walks that fell back to the caller-supplied name, by reason.",
		}, []string{"reason"}),
		patchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "selfheal_patch_retries_total",
			Help: "Patch rounds retried after a write conflict or transient error.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "selfheal_auth_failures_total",
			Help: "Requests rejected for a missing or mismatched bearer token.",
		}),
	}
	s.registry.MustRegister(s.remediations, s.resolutionFallbacks, s.patchRetries, s.authFailures)
	return s
}

// IncRemediation counts one finished remediation.
func (s *Set) IncRemediation(action, outcome string) {
	s.remediations.WithLabelValues(action, outcome).Inc()
}

// IncResolutionFallback counts one ownership walk that kept the
// caller-supplied name.
func (s *Set) IncResolutionFallback(reason string) {
	s.resolutionFallbacks.WithLabelValues(reason).Inc()
}

// IncPatchRetry counts one retried patch round.
func (s *Set) IncPatchRetry() {
	s.patchRetries.Inc()
}

// IncAuthFailure counts one rejected request.
func (s *Set) IncAuthFailure() {
	s.authFailures.Inc()
}

// Handler returns the scrape endpoint for the set's registry.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// RemediationCount gets the current value of one (action, outcome) counter.
func (s *Set) RemediationCount(action, outcome string) float64 {
	metric := &dto.Metric{}
	_ = s.remediations.WithLabelValues(action, outcome).Write(metric)
	return *metric.Counter.Value
}

// ResolutionFallbackCount gets the current value of one reason counter.
func (s *Set) ResolutionFallbackCount(reason string) float64 {
	metric := &dto.Metric{}
	_ = s.resolutionFallbacks.WithLabelValues(reason).Write(metric)
	return *metric.Counter.Value
}

// PatchRetryCount gets the current retry counter value.
func (s *Set) PatchRetryCount() float64 {
	metric := &dto.Metric{}
	_ = s.patchRetries.Write(metric)
	return *metric.Counter.Value
}

// AuthFailureCount gets the current auth failure counter value.
func (s *Set) AuthFailureCount() float64 {
	metric := &dto.Metric{}
	_ = s.authFailures.Write(metric)
	return *metric.Counter.Value
}
