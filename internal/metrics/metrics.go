// Package metrics exposes Prometheus collectors for qualification scoring and
// outreach cadence decisions.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "lead_qualification"

// Recorder is what the engine reports to. Implementations must be safe for
// concurrent use.
type Recorder interface {
	QualificationSubmitted(tier string, score int)
	CadenceDecision(category string, eligible bool, blockedBy []string)
	Overadmission(category string)
	StoreError(operation string)
	HTTPRequest(method, route string, status int, duration time.Duration)
}

// Metrics is the Prometheus-backed Recorder.
type Metrics struct {
	submissions    *prometheus.CounterVec
	scores         prometheus.Histogram
	decisions      *prometheus.CounterVec
	blocks         *prometheus.CounterVec
	overadmissions *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	gatherer       prometheus.Gatherer
}

// New registers the collectors on reg. Collectors already registered under the
// same name are reused so multiple modules can share one registry.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qualification_submissions_total",
			Help:      "Questionnaire submissions by resulting tier.",
		}, []string{"tier"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "qualification_score",
			Help:      "Distribution of computed qualification scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cadence_decisions_total",
			Help:      "Outreach eligibility decisions by category and outcome.",
		}, []string{"category", "eligible"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cadence_blocks_total",
			Help:      "Cadence rules that blocked an outreach attempt.",
		}, []string{"reason"}),
		overadmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cadence_overadmissions_total",
			Help:      "Attempts recorded after a lead's weekly cap was already reached.",
		}, []string{"category"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cadence_store_errors_total",
			Help:      "Storage failures surfaced as transient errors.",
		}, []string{"operation"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	var err error
	if m.submissions, err = register(reg, m.submissions); err != nil {
		return nil, err
	}
	if m.scores, err = register(reg, m.scores); err != nil {
		return nil, err
	}
	if m.decisions, err = register(reg, m.decisions); err != nil {
		return nil, err
	}
	if m.blocks, err = register(reg, m.blocks); err != nil {
		return nil, err
	}
	if m.overadmissions, err = register(reg, m.overadmissions); err != nil {
		return nil, err
	}
	if m.storeErrors, err = register(reg, m.storeErrors); err != nil {
		return nil, err
	}
	if m.httpDuration, err = register(reg, m.httpDuration); err != nil {
		return nil, err
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// Handler serves the registry the collectors were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) QualificationSubmitted(tier string, score int) {
	m.submissions.WithLabelValues(tier).Inc()
	m.scores.Observe(float64(score))
}

func (m *Metrics) CadenceDecision(category string, eligible bool, blockedBy []string) {
	m.decisions.WithLabelValues(category, strconv.FormatBool(eligible)).Inc()
	for _, reason := range blockedBy {
		m.blocks.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Overadmission(category string) {
	m.overadmissions.WithLabelValues(category).Inc()
}

func (m *Metrics) StoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Noop discards everything. Used when metrics are disabled and in tests.
type Noop struct{}

func (Noop) QualificationSubmitted(string, int)             {}
func (Noop) CadenceDecision(string, bool, []string)         {}
func (Noop) Overadmission(string)                           {}
func (Noop) StoreError(string)                              {}
func (Noop) HTTPRequest(string, string, int, time.Duration) {}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = Noop{}
)
