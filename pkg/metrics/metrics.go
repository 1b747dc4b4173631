// Package metrics exports form pipeline counters to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-formflow/pkg/upload"
)

// Option customises the collector.
type Option func(*config)

type config struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer
}

// WithNamespace sets the metric namespace. Defaults to "formflow".
func WithNamespace(namespace string) Option {
	return func(c *config) { c.namespace = namespace }
}

// WithSubsystem sets the metric subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *config) { c.subsystem = subsystem }
}

// WithRegistry registers the counters on registry instead of the default
// registerer.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *config) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// Collector counts renders, submissions, validation failures, sink failures
// and upload rejections.
type Collector struct {
	rendered   *prometheus.CounterVec
	submitted  *prometheus.CounterVec
	validation *prometheus.CounterVec
	sinkFailed *prometheus.CounterVec
	rejected   *prometheus.CounterVec
}

// New registers the counters.
func New(opts ...Option) *Collector {
	cfg := config{namespace: "formflow", registry: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	factory := promauto.With(cfg.registry)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Collector{
		rendered:   counter("forms_rendered_total", "Forms rendered, by form and error state.", "form", "has_error"),
		submitted:  counter("submissions_total", "Processed submissions, by form and sink outcome.", "form", "failed"),
		validation: counter("validation_failures_total", "Fields that failed validation.", "form", "field"),
		sinkFailed: counter("sink_failures_total", "Submission sinks that returned an error.", "form", "sink"),
		rejected:   counter("upload_rejections_total", "Posted files that were refused.", "field", "kind"),
	}
}

// FormRendered counts a rendered form.
func (c *Collector) FormRendered(form string, hasError bool) {
	c.rendered.WithLabelValues(form, strconv.FormatBool(hasError)).Inc()
}

// FormSubmitted counts a processed submission.
func (c *Collector) FormSubmitted(form string, failed bool) {
	c.submitted.WithLabelValues(form, strconv.FormatBool(failed)).Inc()
}

// ValidationFailed counts a field error.
func (c *Collector) ValidationFailed(form, field string) {
	c.validation.WithLabelValues(form, field).Inc()
}

// SinkFailed counts a failed sink. Its signature matches
// submission.SinkFailureObserver.
func (c *Collector) SinkFailed(form, sink string, _ error) {
	c.sinkFailed.WithLabelValues(form, sink).Inc()
}

// UploadRejected counts a refused file. Its signature matches
// upload.RejectObserver.
func (c *Collector) UploadRejected(field string, kind upload.RejectKind) {
	c.rejected.WithLabelValues(field, string(kind)).Inc()
}
