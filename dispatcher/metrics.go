/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-msgthrottle/internal/libinfo"
)

// Dispatch modes.
const (
	DispatchModeImmediate = "immediate"
	DispatchModeDrained   = "drained"
)

// Lanes of the throttle backlog.
const (
	LaneHigh  = "high"
	LaneOther = "other"
)

const (
	metricsLabelMode = "mode"
	metricsLabelLane = "lane"
)

// DefaultDelayBuckets are the buckets of the throttle delay histogram (in seconds).
var DefaultDelayBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// MetricsCollector is an interface for collecting dispatcher metrics.
type MetricsCollector interface {
	// IncSubmitted increments the number of envelopes taken from the inbound queue.
	IncSubmitted()

	// AddDispatched increments the number of messages handed to the sink in the given mode.
	AddDispatched(mode string, n int)

	// IncBuffered increments the number of messages put into the given backlog lane.
	IncBuffered(lane string)

	// IncDuplicated increments the number of dropped duplicate envelopes.
	IncDuplicated()

	// SetBacklog sets the current backlog size per lane.
	SetBacklog(high, other int)

	// ObserveThrottleDelay records the delay reported for a throttled message.
	ObserveThrottleDelay(delay time.Duration)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	// The library version label is always added.
	ConstLabels prometheus.Labels

	// DelayBuckets are the histogram buckets for throttle delays. DefaultDelayBuckets are used if empty.
	DelayBuckets []float64
}

// PrometheusMetrics represents a collector of Prometheus metrics for Dispatcher.
type PrometheusMetrics struct {
	SubmittedTotal  prometheus.Counter
	DispatchedTotal *prometheus.CounterVec
	BufferedTotal   *prometheus.CounterVec
	DuplicatedTotal prometheus.Counter
	BacklogSize     *prometheus.GaugeVec
	ThrottleDelay   prometheus.Histogram
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	delayBuckets := opts.DelayBuckets
	if len(delayBuckets) == 0 {
		delayBuckets = DefaultDelayBuckets
	}
	constLabels := libinfo.AddPrometheusLibVersionLabel(opts.ConstLabels)
	return &PrometheusMetrics{
		SubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "messages_submitted_total",
			Help:        "Number of messages submitted to the throttle.",
			ConstLabels: constLabels,
		}),
		DispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "messages_dispatched_total",
			Help:        "Number of messages handed to the sink, immediately or after buffering.",
			ConstLabels: constLabels,
		}, []string{metricsLabelMode}),
		BufferedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "messages_buffered_total",
			Help:        "Number of throttled messages put into the backlog.",
			ConstLabels: constLabels,
		}, []string{metricsLabelLane}),
		DuplicatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "messages_duplicated_total",
			Help:        "Number of dropped messages with an already seen ID.",
			ConstLabels: constLabels,
		}),
		BacklogSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "backlog_size",
			Help:        "Current number of buffered messages.",
			ConstLabels: constLabels,
		}, []string{metricsLabelLane}),
		ThrottleDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "throttle_delay_seconds",
			Help:        "Delays reported by the throttle for buffered messages.",
			Buckets:     delayBuckets,
			ConstLabels: constLabels,
		}),
	}
}

func (pm *PrometheusMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pm.SubmittedTotal, pm.DispatchedTotal, pm.BufferedTotal, pm.DuplicatedTotal, pm.BacklogSize, pm.ThrottleDelay,
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.collectors()...)
}

// MustRegisterIn registers metrics in the given registerer and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegisterIn(reg prometheus.Registerer) {
	reg.MustRegister(pm.collectors()...)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	for _, c := range pm.collectors() {
		prometheus.Unregister(c)
	}
}

// IncSubmitted increments the number of submitted messages.
func (pm *PrometheusMetrics) IncSubmitted() {
	pm.SubmittedTotal.Inc()
}

// AddDispatched increments the number of dispatched messages.
func (pm *PrometheusMetrics) AddDispatched(mode string, n int) {
	pm.DispatchedTotal.WithLabelValues(mode).Add(float64(n))
}

// IncBuffered increments the number of buffered messages.
func (pm *PrometheusMetrics) IncBuffered(lane string) {
	pm.BufferedTotal.WithLabelValues(lane).Inc()
}

// IncDuplicated increments the number of duplicated messages.
func (pm *PrometheusMetrics) IncDuplicated() {
	pm.DuplicatedTotal.Inc()
}

// SetBacklog sets the backlog size per lane.
func (pm *PrometheusMetrics) SetBacklog(high, other int) {
	pm.BacklogSize.WithLabelValues(LaneHigh).Set(float64(high))
	pm.BacklogSize.WithLabelValues(LaneOther).Set(float64(other))
}

// ObserveThrottleDelay records the throttle delay.
func (pm *PrometheusMetrics) ObserveThrottleDelay(delay time.Duration) {
	pm.ThrottleDelay.Observe(delay.Seconds())
}

// DisabledMetrics is a MetricsCollector that collects nothing.
type DisabledMetrics struct{}

var _ MetricsCollector = DisabledMetrics{}

// IncSubmitted does nothing.
func (DisabledMetrics) IncSubmitted() {}

// AddDispatched does nothing.
func (DisabledMetrics) AddDispatched(string, int) {}

// IncBuffered does nothing.
func (DisabledMetrics) IncBuffered(string) {}

// IncDuplicated does nothing.
func (DisabledMetrics) IncDuplicated() {}

// SetBacklog does nothing.
func (DisabledMetrics) SetBacklog(int, int) {}

// ObserveThrottleDelay does nothing.
func (DisabledMetrics) ObserveThrottleDelay(time.Duration) {}
