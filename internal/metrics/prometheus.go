package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector 使用 Prometheus 实现 Collector
type PrometheusCollector struct {
	applications          *prometheus.CounterVec
	resolutions           *prometheus.CounterVec
	resolutionDuration    prometheus.Histogram
	selectedPerResolution prometheus.Histogram
	profileLookupFailures prometheus.Counter
	dispatchFailures      *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus 创建并注册所有指标，reg 为 nil 时使用 prometheus.DefaultRegisterer
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "shift_draw"
	}

	p := &PrometheusCollector{
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "applications_total",
			Help:      "Total shift applications by result.",
		}, []string{"result"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "resolutions_total",
			Help:      "Total shift resolution attempts by result.",
		}, []string{"result"}),
		resolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of shift resolution attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		selectedPerResolution: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "selected_per_resolution",
			Help:      "Number of users selected per successful resolution.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		profileLookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "profile",
			Name:      "lookup_failures_total",
			Help:      "Profile lookups that fell back to the placeholder name.",
		}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Notification dispatch failures by notification kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		p.applications,
		p.resolutions,
		p.resolutionDuration,
		p.selectedPerResolution,
		p.profileLookupFailures,
		p.dispatchFailures,
	)

	return p
}

func (p *PrometheusCollector) RecordApplication(result string) {
	p.applications.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) RecordResolution(result string, durationSeconds float64, selected int) {
	p.resolutions.WithLabelValues(result).Inc()
	p.resolutionDuration.Observe(durationSeconds)
	if result == ResultSuccess {
		p.selectedPerResolution.Observe(float64(selected))
	}
}

func (p *PrometheusCollector) RecordProfileLookupFailure() {
	p.profileLookupFailures.Inc()
}

func (p *PrometheusCollector) RecordDispatchFailure(kind string) {
	p.dispatchFailures.WithLabelValues(kind).Inc()
}
