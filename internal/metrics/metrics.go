// Package metrics holds the Prometheus collectors for the processing
// pipeline and the progress fan-out. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "videoapi"

type Metrics struct {
	runs            *prometheus.CounterVec
	stageSeconds    *prometheus.HistogramVec
	dispositions    *prometheus.CounterVec
	eventsPublished prometheus.Counter
	eventsDropped   prometheus.Counter
	observers       prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_runs_total",
			Help:      "Processing runs by final result.",
		}, []string{"result"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_stage_seconds",
			Help:      "Time spent in each processing stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispositions_total",
			Help:      "Screening outcomes.",
		}, []string{"disposition"}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Progress events handed to observers.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Progress events dropped because an observer buffer was full.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Currently connected progress observers.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.runs, m.stageSeconds, m.dispositions, m.eventsPublished, m.eventsDropped, m.observers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RunFinished(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Disposition(d string) {
	if m == nil {
		return
	}
	m.dispositions.WithLabelValues(d).Inc()
}

func (m *Metrics) EventPublished() {
	if m == nil {
		return
	}
	m.eventsPublished.Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) ObserverAdded() {
	if m == nil {
		return
	}
	m.observers.Inc()
}

func (m *Metrics) ObserverRemoved() {
	if m == nil {
		return
	}
	m.observers.Dec()
}
