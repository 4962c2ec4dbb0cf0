package audiomgr

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts events and recording traffic through a Manager
type Metrics struct {
	eventsTotal   *prometheus.CounterVec
	eventsDropped prometheus.Counter
	recordFrames  prometheus.Counter
	initFailures  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audiomgr_events_total",
				Help: "Total number of unified events delivered to the application",
			},
			[]string{"type"},
		),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audiomgr_events_dropped_total",
			Help: "Total number of events dropped during shutdown or by a software trigger on a full queue",
		}),
		recordFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audiomgr_record_frames_total",
			Help: "Total number of PCM frames handed to the recording callback",
		}),
		initFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audiomgr_init_failures_total",
				Help: "Total number of failed initializations",
			},
			[]string{"stage"}, // stage: hardware, playback, frontend, button
		),
	}
	if reg != nil {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.eventsTotal.Describe(ch)
	m.eventsDropped.Describe(ch)
	m.recordFrames.Describe(ch)
	m.initFailures.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.eventsTotal.Collect(ch)
	m.eventsDropped.Collect(ch)
	m.recordFrames.Collect(ch)
	m.initFailures.Collect(ch)
}

func (m *Metrics) recordEvent(t EventType) {
	if m != nil {
		m.eventsTotal.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) recordDropped() {
	if m != nil {
		m.eventsDropped.Inc()
	}
}

func (m *Metrics) recordFrame() {
	if m != nil {
		m.recordFrames.Inc()
	}
}

func (m *Metrics) recordInitFailure(stage string) {
	if m != nil {
		m.initFailures.WithLabelValues(stage).Inc()
	}
}
