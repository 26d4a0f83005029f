// Package metrics records injection activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hidject/internal/inject"
	"hidject/internal/protocol"
	"hidject/internal/task"
)

// Recorder implements inject.Observer using Prometheus metrics.
type Recorder struct {
	registry *prometheus.Registry

	framesTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	tasksTotal       *prometheus.CounterVec
	taskDuration     *prometheus.HistogramVec
	state            *prometheus.GaugeVec

	mu        sync.Mutex
	taskStart time.Time
	now       func() time.Time
}

// NewRecorder creates a recorder with its own registry, including the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		framesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hidject_frames_total",
				Help: "Frames handed to the transport by transport and result",
			},
			[]string{"transport", "result"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hidject_state_transitions_total",
				Help: "Injection state transitions",
			},
			[]string{"from", "to"},
		),
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hidject_tasks_total",
				Help: "Finished tasks by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hidject_task_duration_seconds",
				Help:    "Time from task start to its outcome",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"kind"},
		),
		state: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hidject_state",
				Help: "Current injection state (1 for the active state)",
			},
			[]string{"state"},
		),
		now: time.Now,
	}
	r.setState(inject.NotInitialized)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) setState(s inject.State) {
	for _, st := range []inject.State{
		inject.NotInitialized, inject.Idle, inject.Working,
		inject.TaskSucceeded, inject.ScriptSucceeded, inject.Failed,
	} {
		v := 0.0
		if st == s {
			v = 1
		}
		r.state.WithLabelValues(st.String()).Set(v)
	}
}

// StateChanged records a transition and tracks task start times.
func (r *Recorder) StateChanged(from, to inject.State) {
	r.transitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	r.setState(to)
	if from == inject.Idle && to == inject.Working {
		r.mu.Lock()
		r.taskStart = r.now()
		r.mu.Unlock()
	}
}

// FrameSent counts a frame transmission attempt.
func (r *Recorder) FrameSent(_ protocol.Frame, usb bool, err error) {
	transport := "radio"
	if usb {
		transport = "usb"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.framesTotal.WithLabelValues(transport, result).Inc()
}

// TaskFinished counts a task outcome and observes its duration.
func (r *Recorder) TaskFinished(t task.Task, outcome inject.Outcome) {
	kind := "unknown"
	if t != nil {
		kind = string(t.Kind())
	}
	r.tasksTotal.WithLabelValues(kind, string(outcome)).Inc()

	r.mu.Lock()
	start := r.taskStart
	r.taskStart = time.Time{}
	r.mu.Unlock()
	if !start.IsZero() {
		r.taskDuration.WithLabelValues(kind).Observe(r.now().Sub(start).Seconds())
	}
}
