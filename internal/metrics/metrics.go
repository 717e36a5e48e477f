package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder publishes play loop counters. A nil Recorder records nothing.
type Recorder struct {
	started   *prometheus.CounterVec
	answers   *prometheus.CounterVec
	completed *prometheus.CounterVec
	results   *prometheus.HistogramVec
	paused    *prometheus.CounterVec
	bound     prometheus.Counter
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "est",
			Name:      "sessions_started_total",
			Help:      "Sessions started per extension.",
		}, []string{"extension"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "est",
			Name:      "answers_total",
			Help:      "Accepted answers per extension and correctness.",
		}, []string{"extension", "correct"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "est",
			Name:      "sessions_completed_total",
			Help:      "Sessions that reached their target answer count.",
		}, []string{"extension"}),
		results: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "est",
			Name:      "session_result",
			Help:      "Final session results.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{"extension"}),
		paused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "est",
			Name:      "sessions_paused_total",
			Help:      "Pauses charged with the pause penalty.",
		}, []string{"extension"}),
		bound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "est",
			Name:      "sessions_bound_total",
			Help:      "Anonymous sessions re-owned after sign in.",
		}),
	}
	reg.MustRegister(r.started, r.answers, r.completed, r.results, r.paused, r.bound)
	return r
}

func (r *Recorder) SessionStarted(extension string) {
	if r == nil {
		return
	}
	r.started.WithLabelValues(extension).Inc()
}

func (r *Recorder) AnswerRecorded(extension string, correct bool) {
	if r == nil {
		return
	}
	r.answers.WithLabelValues(extension, strconv.FormatBool(correct)).Inc()
}

func (r *Recorder) SessionCompleted(extension string, result int) {
	if r == nil {
		return
	}
	r.completed.WithLabelValues(extension).Inc()
	r.results.WithLabelValues(extension).Observe(float64(result))
}

func (r *Recorder) SessionPaused(extension string) {
	if r == nil {
		return
	}
	r.paused.WithLabelValues(extension).Inc()
}

func (r *Recorder) SessionsBound(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.bound.Add(float64(count))
}
