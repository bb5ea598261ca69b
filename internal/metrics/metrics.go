// Package metrics holds the bot's Prometheus instruments. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	pollsCreated   prometheus.Counter
	pollsClosed    prometheus.Counter
	votes          *prometheus.CounterVec
	voteRejections *prometheus.CounterVec
	renderFailures *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
}

// New registers all instruments with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		pollsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "dailypoll_polls_created_total",
			Help: "Total number of polls posted",
		}),
		pollsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dailypoll_polls_closed_total",
			Help: "Total number of polls closed by the sweep",
		}),
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dailypoll_votes_total",
			Help: "Total number of recorded votes by choice",
		}, []string{"choice"}),
		voteRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dailypoll_vote_rejections_total",
			Help: "Total number of votes not recorded, by reason",
		}, []string{"reason"}),
		renderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dailypoll_render_failures_total",
			Help: "Total number of failed message edits or posts, by operation",
		}, []string{"op"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dailypoll_sweep_duration_seconds",
			Help:    "Duration of expired poll sweeps",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) PollCreated() {
	if m != nil {
		m.pollsCreated.Inc()
	}
}

func (m *Metrics) PollClosed() {
	if m != nil {
		m.pollsClosed.Inc()
	}
}

func (m *Metrics) Vote(choice string) {
	if m != nil {
		m.votes.WithLabelValues(choice).Inc()
	}
}

// VoteRejected counts a vote that was not stored; reason is "closed", "not_found" or "error".
func (m *Metrics) VoteRejected(reason string) {
	if m != nil {
		m.voteRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RenderFailed(op string) {
	if m != nil {
		m.renderFailures.WithLabelValues(op).Inc()
	}
}

// ObserveSweep records the time since start.
func (m *Metrics) ObserveSweep(start time.Time) {
	if m != nil {
		m.sweepDuration.Observe(time.Since(start).Seconds())
	}
}
