package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle metrics
	stateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_state_transitions_total",
			Help: "Total number of automatic laboratory state transitions",
		},
		[]string{"from", "to"},
	)

	// Capture metrics
	capturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_captures_total",
			Help: "Total number of capture submissions by outcome",
		},
		[]string{"outcome"},
	)

	// Moderation metrics
	proposalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_proposals_total",
			Help: "Total number of proposals created by kind",
		},
		[]string{"kind"},
	)

	proposalResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_proposal_resolutions_total",
			Help: "Total number of proposal resolutions by status and channel",
		},
		[]string{"status", "channel"},
	)

	rejectedTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lab_moderation_tokens_rejected_total",
			Help: "Total number of moderation tokens rejected as invalid or expired",
		},
	)
)

func init() {
	prometheus.MustRegister(
		stateTransitionsTotal,
		capturesTotal,
		proposalsTotal,
		proposalResolutionsTotal,
		rejectedTokensTotal,
	)
}

// RecordStateTransition records an automatic lifecycle transition
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordCapture records a capture submission outcome
func RecordCapture(outcome string) {
	capturesTotal.WithLabelValues(outcome).Inc()
}

// RecordProposal records a new proposal
func RecordProposal(kind string) {
	proposalsTotal.WithLabelValues(kind).Inc()
}

// RecordProposalResolution records a proposal resolution
func RecordProposalResolution(status, channel string) {
	proposalResolutionsTotal.WithLabelValues(status, channel).Inc()
}

// RecordRejectedToken records a moderation token that failed
// verification or replay checks.
func RecordRejectedToken() {
	rejectedTokensTotal.Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
