package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RentalMetrics records reservation lifecycle activity.
type RentalMetrics struct {
	transitions   *prometheus.CounterVec
	conflicts     prometheus.Counter
	verifications *prometheus.CounterVec
	proofUploads  *prometheus.CounterVec
	proofBytes    prometheus.Histogram
	reviewLatency prometheus.Histogram
}

// NewRentalMetrics registers the rental metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewRentalMetrics(reg prometheus.Registerer) *RentalMetrics {
	if reg == nil {
		return &RentalMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_transitions_total",
		Help: "Reservation status transitions applied.",
	}, []string{"from", "to"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rental_booking_conflicts_total",
		Help: "Reservation attempts rejected because the vehicle was already occupied.",
	})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_payment_verifications_total",
		Help: "Operator payment verification decisions.",
	}, []string{"outcome"})
	proofUploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_payment_proof_uploads_total",
		Help: "Payment proof uploads by result.",
	}, []string{"result"})
	proofBytes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rental_payment_proof_bytes",
		Help:    "Size of accepted payment proof files.",
		Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
	})
	reviewLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rental_payment_review_latency_seconds",
		Help:    "Time from proof submission to operator decision.",
		Buckets: []float64{60, 300, 900, 1800, 3600, 4 * 3600, 12 * 3600, 24 * 3600},
	})
	reg.MustRegister(transitions, conflicts, verifications, proofUploads, proofBytes, reviewLatency)
	return &RentalMetrics{
		transitions:   transitions,
		conflicts:     conflicts,
		verifications: verifications,
		proofUploads:  proofUploads,
		proofBytes:    proofBytes,
		reviewLatency: reviewLatency,
	}
}

// IncTransition counts one applied status change.
func (m *RentalMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncConflict counts one rejected overlapping reservation.
func (m *RentalMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

// IncVerification counts one operator decision and records how long it waited.
func (m *RentalMetrics) IncVerification(outcome string, waited time.Duration) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(outcome)).Inc()
	if waited > 0 && m.reviewLatency != nil {
		m.reviewLatency.Observe(waited.Seconds())
	}
}

// ObserveProofUpload counts an upload attempt; size is only recorded when accepted.
func (m *RentalMetrics) ObserveProofUpload(result string, size int) {
	if m == nil || m.proofUploads == nil {
		return
	}
	m.proofUploads.WithLabelValues(normalizeLabel(result)).Inc()
	if result == ProofUploadAccepted && size > 0 && m.proofBytes != nil {
		m.proofBytes.Observe(float64(size))
	}
}

// Proof upload result labels.
const (
	ProofUploadAccepted = "accepted"
	ProofUploadRejected = "rejected"
	ProofUploadFailed   = "failed"
)

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
