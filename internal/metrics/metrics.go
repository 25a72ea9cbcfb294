// Package metrics holds the prometheus collectors for tier selection,
// synthesis requests and offline asset work.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nadzzz/avatarvoice/internal/errs"
)

var (
	// Tier resolution
	tierSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avatarvoice_tier_selected_total",
		Help: "Number of times each source tier was selected",
	}, []string{"resolver", "subject", "tier"})

	tierFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avatarvoice_tier_failures_total",
		Help: "Tiers that were available but failed to materialize",
	}, []string{"resolver", "tier", "kind"})

	// Synthesis requests
	synthRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avatarvoice_synthesis_requests_total",
		Help: "Synthesis requests by transport and outcome",
	}, []string{"transport", "status"})

	synthLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "avatarvoice_synthesis_latency_seconds",
		Help:    "End-to-end synthesis latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	estimatedDurations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avatarvoice_estimated_duration_total",
		Help: "Audio results whose container could not be parsed",
	}, []string{"tier"})

	// Offline assets
	formatMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avatarvoice_format_mismatch_total",
		Help: "Engine results whose announced format differs from the container",
	}, []string{"tier"})

	assetGaps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avatarvoice_asset_gaps_total",
		Help: "Required viseme or frame names that had to be backfilled",
	}, []string{"avatar", "name"})

	framesKept = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "avatarvoice_frames_kept",
		Help: "Frame count after the last reduction per avatar",
	}, []string{"avatar"})
)

// Tiers implements resolve.Observer.
type Tiers struct{}

// Selected counts a tier decision.
func (Tiers) Selected(resolver, subject, tier string) {
	tierSelected.WithLabelValues(resolver, subject, tier).Inc()
}

// Failed counts a tier that was available but could not be used.
func (Tiers) Failed(resolver, tier string, err error) {
	tierFailures.WithLabelValues(resolver, tier, string(errs.KindOf(err))).Inc()
}

// RecordSynthesis records one synthesis request.
func RecordSynthesis(transport, status string, d time.Duration) {
	synthRequests.WithLabelValues(transport, status).Inc()
	synthLatency.Observe(d.Seconds())
}

// RecordEstimated counts a result whose duration came from the synthetic formula.
func RecordEstimated(tier string) {
	estimatedDurations.WithLabelValues(tier).Inc()
}

// RecordFormatMismatch counts an engine whose announced format disagreed with
// the container it returned.
func RecordFormatMismatch(tier string) {
	formatMismatches.WithLabelValues(tier).Inc()
}

// RecordAssetGap counts a backfilled viseme or frame name.
func RecordAssetGap(avatar, name string) {
	assetGaps.WithLabelValues(avatar, name).Inc()
}

// SetFramesKept reports the frame count left after a reduction.
func SetFramesKept(avatar string, n int) {
	framesKept.WithLabelValues(avatar).Set(float64(n))
}
