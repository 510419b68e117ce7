// Package monitoring watches decision outcomes and raises webhook alerts
// when failure, incomplete or rule-only fallback rates cross configured
// thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/store"
)

// MetricsSnapshot holds a point-in-time view of decision outcomes.
type MetricsSnapshot struct {
	// Decision metrics (within lookback window).
	DecisionTotal      int     `json:"decision_total"`
	DecisionApproved   int     `json:"decision_approved"`
	DecisionReview     int     `json:"decision_review"`
	DecisionRejected   int     `json:"decision_rejected"`
	DecisionIncomplete int     `json:"decision_incomplete"`
	DecisionFailed     int     `json:"decision_failed"`
	FailRate           float64 `json:"fail_rate"`
	IncompleteRate     float64 `json:"incomplete_rate"`
	AvgConfidence      float64 `json:"avg_confidence"`

	// Fallback counts decisions scored without the model reasoning pass.
	Fallback     int     `json:"fallback"`
	FallbackRate float64 `json:"fallback_rate"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// DecisionLister is the store subset the collector reads.
type DecisionLister interface {
	ListDecisions(ctx context.Context, filter store.DecisionFilter) ([]model.Decision, error)
}

// scanLimit bounds how many recent decisions one collection reads.
const scanLimit = 10000

// Collector gathers metrics from the decision store.
type Collector struct {
	store   DecisionLister
	nowFunc func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st DecisionLister) *Collector {
	return &Collector{store: st, nowFunc: time.Now}
}

// Collect gathers a snapshot of decision metrics over the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.nowFunc().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	// Newest first, so the scan stops at the first decision outside the window.
	ds, err := c.store.ListDecisions(ctx, store.DecisionFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list decisions")
	}

	var confidence float64
	for _, d := range ds {
		if d.DecidedAt.Before(cutoff) {
			break
		}
		snap.DecisionTotal++
		confidence += d.Confidence

		switch d.Label {
		case model.DecisionApproved:
			snap.DecisionApproved++
		case model.DecisionReview:
			snap.DecisionReview++
		case model.DecisionRejected:
			snap.DecisionRejected++
		case model.DecisionIncomplete:
			snap.DecisionIncomplete++
		case model.DecisionFailed:
			snap.DecisionFailed++
		}
		// Only scored decisions went through the reasoning pass.
		if scored(d.Label) && d.Eligibility.Fallback {
			snap.Fallback++
		}
	}

	if snap.DecisionTotal > 0 {
		snap.FailRate = float64(snap.DecisionFailed) / float64(snap.DecisionTotal)
		snap.IncompleteRate = float64(snap.DecisionIncomplete) / float64(snap.DecisionTotal)
		snap.AvgConfidence = confidence / float64(snap.DecisionTotal)
	}
	if n := snap.scoredTotal(); n > 0 {
		snap.FallbackRate = float64(snap.Fallback) / float64(n)
	}
	return snap, nil
}

func (s *MetricsSnapshot) scoredTotal() int {
	return s.DecisionApproved + s.DecisionReview + s.DecisionRejected
}

func scored(l model.DecisionLabel) bool {
	return l == model.DecisionApproved || l == model.DecisionReview || l == model.DecisionRejected
}
