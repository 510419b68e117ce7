package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDecisionFailureRate AlertType = "decision_failure_rate"
	AlertIncompleteRate      AlertType = "incomplete_rate"
	AlertReasoningFallback   AlertType = "reasoning_fallback_rate"
)

// minSample is the number of decisions needed before rates are judged.
const minSample = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// alertBatch is the webhook body. One POST carries every alert of a check.
type alertBatch struct {
	Source string    `json:"source"`
	SentAt time.Time `json:"sent_at"`
	Alerts []Alert   `json:"alerts"`
}

// rateRule compares one snapshot rate against a threshold. A zero threshold
// disables the rule.
type rateRule struct {
	typ       AlertType
	severity  string
	threshold func(config.MonitoringConfig) float64
	// observe returns the rate, the matching count and the sample it was
	// computed over.
	observe func(*MetricsSnapshot) (rate float64, hits, sample int)
	label   string
}

var rateRules = []rateRule{
	{
		typ:       AlertDecisionFailureRate,
		severity:  "high",
		threshold: func(c config.MonitoringConfig) float64 { return c.FailureRateThreshold },
		observe: func(s *MetricsSnapshot) (float64, int, int) {
			return s.FailRate, s.DecisionFailed, s.DecisionTotal
		},
		label: "failed",
	},
	{
		typ:       AlertIncompleteRate,
		severity:  "low",
		threshold: func(c config.MonitoringConfig) float64 { return c.IncompleteRateThreshold },
		observe: func(s *MetricsSnapshot) (float64, int, int) {
			return s.IncompleteRate, s.DecisionIncomplete, s.DecisionTotal
		},
		label: "incomplete",
	},
	{
		typ:       AlertReasoningFallback,
		severity:  "medium",
		threshold: func(c config.MonitoringConfig) float64 { return c.FallbackRateThreshold },
		observe: func(s *MetricsSnapshot) (float64, int, int) {
			return s.FallbackRate, s.Fallback, s.scoredTotal()
		},
		label: "rule-only",
	},
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and posts breaches to a webhook.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	nowFunc func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		nowFunc: time.Now,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := a.nowFunc().UTC()

	for _, r := range rateRules {
		limit := r.threshold(a.cfg)
		rate, hits, sample := r.observe(snap)
		if limit <= 0 || sample < minSample || rate <= limit {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     r.typ,
			Severity: r.severity,
			Message: fmt.Sprintf("%s %.1f%% exceeds threshold %.1f%% (%d %s / %d decided in last %dh)",
				r.typ, rate*100, limit*100, hits, r.label, sample, snap.LookbackHours),
			Details: map[string]any{
				"rate":      rate,
				"threshold": limit,
				"count":     hits,
				"sample":    sample,
			},
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts posts the alerts to the configured webhook in one request and
// returns how many were delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	if err := a.post(ctx, alertBatch{Source: "docintel", SentAt: a.nowFunc().UTC(), Alerts: alerts}); err != nil {
		zap.L().Error("monitoring: failed to send alerts",
			zap.Int("alerts", len(alerts)),
			zap.Error(err),
		)
		return 0
	}
	for _, alert := range alerts {
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
	}
	return len(alerts)
}

func (a *Alerter) post(ctx context.Context, batch alertBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alerts")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
