package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
)

const (
	defaultCheckInterval = 5 * time.Minute
	defaultLookbackHours = 24
)

// CheckResult is the outcome of one monitoring cycle.
type CheckResult struct {
	Snapshot *MetricsSnapshot `json:"snapshot"`
	Alerts   []Alert          `json:"alerts"`
	Sent     int              `json:"sent"`
}

// Checker collects, evaluates and delivers alerts on a fixed interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

// NewChecker creates a checker. Non-positive interval or lookback values
// fall back to 5 minutes and 24 hours.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	c := &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  time.Duration(cfg.CheckIntervalSecs) * time.Second,
		lookback:  cfg.LookbackWindowHours,
	}
	if c.interval <= 0 {
		c.interval = defaultCheckInterval
	}
	if c.lookback <= 0 {
		c.lookback = defaultLookbackHours
	}
	return c
}

// Run checks once per interval until ctx is cancelled. Check errors are
// logged and the loop continues.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting decision monitor",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("decision monitor stopped")
			return
		case <-ticker.C:
			res, err := c.Check(ctx)
			if err != nil {
				log.Error("monitoring: check failed", zap.Error(err))
				continue
			}
			if len(res.Alerts) == 0 {
				log.Debug("monitoring: no alerts triggered", zap.Int("decisions", res.Snapshot.DecisionTotal))
				continue
			}
			log.Info("monitoring: alert check complete",
				zap.Int("alerts_triggered", len(res.Alerts)),
				zap.Int("alerts_sent", res.Sent),
			)
		}
	}
}

// Check runs one collect, evaluate and send cycle.
func (c *Checker) Check(ctx context.Context) (*CheckResult, error) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		return nil, err
	}
	alerts := c.alerter.Evaluate(snap)
	return &CheckResult{
		Snapshot: snap,
		Alerts:   alerts,
		Sent:     c.alerter.SendAlerts(ctx, alerts),
	}, nil
}
