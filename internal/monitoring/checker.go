package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/session"
)

// Checker runs periodic alert checks against a session in the background.
// Only alerts that were not active at the previous check are logged and sent.
// Check is not safe for concurrent use.
type Checker struct {
	sess    *session.Session
	alerter *Alerter
	cfg     config.MonitoringConfig
	active  map[string]bool
}

// NewChecker creates a background alert checker.
func NewChecker(sess *session.Session, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		sess:    sess,
		alerter: alerter,
		cfg:     cfg,
		active:  map[string]bool{},
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) error {
	interval := c.cfg.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return nil
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check evaluates the current snapshot once and returns the newly raised
// alerts.
func (c *Checker) Check(ctx context.Context) []Alert {
	alerts := c.alerter.Evaluate(c.sess.Snapshot())

	next := make(map[string]bool, len(alerts))
	var raised []Alert
	for _, a := range alerts {
		next[a.Key()] = true
		if !c.active[a.Key()] {
			raised = append(raised, a)
		}
	}
	c.active = next

	if len(raised) == 0 {
		zap.L().Debug("monitoring: no new alerts", zap.Int("active", len(alerts)))
		return nil
	}

	c.alerter.Log(raised)
	sent := c.alerter.SendAlerts(ctx, raised)
	zap.L().Info("monitoring: alert check complete",
		zap.Int("alerts_active", len(alerts)),
		zap.Int("alerts_raised", len(raised)),
		zap.Int("alerts_sent", sent),
	)
	return raised
}
