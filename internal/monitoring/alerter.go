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

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/resilience"
	"github.com/sells-group/dsa-planner/internal/session"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertOvercrowded  AlertType = "overcrowded_area"
	AlertHighAQI      AlertType = "high_aqi"
	AlertBufferBreach AlertType = "school_buffer_breach"
)

// Alert represents a single risk flag.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	SubjectID string         `json:"subject_id"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Key identifies the alert condition independent of its readings.
func (a Alert) Key() string {
	return string(a.Type) + ":" + a.SubjectID
}

// Alerter evaluates session snapshots against the planner thresholds and
// delivers alerts to an optional webhook.
type Alerter struct {
	planner config.PlannerConfig
	cfg     config.MonitoringConfig
	client  *http.Client
	retry   resilience.Policy
}

// NewAlerter creates a new Alerter.
func NewAlerter(planner config.PlannerConfig, cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		planner: planner,
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		retry: resilience.Policy{
			Attempts:   cfg.WebhookAttempts,
			Backoff:    cfg.WebhookBackoff,
			MaxBackoff: 30 * time.Second,
			Jitter:     0.25,
		},
	}
}

// Evaluate returns alerts for overcrowded areas, sensors at or above the high
// AQI threshold and proposals inside a protected-zone buffer, in dataset
// order.
func (a *Alerter) Evaluate(snap session.Snapshot) []Alert {
	var alerts []Alert
	ds := snap.Dataset
	now := snap.Derived.ComputedAt

	for _, area := range ds.Areas {
		if area.Capacity <= 0 {
			continue
		}
		ratio := float64(area.Occupancy) / float64(area.Capacity)
		if ratio < a.planner.OvercrowdedRatio {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertOvercrowded,
			Severity:  "medium",
			SubjectID: area.ID,
			Message: fmt.Sprintf("%s (%s) at %d/%d, %.0f%% of capacity",
				area.Name, area.District, area.Occupancy, area.Capacity, ratio*100),
			Details: map[string]any{
				"occupancy": area.Occupancy,
				"capacity":  area.Capacity,
				"ratio":     ratio,
				"threshold": a.planner.OvercrowdedRatio,
			},
			Timestamp: now,
		})
	}

	for _, s := range ds.Sensors {
		if s.AQI < a.planner.HighAQI {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertHighAQI,
			Severity:  "high",
			SubjectID: s.ID,
			Message:   fmt.Sprintf("%s reads AQI %d (threshold %d)", s.Name, s.AQI, a.planner.HighAQI),
			Details: map[string]any{
				"aqi":       s.AQI,
				"threshold": a.planner.HighAQI,
			},
			Timestamp: now,
		})
	}

	for _, p := range ds.Proposals {
		r, ok := snap.Derived.Compliance[p.ID]
		if !ok || r.Compliant {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertBufferBreach,
			Severity:  "high",
			SubjectID: p.ID,
			Message: fmt.Sprintf("%s is %.0fm from %s, inside the %.0fm buffer",
				p.Name, r.MinDistanceMeters, r.NearestZoneID, a.planner.Compliance.BufferMeters),
			Details: map[string]any{
				"min_distance_m": r.MinDistanceMeters,
				"nearest_zone":   r.NearestZoneID,
				"buffer_m":       a.planner.Compliance.BufferMeters,
				"status":         string(p.Status),
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Log writes each alert through the global logger at Warn.
func (a *Alerter) Log(alerts []Alert) {
	for _, alert := range alerts {
		zap.L().Warn("monitoring: alert",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("subject", alert.SubjectID),
			zap.String("message", alert.Message),
		)
	}
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	return resilience.Retry(ctx, a.retry, "alert webhook", func(ctx context.Context) error {
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
			return eris.Wrap(&resilience.StatusError{Code: resp.StatusCode}, "monitoring: webhook rejected alert")
		}
		return nil
	})
}
