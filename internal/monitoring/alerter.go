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

	"github.com/datadojo/partrank/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowAvgPriority AlertType = "low_avg_priority"
	AlertHighZeroRate   AlertType = "high_zero_rate"
	AlertStaleScores    AlertType = "stale_scores"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// minPartsForAlert suppresses score-distribution alerts on near-empty tables.
const minPartsForAlert = 10

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check average priority.
	if snap.Parts >= minPartsForAlert && snap.AvgPriority < a.cfg.MinAvgPriority {
		alerts = append(alerts, Alert{
			Type:     AlertLowAvgPriority,
			Severity: "high",
			Message: fmt.Sprintf(
				"Average priority %.1f is below threshold %.1f across %d parts",
				snap.AvgPriority, a.cfg.MinAvgPriority, snap.Parts,
			),
			Details: map[string]any{
				"avg_priority": snap.AvgPriority,
				"threshold":    a.cfg.MinAvgPriority,
				"parts":        snap.Parts,
			},
			Timestamp: now,
		})
	}

	// Check zero-score rate.
	if snap.Parts >= minPartsForAlert && snap.ZeroRate > a.cfg.MaxZeroRate {
		alerts = append(alerts, Alert{
			Type:     AlertHighZeroRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Zero-score rate %.1f%% exceeds threshold %.1f%% (%d of %d parts)",
				snap.ZeroRate*100, a.cfg.MaxZeroRate*100,
				snap.ZeroCount, snap.Parts,
			),
			Details: map[string]any{
				"zero_rate":  snap.ZeroRate,
				"threshold":  a.cfg.MaxZeroRate,
				"zero_count": snap.ZeroCount,
				"parts":      snap.Parts,
			},
			Timestamp: now,
		})
	}

	// Check freshness.
	if a.cfg.MaxStaleHours > 0 && snap.Parts > 0 && snap.StaleHours > float64(a.cfg.MaxStaleHours) {
		alerts = append(alerts, Alert{
			Type:     AlertStaleScores,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Scores are %.1fh old, exceeding threshold %dh",
				snap.StaleHours, a.cfg.MaxStaleHours,
			),
			Details: map[string]any{
				"stale_hours":    snap.StaleHours,
				"threshold":      a.cfg.MaxStaleHours,
				"last_scored_at": snap.LastScoredAt,
			},
			Timestamp: now,
		})
	}

	return alerts
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
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
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
