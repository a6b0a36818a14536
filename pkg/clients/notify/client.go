// Package notify posts pipeline run summaries to an operator-configured
// webhook so downstream tooling can react to fresh snapshots.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

// Client exposes the notification operations used by the application.
type Client interface {
	SendRunSummary(ctx context.Context, summary models.RunSummary) error
}

// WebhookClient is a resty-backed implementation of Client.
type WebhookClient struct {
	httpClient *resty.Client
	url        string
}

// NewWebhookClient builds a webhook notifier for the given URL.
func NewWebhookClient(url string) *WebhookClient {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &WebhookClient{httpClient: restyClient, url: url}
}

// runSummaryPayload is the wire shape posted to the webhook.
type runSummaryPayload struct {
	SnapshotDate      string `json:"snapshot_date"`
	StartedAt         string `json:"started_at"`
	DurationMillis    int64  `json:"duration_ms"`
	PairsComputed     int    `json:"pairs_computed"`
	InsufficientPairs int    `json:"insufficient_pairs"`
	BatchesScored     int    `json:"batches_scored"`
	ActionsProposed   int    `json:"actions_proposed"`
	SkippedRows       int    `json:"skipped_rows"`
	IntegrityWarnings int    `json:"integrity_warnings"`
}

// SendRunSummary posts the summary, treating any non-2xx reply as an error.
func (c *WebhookClient) SendRunSummary(ctx context.Context, summary models.RunSummary) error {
	payload := runSummaryPayload{
		SnapshotDate:      summary.SnapshotDate.Format(models.DateLayout),
		StartedAt:         summary.StartedAt.Format(time.RFC3339),
		DurationMillis:    summary.Duration.Milliseconds(),
		PairsComputed:     summary.PairsComputed,
		InsufficientPairs: summary.InsufficientPairs,
		BatchesScored:     summary.BatchesScored,
		ActionsProposed:   summary.ActionsProposed,
		SkippedRows:       summary.SkippedRows,
		IntegrityWarnings: summary.IntegrityWarnings,
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("send run summary: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("run summary webhook error: status=%d body=%s", resp.StatusCode(), resp.String())
	}

	return nil
}
