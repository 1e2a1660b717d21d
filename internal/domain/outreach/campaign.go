package outreach

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Campaign is one bounded execution of the orchestration loop for a single
// channel. It is created at cycle start and finalized exactly once.
type Campaign struct {
	ID             uuid.UUID  `json:"id"`
	Channel        Channel    `json:"channel"`
	TotalAttempted int        `json:"total_attempted"`
	TotalSuccess   int        `json:"total_success"`
	TotalFailed    int        `json:"total_failed"`
	Errors         []string   `json:"errors"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// NewCampaign creates an in-progress campaign (null completed_at).
func NewCampaign(channel Channel, now time.Time) *Campaign {
	return &Campaign{
		ID:        uuid.New(),
		Channel:   channel,
		Errors:    []string{},
		StartedAt: now,
	}
}

// Finalize sets the counters once. Subsequent calls are ignored so a campaign
// row is never mutated after completion.
func (c *Campaign) Finalize(attempted, success, failed int, errs []string, now time.Time) {
	if c.CompletedAt != nil {
		return
	}
	c.TotalAttempted = attempted
	c.TotalSuccess = success
	c.TotalFailed = failed
	if errs == nil {
		errs = []string{}
	}
	c.Errors = errs
	c.CompletedAt = &now
}

// maxReportErrors bounds the error list carried on a report.
const maxReportErrors = 10

// Report is the immutable, API-facing summary of a finalized campaign.
type Report struct {
	CampaignID      uuid.UUID `json:"campaign_id"`
	ChannelType     Channel   `json:"channel_type"`
	TotalAttempted  int       `json:"total_attempted"`
	TotalSuccess    int       `json:"total_success"`
	TotalFailed     int       `json:"total_failed"`
	ErrorCount      int       `json:"error_count"`
	Errors          []string  `json:"errors"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// BuildReport derives the report from a finalized campaign.
func (c *Campaign) BuildReport() *Report {
	completed := c.StartedAt
	if c.CompletedAt != nil {
		completed = *c.CompletedAt
	}
	errs := c.Errors
	if len(errs) > maxReportErrors {
		errs = errs[:maxReportErrors]
	}
	return &Report{
		CampaignID:      c.ID,
		ChannelType:     c.Channel,
		TotalAttempted:  c.TotalAttempted,
		TotalSuccess:    c.TotalSuccess,
		TotalFailed:     c.TotalFailed,
		ErrorCount:      len(c.Errors),
		Errors:          errs,
		StartedAt:       c.StartedAt,
		CompletedAt:     completed,
		DurationSeconds: completed.Sub(c.StartedAt).Seconds(),
	}
}

// CampaignRepository persists campaign rows.
type CampaignRepository interface {
	Create(ctx context.Context, c *Campaign) error
	Finalize(ctx context.Context, c *Campaign) error
	Recent(ctx context.Context, limit int) ([]*Campaign, error)
}
