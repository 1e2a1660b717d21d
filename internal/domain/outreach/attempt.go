package outreach

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Attempt is the durable per-send record. It is written with status pending
// before the provider is contacted, so every attempted send leaves a trace
// regardless of crash timing.
type Attempt struct {
	ID          uuid.UUID     `json:"id"`
	LeadID      uuid.UUID     `json:"lead_id"`
	CampaignID  *uuid.UUID    `json:"campaign_id,omitempty"`
	Channel     Channel       `json:"channel"`
	Recipient   string        `json:"recipient"`
	ContentHash string        `json:"content_hash"`
	Status      AttemptStatus `json:"status"`

	ProviderMessageID string                 `json:"provider_message_id,omitempty"`
	ProviderResponse  map[string]interface{} `json:"provider_response,omitempty"`

	// Call-specific fields
	Outcome         CallOutcome `json:"outcome,omitempty"`
	DurationSeconds *int        `json:"duration_seconds,omitempty"`
	Transcript      string      `json:"transcript,omitempty"`
	RecordingURL    string      `json:"recording_url,omitempty"`

	AttemptedAt time.Time  `json:"attempted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewAttempt creates a pending attempt ready for persist-before-send.
func NewAttempt(leadID uuid.UUID, campaignID *uuid.UUID, channel Channel, recipient, contentHash string, now time.Time) *Attempt {
	return &Attempt{
		ID:          uuid.New(),
		LeadID:      leadID,
		CampaignID:  campaignID,
		Channel:     channel,
		Recipient:   recipient,
		ContentHash: contentHash,
		Status:      StatusPending,
		AttemptedAt: now,
	}
}

// AttemptResult carries the final provider disposition back onto the row.
type AttemptResult struct {
	Status            AttemptStatus
	ProviderMessageID string
	ProviderResponse  map[string]interface{}
	Outcome           CallOutcome
	DurationSeconds   *int
	Transcript        string
	RecordingURL      string
	CompletedAt       time.Time
}

// AttemptRepository persists attempts and answers the history questions the
// rate governor derives its decisions from. No counters exist outside this
// table.
type AttemptRepository interface {
	Create(ctx context.Context, a *Attempt) error
	Finalize(ctx context.Context, id uuid.UUID, res AttemptResult) error

	// CountForChannelSince counts attempts of a channel attempted at or after
	// the given instant (callers pass the UTC day boundary).
	CountForChannelSince(ctx context.Context, channel Channel, since time.Time) (int, error)

	// CountForDomainSince counts email attempts to recipients of the given
	// domain within the trailing window.
	CountForDomainSince(ctx context.Context, domain string, since time.Time) (int, error)

	GetByProviderMessageID(ctx context.Context, messageID string) (*Attempt, error)
	UpdateStatusByProviderMessageID(ctx context.Context, messageID string, status AttemptStatus, response map[string]interface{}) error
}
