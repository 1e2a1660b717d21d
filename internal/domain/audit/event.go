package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Component names used across the orchestration core.
const (
	ComponentScheduler = "scheduler"
	ComponentPipeline  = "pipeline"
	ComponentQueue     = "queue"
	ComponentOptOut    = "opt_out"
	ComponentWebhook   = "webhook"
)

// Event is one structured audit record. Contact details are masked before the
// event leaves the publisher.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Level     string                 `json:"log_level"`
	Component string                 `json:"component"`
	Action    string                 `json:"action"`
	LeadID    *uuid.UUID             `json:"lead_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEvent builds an audit event for emission.
func NewEvent(level, component, action string, leadID *uuid.UUID, details map[string]interface{}) Event {
	return Event{
		ID:        uuid.New(),
		Level:     level,
		Component: component,
		Action:    action,
		LeadID:    leadID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}

// Sink accepts structured audit events. Emission is ordered and bounded;
// consumers must tolerate Emit being called from the campaign hot path.
type Sink interface {
	Emit(event Event)
}

// Repository persists audit events.
type Repository interface {
	Insert(ctx context.Context, event Event) error
}

// NopSink discards events; used in tests and tooling.
type NopSink struct{}

func (NopSink) Emit(Event) {}
