package approval

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

// Status is the approval queue state. Transitions move forward only:
// pending -> {approved, rejected, expired}, approved -> sent. Terminal states
// (rejected, expired, sent) admit no further transitions.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSent     Status = "sent"
	StatusExpired  Status = "expired"
)

// DefaultTTLDays is the default pending lifetime before automatic expiry.
const DefaultTTLDays = 7

// Item holds generated outreach content awaiting human review.
type Item struct {
	ID         uuid.UUID        `json:"id"`
	LeadID     uuid.UUID        `json:"lead_id"`
	Channel    outreach.Channel `json:"channel"`
	Content    json.RawMessage  `json:"content"`
	Status     Status           `json:"status"`
	ReviewedBy string           `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// NewItem creates a pending item expiring ttlDays from now. ttlDays <= 0
// falls back to the default.
func NewItem(leadID uuid.UUID, channel outreach.Channel, content json.RawMessage, ttlDays int, now time.Time) *Item {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	return &Item{
		ID:        uuid.New(),
		LeadID:    leadID,
		Channel:   channel,
		Content:   content,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, ttlDays),
	}
}

// expireIfDue flips an overdue pending item to expired. Returns true when the
// item is expired after the call.
func (i *Item) expireIfDue(now time.Time) bool {
	if i.Status == StatusPending && !now.Before(i.ExpiresAt) {
		i.Status = StatusExpired
	}
	return i.Status == StatusExpired
}

// Approve moves a live pending item to approved, stamping the reviewer and
// optionally replacing the content. An overdue item transitions to expired as
// a side effect and the call reports failure.
func (i *Item) Approve(reviewerID string, editedContent json.RawMessage, now time.Time) bool {
	if i.expireIfDue(now) {
		return false
	}
	if i.Status != StatusPending {
		return false
	}
	if editedContent != nil {
		i.Content = editedContent
	}
	i.Status = StatusApproved
	i.ReviewedBy = reviewerID
	i.ReviewedAt = &now
	return true
}

// Reject moves a pending item to rejected, storing the optional reason inside
// the content payload.
func (i *Item) Reject(reviewerID, reason string, now time.Time) bool {
	if i.Status != StatusPending {
		return false
	}
	if reason != "" {
		i.Content = attachReason(i.Content, reason)
	}
	i.Status = StatusRejected
	i.ReviewedBy = reviewerID
	i.ReviewedAt = &now
	return true
}

// Edit replaces the content of a live pending item.
func (i *Item) Edit(reviewerID string, newContent json.RawMessage, now time.Time) bool {
	if i.expireIfDue(now) {
		return false
	}
	if i.Status != StatusPending {
		return false
	}
	i.Content = newContent
	return true
}

// MarkSent is reachable only from approved.
func (i *Item) MarkSent() bool {
	if i.Status != StatusApproved {
		return false
	}
	i.Status = StatusSent
	return true
}

func attachReason(content json.RawMessage, reason string) json.RawMessage {
	payload := map[string]interface{}{}
	if len(content) > 0 {
		// A malformed payload is replaced rather than propagated.
		_ = json.Unmarshal(content, &payload)
	}
	payload["rejection_reason"] = reason
	raw, err := json.Marshal(payload)
	if err != nil {
		return content
	}
	return raw
}

// Filter narrows queue listings.
type Filter struct {
	Status  *Status
	Channel *outreach.Channel
	Limit   int
	Offset  int
}

// Stats counts items per status.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Sent     int `json:"sent"`
	Expired  int `json:"expired"`
}

// Repository persists approval queue items. (status, expires_at) is indexed
// for efficient expiry scans.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, item *Item) error
	List(ctx context.Context, f Filter) ([]*Item, error)
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]*Item, error)

	// ExpirePending moves every pending item with expires_at before now to
	// expired, returning the number of rows changed.
	ExpirePending(ctx context.Context, now time.Time) (int, error)

	Stats(ctx context.Context) (*Stats, error)
}
