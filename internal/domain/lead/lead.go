package lead

import (
	"time"

	"github.com/google/uuid"

	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

// Lead represents a prospective business contact discovered by scraping and
// verified by external providers. Orchestration never hard-deletes a lead.
type Lead struct {
	ID           uuid.UUID `json:"id"`
	Source       string    `json:"source"`
	BusinessName string    `json:"business_name"`
	City         string    `json:"city"`
	Category     string    `json:"category"`
	Website      string    `json:"website"`
	Email        string    `json:"primary_email"`
	Phone        string    `json:"primary_phone"`

	// Verification status
	EmailVerified          bool     `json:"email_verified"`
	PhoneVerified          bool     `json:"phone_verified"`
	VerificationConfidence *float64 `json:"verification_confidence,omitempty"`

	// Opt-out status
	OptedOut       bool       `json:"opted_out"`
	OptedOutAt     *time.Time `json:"opted_out_at,omitempty"`
	OptedOutMethod string     `json:"opted_out_method,omitempty"`

	// Contact tracking
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	ContactCount    int        `json:"contact_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactPoint returns the contact value used for the given channel.
func (l *Lead) ContactPoint(channel outreach.Channel) string {
	if channel == outreach.ChannelCall {
		return l.Phone
	}
	return l.Email
}

// VerifiedFor reports whether the lead carries the verification flag required
// by the channel.
func (l *Lead) VerifiedFor(channel outreach.Channel) bool {
	if channel == outreach.ChannelCall {
		return l.PhoneVerified
	}
	return l.EmailVerified
}

// MarkContacted records a definitive outreach outcome for cooldown purposes.
func (l *Lead) MarkContacted(now time.Time) {
	l.LastContactedAt = &now
	l.ContactCount++
	l.UpdatedAt = now
}

// MarkOptedOut flags the lead so eligibility queries exclude it from all
// future selection.
func (l *Lead) MarkOptedOut(method string, now time.Time) {
	l.OptedOut = true
	l.OptedOutAt = &now
	l.OptedOutMethod = method
	l.UpdatedAt = now
}
