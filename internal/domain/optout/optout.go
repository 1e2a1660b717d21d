package optout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContactType distinguishes the two contact namespaces.
type ContactType string

const (
	ContactEmail ContactType = "email"
	ContactPhone ContactType = "phone"
)

// Opt-out intake methods.
const (
	MethodLink        = "link"
	MethodEmailReply  = "email_reply"
	MethodCallRequest = "call_request"
	MethodSMS         = "sms"
	MethodComplaint   = "complaint"
	MethodWebhook     = "webhook"
	MethodManual      = "manual"
)

// Record is a permanent opt-out. Once created it is never deleted by any
// retention policy; permanence is a compliance invariant.
type Record struct {
	ID           uuid.UUID   `json:"id"`
	ContactType  ContactType `json:"contact_type"`
	ContactValue string      `json:"contact_value"`
	Method       string      `json:"opt_out_method"`
	OptedOutAt   time.Time   `json:"opted_out_at"`
	SourceLeadID *uuid.UUID  `json:"source_lead_id,omitempty"`
}

// NewRecord builds an opt-out record for insertion.
func NewRecord(contactType ContactType, value, method string, sourceLeadID *uuid.UUID, now time.Time) *Record {
	return &Record{
		ID:           uuid.New(),
		ContactType:  contactType,
		ContactValue: value,
		Method:       method,
		OptedOutAt:   now,
		SourceLeadID: sourceLeadID,
	}
}

// Repository persists opt-out records. Implementations expose no delete.
type Repository interface {
	// Add inserts the record and flags the matching lead in one transaction.
	// A duplicate (type, value) returns added=false without error.
	Add(ctx context.Context, rec *Record) (added bool, err error)

	Exists(ctx context.Context, contactType ContactType, value string) (bool, error)
	List(ctx context.Context, contactType *ContactType, limit, offset int) ([]*Record, error)
	Count(ctx context.Context, contactType *ContactType) (int, error)
}

// UnsubscribeToken maps a one-click unsubscribe token to the contact it was
// issued for. Tokens are issued per send and, like the opt-outs they create,
// never deleted.
type UnsubscribeToken struct {
	Token        uuid.UUID   `json:"token"`
	ContactType  ContactType `json:"contact_type"`
	ContactValue string      `json:"contact_value"`
	LeadID       *uuid.UUID  `json:"lead_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// TokenRepository persists unsubscribe tokens.
type TokenRepository interface {
	Insert(ctx context.Context, tok *UnsubscribeToken) error
	Resolve(ctx context.Context, token uuid.UUID) (*UnsubscribeToken, error)
}
