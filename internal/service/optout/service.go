package optout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/audit"
	"github.com/devsync/outreach-backend/internal/domain/optout"
	"github.com/devsync/outreach-backend/internal/infrastructure/telemetry"
)

// optOutKeywords indicate opt-out intent in free-form reply text.
var optOutKeywords = []string{
	"unsubscribe",
	"stop",
	"remove",
	"opt-out",
	"opt out",
	"optout",
	"do not contact",
	"don't contact",
	"no more emails",
	"take me off",
	"remove me",
}

// Registry is the single authority on opt-out status. Every intake surface
// (unsubscribe link, email reply, SMS, call request, webhook, manual) funnels
// into Add; every send path asks IsOptedOut first.
type Registry struct {
	repo   optout.Repository
	tokens optout.TokenRepository
	sink   audit.Sink
	logger *zap.Logger
}

func NewRegistry(repo optout.Repository, tokens optout.TokenRepository, sink audit.Sink, logger *zap.Logger) *Registry {
	return &Registry{
		repo:   repo,
		tokens: tokens,
		sink:   sink,
		logger: logger,
	}
}

// IsOptedOut reports whether the contact is on the opt-out list. When the
// check itself fails the contact is treated as opted out; an unreachable
// registry must never let a send through.
func (r *Registry) IsOptedOut(ctx context.Context, contactType optout.ContactType, value string) bool {
	exists, err := r.repo.Exists(ctx, contactType, value)
	if err != nil {
		r.logger.Error("opt-out check failed, treating contact as opted out",
			zap.String("contact_type", string(contactType)),
			zap.Error(err))
		return true
	}
	return exists
}

// Add records a permanent opt-out. Duplicate additions return added=false
// without error.
func (r *Registry) Add(ctx context.Context, contactType optout.ContactType, value, method string, sourceLeadID *uuid.UUID) (bool, error) {
	rec := optout.NewRecord(contactType, value, method, sourceLeadID, time.Now().UTC())
	added, err := r.repo.Add(ctx, rec)
	if err != nil {
		return false, err
	}
	if added {
		telemetry.RecordOptOut(string(contactType), method)
		r.logger.Info("opt-out added",
			zap.String("contact_type", string(contactType)),
			zap.String("method", method))
		r.sink.Emit(audit.NewEvent("INFO", audit.ComponentOptOut, "opt_out_added", sourceLeadID, map[string]interface{}{
			"contact": value,
			"method":  method,
		}))
	}
	return added, nil
}

// DetectKeywords reports whether free-form text carries opt-out intent.
func DetectKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range optOutKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HandleEmailReply inspects an inbound reply body and opts the sender out
// when it asks for that.
func (r *Registry) HandleEmailReply(ctx context.Context, fromEmail, body string) (bool, error) {
	if !DetectKeywords(body) {
		return false, nil
	}
	_, err := r.Add(ctx, optout.ContactEmail, fromEmail, optout.MethodEmailReply, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// HandleSMS processes an inbound SMS. A bare STOP is the standard carrier
// opt-out; any other keyword match counts too.
func (r *Registry) HandleSMS(ctx context.Context, phone, message string) (bool, error) {
	if strings.ToUpper(strings.TrimSpace(message)) != "STOP" && !DetectKeywords(message) {
		return false, nil
	}
	_, err := r.Add(ctx, optout.ContactPhone, phone, optout.MethodSMS, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// HandleCallRequest opts a phone number out after the callee asked for
// removal during a call.
func (r *Registry) HandleCallRequest(ctx context.Context, phone string, leadID *uuid.UUID) error {
	_, err := r.Add(ctx, optout.ContactPhone, phone, optout.MethodCallRequest, leadID)
	return err
}

// IssueToken creates and persists a one-click unsubscribe token for a send.
func (r *Registry) IssueToken(ctx context.Context, contactType optout.ContactType, value string, leadID *uuid.UUID) (*optout.UnsubscribeToken, error) {
	tok := &optout.UnsubscribeToken{
		Token:        uuid.New(),
		ContactType:  contactType,
		ContactValue: value,
		LeadID:       leadID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.tokens.Insert(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// HandleUnsubscribeToken resolves a clicked unsubscribe token and opts the
// contact out. Unknown tokens return the repository's not-found error.
func (r *Registry) HandleUnsubscribeToken(ctx context.Context, token uuid.UUID) (*optout.UnsubscribeToken, error) {
	tok, err := r.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := r.Add(ctx, tok.ContactType, tok.ContactValue, optout.MethodLink, tok.LeadID); err != nil {
		return nil, err
	}
	return tok, nil
}

// List exposes the registry contents for the review API.
func (r *Registry) List(ctx context.Context, contactType *optout.ContactType, limit, offset int) ([]*optout.Record, int, error) {
	records, err := r.repo.List(ctx, contactType, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.repo.Count(ctx, contactType)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
