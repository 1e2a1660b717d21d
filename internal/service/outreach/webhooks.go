package outreach

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/audit"
	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/optout"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

// EmailEvent is a normalized delivery event from the email provider's
// webhook (bounce, complaint, unsubscribe, delivered, reply).
type EmailEvent struct {
	Type      string `json:"type"`
	Email     string `json:"email"`
	MessageID string `json:"message_id"`
	Reason    string `json:"reason,omitempty"`
	// Body carries the text of an inbound reply event.
	Body string `json:"body,omitempty"`
}

// OptOutAdder is the registry write surface the event handler needs.
type OptOutAdder interface {
	Add(ctx context.Context, contactType optout.ContactType, value, method string, sourceLeadID *uuid.UUID) (bool, error)
	HandleEmailReply(ctx context.Context, fromEmail, body string) (bool, error)
}

// EmailEventHandler applies provider delivery events to attempts, leads, and
// the opt-out registry.
type EmailEventHandler struct {
	attempts outreach.AttemptRepository
	leads    lead.Repository
	registry OptOutAdder
	sink     audit.Sink
	logger   *zap.Logger
}

func NewEmailEventHandler(
	attempts outreach.AttemptRepository,
	leads lead.Repository,
	registry OptOutAdder,
	sink audit.Sink,
	logger *zap.Logger,
) *EmailEventHandler {
	return &EmailEventHandler{
		attempts: attempts,
		leads:    leads,
		registry: registry,
		sink:     sink,
		logger:   logger,
	}
}

// Handle processes one event. Unknown event types are logged and dropped.
func (h *EmailEventHandler) Handle(ctx context.Context, event EmailEvent) error {
	switch event.Type {
	case "bounce":
		return h.handleBounce(ctx, event)
	case "complaint":
		return h.handleComplaint(ctx, event)
	case "unsubscribe":
		return h.handleUnsubscribe(ctx, event)
	case "delivered":
		return h.handleDelivered(ctx, event)
	case "reply":
		return h.handleReply(ctx, event)
	default:
		h.logger.Warn("unknown email event type", zap.String("type", event.Type))
		return nil
	}
}

func (h *EmailEventHandler) handleBounce(ctx context.Context, event EmailEvent) error {
	if event.MessageID != "" {
		if err := h.attempts.UpdateStatusByProviderMessageID(ctx, event.MessageID, outreach.StatusBounced, map[string]interface{}{
			"bounce_reason": event.Reason,
		}); err != nil && !domainerrors.IsType(err, domainerrors.ErrorTypeNotFound) {
			return err
		}
	}

	// A hard bounce means the address is bad; stop selecting the lead.
	if l, err := h.leads.FindByContact(ctx, "email", event.Email); err == nil {
		if err := h.leads.ClearEmailVerified(ctx, l.ID); err != nil {
			return err
		}
	}

	h.sink.Emit(audit.NewEvent("WARNING", audit.ComponentWebhook, "email_bounced", nil, map[string]interface{}{
		"email":  event.Email,
		"reason": event.Reason,
	}))
	return nil
}

func (h *EmailEventHandler) handleComplaint(ctx context.Context, event EmailEvent) error {
	// A spam complaint is an opt-out in all but name.
	if _, err := h.registry.Add(ctx, optout.ContactEmail, event.Email, optout.MethodComplaint, nil); err != nil {
		return err
	}
	h.sink.Emit(audit.NewEvent("WARNING", audit.ComponentWebhook, "email_complaint", nil, map[string]interface{}{
		"email": event.Email,
	}))
	return nil
}

func (h *EmailEventHandler) handleUnsubscribe(ctx context.Context, event EmailEvent) error {
	_, err := h.registry.Add(ctx, optout.ContactEmail, event.Email, optout.MethodWebhook, nil)
	return err
}

// handleReply routes an inbound reply body through the registry's keyword
// detection. Replies that do not ask for removal are dropped.
func (h *EmailEventHandler) handleReply(ctx context.Context, event EmailEvent) error {
	optedOut, err := h.registry.HandleEmailReply(ctx, event.Email, event.Body)
	if err != nil {
		return err
	}
	if optedOut {
		h.sink.Emit(audit.NewEvent("INFO", audit.ComponentWebhook, "reply_opt_out", nil, map[string]interface{}{
			"email": event.Email,
		}))
	}
	return nil
}

func (h *EmailEventHandler) handleDelivered(ctx context.Context, event EmailEvent) error {
	if event.MessageID == "" {
		return nil
	}
	err := h.attempts.UpdateStatusByProviderMessageID(ctx, event.MessageID, outreach.StatusDelivered, nil)
	if err != nil && domainerrors.IsType(err, domainerrors.ErrorTypeNotFound) {
		h.logger.Warn("delivery event for unknown message", zap.String("message_id", event.MessageID))
		return nil
	}
	return err
}
