package outreach

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/audit"
	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/optout"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/service/ratelimit"
)

// OptOutRegistry is the slice of the opt-out service the pipelines depend on.
type OptOutRegistry interface {
	IsOptedOut(ctx context.Context, contactType optout.ContactType, value string) bool
	IssueToken(ctx context.Context, contactType optout.ContactType, value string, leadID *uuid.UUID) (*optout.UnsubscribeToken, error)
	HandleCallRequest(ctx context.Context, phone string, leadID *uuid.UUID) error
}

// OutcomeStatus is the pipeline-level disposition of one lead.
type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeBlocked OutcomeStatus = "blocked"
)

// Outcome describes what happened to a single lead in a pipeline. Blocked is
// a policy decision, not an error: nothing was attempted and nothing counts
// against the quota.
type Outcome struct {
	Status  OutcomeStatus
	Reason  string
	Attempt *outreach.Attempt
	Err     error
}

// EmailPipeline performs the full guarded send for one lead: policy gates,
// footer, persist-before-send, provider call with retry, and bookkeeping.
// The provider is fixed at construction.
type EmailPipeline struct {
	provider EmailProvider
	registry OptOutRegistry
	governor *ratelimit.Governor
	attempts outreach.AttemptRepository
	leads    lead.Repository
	footer   Footer
	retrier  *retrier
	sink     audit.Sink
	logger   *zap.Logger
	dryRun   bool

	// now is the clock, replaceable in tests.
	now func() time.Time
}

func NewEmailPipeline(
	provider EmailProvider,
	registry OptOutRegistry,
	governor *ratelimit.Governor,
	attempts outreach.AttemptRepository,
	leads lead.Repository,
	footer Footer,
	sink audit.Sink,
	logger *zap.Logger,
	dryRun bool,
) *EmailPipeline {
	return &EmailPipeline{
		provider: provider,
		registry: registry,
		governor: governor,
		attempts: attempts,
		leads:    leads,
		footer:   footer,
		retrier:  newRetrier(),
		sink:     sink,
		logger:   logger,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// Send runs the pipeline for one lead. The opt-out gate re-checks the
// registry here so a stale selection batch can never bypass it.
func (p *EmailPipeline) Send(ctx context.Context, l *lead.Lead, content *outreach.EmailContent, campaignID *uuid.UUID) *Outcome {
	email := l.Email
	if email == "" || !l.EmailVerified {
		return &Outcome{Status: OutcomeBlocked, Reason: "no verified email"}
	}

	if p.registry.IsOptedOut(ctx, optout.ContactEmail, email) {
		p.sink.Emit(audit.NewEvent("INFO", audit.ComponentPipeline, "send_blocked_opt_out", &l.ID, map[string]interface{}{
			"email": email,
		}))
		return &Outcome{Status: OutcomeBlocked, Reason: "opted out"}
	}

	now := p.now().UTC()
	ok, err := p.governor.CheckDomainThrottle(ctx, email, now)
	if err != nil {
		return &Outcome{Status: OutcomeFailed, Reason: "domain throttle check failed", Err: err}
	}
	if !ok {
		return &Outcome{Status: OutcomeBlocked, Reason: "domain throttled"}
	}

	if p.dryRun {
		p.logger.Info("dry run, skipping send",
			zap.String("lead_id", l.ID.String()),
			zap.String("subject", content.Subject))
		p.sink.Emit(audit.NewEvent("INFO", audit.ComponentPipeline, "dry_run_send", &l.ID, map[string]interface{}{
			"email":   email,
			"subject": content.Subject,
		}))
		return &Outcome{Status: OutcomeSent, Reason: "dry run"}
	}

	token, err := p.registry.IssueToken(ctx, optout.ContactEmail, email, &l.ID)
	if err != nil {
		return &Outcome{Status: OutcomeFailed, Reason: "unsubscribe token", Err: err}
	}
	bodyHTML, bodyText := p.footer.Apply(content.BodyHTML, content.BodyText, token.Token)

	// Persist before send. If the process dies past this point the pending
	// row shows an attempt may have reached the provider.
	attempt := outreach.NewAttempt(l.ID, campaignID, outreach.ChannelEmail, email,
		outreach.ContentHash(content.Subject, bodyText), now)
	if err := p.attempts.Create(ctx, attempt); err != nil {
		return &Outcome{Status: OutcomeFailed, Reason: "persist attempt", Err: err}
	}

	var result *SendResult
	sendErr := p.retrier.do(ctx, p.provider.Name(), func(ctx context.Context) error {
		var err error
		result, err = p.provider.Send(ctx, EmailMessage{
			To:       email,
			Subject:  content.Subject,
			BodyHTML: bodyHTML,
			BodyText: bodyText,
		})
		return err
	})

	completed := p.now().UTC()
	if sendErr != nil {
		p.finalize(ctx, attempt, outreach.AttemptResult{
			Status:      outreach.StatusFailed,
			CompletedAt: completed,
			ProviderResponse: map[string]interface{}{
				"error": sendErr.Error(),
			},
		})
		p.handlePermanentFailure(ctx, l, sendErr)
		p.sink.Emit(audit.NewEvent("ERROR", audit.ComponentPipeline, "send_failed", &l.ID, map[string]interface{}{
			"email": email,
			"error": sendErr.Error(),
		}))
		return &Outcome{Status: OutcomeFailed, Reason: "provider send", Attempt: attempt, Err: sendErr}
	}

	p.finalize(ctx, attempt, outreach.AttemptResult{
		Status:            outreach.StatusSent,
		ProviderMessageID: result.MessageID,
		ProviderResponse:  result.Response,
		CompletedAt:       completed,
	})
	if err := p.leads.RecordContact(ctx, l.ID, completed); err != nil {
		p.logger.Error("failed to record contact", zap.String("lead_id", l.ID.String()), zap.Error(err))
	}
	p.sink.Emit(audit.NewEvent("INFO", audit.ComponentPipeline, "email_sent", &l.ID, map[string]interface{}{
		"email":      email,
		"message_id": result.MessageID,
	}))
	return &Outcome{Status: OutcomeSent, Attempt: attempt}
}

func (p *EmailPipeline) finalize(ctx context.Context, attempt *outreach.Attempt, res outreach.AttemptResult) {
	if err := p.attempts.Finalize(ctx, attempt.ID, res); err != nil {
		p.logger.Error("failed to finalize attempt",
			zap.String("attempt_id", attempt.ID.String()),
			zap.Error(err))
		return
	}
	attempt.Status = res.Status
	attempt.ProviderMessageID = res.ProviderMessageID
	attempt.CompletedAt = &res.CompletedAt
}

// handlePermanentFailure clears the verification flag after a permanent
// provider rejection so the lead drops out of future selections.
func (p *EmailPipeline) handlePermanentFailure(ctx context.Context, l *lead.Lead, sendErr error) {
	if domainerrors.IsRetryable(sendErr) {
		return
	}
	if err := p.leads.ClearEmailVerified(ctx, l.ID); err != nil {
		p.logger.Error("failed to clear email verification",
			zap.String("lead_id", l.ID.String()),
			zap.Error(err))
	}
}
