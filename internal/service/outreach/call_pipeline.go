package outreach

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/audit"
	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/optout"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/service/ratelimit"
)

// CallPipeline performs the guarded placement of one outbound call. Terminal
// outcomes arrive asynchronously through HandleStatus and HandleTranscript.
type CallPipeline struct {
	provider    CallProvider
	registry    OptOutRegistry
	governor    *ratelimit.Governor
	dnc         DNCRegistry
	attempts    outreach.AttemptRepository
	leads       lead.Repository
	retrier     *retrier
	sink        audit.Sink
	logger      *zap.Logger
	companyName string
	callbackURL string
	dryRun      bool

	// now is the clock, replaceable in tests.
	now func() time.Time
}

func NewCallPipeline(
	provider CallProvider,
	registry OptOutRegistry,
	governor *ratelimit.Governor,
	dnc DNCRegistry,
	attempts outreach.AttemptRepository,
	leads lead.Repository,
	sink audit.Sink,
	logger *zap.Logger,
	companyName, callbackURL string,
	dryRun bool,
) *CallPipeline {
	return &CallPipeline{
		provider:    provider,
		registry:    registry,
		governor:    governor,
		dnc:         dnc,
		attempts:    attempts,
		leads:       leads,
		retrier:     newRetrier(),
		sink:        sink,
		logger:      logger,
		companyName: companyName,
		callbackURL: callbackURL,
		dryRun:      dryRun,
		now:         time.Now,
	}
}

// Place runs the pipeline for one lead. Window, DNC, and opt-out gates all
// resolve to blocked outcomes; only provider trouble is an error.
func (p *CallPipeline) Place(ctx context.Context, l *lead.Lead, campaignID *uuid.UUID) *Outcome {
	phone := l.Phone
	if phone == "" || !l.PhoneVerified {
		return &Outcome{Status: OutcomeBlocked, Reason: "no verified phone"}
	}

	now := p.now().UTC()
	if !p.governor.IsWithinCallWindow(now) {
		return &Outcome{Status: OutcomeBlocked, Reason: "outside call window"}
	}
	if p.dnc.Contains(phone) {
		p.sink.Emit(audit.NewEvent("INFO", audit.ComponentPipeline, "call_blocked_dnc", &l.ID, map[string]interface{}{
			"phone": phone,
		}))
		return &Outcome{Status: OutcomeBlocked, Reason: "on DNC registry"}
	}
	if p.registry.IsOptedOut(ctx, optout.ContactPhone, phone) {
		p.sink.Emit(audit.NewEvent("INFO", audit.ComponentPipeline, "call_blocked_opt_out", &l.ID, map[string]interface{}{
			"phone": phone,
		}))
		return &Outcome{Status: OutcomeBlocked, Reason: "opted out"}
	}

	script := CallScript(l, p.companyName)

	if p.dryRun {
		p.logger.Info("dry run, skipping call", zap.String("lead_id", l.ID.String()))
		p.sink.Emit(audit.NewEvent("INFO", audit.ComponentPipeline, "dry_run_call", &l.ID, map[string]interface{}{
			"phone": phone,
		}))
		return &Outcome{Status: OutcomeSent, Reason: "dry run"}
	}

	attempt := outreach.NewAttempt(l.ID, campaignID, outreach.ChannelCall, phone,
		outreach.ContentHash(script), now)
	if err := p.attempts.Create(ctx, attempt); err != nil {
		return &Outcome{Status: OutcomeFailed, Reason: "persist attempt", Err: err}
	}

	var result *CallResult
	placeErr := p.retrier.do(ctx, p.provider.Name(), func(ctx context.Context) error {
		var err error
		result, err = p.provider.Place(ctx, CallRequest{
			To:                phone,
			Script:            script,
			StatusCallbackURL: p.callbackURL,
		})
		return err
	})

	completed := p.now().UTC()
	if placeErr != nil {
		p.finalize(ctx, attempt, outreach.AttemptResult{
			Status:  outreach.StatusFailed,
			Outcome: outreach.OutcomeFailed,
			ProviderResponse: map[string]interface{}{
				"error": placeErr.Error(),
			},
			CompletedAt: completed,
		})
		p.sink.Emit(audit.NewEvent("ERROR", audit.ComponentPipeline, "call_failed", &l.ID, map[string]interface{}{
			"phone": phone,
			"error": placeErr.Error(),
		}))
		return &Outcome{Status: OutcomeFailed, Reason: "provider place", Attempt: attempt, Err: placeErr}
	}

	// The call is in flight; status stays sent until the webhook reports the
	// terminal outcome. Initiation counts as contact for cooldown.
	if err := p.attempts.Finalize(ctx, attempt.ID, outreach.AttemptResult{
		Status:            outreach.StatusSent,
		ProviderMessageID: result.CallID,
		ProviderResponse:  result.Response,
		CompletedAt:       completed,
	}); err != nil {
		p.logger.Error("failed to finalize attempt",
			zap.String("attempt_id", attempt.ID.String()),
			zap.Error(err))
	}
	attempt.Status = outreach.StatusSent
	attempt.ProviderMessageID = result.CallID
	if err := p.leads.RecordContact(ctx, l.ID, completed); err != nil {
		p.logger.Error("failed to record contact", zap.String("lead_id", l.ID.String()), zap.Error(err))
	}
	p.sink.Emit(audit.NewEvent("INFO", audit.ComponentPipeline, "call_placed", &l.ID, map[string]interface{}{
		"phone":   phone,
		"call_id": result.CallID,
	}))
	return &Outcome{Status: OutcomeSent, Attempt: attempt}
}

func (p *CallPipeline) finalize(ctx context.Context, attempt *outreach.Attempt, res outreach.AttemptResult) {
	if err := p.attempts.Finalize(ctx, attempt.ID, res); err != nil {
		p.logger.Error("failed to finalize attempt",
			zap.String("attempt_id", attempt.ID.String()),
			zap.Error(err))
		return
	}
	attempt.Status = res.Status
	attempt.Outcome = res.Outcome
}

// providerOutcome maps telephony status callbacks onto call outcomes.
func providerOutcome(status string) outreach.CallOutcome {
	switch status {
	case "completed", "answered":
		return outreach.OutcomeAnswered
	case "busy":
		return outreach.OutcomeBusy
	case "no-answer", "noanswer":
		return outreach.OutcomeNoAnswer
	case "voicemail", "machine":
		return outreach.OutcomeVoicemail
	default:
		return outreach.OutcomeFailed
	}
}

// HandleStatus processes a telephony status callback for a placed call.
func (p *CallPipeline) HandleStatus(ctx context.Context, callID, status string, durationSeconds *int) error {
	attempt, err := p.attempts.GetByProviderMessageID(ctx, callID)
	if err != nil {
		return err
	}

	outcome := providerOutcome(status)
	res := outreach.AttemptResult{
		Status:          outreach.StatusDelivered,
		Outcome:         outcome,
		DurationSeconds: durationSeconds,
		CompletedAt:     p.now().UTC(),
	}
	if outcome == outreach.OutcomeFailed {
		res.Status = outreach.StatusFailed
	}
	if err := p.attempts.Finalize(ctx, attempt.ID, res); err != nil {
		return err
	}
	p.sink.Emit(audit.NewEvent("INFO", audit.ComponentWebhook, "call_status", &attempt.LeadID, map[string]interface{}{
		"call_id": callID,
		"status":  status,
		"outcome": string(outcome),
	}))
	return nil
}

// HandleTranscript stores a call transcript, extracts the caller's intent,
// and applies its side effects. A remove intent opts the number out on the
// spot.
func (p *CallPipeline) HandleTranscript(ctx context.Context, callID, transcript string) (outreach.Intent, error) {
	attempt, err := p.attempts.GetByProviderMessageID(ctx, callID)
	if err != nil {
		return outreach.IntentUnknown, err
	}

	intent := outreach.DetectIntent(transcript)
	if err := p.attempts.Finalize(ctx, attempt.ID, outreach.AttemptResult{
		Status:      outreach.StatusDelivered,
		Outcome:     outreach.OutcomeAnswered,
		Transcript:  transcript,
		CompletedAt: p.now().UTC(),
	}); err != nil {
		return intent, err
	}

	if intent == outreach.IntentRemove {
		if err := p.registry.HandleCallRequest(ctx, attempt.Recipient, &attempt.LeadID); err != nil {
			return intent, err
		}
	}

	p.sink.Emit(audit.NewEvent("INFO", audit.ComponentWebhook, "call_transcript", &attempt.LeadID, map[string]interface{}{
		"call_id": callID,
		"intent":  string(intent),
	}))
	return intent, nil
}
