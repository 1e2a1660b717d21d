package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/devsync/outreach-backend/internal/domain/approval"
	"github.com/devsync/outreach-backend/internal/domain/audit"
	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/infrastructure/telemetry"
	outreachsvc "github.com/devsync/outreach-backend/internal/service/outreach"
)

// Call pacing strategies. Block places calls back to back; spread spaces the
// batch evenly across the rest of the calling window.
const (
	PacingBlock  = "block"
	PacingSpread = "spread"
)

// LeadSelector builds the capacity-bounded batch for a channel.
type LeadSelector interface {
	Select(ctx context.Context, channel outreach.Channel, now time.Time) ([]*lead.Lead, error)
}

// EmailSender runs the guarded email pipeline for one lead.
type EmailSender interface {
	Send(ctx context.Context, l *lead.Lead, content *outreach.EmailContent, campaignID *uuid.UUID) *outreachsvc.Outcome
}

// CallPlacer runs the guarded call pipeline for one lead.
type CallPlacer interface {
	Place(ctx context.Context, l *lead.Lead, campaignID *uuid.UUID) *outreachsvc.Outcome
}

// ApprovalGate is the slice of the approval queue a cycle drives.
type ApprovalGate interface {
	Enqueue(ctx context.Context, leadID uuid.UUID, channel outreach.Channel, content json.RawMessage) (*approval.Item, error)
	HasPending(ctx context.Context, leadID uuid.UUID, channel outreach.Channel) (bool, error)
	NextApproved(ctx context.Context, channel outreach.Channel, limit int) ([]*approval.Item, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	ExpireOld(ctx context.Context) (int, error)
}

// PacingGuard exposes the rate-limit decisions the cycle needs up front.
type PacingGuard interface {
	RemainingCapacity(ctx context.Context, channel outreach.Channel, now time.Time) (int, error)
	IsWithinCallWindow(now time.Time) bool
	RemainingWindow(now time.Time) time.Duration
}

// Options carries the cycle behavior switches from configuration.
type Options struct {
	// ApprovalMode routes generated content through human review instead of
	// sending directly. Cycles then drain previously approved items.
	ApprovalMode bool
	// Pacing is PacingBlock or PacingSpread.
	Pacing string
	// CompanyName appears in call scripts queued for review.
	CompanyName string
}

// Orchestrator runs campaign cycles. At most one cycle per channel runs at a
// time; a second trigger is rejected rather than queued.
type Orchestrator struct {
	selector     LeadSelector
	personalizer outreachsvc.Personalizer
	email        EmailSender
	call         CallPlacer
	approvals    ApprovalGate
	guard        PacingGuard
	campaigns    outreach.CampaignRepository
	leads        lead.Repository
	sink         audit.Sink
	logger       *zap.Logger
	opts         Options

	mu      sync.Mutex
	running map[outreach.Channel]bool

	// now is the clock, replaceable in tests.
	now func() time.Time
}

func NewOrchestrator(
	selector LeadSelector,
	personalizer outreachsvc.Personalizer,
	email EmailSender,
	call CallPlacer,
	approvals ApprovalGate,
	guard PacingGuard,
	campaigns outreach.CampaignRepository,
	leads lead.Repository,
	sink audit.Sink,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		selector:     selector,
		personalizer: personalizer,
		email:        email,
		call:         call,
		approvals:    approvals,
		guard:        guard,
		campaigns:    campaigns,
		leads:        leads,
		sink:         sink,
		logger:       logger,
		opts:         opts,
		running:      make(map[outreach.Channel]bool),
		now:          time.Now,
	}
}

// RunEmailCampaign executes one bounded email cycle and returns its report.
func (o *Orchestrator) RunEmailCampaign(ctx context.Context) (*outreach.Report, error) {
	if err := o.acquire(outreach.ChannelEmail); err != nil {
		return nil, err
	}
	defer o.release(outreach.ChannelEmail)

	o.sweepApprovals(ctx)

	c := outreach.NewCampaign(outreach.ChannelEmail, o.now().UTC())
	if err := o.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}

	t := &tally{}
	exhausted, err := o.capacityExhausted(ctx, outreach.ChannelEmail, t)
	if err != nil {
		return nil, o.abort(ctx, c, t, err)
	}
	if exhausted {
		return o.finish(ctx, c, t)
	}
	if o.opts.ApprovalMode {
		if err := o.drainApprovedEmails(ctx, c, t); err != nil {
			return nil, o.abort(ctx, c, t, err)
		}
		if err := o.enqueueEmailDrafts(ctx, t); err != nil {
			return nil, o.abort(ctx, c, t, err)
		}
	} else if err := o.sendEmails(ctx, c, t); err != nil {
		return nil, o.abort(ctx, c, t, err)
	}
	return o.finish(ctx, c, t)
}

// RunCallCampaign executes one bounded call cycle. Outside the calling window
// the trigger is rejected before any campaign row is written.
func (o *Orchestrator) RunCallCampaign(ctx context.Context) (*outreach.Report, error) {
	if err := o.acquire(outreach.ChannelCall); err != nil {
		return nil, err
	}
	defer o.release(outreach.ChannelCall)

	if !o.guard.IsWithinCallWindow(o.now().UTC()) {
		return nil, domainerrors.NewValidationError("OUTSIDE_CALL_WINDOW",
			"Calls are only placed inside the configured business-hours window")
	}

	o.sweepApprovals(ctx)

	c := outreach.NewCampaign(outreach.ChannelCall, o.now().UTC())
	if err := o.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}

	t := &tally{}
	exhausted, err := o.capacityExhausted(ctx, outreach.ChannelCall, t)
	if err != nil {
		return nil, o.abort(ctx, c, t, err)
	}
	if exhausted {
		return o.finish(ctx, c, t)
	}
	if o.opts.ApprovalMode {
		if err := o.drainApprovedCalls(ctx, c, t); err != nil {
			return nil, o.abort(ctx, c, t, err)
		}
		if err := o.enqueueCallDrafts(ctx, t); err != nil {
			return nil, o.abort(ctx, c, t, err)
		}
	} else if err := o.placeCalls(ctx, c, t); err != nil {
		return nil, o.abort(ctx, c, t, err)
	}
	return o.finish(ctx, c, t)
}

// Running reports which channels have an in-flight cycle.
func (o *Orchestrator) Running() map[string]bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return map[string]bool{
		string(outreach.ChannelEmail): o.running[outreach.ChannelEmail],
		string(outreach.ChannelCall):  o.running[outreach.ChannelCall],
	}
}

// RecentReports returns finalized cycle summaries, newest first.
func (o *Orchestrator) RecentReports(ctx context.Context, limit int) ([]*outreach.Report, error) {
	campaigns, err := o.campaigns.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	reports := make([]*outreach.Report, 0, len(campaigns))
	for _, c := range campaigns {
		reports = append(reports, c.BuildReport())
	}
	return reports, nil
}

func (o *Orchestrator) acquire(channel outreach.Channel) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[channel] {
		return domainerrors.ErrCampaignRunning.WithDetails(map[string]interface{}{
			"channel": string(channel),
		})
	}
	o.running[channel] = true
	return nil
}

func (o *Orchestrator) release(channel outreach.Channel) {
	o.mu.Lock()
	o.running[channel] = false
	o.mu.Unlock()
}

// capacityExhausted short-circuits a cycle whose daily cap is already spent.
// The note it records lands in the report's error list so an operator can see
// why the cycle did nothing. A failed capacity check is surfaced to the
// caller, not folded into the report.
func (o *Orchestrator) capacityExhausted(ctx context.Context, channel outreach.Channel, t *tally) (bool, error) {
	remaining, err := o.guard.RemainingCapacity(ctx, channel, o.now().UTC())
	if err != nil {
		return false, fmt.Errorf("checking capacity: %w", err)
	}
	if remaining == 0 {
		t.errf("daily %s capacity exhausted at cycle start", channel)
		return true, nil
	}
	return false, nil
}

// abort finalizes the campaign row with the fatal note so the failed cycle
// still shows up in history, then hands the error back to the caller.
func (o *Orchestrator) abort(ctx context.Context, c *outreach.Campaign, t *tally, err error) error {
	t.errf("%v", err)
	c.Finalize(t.attempted, t.success, t.failed, t.errs, o.now().UTC())
	if ferr := o.campaigns.Finalize(ctx, c); ferr != nil {
		o.logger.Error("failed to finalize campaign",
			zap.String("campaign_id", c.ID.String()),
			zap.Error(ferr))
	}
	o.logger.Error("campaign cycle aborted",
		zap.String("campaign_id", c.ID.String()),
		zap.String("channel", string(c.Channel)),
		zap.Error(err))
	return err
}

// sweepApprovals expires overdue pending items before the cycle selects or
// drains anything. A failed sweep is logged, not fatal.
func (o *Orchestrator) sweepApprovals(ctx context.Context) {
	if _, err := o.approvals.ExpireOld(ctx); err != nil {
		o.logger.Warn("approval expiry sweep failed", zap.Error(err))
	}
}

func (o *Orchestrator) sendEmails(ctx context.Context, c *outreach.Campaign, t *tally) error {
	batch, err := o.selector.Select(ctx, outreach.ChannelEmail, o.now().UTC())
	if err != nil {
		return fmt.Errorf("selecting leads: %w", err)
	}
	for _, l := range batch {
		if ctx.Err() != nil {
			t.errf("cycle interrupted: %v", ctx.Err())
			return nil
		}
		content, err := o.personalizer.Generate(ctx, l)
		if err != nil {
			t.failf("generating content for lead %s: %v", l.ID, err)
			continue
		}
		if o.record(c, t, l, o.email.Send(ctx, l, content, &c.ID)) {
			return nil
		}
	}
	return nil
}

func (o *Orchestrator) placeCalls(ctx context.Context, c *outreach.Campaign, t *tally) error {
	now := o.now().UTC()
	batch, err := o.selector.Select(ctx, outreach.ChannelCall, now)
	if err != nil {
		return fmt.Errorf("selecting leads: %w", err)
	}
	limiter := o.callPacer(len(batch), now)
	for _, l := range batch {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				t.errf("cycle interrupted: %v", err)
				return nil
			}
		} else if ctx.Err() != nil {
			t.errf("cycle interrupted: %v", ctx.Err())
			return nil
		}
		if o.record(c, t, l, o.call.Place(ctx, l, &c.ID)) {
			return nil
		}
	}
	return nil
}

// callPacer builds the spread-pacing limiter for a batch. It returns nil when
// pacing is block, the batch is trivial, or the window has already closed.
func (o *Orchestrator) callPacer(n int, now time.Time) *rate.Limiter {
	if o.opts.Pacing != PacingSpread || n <= 1 {
		return nil
	}
	window := o.guard.RemainingWindow(now)
	if window <= 0 {
		return nil
	}
	// Burst of one: the first call goes out immediately, the rest are spaced.
	return rate.NewLimiter(rate.Limit(float64(n)/window.Seconds()), 1)
}

func (o *Orchestrator) drainApprovedEmails(ctx context.Context, c *outreach.Campaign, t *tally) error {
	items, err := o.nextApproved(ctx, outreach.ChannelEmail)
	if err != nil {
		return err
	}
	for _, item := range items {
		l, err := o.leads.GetByID(ctx, item.LeadID)
		if err != nil {
			t.failf("loading lead %s for approval %s: %v", item.LeadID, item.ID, err)
			continue
		}
		var content outreach.EmailContent
		if err := json.Unmarshal(item.Content, &content); err != nil {
			t.failf("decoding approved content %s: %v", item.ID, err)
			continue
		}
		outcome := o.email.Send(ctx, l, &content, &c.ID)
		o.markSent(ctx, item.ID, outcome)
		if o.record(c, t, l, outcome) {
			return nil
		}
	}
	return nil
}

func (o *Orchestrator) drainApprovedCalls(ctx context.Context, c *outreach.Campaign, t *tally) error {
	items, err := o.nextApproved(ctx, outreach.ChannelCall)
	if err != nil {
		return err
	}
	limiter := o.callPacer(len(items), o.now().UTC())
	for _, item := range items {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				t.errf("cycle interrupted: %v", err)
				return nil
			}
		}
		l, err := o.leads.GetByID(ctx, item.LeadID)
		if err != nil {
			t.failf("loading lead %s for approval %s: %v", item.LeadID, item.ID, err)
			continue
		}
		outcome := o.call.Place(ctx, l, &c.ID)
		o.markSent(ctx, item.ID, outcome)
		if o.record(c, t, l, outcome) {
			return nil
		}
	}
	return nil
}

func (o *Orchestrator) nextApproved(ctx context.Context, channel outreach.Channel) ([]*approval.Item, error) {
	remaining, err := o.guard.RemainingCapacity(ctx, channel, o.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("checking capacity: %w", err)
	}
	if remaining == 0 {
		return nil, nil
	}
	items, err := o.approvals.NextApproved(ctx, channel, remaining)
	if err != nil {
		return nil, fmt.Errorf("listing approved items: %w", err)
	}
	return items, nil
}

func (o *Orchestrator) markSent(ctx context.Context, itemID uuid.UUID, outcome *outreachsvc.Outcome) {
	if outcome.Status != outreachsvc.OutcomeSent {
		return
	}
	if err := o.approvals.MarkSent(ctx, itemID); err != nil {
		o.logger.Warn("failed to mark approval item sent",
			zap.String("item_id", itemID.String()),
			zap.Error(err))
	}
}

func (o *Orchestrator) enqueueEmailDrafts(ctx context.Context, t *tally) error {
	batch, err := o.selector.Select(ctx, outreach.ChannelEmail, o.now().UTC())
	if err != nil {
		return fmt.Errorf("selecting leads: %w", err)
	}
	enqueued := 0
	for _, l := range batch {
		content, err := o.personalizer.Generate(ctx, l)
		if err != nil {
			t.errf("generating draft for lead %s: %v", l.ID, err)
			continue
		}
		raw, err := json.Marshal(content)
		if err != nil {
			t.errf("encoding draft for lead %s: %v", l.ID, err)
			continue
		}
		if o.enqueueDraft(ctx, l.ID, outreach.ChannelEmail, raw, t) {
			enqueued++
		}
	}
	o.logDrafts(outreach.ChannelEmail, enqueued)
	return nil
}

func (o *Orchestrator) enqueueCallDrafts(ctx context.Context, t *tally) error {
	batch, err := o.selector.Select(ctx, outreach.ChannelCall, o.now().UTC())
	if err != nil {
		return fmt.Errorf("selecting leads: %w", err)
	}
	enqueued := 0
	for _, l := range batch {
		script := outreach.CallContent{Script: outreachsvc.CallScript(l, o.opts.CompanyName)}
		raw, err := json.Marshal(script)
		if err != nil {
			t.errf("encoding script for lead %s: %v", l.ID, err)
			continue
		}
		if o.enqueueDraft(ctx, l.ID, outreach.ChannelCall, raw, t) {
			enqueued++
		}
	}
	o.logDrafts(outreach.ChannelCall, enqueued)
	return nil
}

func (o *Orchestrator) enqueueDraft(ctx context.Context, leadID uuid.UUID, channel outreach.Channel, raw json.RawMessage, t *tally) bool {
	pending, err := o.approvals.HasPending(ctx, leadID, channel)
	if err != nil {
		t.errf("checking pending approvals for lead %s: %v", leadID, err)
		return false
	}
	if pending {
		return false
	}
	if _, err := o.approvals.Enqueue(ctx, leadID, channel, raw); err != nil {
		t.errf("queueing draft for lead %s: %v", leadID, err)
		return false
	}
	return true
}

func (o *Orchestrator) logDrafts(channel outreach.Channel, enqueued int) {
	if enqueued == 0 {
		return
	}
	o.logger.Info("queued drafts for review",
		zap.String("channel", string(channel)),
		zap.Int("count", enqueued))
	o.sink.Emit(audit.NewEvent("INFO", audit.ComponentScheduler, "drafts_enqueued", nil, map[string]interface{}{
		"channel": string(channel),
		"count":   enqueued,
	}))
}

// record tallies one pipeline outcome. It returns true when the failure is
// critical and the cycle must stop instead of burning through the batch.
func (o *Orchestrator) record(c *outreach.Campaign, t *tally, l *lead.Lead, outcome *outreachsvc.Outcome) bool {
	telemetry.RecordPipelineOutcome(string(c.Channel), string(outcome.Status))
	switch outcome.Status {
	case outreachsvc.OutcomeSent:
		t.attempted++
		t.success++
	case outreachsvc.OutcomeFailed:
		t.attempted++
		t.failed++
		t.errf("lead %s: %v", l.ID, outcome.Err)
		if domainerrors.IsType(outcome.Err, domainerrors.ErrorTypeCritical) {
			o.logger.Error("aborting cycle on critical failure",
				zap.String("lead_id", l.ID.String()),
				zap.Error(outcome.Err))
			return true
		}
	case outreachsvc.OutcomeBlocked:
		o.logger.Debug("lead blocked",
			zap.String("lead_id", l.ID.String()),
			zap.String("reason", outcome.Reason))
	}
	return false
}

func (o *Orchestrator) finish(ctx context.Context, c *outreach.Campaign, t *tally) (*outreach.Report, error) {
	c.Finalize(t.attempted, t.success, t.failed, t.errs, o.now().UTC())
	if err := o.campaigns.Finalize(ctx, c); err != nil {
		o.logger.Error("failed to finalize campaign",
			zap.String("campaign_id", c.ID.String()),
			zap.Error(err))
	}
	report := c.BuildReport()
	telemetry.RecordCampaignCycle(string(c.Channel), time.Duration(report.DurationSeconds*float64(time.Second)))
	o.logger.Info("campaign cycle complete",
		zap.String("campaign_id", c.ID.String()),
		zap.String("channel", string(c.Channel)),
		zap.Int("attempted", report.TotalAttempted),
		zap.Int("success", report.TotalSuccess),
		zap.Int("failed", report.TotalFailed),
		zap.Int("errors", report.ErrorCount))
	o.sink.Emit(audit.NewEvent("INFO", audit.ComponentScheduler, "campaign_completed", nil, map[string]interface{}{
		"campaign_id": c.ID.String(),
		"channel":     string(c.Channel),
		"attempted":   report.TotalAttempted,
		"success":     report.TotalSuccess,
		"failed":      report.TotalFailed,
	}))
	return report, nil
}

// tally accumulates per-cycle counters. A lead whose processing fails before
// the provider is reached still counts as attempted and failed.
type tally struct {
	attempted int
	success   int
	failed    int
	errs      []string
}

func (t *tally) errf(format string, args ...interface{}) {
	t.errs = append(t.errs, fmt.Sprintf(format, args...))
}

func (t *tally) failf(format string, args ...interface{}) {
	t.attempted++
	t.failed++
	t.errf(format, args...)
}
