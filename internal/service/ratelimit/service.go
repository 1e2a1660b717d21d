package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

// domainThrottleWindow is the trailing window for the per-domain email limit.
const domainThrottleWindow = 60 * time.Minute

// Limits carries the quota configuration the governor enforces.
type Limits struct {
	DailyEmailCap       int
	DailyCallCap        int
	CooldownDays        int
	PerDomainEmailLimit int
	CallWindowStart     string // HH:MM in Location
	CallWindowEnd       string // HH:MM in Location
	Location            *time.Location
}

// Governor answers every quota question from persisted attempt history.
// There are no in-memory counters; a restart changes nothing.
type Governor struct {
	attempts outreach.AttemptRepository
	limits   Limits
	logger   *zap.Logger
}

func NewGovernor(attempts outreach.AttemptRepository, limits Limits, logger *zap.Logger) *Governor {
	if limits.Location == nil {
		limits.Location = time.UTC
	}
	return &Governor{attempts: attempts, limits: limits, logger: logger}
}

// dayStart returns the UTC midnight the daily caps reset at.
func dayStart(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

func (g *Governor) capFor(channel outreach.Channel) int {
	if channel == outreach.ChannelCall {
		return g.limits.DailyCallCap
	}
	return g.limits.DailyEmailCap
}

// RemainingCapacity returns how many sends the channel has left in the
// current UTC day. A storage failure surfaces as an error; callers must not
// send without a definitive answer.
func (g *Governor) RemainingCapacity(ctx context.Context, channel outreach.Channel, now time.Time) (int, error) {
	used, err := g.attempts.CountForChannelSince(ctx, channel, dayStart(now))
	if err != nil {
		return 0, domainerrors.ErrStorageUnavailable.WithCause(err)
	}
	remaining := g.capFor(channel) - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CheckCooldown reports whether the lead's last contact is old enough for
// another attempt. A contact exactly at the boundary is eligible.
func (g *Governor) CheckCooldown(l *lead.Lead, now time.Time) bool {
	if l.LastContactedAt == nil {
		return true
	}
	cutoff := now.AddDate(0, 0, -g.limits.CooldownDays)
	return !l.LastContactedAt.After(cutoff)
}

// CooldownCutoff returns the newest last-contact instant still eligible.
func (g *Governor) CooldownCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -g.limits.CooldownDays)
}

// CheckDomainThrottle reports whether another email to this recipient's
// domain fits inside the trailing per-domain window.
func (g *Governor) CheckDomainThrottle(ctx context.Context, email string, now time.Time) (bool, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false, domainerrors.NewValidationError("INVALID_EMAIL", fmt.Sprintf("no domain in %q", email))
	}
	domain := strings.ToLower(email[at+1:])

	count, err := g.attempts.CountForDomainSince(ctx, domain, now.Add(-domainThrottleWindow))
	if err != nil {
		return false, domainerrors.ErrStorageUnavailable.WithCause(err)
	}
	return count < g.limits.PerDomainEmailLimit, nil
}

// IsWithinCallWindow reports whether now falls inside the calling window:
// weekdays only, [start, end) in the configured timezone.
func (g *Governor) IsWithinCallWindow(now time.Time) bool {
	local := now.In(g.limits.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	start := windowInstant(local, g.limits.CallWindowStart, g.limits.Location)
	end := windowInstant(local, g.limits.CallWindowEnd, g.limits.Location)
	return !local.Before(start) && local.Before(end)
}

// RemainingWindow returns how much of today's calling window is left, zero
// when outside it.
func (g *Governor) RemainingWindow(now time.Time) time.Duration {
	if !g.IsWithinCallWindow(now) {
		return 0
	}
	local := now.In(g.limits.Location)
	end := windowInstant(local, g.limits.CallWindowEnd, g.limits.Location)
	return end.Sub(local)
}

func windowInstant(day time.Time, hhmm string, loc *time.Location) time.Time {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc)
}

// ChannelStatus is the API-facing quota snapshot for one channel.
type ChannelStatus struct {
	Channel   outreach.Channel `json:"channel"`
	DailyCap  int              `json:"daily_cap"`
	Used      int              `json:"used"`
	Remaining int              `json:"remaining"`
	ResetsAt  time.Time        `json:"resets_at"`
}

// Status reports current usage for both channels plus the call window state.
type Status struct {
	Email            ChannelStatus `json:"email"`
	Call             ChannelStatus `json:"call"`
	WithinCallWindow bool          `json:"within_call_window"`
	CooldownDays     int           `json:"cooldown_days"`
}

func (g *Governor) Status(ctx context.Context, now time.Time) (*Status, error) {
	resetsAt := dayStart(now).AddDate(0, 0, 1)

	status := &Status{
		WithinCallWindow: g.IsWithinCallWindow(now),
		CooldownDays:     g.limits.CooldownDays,
	}
	for _, channel := range []outreach.Channel{outreach.ChannelEmail, outreach.ChannelCall} {
		used, err := g.attempts.CountForChannelSince(ctx, channel, dayStart(now))
		if err != nil {
			return nil, domainerrors.ErrStorageUnavailable.WithCause(err)
		}
		limit := g.capFor(channel)
		remaining := limit - used
		if remaining < 0 {
			remaining = 0
		}
		cs := ChannelStatus{
			Channel:   channel,
			DailyCap:  limit,
			Used:      used,
			Remaining: remaining,
			ResetsAt:  resetsAt,
		}
		if channel == outreach.ChannelCall {
			status.Call = cs
		} else {
			status.Email = cs
		}
	}
	return status, nil
}
