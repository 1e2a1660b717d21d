package eligibility

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/optout"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/service/ratelimit"
)

// OptOutChecker is the slice of the opt-out registry the selector needs.
type OptOutChecker interface {
	IsOptedOut(ctx context.Context, contactType optout.ContactType, value string) bool
}

// Selector builds the batch of leads a campaign cycle may contact. The batch
// is bounded by the channel's remaining daily capacity, so a cycle can never
// request more sends than the quota allows.
type Selector struct {
	leads    lead.Repository
	governor *ratelimit.Governor
	optOuts  OptOutChecker
	logger   *zap.Logger
}

func NewSelector(leads lead.Repository, governor *ratelimit.Governor, optOuts OptOutChecker, logger *zap.Logger) *Selector {
	return &Selector{
		leads:    leads,
		governor: governor,
		optOuts:  optOuts,
		logger:   logger,
	}
}

// Select returns eligible leads for the channel, at most as many as the
// remaining daily capacity. Leads never contacted come first, then the
// longest-idle ones.
func (s *Selector) Select(ctx context.Context, channel outreach.Channel, now time.Time) ([]*lead.Lead, error) {
	remaining, err := s.governor.RemainingCapacity(ctx, channel, now)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		s.logger.Info("daily capacity exhausted", zap.String("channel", string(channel)))
		return nil, nil
	}

	candidates, err := s.leads.FindEligible(ctx, channel, s.governor.CooldownCutoff(now), remaining)
	if err != nil {
		return nil, err
	}

	// The query already excludes flagged leads; the registry check covers
	// opt-outs recorded for a contact no lead row carries the flag for.
	selected := candidates[:0]
	for _, l := range candidates {
		if s.optOuts.IsOptedOut(ctx, optout.ContactType(channel.ContactType()), l.ContactPoint(channel)) {
			continue
		}
		selected = append(selected, l)
	}
	return selected, nil
}
