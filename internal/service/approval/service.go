package approval

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/approval"
	"github.com/devsync/outreach-backend/internal/domain/audit"
	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

// Queue manages the human review workflow for generated outreach content.
type Queue struct {
	repo    approval.Repository
	sink    audit.Sink
	logger  *zap.Logger
	ttlDays int
}

func NewQueue(repo approval.Repository, sink audit.Sink, logger *zap.Logger, ttlDays int) *Queue {
	return &Queue{
		repo:    repo,
		sink:    sink,
		logger:  logger,
		ttlDays: ttlDays,
	}
}

// Enqueue stores generated content for review.
func (q *Queue) Enqueue(ctx context.Context, leadID uuid.UUID, channel outreach.Channel, content json.RawMessage) (*approval.Item, error) {
	item := approval.NewItem(leadID, channel, content, q.ttlDays, time.Now().UTC())
	if err := q.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	q.sink.Emit(audit.NewEvent("INFO", audit.ComponentQueue, "approval_enqueued", &leadID, map[string]interface{}{
		"item_id": item.ID.String(),
		"channel": string(channel),
	}))
	return item, nil
}

// Approve marks a pending item approved, optionally replacing its content
// with the reviewer's edits. An overdue item flips to expired instead and the
// call fails.
func (q *Queue) Approve(ctx context.Context, id uuid.UUID, reviewerID string, editedContent json.RawMessage) (*approval.Item, error) {
	item, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !item.Approve(reviewerID, editedContent, time.Now().UTC()) {
		// Persist the expiry side effect before reporting failure.
		if item.Status == approval.StatusExpired {
			if err := q.repo.Update(ctx, item); err != nil {
				return nil, err
			}
		}
		return nil, domainerrors.NewBusinessError("NOT_PENDING",
			"approval item is not pending").WithDetails(map[string]interface{}{
			"status": string(item.Status),
		})
	}
	if err := q.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	q.sink.Emit(audit.NewEvent("INFO", audit.ComponentQueue, "approval_approved", &item.LeadID, map[string]interface{}{
		"item_id": item.ID.String(),
	}))
	return item, nil
}

// Reject marks a pending item rejected, recording the reviewer's reason.
func (q *Queue) Reject(ctx context.Context, id uuid.UUID, reviewerID, reason string) (*approval.Item, error) {
	item, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Reject(reviewerID, reason, time.Now().UTC()) {
		return nil, domainerrors.NewBusinessError("NOT_PENDING", "approval item is not pending")
	}
	if err := q.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	q.sink.Emit(audit.NewEvent("INFO", audit.ComponentQueue, "approval_rejected", &item.LeadID, map[string]interface{}{
		"item_id": item.ID.String(),
		"reason":  reason,
	}))
	return item, nil
}

// Edit replaces the content of a pending item without changing its status.
func (q *Queue) Edit(ctx context.Context, id uuid.UUID, reviewerID string, content json.RawMessage) (*approval.Item, error) {
	item, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Edit(reviewerID, content, time.Now().UTC()) {
		return nil, domainerrors.NewBusinessError("NOT_PENDING", "approval item is not pending")
	}
	if err := q.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// MarkSent transitions an approved item after its content went out.
func (q *Queue) MarkSent(ctx context.Context, id uuid.UUID) error {
	item, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !item.MarkSent() {
		return domainerrors.NewBusinessError("NOT_APPROVED", "approval item is not approved")
	}
	return q.repo.Update(ctx, item)
}

// NextApproved returns approved items for the channel, oldest first, up to
// limit. The campaign cycle drains these instead of generating new content.
func (q *Queue) NextApproved(ctx context.Context, channel outreach.Channel, limit int) ([]*approval.Item, error) {
	status := approval.StatusApproved
	return q.repo.List(ctx, approval.Filter{
		Status:  &status,
		Channel: &channel,
		Limit:   limit,
	})
}

// HasPending reports whether the lead already has a pending item on the
// channel, so a cycle does not enqueue the same lead twice.
func (q *Queue) HasPending(ctx context.Context, leadID uuid.UUID, channel outreach.Channel) (bool, error) {
	items, err := q.repo.ListForLead(ctx, leadID)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.Status == approval.StatusPending && item.Channel == channel {
			return true, nil
		}
	}
	return false, nil
}

func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*approval.Item, error) {
	return q.repo.GetByID(ctx, id)
}

func (q *Queue) List(ctx context.Context, f approval.Filter) ([]*approval.Item, error) {
	return q.repo.List(ctx, f)
}

func (q *Queue) Stats(ctx context.Context) (*approval.Stats, error) {
	return q.repo.Stats(ctx)
}

// ExpireOld sweeps every overdue pending item to expired. The scheduler runs
// this at the start of each cycle.
func (q *Queue) ExpireOld(ctx context.Context) (int, error) {
	n, err := q.repo.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.Info("expired stale approval items", zap.Int("count", n))
		q.sink.Emit(audit.NewEvent("INFO", audit.ComponentQueue, "approvals_expired", nil, map[string]interface{}{
			"count": n,
		}))
	}
	return n, nil
}
