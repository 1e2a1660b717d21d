package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devsync/outreach-backend/internal/domain/approval"
	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/infrastructure/database"
)

// approvalRepository implements approval.Repository using PostgreSQL
type approvalRepository struct {
	db *database.Pool
}

// NewApprovalRepository creates a new approval queue repository
func NewApprovalRepository(db *database.Pool) approval.Repository {
	return &approvalRepository{db: db}
}

const approvalColumns = `
	id, lead_id, channel, content, status,
	reviewed_by, reviewed_at, created_at, expires_at`

func (r *approvalRepository) Create(ctx context.Context, item *approval.Item) error {
	query := `
		INSERT INTO approval_items (` + approvalColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Pgx().Exec(ctx, query,
		item.ID, item.LeadID, item.Channel, []byte(item.Content), item.Status,
		nullString(item.ReviewedBy), item.ReviewedAt, item.CreatedAt, item.ExpiresAt,
	)
	if err != nil {
		return domainerrors.NewInternalError("failed to create approval item").WithCause(err)
	}
	return nil
}

func (r *approvalRepository) GetByID(ctx context.Context, id uuid.UUID) (*approval.Item, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_items WHERE id = $1`
	item, err := scanApprovalItem(r.db.Pgx().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrApprovalNotFound
		}
		return nil, domainerrors.NewInternalError("failed to get approval item").WithCause(err)
	}
	return item, nil
}

func (r *approvalRepository) Update(ctx context.Context, item *approval.Item) error {
	query := `
		UPDATE approval_items
		SET content = $2, status = $3, reviewed_by = $4, reviewed_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Pgx().Exec(ctx, query,
		item.ID, []byte(item.Content), item.Status,
		nullString(item.ReviewedBy), item.ReviewedAt,
	)
	if err != nil {
		return domainerrors.NewInternalError("failed to update approval item").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrApprovalNotFound
	}
	return nil
}

func (r *approvalRepository) List(ctx context.Context, f approval.Filter) ([]*approval.Item, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_items
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR channel = $2)
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Pgx().Query(ctx, query, f.Status, f.Channel, limit, f.Offset)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to query approval items").WithCause(err)
	}
	defer rows.Close()
	return collectApprovalItems(rows)
}

func (r *approvalRepository) ListForLead(ctx context.Context, leadID uuid.UUID) ([]*approval.Item, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_items
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pgx().Query(ctx, query, leadID)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to query approval items").WithCause(err)
	}
	defer rows.Close()
	return collectApprovalItems(rows)
}

func (r *approvalRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE approval_items
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at <= $1
	`
	tag, err := r.db.Pgx().Exec(ctx, query, now)
	if err != nil {
		return 0, domainerrors.NewInternalError("failed to expire approval items").WithCause(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *approvalRepository) Stats(ctx context.Context) (*approval.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'expired')
		FROM approval_items
	`
	var s approval.Stats
	err := r.db.Pgx().QueryRow(ctx, query).Scan(
		&s.Total, &s.Pending, &s.Approved, &s.Rejected, &s.Sent, &s.Expired,
	)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to compute approval stats").WithCause(err)
	}
	return &s, nil
}

func scanApprovalItem(row pgx.Row) (*approval.Item, error) {
	var item approval.Item
	var reviewedBy *string
	var content []byte
	err := row.Scan(
		&item.ID, &item.LeadID, &item.Channel, &content, &item.Status,
		&reviewedBy, &item.ReviewedAt, &item.CreatedAt, &item.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	item.Content = content
	if reviewedBy != nil {
		item.ReviewedBy = *reviewedBy
	}
	return &item, nil
}

func collectApprovalItems(rows pgx.Rows) ([]*approval.Item, error) {
	var items []*approval.Item
	for rows.Next() {
		item, err := scanApprovalItem(rows)
		if err != nil {
			return nil, domainerrors.NewInternalError("failed to scan approval item").WithCause(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewInternalError("failed to iterate approval items").WithCause(err)
	}
	return items, nil
}
