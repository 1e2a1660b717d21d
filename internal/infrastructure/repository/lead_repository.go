package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/infrastructure/database"
)

// leadRepository implements lead.Repository using PostgreSQL
type leadRepository struct {
	db *database.Pool
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *database.Pool) lead.Repository {
	return &leadRepository{db: db}
}

const leadColumns = `
	id, source, business_name, city, category, website,
	primary_email, primary_phone,
	email_verified, phone_verified, verification_confidence,
	opted_out, opted_out_at, opted_out_method,
	last_contacted_at, contact_count, created_at, updated_at`

func (r *leadRepository) Create(ctx context.Context, l *lead.Lead) error {
	query := `
		INSERT INTO leads (` + leadColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18
		)
	`
	_, err := r.db.Pgx().Exec(ctx, query,
		l.ID, l.Source, l.BusinessName, l.City, l.Category, l.Website,
		nullString(l.Email), nullString(l.Phone),
		l.EmailVerified, l.PhoneVerified, l.VerificationConfidence,
		l.OptedOut, l.OptedOutAt, nullString(l.OptedOutMethod),
		l.LastContactedAt, l.ContactCount, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return domainerrors.NewInternalError("failed to create lead").WithCause(err)
	}
	return nil
}

func (r *leadRepository) GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	l, err := scanLead(r.db.Pgx().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrLeadNotFound
		}
		return nil, domainerrors.NewInternalError("failed to get lead").WithCause(err)
	}
	return l, nil
}

func (r *leadRepository) FindByContact(ctx context.Context, contactType, value string) (*lead.Lead, error) {
	column := "primary_email"
	if contactType == "phone" {
		column = "primary_phone"
	}
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s = $1 ORDER BY created_at LIMIT 1`, leadColumns, column)
	l, err := scanLead(r.db.Pgx().QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrLeadNotFound
		}
		return nil, domainerrors.NewInternalError("failed to find lead by contact").WithCause(err)
	}
	return l, nil
}

// eligibleLeadsQuery builds the per-channel eligibility query. The cooldown
// comparison is boundary inclusive to match the governor's cooldown check.
func eligibleLeadsQuery(channel outreach.Channel) string {
	verifiedColumn := "email_verified"
	contactColumn := "primary_email"
	if channel == outreach.ChannelCall {
		verifiedColumn = "phone_verified"
		contactColumn = "primary_phone"
	}
	return fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE %s = TRUE
		  AND %s IS NOT NULL
		  AND opted_out = FALSE
		  AND (last_contacted_at IS NULL OR last_contacted_at <= $1)
		ORDER BY last_contacted_at ASC NULLS FIRST, created_at ASC
		LIMIT $2
	`, leadColumns, verifiedColumn, contactColumn)
}

func (r *leadRepository) FindEligible(ctx context.Context, channel outreach.Channel, contactedBefore time.Time, limit int) ([]*lead.Lead, error) {
	rows, err := r.db.Pgx().Query(ctx, eligibleLeadsQuery(channel), contactedBefore, limit)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to query eligible leads").WithCause(err)
	}
	defer rows.Close()

	var leads []*lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, domainerrors.NewInternalError("failed to scan lead").WithCause(err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewInternalError("failed to iterate leads").WithCause(err)
	}
	return leads, nil
}

func (r *leadRepository) RecordContact(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE leads
		SET last_contacted_at = $2, contact_count = contact_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Pgx().Exec(ctx, query, id, at)
	if err != nil {
		return domainerrors.NewInternalError("failed to record contact").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrLeadNotFound
	}
	return nil
}

func (r *leadRepository) ClearEmailVerified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE leads SET email_verified = FALSE, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Pgx().Exec(ctx, query, id)
	if err != nil {
		return domainerrors.NewInternalError("failed to clear email verification").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrLeadNotFound
	}
	return nil
}

func scanLead(row pgx.Row) (*lead.Lead, error) {
	var l lead.Lead
	var email, phone, optOutMethod *string
	err := row.Scan(
		&l.ID, &l.Source, &l.BusinessName, &l.City, &l.Category, &l.Website,
		&email, &phone,
		&l.EmailVerified, &l.PhoneVerified, &l.VerificationConfidence,
		&l.OptedOut, &l.OptedOutAt, &optOutMethod,
		&l.LastContactedAt, &l.ContactCount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if email != nil {
		l.Email = *email
	}
	if phone != nil {
		l.Phone = *phone
	}
	if optOutMethod != nil {
		l.OptedOutMethod = *optOutMethod
	}
	return &l, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
