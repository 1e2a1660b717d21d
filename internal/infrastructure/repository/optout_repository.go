package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/optout"
	"github.com/devsync/outreach-backend/internal/infrastructure/database"
)

// optOutRepository implements optout.Repository using PostgreSQL. The table
// has no delete path; removal of an opt-out is not supported at any layer.
type optOutRepository struct {
	db *database.Pool
}

// NewOptOutRepository creates a new opt-out repository
func NewOptOutRepository(db *database.Pool) optout.Repository {
	return &optOutRepository{db: db}
}

func (r *optOutRepository) Add(ctx context.Context, rec *optout.Record) (bool, error) {
	var added bool
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO opt_outs (id, contact_type, contact_value, opt_out_method, opted_out_at, source_lead_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (contact_type, contact_value) DO NOTHING
		`
		tag, err := tx.Exec(ctx, query,
			rec.ID, rec.ContactType, rec.ContactValue, rec.Method, rec.OptedOutAt, rec.SourceLeadID,
		)
		if err != nil {
			return fmt.Errorf("insert opt-out: %w", err)
		}
		added = tag.RowsAffected() > 0
		if !added {
			return nil
		}

		// Flag every lead whose primary contact matches, in the same
		// transaction, so the lead table never disagrees with the registry.
		column := "primary_email"
		if rec.ContactType == optout.ContactPhone {
			column = "primary_phone"
		}
		flagQuery := fmt.Sprintf(`
			UPDATE leads
			SET opted_out = TRUE, opted_out_at = $2, opted_out_method = $3, updated_at = NOW()
			WHERE %s = $1 AND opted_out = FALSE
		`, column)
		if _, err := tx.Exec(ctx, flagQuery, rec.ContactValue, rec.OptedOutAt, rec.Method); err != nil {
			return fmt.Errorf("flag lead: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, domainerrors.NewInternalError("failed to add opt-out").WithCause(err)
	}
	return added, nil
}

func (r *optOutRepository) Exists(ctx context.Context, contactType optout.ContactType, value string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM opt_outs WHERE contact_type = $1 AND contact_value = $2)`
	var exists bool
	if err := r.db.Pgx().QueryRow(ctx, query, contactType, value).Scan(&exists); err != nil {
		return false, domainerrors.NewInternalError("failed to check opt-out").WithCause(err)
	}
	return exists, nil
}

func (r *optOutRepository) List(ctx context.Context, contactType *optout.ContactType, limit, offset int) ([]*optout.Record, error) {
	query := `
		SELECT id, contact_type, contact_value, opt_out_method, opted_out_at, source_lead_id
		FROM opt_outs
		WHERE ($1::text IS NULL OR contact_type = $1)
		ORDER BY opted_out_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pgx().Query(ctx, query, contactType, limit, offset)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to query opt-outs").WithCause(err)
	}
	defer rows.Close()

	var records []*optout.Record
	for rows.Next() {
		var rec optout.Record
		err := rows.Scan(&rec.ID, &rec.ContactType, &rec.ContactValue, &rec.Method, &rec.OptedOutAt, &rec.SourceLeadID)
		if err != nil {
			return nil, domainerrors.NewInternalError("failed to scan opt-out").WithCause(err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewInternalError("failed to iterate opt-outs").WithCause(err)
	}
	return records, nil
}

func (r *optOutRepository) Count(ctx context.Context, contactType *optout.ContactType) (int, error) {
	query := `SELECT COUNT(*) FROM opt_outs WHERE ($1::text IS NULL OR contact_type = $1)`
	var count int
	if err := r.db.Pgx().QueryRow(ctx, query, contactType).Scan(&count); err != nil {
		return 0, domainerrors.NewInternalError("failed to count opt-outs").WithCause(err)
	}
	return count, nil
}

// tokenRepository implements optout.TokenRepository using PostgreSQL
type tokenRepository struct {
	db *database.Pool
}

// NewTokenRepository creates a new unsubscribe token repository
func NewTokenRepository(db *database.Pool) optout.TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Insert(ctx context.Context, tok *optout.UnsubscribeToken) error {
	query := `
		INSERT INTO unsubscribe_tokens (token, contact_type, contact_value, lead_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pgx().Exec(ctx, query, tok.Token, tok.ContactType, tok.ContactValue, tok.LeadID, tok.CreatedAt)
	if err != nil {
		return domainerrors.NewInternalError("failed to insert unsubscribe token").WithCause(err)
	}
	return nil
}

func (r *tokenRepository) Resolve(ctx context.Context, token uuid.UUID) (*optout.UnsubscribeToken, error) {
	query := `
		SELECT token, contact_type, contact_value, lead_id, created_at
		FROM unsubscribe_tokens
		WHERE token = $1
	`
	var tok optout.UnsubscribeToken
	err := r.db.Pgx().QueryRow(ctx, query, token).Scan(
		&tok.Token, &tok.ContactType, &tok.ContactValue, &tok.LeadID, &tok.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.NewNotFoundError("unsubscribe token")
		}
		return nil, domainerrors.NewInternalError("failed to resolve unsubscribe token").WithCause(err)
	}
	return &tok, nil
}
