package repository

import (
	"context"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/infrastructure/database"
)

// campaignRepository implements outreach.CampaignRepository using PostgreSQL
type campaignRepository struct {
	db *database.Pool
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *database.Pool) outreach.CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) Create(ctx context.Context, c *outreach.Campaign) error {
	query := `
		INSERT INTO outreach_campaigns (
			id, channel, total_attempted, total_success, total_failed,
			errors, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pgx().Exec(ctx, query,
		c.ID, c.Channel, c.TotalAttempted, c.TotalSuccess, c.TotalFailed,
		c.Errors, c.StartedAt, c.CompletedAt,
	)
	if err != nil {
		return domainerrors.NewInternalError("failed to create campaign").WithCause(err)
	}
	return nil
}

func (r *campaignRepository) Finalize(ctx context.Context, c *outreach.Campaign) error {
	// completed_at IS NULL guards against rewriting a finished row.
	query := `
		UPDATE outreach_campaigns
		SET total_attempted = $2, total_success = $3, total_failed = $4,
		    errors = $5, completed_at = $6
		WHERE id = $1 AND completed_at IS NULL
	`
	tag, err := r.db.Pgx().Exec(ctx, query,
		c.ID, c.TotalAttempted, c.TotalSuccess, c.TotalFailed,
		c.Errors, c.CompletedAt,
	)
	if err != nil {
		return domainerrors.NewInternalError("failed to finalize campaign").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrCampaignNotFound
	}
	return nil
}

func (r *campaignRepository) Recent(ctx context.Context, limit int) ([]*outreach.Campaign, error) {
	query := `
		SELECT id, channel, total_attempted, total_success, total_failed,
		       errors, started_at, completed_at
		FROM outreach_campaigns
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pgx().Query(ctx, query, limit)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to query campaigns").WithCause(err)
	}
	defer rows.Close()

	var campaigns []*outreach.Campaign
	for rows.Next() {
		var c outreach.Campaign
		err := rows.Scan(
			&c.ID, &c.Channel, &c.TotalAttempted, &c.TotalSuccess, &c.TotalFailed,
			&c.Errors, &c.StartedAt, &c.CompletedAt,
		)
		if err != nil {
			return nil, domainerrors.NewInternalError("failed to scan campaign").WithCause(err)
		}
		if c.Errors == nil {
			c.Errors = []string{}
		}
		campaigns = append(campaigns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewInternalError("failed to iterate campaigns").WithCause(err)
	}
	return campaigns, nil
}
