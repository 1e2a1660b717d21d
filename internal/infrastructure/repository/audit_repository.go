package repository

import (
	"context"
	"encoding/json"

	"github.com/devsync/outreach-backend/internal/domain/audit"
	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/infrastructure/database"
)

// auditRepository implements audit.Repository using PostgreSQL
type auditRepository struct {
	db *database.Pool
}

// NewAuditRepository creates a new audit event repository
func NewAuditRepository(db *database.Pool) audit.Repository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Insert(ctx context.Context, event audit.Event) error {
	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return domainerrors.NewInternalError("failed to marshal audit details").WithCause(err)
		}
	}

	query := `
		INSERT INTO audit_events (id, log_level, component, action, lead_id, user_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pgx().Exec(ctx, query,
		event.ID, event.Level, event.Component, event.Action,
		event.LeadID, nullString(event.UserID), detailsJSON, event.CreatedAt,
	)
	if err != nil {
		return domainerrors.NewInternalError("failed to insert audit event").WithCause(err)
	}
	return nil
}
