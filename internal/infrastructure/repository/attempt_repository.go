package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/infrastructure/database"
)

// attemptRepository implements outreach.AttemptRepository using PostgreSQL
type attemptRepository struct {
	db *database.Pool
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *database.Pool) outreach.AttemptRepository {
	return &attemptRepository{db: db}
}

const attemptColumns = `
	id, lead_id, campaign_id, channel, recipient, content_hash, status,
	provider_message_id, provider_response,
	outcome, duration_seconds, transcript, recording_url,
	attempted_at, completed_at`

func (r *attemptRepository) Create(ctx context.Context, a *outreach.Attempt) error {
	responseJSON, err := marshalResponse(a.ProviderResponse)
	if err != nil {
		return domainerrors.NewInternalError("failed to marshal provider response").WithCause(err)
	}

	query := `
		INSERT INTO outreach_attempts (` + attemptColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9,
			$10, $11, $12, $13,
			$14, $15
		)
	`
	_, err = r.db.Pgx().Exec(ctx, query,
		a.ID, a.LeadID, a.CampaignID, a.Channel, a.Recipient, a.ContentHash, a.Status,
		nullString(a.ProviderMessageID), responseJSON,
		nullString(string(a.Outcome)), a.DurationSeconds, nullString(a.Transcript), nullString(a.RecordingURL),
		a.AttemptedAt, a.CompletedAt,
	)
	if err != nil {
		return domainerrors.NewInternalError("failed to create attempt").WithCause(err)
	}
	return nil
}

func (r *attemptRepository) Finalize(ctx context.Context, id uuid.UUID, res outreach.AttemptResult) error {
	responseJSON, err := marshalResponse(res.ProviderResponse)
	if err != nil {
		return domainerrors.NewInternalError("failed to marshal provider response").WithCause(err)
	}

	query := `
		UPDATE outreach_attempts
		SET status = $2,
		    provider_message_id = COALESCE($3, provider_message_id),
		    provider_response = COALESCE($4, provider_response),
		    outcome = COALESCE($5, outcome),
		    duration_seconds = COALESCE($6, duration_seconds),
		    transcript = COALESCE($7, transcript),
		    recording_url = COALESCE($8, recording_url),
		    completed_at = $9
		WHERE id = $1
	`
	tag, err := r.db.Pgx().Exec(ctx, query,
		id, res.Status,
		nullString(res.ProviderMessageID), responseJSON,
		nullString(string(res.Outcome)), res.DurationSeconds,
		nullString(res.Transcript), nullString(res.RecordingURL),
		res.CompletedAt,
	)
	if err != nil {
		return domainerrors.NewInternalError("failed to finalize attempt").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.NewNotFoundError("attempt")
	}
	return nil
}

func (r *attemptRepository) CountForChannelSince(ctx context.Context, channel outreach.Channel, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM outreach_attempts
		WHERE channel = $1 AND attempted_at >= $2
	`
	var count int
	if err := r.db.Pgx().QueryRow(ctx, query, channel, since).Scan(&count); err != nil {
		return 0, domainerrors.NewInternalError("failed to count channel attempts").WithCause(err)
	}
	return count, nil
}

func (r *attemptRepository) CountForDomainSince(ctx context.Context, domain string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM outreach_attempts
		WHERE channel = 'email'
		  AND split_part(recipient, '@', 2) = $1
		  AND attempted_at >= $2
	`
	var count int
	if err := r.db.Pgx().QueryRow(ctx, query, domain, since).Scan(&count); err != nil {
		return 0, domainerrors.NewInternalError("failed to count domain attempts").WithCause(err)
	}
	return count, nil
}

func (r *attemptRepository) GetByProviderMessageID(ctx context.Context, messageID string) (*outreach.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM outreach_attempts WHERE provider_message_id = $1`
	a, err := scanAttempt(r.db.Pgx().QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.NewNotFoundError("attempt")
		}
		return nil, domainerrors.NewInternalError("failed to get attempt").WithCause(err)
	}
	return a, nil
}

func (r *attemptRepository) UpdateStatusByProviderMessageID(ctx context.Context, messageID string, status outreach.AttemptStatus, response map[string]interface{}) error {
	responseJSON, err := marshalResponse(response)
	if err != nil {
		return domainerrors.NewInternalError("failed to marshal provider response").WithCause(err)
	}

	query := `
		UPDATE outreach_attempts
		SET status = $2,
		    provider_response = COALESCE(provider_response, '{}'::jsonb) || COALESCE($3, '{}'::jsonb)
		WHERE provider_message_id = $1
	`
	tag, err := r.db.Pgx().Exec(ctx, query, messageID, status, responseJSON)
	if err != nil {
		return domainerrors.NewInternalError("failed to update attempt status").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.NewNotFoundError("attempt")
	}
	return nil
}

func scanAttempt(row pgx.Row) (*outreach.Attempt, error) {
	var a outreach.Attempt
	var messageID, outcome, transcript, recordingURL *string
	var responseJSON []byte
	err := row.Scan(
		&a.ID, &a.LeadID, &a.CampaignID, &a.Channel, &a.Recipient, &a.ContentHash, &a.Status,
		&messageID, &responseJSON,
		&outcome, &a.DurationSeconds, &transcript, &recordingURL,
		&a.AttemptedAt, &a.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if messageID != nil {
		a.ProviderMessageID = *messageID
	}
	if outcome != nil {
		a.Outcome = outreach.CallOutcome(*outcome)
	}
	if transcript != nil {
		a.Transcript = *transcript
	}
	if recordingURL != nil {
		a.RecordingURL = *recordingURL
	}
	if len(responseJSON) > 0 {
		if err := json.Unmarshal(responseJSON, &a.ProviderResponse); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func marshalResponse(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
