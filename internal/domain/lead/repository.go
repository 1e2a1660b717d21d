package lead

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

// Repository defines lead persistence as needed by orchestration. Lead
// creation belongs to the scraping/verification side and is limited here to
// what seeding and tests require.
type Repository interface {
	Create(ctx context.Context, l *Lead) error
	GetByID(ctx context.Context, id uuid.UUID) (*Lead, error)

	// FindByContact locates a lead by its primary email or phone.
	FindByContact(ctx context.Context, contactType, value string) (*Lead, error)

	// FindEligible returns leads that are verified for the channel, not opted
	// out, and whose last contact predates the cooldown cutoff (or is null).
	// Ordering: never-contacted first, then oldest contact first.
	FindEligible(ctx context.Context, channel outreach.Channel, contactedBefore time.Time, limit int) ([]*Lead, error)

	// RecordContact bumps last_contacted_at and contact_count after a
	// definitive outreach outcome.
	RecordContact(ctx context.Context, id uuid.UUID, at time.Time) error

	// ClearEmailVerified drops the email verification flag after a permanent
	// delivery failure so future campaigns exclude the lead.
	ClearEmailVerified(ctx context.Context, id uuid.UUID) error
}
