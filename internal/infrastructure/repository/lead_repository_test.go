package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

func TestEligibleLeadsQueryPerChannel(t *testing.T) {
	email := eligibleLeadsQuery(outreach.ChannelEmail)
	assert.Contains(t, email, "email_verified = TRUE")
	assert.Contains(t, email, "primary_email IS NOT NULL")

	call := eligibleLeadsQuery(outreach.ChannelCall)
	assert.Contains(t, call, "phone_verified = TRUE")
	assert.Contains(t, call, "primary_phone IS NOT NULL")
}

func TestEligibleLeadsQueryCooldownBoundaryInclusive(t *testing.T) {
	for _, channel := range []outreach.Channel{outreach.ChannelEmail, outreach.ChannelCall} {
		query := eligibleLeadsQuery(channel)
		assert.Contains(t, query, "last_contacted_at <= $1",
			"a lead contacted exactly at the cooldown boundary is eligible again")
		assert.NotContains(t, query, "last_contacted_at < $1")
	}
}
