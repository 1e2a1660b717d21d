package approval

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

func newTestItem(now time.Time, ttlDays int) *Item {
	content := json.RawMessage(`{"subject":"hello","body_text":"hi there"}`)
	return NewItem(uuid.New(), outreach.ChannelEmail, content, ttlDays, now)
}

func TestNewItemDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	item := newTestItem(now, 0)
	assert.Equal(t, StatusPending, item.Status)
	assert.Equal(t, now.AddDate(0, 0, DefaultTTLDays), item.ExpiresAt)

	item = newTestItem(now, 3)
	assert.Equal(t, now.AddDate(0, 0, 3), item.ExpiresAt)
}

func TestApproveLifecycle(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := newTestItem(now, 7)

	edited := json.RawMessage(`{"subject":"hello (edited)","body_text":"hi"}`)
	require.True(t, item.Approve("op-1", edited, now.Add(time.Hour)))
	assert.Equal(t, StatusApproved, item.Status)
	assert.Equal(t, "op-1", item.ReviewedBy)
	assert.JSONEq(t, string(edited), string(item.Content))

	// approved -> sent is the only remaining transition.
	assert.False(t, item.Approve("op-2", nil, now.Add(2*time.Hour)))
	assert.False(t, item.Reject("op-2", "", now.Add(2*time.Hour)))
	require.True(t, item.MarkSent())
	assert.Equal(t, StatusSent, item.Status)

	// sent is terminal.
	assert.False(t, item.MarkSent())
	assert.False(t, item.Approve("op-3", nil, now))
	assert.Equal(t, StatusSent, item.Status)
}

func TestApproveAfterExpiryFails(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := newTestItem(now, 7)

	// 8 simulated days later the approval fails and the item lands in
	// expired as a side effect.
	later := now.AddDate(0, 0, 8)
	assert.False(t, item.Approve("op-1", nil, later))
	assert.Equal(t, StatusExpired, item.Status)

	// expired is terminal and irreversible.
	assert.False(t, item.Approve("op-1", nil, later))
	assert.False(t, item.Edit("op-1", json.RawMessage(`{}`), later))
	assert.False(t, item.MarkSent())
	assert.Equal(t, StatusExpired, item.Status)
}

func TestApproveAtExactExpiryFails(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := newTestItem(now, 7)

	assert.False(t, item.Approve("op-1", nil, item.ExpiresAt))
	assert.Equal(t, StatusExpired, item.Status)
}

func TestRejectStoresReason(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := newTestItem(now, 7)

	require.True(t, item.Reject("op-9", "tone is off", now))
	assert.Equal(t, StatusRejected, item.Status)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(item.Content, &payload))
	assert.Equal(t, "tone is off", payload["rejection_reason"])
	assert.Equal(t, "hello", payload["subject"])

	// rejected is terminal.
	assert.False(t, item.Approve("op-9", nil, now))
	assert.False(t, item.MarkSent())
}

func TestEditOnlyPending(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := newTestItem(now, 7)

	newContent := json.RawMessage(`{"subject":"rewritten"}`)
	require.True(t, item.Edit("op-1", newContent, now.Add(time.Minute)))
	assert.JSONEq(t, string(newContent), string(item.Content))

	require.True(t, item.Approve("op-1", nil, now.Add(2*time.Minute)))
	assert.False(t, item.Edit("op-1", json.RawMessage(`{}`), now.Add(3*time.Minute)))
}

func TestMarkSentRequiresApproved(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := newTestItem(now, 7)

	// pending -> sent is not a legal transition.
	assert.False(t, item.MarkSent())
	assert.Equal(t, StatusPending, item.Status)
}
