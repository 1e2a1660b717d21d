package optout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/devsync/outreach-backend/internal/domain/audit"
	"github.com/devsync/outreach-backend/internal/domain/optout"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Add(ctx context.Context, rec *optout.Record) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) Exists(ctx context.Context, contactType optout.ContactType, value string) (bool, error) {
	args := m.Called(ctx, contactType, value)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) List(ctx context.Context, contactType *optout.ContactType, limit, offset int) ([]*optout.Record, error) {
	args := m.Called(ctx, contactType, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*optout.Record), args.Error(1)
}

func (m *mockRepository) Count(ctx context.Context, contactType *optout.ContactType) (int, error) {
	args := m.Called(ctx, contactType)
	return args.Int(0), args.Error(1)
}

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Insert(ctx context.Context, tok *optout.UnsubscribeToken) error {
	args := m.Called(ctx, tok)
	return args.Error(0)
}

func (m *mockTokenRepository) Resolve(ctx context.Context, token uuid.UUID) (*optout.UnsubscribeToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*optout.UnsubscribeToken), args.Error(1)
}

func newTestRegistry(t *testing.T) (*Registry, *mockRepository, *mockTokenRepository) {
	repo := new(mockRepository)
	tokens := new(mockTokenRepository)
	reg := NewRegistry(repo, tokens, audit.NopSink{}, zaptest.NewLogger(t))
	return reg, repo, tokens
}

func TestIsOptedOut(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	repo.On("Exists", ctx, optout.ContactEmail, "gone@example.com").Return(true, nil)
	repo.On("Exists", ctx, optout.ContactEmail, "ok@example.com").Return(false, nil)

	assert.True(t, reg.IsOptedOut(ctx, optout.ContactEmail, "gone@example.com"))
	assert.False(t, reg.IsOptedOut(ctx, optout.ContactEmail, "ok@example.com"))
}

func TestIsOptedOutFailsClosed(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	repo.On("Exists", ctx, optout.ContactPhone, "+15551234567").
		Return(false, errors.New("connection refused"))

	assert.True(t, reg.IsOptedOut(ctx, optout.ContactPhone, "+15551234567"),
		"an unreachable registry must block the send")
}

func TestAddDuplicateIsNotAnError(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	repo.On("Add", ctx, mock.AnythingOfType("*optout.Record")).Return(false, nil)

	added, err := reg.Add(ctx, optout.ContactEmail, "gone@example.com", optout.MethodLink, nil)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestDetectKeywords(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Please UNSUBSCRIBE me from this list", true},
		{"take me off your list", true},
		{"do not contact me again", true},
		{"Thanks, sounds interesting!", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectKeywords(tt.text), tt.text)
	}
}

func TestHandleEmailReply(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	repo.On("Add", ctx, mock.MatchedBy(func(rec *optout.Record) bool {
		return rec.ContactType == optout.ContactEmail &&
			rec.ContactValue == "jane@example.com" &&
			rec.Method == optout.MethodEmailReply
	})).Return(true, nil)

	optedOut, err := reg.HandleEmailReply(ctx, "jane@example.com", "please remove me from your list")
	require.NoError(t, err)
	assert.True(t, optedOut)

	optedOut, err = reg.HandleEmailReply(ctx, "joe@example.com", "tell me more about pricing")
	require.NoError(t, err)
	assert.False(t, optedOut)
	repo.AssertNumberOfCalls(t, "Add", 1)
}

func TestHandleSMSStop(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	repo.On("Add", ctx, mock.MatchedBy(func(rec *optout.Record) bool {
		return rec.ContactType == optout.ContactPhone && rec.Method == optout.MethodSMS
	})).Return(true, nil)

	optedOut, err := reg.HandleSMS(ctx, "+15551234567", "  stop  ")
	require.NoError(t, err)
	assert.True(t, optedOut)

	optedOut, err = reg.HandleSMS(ctx, "+15551234567", "yes let's talk")
	require.NoError(t, err)
	assert.False(t, optedOut)
}

func TestHandleUnsubscribeToken(t *testing.T) {
	reg, repo, tokens := newTestRegistry(t)
	ctx := context.Background()

	leadID := uuid.New()
	token := uuid.New()
	tokens.On("Resolve", ctx, token).Return(&optout.UnsubscribeToken{
		Token:        token,
		ContactType:  optout.ContactEmail,
		ContactValue: "jane@example.com",
		LeadID:       &leadID,
	}, nil)
	repo.On("Add", ctx, mock.MatchedBy(func(rec *optout.Record) bool {
		return rec.Method == optout.MethodLink && rec.ContactValue == "jane@example.com"
	})).Return(true, nil)

	tok, err := reg.HandleUnsubscribeToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", tok.ContactValue)
}

func TestHandleUnsubscribeTokenUnknown(t *testing.T) {
	reg, repo, tokens := newTestRegistry(t)
	ctx := context.Background()

	token := uuid.New()
	tokens.On("Resolve", ctx, token).Return(nil, errors.New("not found"))

	_, err := reg.HandleUnsubscribeToken(ctx, token)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Add")
}
