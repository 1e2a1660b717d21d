package outreach

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/devsync/outreach-backend/internal/domain/audit"
	"github.com/devsync/outreach-backend/internal/domain/lead"
	"github.com/devsync/outreach-backend/internal/domain/optout"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/service/ratelimit"
)

type mockAttemptRepo struct {
	mock.Mock
}

func (m *mockAttemptRepo) Create(ctx context.Context, a *outreach.Attempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAttemptRepo) Finalize(ctx context.Context, id uuid.UUID, res outreach.AttemptResult) error {
	args := m.Called(ctx, id, res)
	return args.Error(0)
}

func (m *mockAttemptRepo) CountForChannelSince(ctx context.Context, channel outreach.Channel, since time.Time) (int, error) {
	args := m.Called(ctx, channel, since)
	return args.Int(0), args.Error(1)
}

func (m *mockAttemptRepo) CountForDomainSince(ctx context.Context, domain string, since time.Time) (int, error) {
	args := m.Called(ctx, domain, since)
	return args.Int(0), args.Error(1)
}

func (m *mockAttemptRepo) GetByProviderMessageID(ctx context.Context, messageID string) (*outreach.Attempt, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outreach.Attempt), args.Error(1)
}

func (m *mockAttemptRepo) UpdateStatusByProviderMessageID(ctx context.Context, messageID string, status outreach.AttemptStatus, response map[string]interface{}) error {
	args := m.Called(ctx, messageID, status, response)
	return args.Error(0)
}

type mockLeadRepo struct {
	mock.Mock
}

func (m *mockLeadRepo) Create(ctx context.Context, l *lead.Lead) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *mockLeadRepo) GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lead.Lead), args.Error(1)
}

func (m *mockLeadRepo) FindByContact(ctx context.Context, contactType, value string) (*lead.Lead, error) {
	args := m.Called(ctx, contactType, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lead.Lead), args.Error(1)
}

func (m *mockLeadRepo) FindEligible(ctx context.Context, channel outreach.Channel, contactedBefore time.Time, limit int) ([]*lead.Lead, error) {
	args := m.Called(ctx, channel, contactedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lead.Lead), args.Error(1)
}

func (m *mockLeadRepo) RecordContact(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockLeadRepo) ClearEmailVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// stubRegistry implements OptOutRegistry and OptOutAdder in-memory.
type stubRegistry struct {
	mu       sync.Mutex
	blocked  map[string]bool
	tokens   []*optout.UnsubscribeToken
	requests []string
	added    []string
}

func newStubRegistry(blocked ...string) *stubRegistry {
	m := make(map[string]bool, len(blocked))
	for _, b := range blocked {
		m[b] = true
	}
	return &stubRegistry{blocked: m}
}

func (s *stubRegistry) IsOptedOut(_ context.Context, _ optout.ContactType, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked[value]
}

func (s *stubRegistry) IssueToken(_ context.Context, contactType optout.ContactType, value string, leadID *uuid.UUID) (*optout.UnsubscribeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := &optout.UnsubscribeToken{
		Token:        uuid.New(),
		ContactType:  contactType,
		ContactValue: value,
		LeadID:       leadID,
		CreatedAt:    time.Now().UTC(),
	}
	s.tokens = append(s.tokens, tok)
	return tok, nil
}

func (s *stubRegistry) HandleCallRequest(_ context.Context, phone string, _ *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, phone)
	s.blocked[phone] = true
	return nil
}

func (s *stubRegistry) Add(_ context.Context, _ optout.ContactType, value, method string, _ *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, value+":"+method)
	s.blocked[value] = true
	return true, nil
}

func (s *stubRegistry) HandleEmailReply(_ context.Context, fromEmail, body string) (bool, error) {
	if !strings.Contains(strings.ToLower(body), "remove") {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, fromEmail+":email_reply")
	s.blocked[fromEmail] = true
	return true, nil
}

// fakeEmailProvider returns queued errors then succeeds.
type fakeEmailProvider struct {
	errs  []error
	calls int
	last  EmailMessage
}

func (f *fakeEmailProvider) Name() string { return "fake" }

func (f *fakeEmailProvider) Send(_ context.Context, msg EmailMessage) (*SendResult, error) {
	f.calls++
	f.last = msg
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &SendResult{MessageID: "msg-123", Response: map[string]interface{}{"provider": "fake"}}, nil
}

type fakeCallProvider struct {
	err   error
	calls int
}

func (f *fakeCallProvider) Name() string { return "fake" }

func (f *fakeCallProvider) Place(_ context.Context, _ CallRequest) (*CallResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &CallResult{CallID: "call-123"}, nil
}

func testGovernor(t *testing.T, attempts outreach.AttemptRepository) *ratelimit.Governor {
	loc, _ := time.LoadLocation("UTC")
	return ratelimit.NewGovernor(attempts, ratelimit.Limits{
		DailyEmailCap:       50,
		DailyCallCap:        20,
		CooldownDays:        30,
		PerDomainEmailLimit: 3,
		CallWindowStart:     "00:00",
		CallWindowEnd:       "23:59",
		Location:            loc,
	}, zaptest.NewLogger(t))
}

func testFooter() Footer {
	return Footer{
		FromName:           "DevSync Outreach",
		BusinessAddress:    "123 Main St, Springfield, IL 62701",
		UnsubscribeBaseURL: "https://example.com/unsubscribe",
	}
}

func verifiedLead() *lead.Lead {
	return &lead.Lead{
		ID:            uuid.New(),
		BusinessName:  "Blue Bakery",
		Category:      "bakery",
		City:          "Springfield",
		Email:         "owner@bluebakery.com",
		Phone:         "+15551234567",
		EmailVerified: true,
		PhoneVerified: true,
	}
}

func emailContent() *outreach.EmailContent {
	return &outreach.EmailContent{
		Subject:  "Website Solutions for Blue Bakery",
		BodyHTML: "<p>hello</p>",
		BodyText: "hello",
	}
}

func newEmailPipeline(t *testing.T, provider EmailProvider, registry OptOutRegistry, attempts *mockAttemptRepo, leads *mockLeadRepo, dryRun bool) *EmailPipeline {
	p := NewEmailPipeline(provider, registry, testGovernor(t, attempts), attempts, leads,
		testFooter(), audit.NopSink{}, zaptest.NewLogger(t), dryRun)
	p.retrier = &retrier{sleep: func(context.Context, time.Duration) error { return nil }}
	return p
}

func TestEmailSendHappyPath(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeEmailProvider{}
	registry := newStubRegistry()
	p := newEmailPipeline(t, provider, registry, attempts, leads, false)
	ctx := context.Background()
	l := verifiedLead()

	attempts.On("CountForDomainSince", ctx, "bluebakery.com", mock.Anything).Return(0, nil)
	attempts.On("Create", ctx, mock.MatchedBy(func(a *outreach.Attempt) bool {
		return a.Status == outreach.StatusPending && a.Recipient == l.Email
	})).Return(nil)
	attempts.On("Finalize", ctx, mock.Anything, mock.MatchedBy(func(res outreach.AttemptResult) bool {
		return res.Status == outreach.StatusSent && res.ProviderMessageID == "msg-123"
	})).Return(nil)
	leads.On("RecordContact", ctx, l.ID, mock.Anything).Return(nil)

	outcome := p.Send(ctx, l, emailContent(), nil)
	assert.Equal(t, OutcomeSent, outcome.Status)
	assert.Equal(t, 1, provider.calls)

	// The rendered message carries the compliance footer with a live token.
	require.Len(t, registry.tokens, 1)
	assert.Contains(t, provider.last.BodyText, "Unsubscribe: https://example.com/unsubscribe?token=")
	assert.Contains(t, provider.last.BodyText, "123 Main St")
}

func TestEmailSendBlockedByOptOut(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeEmailProvider{}
	l := verifiedLead()
	p := newEmailPipeline(t, provider, newStubRegistry(l.Email), attempts, leads, false)

	outcome := p.Send(context.Background(), l, emailContent(), nil)
	assert.Equal(t, OutcomeBlocked, outcome.Status)
	assert.Zero(t, provider.calls)
	attempts.AssertNotCalled(t, "Create")
}

func TestEmailSendBlockedByDomainThrottle(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeEmailProvider{}
	p := newEmailPipeline(t, provider, newStubRegistry(), attempts, leads, false)
	ctx := context.Background()

	attempts.On("CountForDomainSince", ctx, "bluebakery.com", mock.Anything).Return(3, nil)

	outcome := p.Send(ctx, verifiedLead(), emailContent(), nil)
	assert.Equal(t, OutcomeBlocked, outcome.Status)
	assert.Equal(t, "domain throttled", outcome.Reason)
	assert.Zero(t, provider.calls)
}

func TestEmailSendPersistsBeforeProvider(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeEmailProvider{}
	p := newEmailPipeline(t, provider, newStubRegistry(), attempts, leads, false)
	ctx := context.Background()

	attempts.On("CountForDomainSince", ctx, "bluebakery.com", mock.Anything).Return(0, nil)
	attempts.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

	outcome := p.Send(ctx, verifiedLead(), emailContent(), nil)
	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Zero(t, provider.calls, "provider must not be called when the attempt row cannot be written")
}

func TestEmailSendRetriesTransientThenSucceeds(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeEmailProvider{errs: []error{
		errors.New("503 service unavailable"),
		errors.New("429 too many requests"),
	}}
	p := newEmailPipeline(t, provider, newStubRegistry(), attempts, leads, false)
	ctx := context.Background()
	l := verifiedLead()

	attempts.On("CountForDomainSince", ctx, "bluebakery.com", mock.Anything).Return(0, nil)
	attempts.On("Create", ctx, mock.Anything).Return(nil)
	attempts.On("Finalize", ctx, mock.Anything, mock.Anything).Return(nil)
	leads.On("RecordContact", ctx, l.ID, mock.Anything).Return(nil)

	outcome := p.Send(ctx, l, emailContent(), nil)
	assert.Equal(t, OutcomeSent, outcome.Status)
	assert.Equal(t, 3, provider.calls)
}

func TestEmailSendPermanentFailureClearsVerification(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeEmailProvider{errs: []error{errors.New("550 invalid recipient")}}
	p := newEmailPipeline(t, provider, newStubRegistry(), attempts, leads, false)
	ctx := context.Background()
	l := verifiedLead()

	attempts.On("CountForDomainSince", ctx, "bluebakery.com", mock.Anything).Return(0, nil)
	attempts.On("Create", ctx, mock.Anything).Return(nil)
	attempts.On("Finalize", ctx, mock.Anything, mock.MatchedBy(func(res outreach.AttemptResult) bool {
		return res.Status == outreach.StatusFailed
	})).Return(nil)
	leads.On("ClearEmailVerified", ctx, l.ID).Return(nil)

	outcome := p.Send(ctx, l, emailContent(), nil)
	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, 1, provider.calls, "permanent errors are not retried")
	leads.AssertCalled(t, "ClearEmailVerified", ctx, l.ID)
	leads.AssertNotCalled(t, "RecordContact")
}

func TestEmailSendDryRunWritesNothing(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeEmailProvider{}
	registry := newStubRegistry()
	p := newEmailPipeline(t, provider, registry, attempts, leads, true)
	ctx := context.Background()

	attempts.On("CountForDomainSince", ctx, "bluebakery.com", mock.Anything).Return(0, nil)

	outcome := p.Send(ctx, verifiedLead(), emailContent(), nil)
	assert.Equal(t, OutcomeSent, outcome.Status)
	assert.Zero(t, provider.calls)
	assert.Empty(t, registry.tokens)
	attempts.AssertNotCalled(t, "Create")
	leads.AssertNotCalled(t, "RecordContact")
}

func newCallPipeline(t *testing.T, provider CallProvider, registry OptOutRegistry, dnc DNCRegistry, attempts *mockAttemptRepo, leads *mockLeadRepo) *CallPipeline {
	p := NewCallPipeline(provider, registry, testGovernor(t, attempts), dnc, attempts, leads,
		audit.NopSink{}, zaptest.NewLogger(t), "DevSync Outreach", "https://example.com/webhooks/call", false)
	p.retrier = &retrier{sleep: func(context.Context, time.Duration) error { return nil }}
	// Pin the clock to a Tuesday so the weekday gate stays open.
	p.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return p
}

type stubDNC map[string]bool

func (s stubDNC) Contains(phone string) bool { return s[phone] }

func TestCallPlaceHappyPath(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeCallProvider{}
	p := newCallPipeline(t, provider, newStubRegistry(), stubDNC{}, attempts, leads)
	ctx := context.Background()
	l := verifiedLead()

	attempts.On("Create", ctx, mock.MatchedBy(func(a *outreach.Attempt) bool {
		return a.Channel == outreach.ChannelCall && a.Recipient == l.Phone
	})).Return(nil)
	attempts.On("Finalize", ctx, mock.Anything, mock.MatchedBy(func(res outreach.AttemptResult) bool {
		return res.Status == outreach.StatusSent && res.ProviderMessageID == "call-123"
	})).Return(nil)
	leads.On("RecordContact", ctx, l.ID, mock.Anything).Return(nil)

	outcome := p.Place(ctx, l, nil)
	assert.Equal(t, OutcomeSent, outcome.Status)
	assert.Equal(t, 1, provider.calls)
}

func TestCallPlaceBlockedByDNC(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	provider := &fakeCallProvider{}
	l := verifiedLead()
	p := newCallPipeline(t, provider, newStubRegistry(), stubDNC{l.Phone: true}, attempts, leads)

	outcome := p.Place(context.Background(), l, nil)
	assert.Equal(t, OutcomeBlocked, outcome.Status)
	assert.Equal(t, "on DNC registry", outcome.Reason)
	assert.Zero(t, provider.calls)
}

func TestHandleTranscriptRemoveIntentOptsOut(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	registry := newStubRegistry()
	p := newCallPipeline(t, &fakeCallProvider{}, registry, stubDNC{}, attempts, leads)
	ctx := context.Background()

	attempt := outreach.NewAttempt(uuid.New(), nil, outreach.ChannelCall, "+15551234567", "h", time.Now().UTC())
	attempts.On("GetByProviderMessageID", ctx, "call-123").Return(attempt, nil)
	attempts.On("Finalize", ctx, attempt.ID, mock.MatchedBy(func(res outreach.AttemptResult) bool {
		return res.Transcript == "please remove me from your list"
	})).Return(nil)

	intent, err := p.HandleTranscript(ctx, "call-123", "please remove me from your list")
	require.NoError(t, err)
	assert.Equal(t, outreach.IntentRemove, intent)
	assert.Equal(t, []string{"+15551234567"}, registry.requests)
}

func TestHandleStatusMapsOutcomes(t *testing.T) {
	attempts := new(mockAttemptRepo)
	leads := new(mockLeadRepo)
	p := newCallPipeline(t, &fakeCallProvider{}, newStubRegistry(), stubDNC{}, attempts, leads)
	ctx := context.Background()

	attempt := outreach.NewAttempt(uuid.New(), nil, outreach.ChannelCall, "+15551234567", "h", time.Now().UTC())
	duration := 42
	attempts.On("GetByProviderMessageID", ctx, "call-123").Return(attempt, nil)
	attempts.On("Finalize", ctx, attempt.ID, mock.MatchedBy(func(res outreach.AttemptResult) bool {
		return res.Outcome == outreach.OutcomeAnswered && *res.DurationSeconds == 42
	})).Return(nil)

	require.NoError(t, p.HandleStatus(ctx, "call-123", "completed", &duration))
}
