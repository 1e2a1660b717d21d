package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/approval"
	"github.com/devsync/outreach-backend/internal/domain/optout"
	"github.com/devsync/outreach-backend/internal/domain/outreach"
	"github.com/devsync/outreach-backend/internal/service/ratelimit"
	outreachsvc "github.com/devsync/outreach-backend/internal/service/outreach"
)

// campaignTriggerTimeout bounds a manually triggered cycle. Scheduled cycles
// get a longer budget from the scheduler itself.
const campaignTriggerTimeout = 10 * time.Hour

// CampaignRunner triggers cycles and reads their history.
type CampaignRunner interface {
	RunEmailCampaign(ctx context.Context) (*outreach.Report, error)
	RunCallCampaign(ctx context.Context) (*outreach.Report, error)
	RecentReports(ctx context.Context, limit int) ([]*outreach.Report, error)
	Running() map[string]bool
}

// ScheduleInfo exposes the upcoming scheduled fire times.
type ScheduleInfo interface {
	NextRuns() []time.Time
}

// RateStatusProvider reports quota state for the status endpoint.
type RateStatusProvider interface {
	Status(ctx context.Context, now time.Time) (*ratelimit.Status, error)
}

// ApprovalService is the review surface of the approval queue.
type ApprovalService interface {
	Get(ctx context.Context, id uuid.UUID) (*approval.Item, error)
	List(ctx context.Context, f approval.Filter) ([]*approval.Item, error)
	Stats(ctx context.Context) (*approval.Stats, error)
	Approve(ctx context.Context, id uuid.UUID, reviewerID string, editedContent json.RawMessage) (*approval.Item, error)
	Reject(ctx context.Context, id uuid.UUID, reviewerID, reason string) (*approval.Item, error)
	Edit(ctx context.Context, id uuid.UUID, reviewerID string, content json.RawMessage) (*approval.Item, error)
	ExpireOld(ctx context.Context) (int, error)
}

// OptOutService is the intake and listing surface of the opt-out registry.
type OptOutService interface {
	Add(ctx context.Context, contactType optout.ContactType, value, method string, sourceLeadID *uuid.UUID) (bool, error)
	List(ctx context.Context, contactType *optout.ContactType, limit, offset int) ([]*optout.Record, int, error)
	HandleUnsubscribeToken(ctx context.Context, token uuid.UUID) (*optout.UnsubscribeToken, error)
	HandleSMS(ctx context.Context, phone, message string) (bool, error)
}

// EmailEventSink consumes provider delivery events.
type EmailEventSink interface {
	Handle(ctx context.Context, event outreachsvc.EmailEvent) error
}

// CallEventSink consumes voice provider callbacks.
type CallEventSink interface {
	HandleStatus(ctx context.Context, callID, status string, durationSeconds *int) error
	HandleTranscript(ctx context.Context, callID, transcript string) (outreach.Intent, error)
}

// Pinger verifies the database of record is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers owns every HTTP endpoint.
type Handlers struct {
	campaigns CampaignRunner
	schedule  ScheduleInfo
	rates     RateStatusProvider
	approvals ApprovalService
	optOuts   OptOutService
	emails    EmailEventSink
	calls     CallEventSink
	db        Pinger
	logger    *zap.Logger
	version   string
}

func NewHandlers(
	campaigns CampaignRunner,
	schedule ScheduleInfo,
	rates RateStatusProvider,
	approvals ApprovalService,
	optOuts OptOutService,
	emails EmailEventSink,
	calls CallEventSink,
	db Pinger,
	logger *zap.Logger,
	version string,
) *Handlers {
	return &Handlers{
		campaigns: campaigns,
		schedule:  schedule,
		rates:     rates,
		approvals: approvals,
		optOuts:   optOuts,
		emails:    emails,
		calls:     calls,
		db:        db,
		logger:    logger,
		version:   version,
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// handleTriggerCampaign runs one cycle to completion and returns its report.
// The route skips the shared request timeout because a spread-paced cycle can
// run for hours; a concurrent trigger for the same channel gets a 409.
func (h *Handlers) handleTriggerCampaign(w http.ResponseWriter, r *http.Request) {
	channel, ok := outreach.ParseChannel(chi.URLParam(r, "channel"))
	if !ok {
		writeBadRequest(w, "INVALID_CHANNEL", "Channel must be email or call")
		return
	}

	run := h.campaigns.RunEmailCampaign
	if channel == outreach.ChannelCall {
		run = h.campaigns.RunCallCampaign
	}
	// The server's write timeout would sever the response mid-cycle, so this
	// request writes on its own deadline.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(r.Context(), campaignTriggerTimeout)
	defer cancel()
	report, err := run(ctx)
	if err != nil {
		h.logger.Error("triggered campaign failed",
			zap.String("channel", string(channel)),
			zap.Error(err))
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	reports, err := h.campaigns.RecentReports(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": reports})
}

func (h *Handlers) handleCampaignStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":   h.campaigns.Running(),
		"next_runs": h.schedule.NextRuns(),
	})
}

func (h *Handlers) handleRateStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.rates.Status(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	f := approval.Filter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := approval.Status(s)
		f.Status = &status
	}
	if c := r.URL.Query().Get("channel"); c != "" {
		channel, ok := outreach.ParseChannel(c)
		if !ok {
			writeBadRequest(w, "INVALID_CHANNEL", "Channel must be email or call")
			return
		}
		f.Channel = &channel
	}

	items, err := h.approvals.List(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handlers) handleApprovalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.approvals.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	item, err := h.approvals.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type reviewRequest struct {
	ReviewerID string          `json:"reviewer_id"`
	Content    json.RawMessage `json:"content,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

func (h *Handlers) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.approvals.Approve(r.Context(), id, req.ReviewerID, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handlers) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.approvals.Reject(r.Context(), id, req.ReviewerID, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handlers) handleEditApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Content) == 0 {
		writeBadRequest(w, "MISSING_CONTENT", "Edited content is required")
		return
	}
	item, err := h.approvals.Edit(r.Context(), id, req.ReviewerID, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handlers) handleExpireApprovals(w http.ResponseWriter, r *http.Request) {
	n, err := h.approvals.ExpireOld(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

func (h *Handlers) handleListOptOuts(w http.ResponseWriter, r *http.Request) {
	var contactType *optout.ContactType
	if s := r.URL.Query().Get("contact_type"); s != "" {
		ct := optout.ContactType(s)
		if ct != optout.ContactEmail && ct != optout.ContactPhone {
			writeBadRequest(w, "INVALID_CONTACT_TYPE", "Contact type must be email or phone")
			return
		}
		contactType = &ct
	}

	records, total, err := h.optOuts.List(r.Context(), contactType,
		queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"opt_outs": records,
		"total":    total,
	})
}

type addOptOutRequest struct {
	ContactType  string `json:"contact_type"`
	ContactValue string `json:"contact_value"`
}

func (h *Handlers) handleAddOptOut(w http.ResponseWriter, r *http.Request) {
	var req addOptOutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ct := optout.ContactType(req.ContactType)
	if ct != optout.ContactEmail && ct != optout.ContactPhone {
		writeBadRequest(w, "INVALID_CONTACT_TYPE", "Contact type must be email or phone")
		return
	}
	if req.ContactValue == "" {
		writeBadRequest(w, "MISSING_CONTACT_VALUE", "Contact value is required")
		return
	}

	added, err := h.optOuts.Add(r.Context(), ct, req.ContactValue, optout.MethodManual, nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := http.StatusCreated
	if !added {
		// Already present. Permanence makes this a success, not a conflict.
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]bool{"added": added})
}

// handleUnsubscribe is the public one-click link in every email footer. It
// answers with a minimal HTML page rather than JSON.
func (h *Handlers) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	token, err := uuid.Parse(r.URL.Query().Get("token"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("<html><body><h2>Invalid unsubscribe link</h2></body></html>"))
		return
	}

	if _, err := h.optOuts.HandleUnsubscribeToken(r.Context(), token); err != nil {
		h.logger.Warn("unsubscribe failed", zap.Error(err))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html><body><h2>This unsubscribe link is not valid</h2></body></html>"))
		return
	}

	_, _ = w.Write([]byte("<html><body><h2>You have been unsubscribed</h2>" +
		"<p>You will not receive further emails from us.</p></body></html>"))
}

func (h *Handlers) handleEmailWebhook(w http.ResponseWriter, r *http.Request) {
	var event outreachsvc.EmailEvent
	if !decodeBody(w, r, &event) {
		return
	}
	if err := h.emails.Handle(r.Context(), event); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// handleCallStatus accepts the voice provider's form-encoded status callback.
func (h *Handlers) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "INVALID_FORM", "Malformed form payload")
		return
	}
	callID := r.PostFormValue("CallSid")
	status := r.PostFormValue("CallStatus")
	if callID == "" || status == "" {
		writeBadRequest(w, "MISSING_FIELDS", "CallSid and CallStatus are required")
		return
	}

	var duration *int
	if d := r.PostFormValue("CallDuration"); d != "" {
		if sec, err := strconv.Atoi(d); err == nil {
			duration = &sec
		}
	}

	if err := h.calls.HandleStatus(r.Context(), callID, status, duration); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// handleSMSWebhook accepts the carrier's form-encoded inbound message
// callback. STOP and the removal keywords opt the sender's number out.
func (h *Handlers) handleSMSWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "INVALID_FORM", "Malformed form payload")
		return
	}
	phone := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if phone == "" {
		writeBadRequest(w, "MISSING_FIELDS", "From is required")
		return
	}

	optedOut, err := h.optOuts.HandleSMS(r.Context(), phone, body)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"opted_out": optedOut})
}

type transcriptRequest struct {
	CallID     string `json:"call_id"`
	Transcript string `json:"transcript"`
}

func (h *Handlers) handleCallTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CallID == "" {
		writeBadRequest(w, "MISSING_CALL_ID", "call_id is required")
		return
	}

	intent, err := h.calls.HandleTranscript(r.Context(), req.CallID, req.Transcript)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"intent": string(intent)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeBadRequest(w, "INVALID_BODY", "Malformed JSON payload")
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, "INVALID_ID", "Path segment "+name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
