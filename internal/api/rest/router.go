package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/infrastructure/telemetry"
)

// NewRouter mounts every endpoint. Webhook and unsubscribe routes sit outside
// /api/v1 because external providers and mail clients call them.
func NewRouter(h *Handlers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/healthz", telemetry.InstrumentHandler("health", h.handleHealth))
		r.Method(http.MethodGet, "/metrics", telemetry.MetricsHandler())
		r.Get("/unsubscribe", telemetry.InstrumentHandler("unsubscribe", h.handleUnsubscribe))

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/email", telemetry.InstrumentHandler("email_webhook", h.handleEmailWebhook))
			r.Post("/sms", telemetry.InstrumentHandler("sms_webhook", h.handleSMSWebhook))
			r.Post("/calls/status", telemetry.InstrumentHandler("call_status_webhook", h.handleCallStatus))
			r.Post("/calls/transcript", telemetry.InstrumentHandler("call_transcript_webhook", h.handleCallTranscript))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// The trigger holds the request until the cycle finishes, so it is
		// mounted without the shared timeout.
		r.Post("/campaigns/{channel}", telemetry.InstrumentHandler("trigger_campaign", h.handleTriggerCampaign))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/campaigns", telemetry.InstrumentHandler("list_campaigns", h.handleListCampaigns))
			r.Get("/campaigns/status", telemetry.InstrumentHandler("campaign_status", h.handleCampaignStatus))
			r.Get("/ratelimits", telemetry.InstrumentHandler("rate_status", h.handleRateStatus))

			r.Route("/approvals", func(r chi.Router) {
				r.Get("/", telemetry.InstrumentHandler("list_approvals", h.handleListApprovals))
				r.Get("/stats", telemetry.InstrumentHandler("approval_stats", h.handleApprovalStats))
				r.Post("/expire", telemetry.InstrumentHandler("expire_approvals", h.handleExpireApprovals))
				r.Get("/{id}", telemetry.InstrumentHandler("get_approval", h.handleGetApproval))
				r.Post("/{id}/approve", telemetry.InstrumentHandler("approve", h.handleApprove))
				r.Post("/{id}/reject", telemetry.InstrumentHandler("reject", h.handleReject))
				r.Put("/{id}/content", telemetry.InstrumentHandler("edit_approval", h.handleEditApproval))
			})

			r.Get("/optouts", telemetry.InstrumentHandler("list_optouts", h.handleListOptOuts))
			r.Post("/optouts", telemetry.InstrumentHandler("add_optout", h.handleAddOptOut))
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_ip", r.RemoteAddr))
		})
	}
}
