package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/api/rest"
	"github.com/devsync/outreach-backend/internal/infrastructure/config"
	"github.com/devsync/outreach-backend/internal/infrastructure/database"
	"github.com/devsync/outreach-backend/internal/infrastructure/events"
	"github.com/devsync/outreach-backend/internal/infrastructure/repository"
	"github.com/devsync/outreach-backend/internal/infrastructure/telemetry"
	approvalsvc "github.com/devsync/outreach-backend/internal/service/approval"
	"github.com/devsync/outreach-backend/internal/service/campaign"
	"github.com/devsync/outreach-backend/internal/service/eligibility"
	optoutsvc "github.com/devsync/outreach-backend/internal/service/optout"
	outreachsvc "github.com/devsync/outreach-backend/internal/service/outreach"
	"github.com/devsync/outreach-backend/internal/service/outreach/providers"
	"github.com/devsync/outreach-backend/internal/service/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	leadRepo := repository.NewLeadRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	campaignRepo := repository.NewCampaignRepository(pool)
	optOutRepo := repository.NewOptOutRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	approvalRepo := repository.NewApprovalRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	publisher := events.NewAuditPublisher(auditRepo, logger, 0)
	defer publisher.Close()

	registry := optoutsvc.NewRegistry(optOutRepo, tokenRepo, publisher, logger)

	governor := ratelimit.NewGovernor(attemptRepo, ratelimit.Limits{
		DailyEmailCap:       cfg.Outreach.DailyEmailCap,
		DailyCallCap:        cfg.Outreach.DailyCallCap,
		CooldownDays:        cfg.Outreach.CooldownDays,
		PerDomainEmailLimit: cfg.Outreach.PerDomainEmailLimit,
		CallWindowStart:     cfg.Call.WindowStart,
		CallWindowEnd:       cfg.Call.WindowEnd,
		Location:            cfg.Location(),
	}, logger)

	selector := eligibility.NewSelector(leadRepo, governor, registry, logger)
	approvalQueue := approvalsvc.NewQueue(approvalRepo, publisher, logger, cfg.Outreach.ApprovalExpiryDays)

	emailProvider, err := buildEmailProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building email provider: %w", err)
	}
	callProvider := buildCallProvider(cfg, logger)

	dnc, err := outreachsvc.NewFileDNCRegistry(cfg.Call.DNCRegistryFile)
	if err != nil {
		return fmt.Errorf("loading DNC registry: %w", err)
	}
	if dnc.Len() > 0 {
		logger.Info("DNC registry loaded", zap.Int("numbers", dnc.Len()))
	}

	footer := outreachsvc.Footer{
		FromName:           cfg.Email.FromName,
		BusinessAddress:    cfg.Email.BusinessAddress,
		UnsubscribeBaseURL: cfg.Email.UnsubscribeBaseURL,
	}
	personalizer := &outreachsvc.TemplatePersonalizer{
		CompanyName: cfg.Company.Name,
		WebsiteURL:  cfg.Company.Website,
	}

	emailPipeline := outreachsvc.NewEmailPipeline(
		emailProvider, registry, governor, attemptRepo, leadRepo,
		footer, publisher, logger, cfg.Outreach.DryRun)
	callPipeline := outreachsvc.NewCallPipeline(
		callProvider, registry, governor, dnc, attemptRepo, leadRepo,
		publisher, logger, cfg.Company.Name, cfg.Call.StatusCallbackURL,
		cfg.Outreach.DryRun)
	emailEvents := outreachsvc.NewEmailEventHandler(attemptRepo, leadRepo, registry, publisher, logger)

	orchestrator := campaign.NewOrchestrator(
		selector, personalizer, emailPipeline, callPipeline,
		approvalQueue, governor, campaignRepo, leadRepo,
		publisher, logger, campaign.Options{
			ApprovalMode: cfg.Outreach.ApprovalMode,
			Pacing:       cfg.Call.Pacing,
			CompanyName:  cfg.Company.Name,
		})

	scheduler, err := campaign.NewScheduler(orchestrator, cfg.Location(),
		cfg.Email.SendTime, cfg.Call.WindowStart, logger)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	handlers := rest.NewHandlers(
		orchestrator, scheduler, governor, approvalQueue, registry,
		emailEvents, callPipeline, pool, logger, cfg.Version)
	server := rest.NewServer(cfg.Server, rest.NewRouter(handlers, logger), logger)

	logger.Info("outreach backend starting",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.String("email_provider", emailProvider.Name()),
		zap.String("call_provider", callProvider.Name()),
		zap.Bool("approval_mode", cfg.Outreach.ApprovalMode),
		zap.Bool("dry_run", cfg.Outreach.DryRun))

	return server.Run(ctx)
}

func buildEmailProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (outreachsvc.EmailProvider, error) {
	switch cfg.Email.Provider {
	case "ses":
		return providers.NewSESProvider(ctx, providers.SESOptions{
			Region:   cfg.Email.SES.Region,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	default:
		return providers.NewLogEmailProvider(logger), nil
	}
}

func buildCallProvider(cfg *config.Config, logger *zap.Logger) outreachsvc.CallProvider {
	switch cfg.Call.Provider {
	case "twilio":
		return providers.NewTwilioProvider(providers.TwilioOptions{
			AccountSID: cfg.Call.Twilio.AccountSID,
			AuthToken:  cfg.Call.Twilio.AuthToken,
			FromNumber: cfg.Call.Twilio.FromNumber,
			BaseURL:    cfg.Call.Twilio.BaseURL,
		}, logger)
	default:
		return providers.NewLogCallProvider(logger)
	}
}
