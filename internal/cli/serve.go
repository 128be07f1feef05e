package cli

import (
	"context"
	"fmt"
	"time"

	"resumeboost/internal/ai"
	"resumeboost/internal/analysis"
	"resumeboost/internal/billing"
	"resumeboost/internal/cache"
	"resumeboost/internal/dashboard"
	"resumeboost/internal/database"
	"resumeboost/internal/observability"
	"resumeboost/internal/pdfgen"
	"resumeboost/internal/quota"
	"resumeboost/internal/server"
	"resumeboost/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resume analysis HTTP server",
	Long: `Start an HTTP server that provides the resume analysis REST API.

Available endpoints:
- POST /api/resume/analyze: Upload a resume and job description for analysis
- GET /api/quota: Current quota standing for the authenticated user
- GET /api/dashboard/metrics: Aggregated dashboard view
- GET /api/analyses: Paginated analysis history
- GET /api/analyses/{id}: One analysis with a signed PDF URL
- POST /api/stripe/checkout-session: Start a pro-plan checkout
- POST /api/stripe/customer-portal: Open the billing portal
- POST /api/stripe/webhook: Stripe event sink (signature-authenticated)
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")

	bindFlag := func(key, flagName string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	bindFlag("server.port", "port")
	bindFlag("server.host", "host")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	obs, err := observability.NewManager(cfg.Observability, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	aiService, err := ai.NewService(cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := aiService.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service")
		}
	}()

	slogger := logger.Slog()
	subscriptions := database.NewPostgresSubscriptionRepo(pool, slogger)
	resumes := database.NewPostgresResumeRepo(pool, slogger)
	analyses := database.NewPostgresAnalysisRepo(pool, slogger)
	usage := database.NewPostgresUsageRepo(pool, slogger)

	appCache := cache.New(cfg.Cache)
	quotaSvc := quota.NewService(subscriptions, analyses, cfg.Quota, slogger)
	billingSvc := billing.NewService(subscriptions, appCache, cfg.Stripe, logger)
	analysisSvc := analysis.NewService(
		quotaSvc,
		aiService,
		pdfgen.NewRenderer(),
		store,
		resumes,
		analyses,
		usage,
		appCache,
		cfg.App,
		cfg.Storage.Bucket,
		logger,
	)
	dashboardSvc := dashboard.NewService(resumes, analyses, usage, quotaSvc, store, appCache, logger)

	srv := server.NewServer(cfg, Version, server.Services{
		Analysis:  analysisSvc,
		Dashboard: dashboardSvc,
		Billing:   billingSvc,
		Quota:     quotaSvc,
		AI:        aiService,
	}, obs, logger)

	err = srv.Start()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if obsErr := obs.Shutdown(shutdownCtx); obsErr != nil {
		logger.LogError(obsErr, "Failed to shutdown observability")
	}

	return err
}
