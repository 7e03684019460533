// Command improved hosts the continuous-improvement core: it ingests
// finalized user sessions, derives pain points, researches remedies across
// external knowledge sources, maintains a ranked suggestion backlog and a
// learning knowledge base, and produces periodic health reports.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lumenforge/insight/internal/config"
	"github.com/lumenforge/insight/internal/health"
	"github.com/lumenforge/insight/internal/metrics"
	"github.com/lumenforge/insight/internal/mgmt"
	"github.com/lumenforge/insight/internal/models"
	"github.com/lumenforge/insight/internal/pipeline"
	"github.com/lumenforge/insight/internal/reflection"
	"github.com/lumenforge/insight/internal/report"
	"github.com/lumenforge/insight/internal/research"
	"github.com/lumenforge/insight/internal/session"
	"github.com/lumenforge/insight/internal/source"
	"github.com/lumenforge/insight/internal/store"
	"github.com/lumenforge/insight/internal/synth"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Bool("synth_enabled", cfg.SynthEnabled()).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting improvement core")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Storage ----
	ds, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer ds.Close()

	knowledge := store.NewKnowledge(ds, cfg.LearningRate, cfg.DecayHalfLife, logger)
	ledger := store.NewLedger(ds)
	backlog := store.NewBacklog(ds)
	sessions := store.NewSessionLog(ds)
	reports := store.NewReports(ds)

	// ---- Self-instrumentation and health ----
	m := metrics.New()
	checker := health.NewChecker(logger)
	checker.Register("sqlite", func(ctx context.Context) health.Status {
		if err := ds.Ping(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// ---- Knowledge sources ----
	specs := config.DefaultSources()
	if cfg.SourcesFile != "" {
		specs, err = config.LoadSources(cfg.SourcesFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load sources file")
		}
	}
	registry, err := source.BuildRegistry(specs, cfg.GitHubToken, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build source registry")
	}
	gateway := source.NewGateway(registry, 5, m, logger)

	// ---- Synthesis capability ----
	var capability synth.Capability
	if cfg.SynthEnabled() {
		capability = synth.NewOpenAIProvider(cfg.SynthAPIKey, logger,
			synth.WithBaseURL(cfg.SynthBaseURL),
			synth.WithModel(cfg.SynthModel),
		)
		logger.Info().Str("model", cfg.SynthModel).Msg("synthesis capability configured")
	} else {
		logger.Info().Msg("synthesis capability not configured, raw-result fallback only")
	}

	// ---- Analysis pipeline ----
	priorPain := func(userID string, category models.PainCategory) bool {
		has, err := sessions.HasUnresolved(ctx, userID, category)
		if err != nil {
			logger.Warn().Err(err).Msg("unresolved pain lookup failed")
			return false
		}
		return has
	}
	analyzer := session.NewAnalyzer(session.Config{
		ErrorThreshold:   cfg.ErrorThreshold,
		SlowActionCutoff: cfg.SlowActionCutoff,
	}, priorPain, logger)

	synthesizer := research.NewSynthesizer(research.Config{
		ReuseThreshold:   cfg.ReuseThreshold,
		DedupThreshold:   cfg.DedupThreshold,
		PerSourceTimeout: cfg.PerSourceTimeout,
		OverallTimeout:   cfg.OverallTimeout,
		SynthTimeout:     cfg.SynthTimeout,
	}, gateway, knowledge, capability, m, logger)

	pipe := pipeline.New(pipeline.Config{
		Workers:   cfg.AnalysisWorkers,
		QueueSize: cfg.AnalysisQueueSize,
	}, analyzer, synthesizer, backlog, sessions, m, logger)
	pipe.Start(ctx)

	// ---- Reflection ----
	engine := reflection.NewEngine(reflection.Config{
		Interval:        cfg.ReflectionInterval,
		Window:          cfg.ReflectionWindow,
		WeakSuccessRate: cfg.WeakSuccessRate,
		WeakQuality:     cfg.WeakQuality,
	}, ledger, backlog, m, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()

	// ---- Daily reports ----
	var notifier report.Notifier
	if cfg.SlackEnabled() {
		notifier = report.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackReportChannel, logger)
	}
	generator := report.NewGenerator(report.Config{
		TopN:              cfg.ReportTopN,
		ImplementedTarget: cfg.ImplementedTarget,
	}, sessions, backlog, ledger, reports, notifier, m, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		generator.Run(ctx)
	}()

	// ---- Management API ----
	server := mgmt.NewServer(mgmt.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		Auth: mgmt.AuthConfig{
			Mode:      cfg.AuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
		},
	}, mgmt.NewHandlers(pipe, ledger, knowledge, backlog, reports, checker, logger), m.Handler(), logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("management API server error")
		}
	}()

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	pipe.Wait()
	wg.Wait()
	logger.Info().Msg("shutdown complete")
}
