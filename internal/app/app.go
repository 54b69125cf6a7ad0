// Package app builds the object graph shared by the server binary, the
// local CLI and the E2E harness.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/omriShneor/alfred_scheduler/internal/agent"
	"github.com/omriShneor/alfred_scheduler/internal/agent/extractor"
	"github.com/omriShneor/alfred_scheduler/internal/agent/general"
	"github.com/omriShneor/alfred_scheduler/internal/agent/router"
	"github.com/omriShneor/alfred_scheduler/internal/config"
	"github.com/omriShneor/alfred_scheduler/internal/database"
	"github.com/omriShneor/alfred_scheduler/internal/flow"
	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/omriShneor/alfred_scheduler/internal/metrics"
	"github.com/omriShneor/alfred_scheduler/internal/notify"
	"github.com/omriShneor/alfred_scheduler/internal/scheduler"
	"github.com/omriShneor/alfred_scheduler/internal/server"
)

// Options replaces parts of the graph. Zero values mean "build from config".
type Options struct {
	// Calendar replaces the Google Calendar client.
	Calendar gcal.Calendar

	Classifier flow.Classifier
	Extractor  flow.Extractor
	Answerer   flow.Answerer

	// APIOptions are passed to every LLM stage (for example a stub API URL).
	APIOptions []agent.APIOption

	Notifier notify.Notifier
	Logger   *slog.Logger
	Clock    func() time.Time

	// DisableRuntimeMetrics skips the Go and process collectors.
	DisableRuntimeMetrics bool
}

// App is the wired application.
type App struct {
	Config   *config.Config
	Location *time.Location
	Logger   *slog.Logger

	Calendar *gcal.Handle
	DB       *database.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Writer   *scheduler.Writer
	Notify   *notify.Service
	Flow     *flow.Orchestrator
}

// NewLogger returns a text logger at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// New wires every component from cfg. The calendar client is built lazily
// on first use, so a missing credential only surfaces when a booking is made.
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loc, fallback := cfg.Location()
	if fallback {
		logger.Warn("unknown timezone, using UTC", "timezone", cfg.Timezone)
	}

	a := &App{
		Config:   cfg,
		Location: loc,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	if !opts.DisableRuntimeMetrics {
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	a.Metrics = metrics.MustNewMetrics(a.Registry)

	if cfg.TracesEnabled() {
		db, err := database.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace database: %w", err)
		}
		a.DB = db
	}

	a.Calendar = initCalendar(cfg, loc, opts.Calendar, logger)

	a.Writer = scheduler.NewWriter(scheduler.WriterConfig{
		Source:                 a.Calendar,
		Location:               loc,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		Policy:                 cfg.ConflictPolicy,
		Logger:                 logger,
		Metrics:                a.Metrics,
	})

	a.Notify = initNotifyService(cfg, opts.Notifier, logger)

	flowCfg := flow.Config{
		Classifier: opts.Classifier,
		Extractor:  opts.Extractor,
		Answerer:   opts.Answerer,
		Writer:     a.Writer,
		Notifier:   a.Notify,
		Metrics:    a.Metrics,
		Location:   loc,
		Clock:      opts.Clock,
		Logger:     logger,
	}
	if a.DB != nil {
		flowCfg.Traces = a.DB
	}
	initStages(&flowCfg, cfg, opts.APIOptions, logger)
	a.Flow = flow.New(flowCfg)

	return a, nil
}

func initCalendar(cfg *config.Config, loc *time.Location, override gcal.Calendar, logger *slog.Logger) *gcal.Handle {
	if override != nil {
		return gcal.NewStaticHandle(override)
	}
	clientCfg := cfg.CalendarConfig(loc)
	return gcal.NewHandle(func(ctx context.Context) (gcal.Calendar, error) {
		client, err := gcal.NewClient(ctx, clientCfg)
		if err != nil {
			logger.Error("google calendar client unavailable", "error", err)
			return nil, err
		}
		logger.Info("google calendar client ready", "calendar_id", client.CalendarID())
		return client, nil
	})
}

func initNotifyService(cfg *config.Config, override notify.Notifier, logger *slog.Logger) *notify.Service {
	var emailNotifier notify.Notifier
	if override != nil {
		emailNotifier = override
	} else if n := notify.NewResendNotifier(cfg.ResendAPIKey, cfg.EmailFrom); n != nil {
		emailNotifier = n
	}

	svc := notify.NewService(emailNotifier, cfg.NotifyEmail, logger)
	if svc.IsEmailAvailable() {
		logger.Info("booking email notifications enabled", "recipient", cfg.NotifyEmail)
	}
	return svc
}

func initStages(flowCfg *flow.Config, cfg *config.Config, apiOpts []agent.APIOption, logger *slog.Logger) {
	if cfg.AnthropicAPIKey == "" && (flowCfg.Classifier == nil || flowCfg.Extractor == nil || flowCfg.Answerer == nil) {
		logger.Warn("ANTHROPIC_API_KEY not set, language model stages will fail over to their fallbacks")
	}

	if flowCfg.Classifier == nil {
		flowCfg.Classifier = router.NewClassifier(router.Config{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.ClaudeModel,
			Temperature: cfg.ClaudeTemperature,
			APIOptions:  apiOpts,
			Logger:      logger,
		})
	}
	if flowCfg.Extractor == nil {
		flowCfg.Extractor = extractor.NewExtractor(extractor.Config{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.ClaudeModel,
			Temperature: cfg.ClaudeTemperature,
			APIOptions:  apiOpts,
			Logger:      logger,
		})
	}
	if flowCfg.Answerer == nil {
		flowCfg.Answerer = general.NewAnswerer(general.Config{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.ClaudeModel,
			Temperature: cfg.ClaudeTemperature,
			APIOptions:  apiOpts,
			Logger:      logger,
		})
	}
}

// Server returns the HTTP surface for the app.
func (a *App) Server() *server.Server {
	cfg := server.ServerConfig{
		Runner:   a.Flow,
		Calendar: a.Calendar,
		Gatherer: a.Registry,
		Logger:   a.Logger,
		Port:     a.Config.HTTPPort,
	}
	if a.DB != nil {
		cfg.Traces = a.DB
	}
	return server.New(cfg)
}

// Close releases the trace database.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
