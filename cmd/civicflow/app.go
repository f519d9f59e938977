package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/civicflow/civicflow/internal/collab"
	"github.com/civicflow/civicflow/internal/config"
	"github.com/civicflow/civicflow/internal/database"
	"github.com/civicflow/civicflow/internal/eventbus"
	"github.com/civicflow/civicflow/internal/pipeline"
	"github.com/civicflow/civicflow/internal/repository"
	"github.com/civicflow/civicflow/internal/services/admin"
	"github.com/civicflow/civicflow/internal/services/briefing"
	"github.com/civicflow/civicflow/internal/services/cluster"
	"github.com/civicflow/civicflow/internal/services/complaints"
	"github.com/civicflow/civicflow/internal/services/notifications"
	"github.com/civicflow/civicflow/internal/services/sla"
	"github.com/civicflow/civicflow/internal/util"
)

// eventBuffer is the event bus queue length.
const eventBuffer = 256

// app holds an opened database and the services built on it.
type app struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	db      *database.DB
	clock   util.Clock
	bus     *eventbus.Bus

	complaints *complaints.Service
	admin      *admin.Service
	briefings  *briefing.Generator
	sla        *sla.Monitor
	clusters   *cluster.Detector

	closers []func()
}

// setup loads configuration and logging without touching the database.
func setup() (*config.Config, string, *slog.Logger, func(), error) {
	cfg, cfgPath, err := config.Load(configPath, true)
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger, closeLog, err := newLogger(cfg, debugMode, os.Stderr)
	if err != nil {
		return nil, "", nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, cfgPath, logger, closeLog, nil
}

// newLogger writes JSON to the configured log file, or text to fallback
// when no file is configured.
func newLogger(cfg *config.Config, debug bool, fallback io.Writer) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.Logging.Level, debug)}

	logPath, err := config.EnsureLogDir(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	if logPath == "" {
		return slog.New(slog.NewTextHandler(fallback, opts)), func() {}, nil
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, opts)), func() { f.Close() }, nil
}

func logLevel(level config.LogLevel, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openDB recovers, opens and migrates the configured database.
func openDB(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	dbPath, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("ensuring data directory: %w", err)
	}

	backupDir, err := config.BackupDir(cfg)
	if err != nil {
		slog.Warn("failed to create backup directory", "error", err)
		backupDir = ""
	}

	if _, err := os.Stat(dbPath); err == nil {
		report, err := database.AttemptRecovery(dbPath, backupDir)
		if err != nil {
			slog.Error("database recovery failed", "path", dbPath, "steps", len(report.Steps))
			return nil, fmt.Errorf("database recovery failed: %w", err)
		}
		switch report.Result {
		case database.RecoveryFromBackup:
			slog.Warn("database restored from backup", "backup", report.BackupUsed)
		case database.RecoverySuccess:
			slog.Debug("database integrity verified")
		}
	}

	db, err := database.Open(dbPath, &cfg.Database, backupDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	migrator, err := database.NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	result, err := migrator.MigrateUp(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if len(result.Applied) > 0 {
		slog.Info("applied migrations", "count", len(result.Applied), "to_version", result.TargetVersion)
	}
	return db, nil
}

// openApp opens the database and wires every service. The event bus is
// started; close stops it and the database.
func openApp(ctx context.Context, clock util.Clock) (*app, error) {
	cfg, cfgPath, logger, closeLog, err := setup()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, cfgPath: cfgPath, logger: logger, clock: clock, closers: []func(){closeLog}}

	logger.Info("CivicFlow starting", "version", Version, "build_time", BuildTime, "config_path", cfgPath)

	db, err := openDB(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() {
		logger.Info("closing database")
		if err := db.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	})

	a.bus = eventbus.New(eventBuffer, logger)
	a.bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	a.bus.Start(ctx)
	a.closers = append(a.closers, a.bus.Stop)

	a.wire()
	return a, nil
}

func (a *app) wire() {
	cfg, sqlDB := a.cfg, a.db.DB
	timeout := cfg.Pipeline.CollaboratorTimeout()

	var mailer collab.Mailer = collab.NewLogMailer(a.logger)
	if cfg.Email.Enabled {
		mailer = collab.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.From)
	}
	notifier := notifications.NewDispatcher(sqlDB, mailer, a.bus,
		notifications.WithClock(a.clock),
		notifications.WithLogger(a.logger),
		notifications.WithProduct(cfg.Service.Name),
		notifications.WithTimeout(timeout))

	deps := pipeline.Deps{
		DB:              sqlDB,
		Contractors:     repository.NewContractorRepository(sqlDB),
		WorkOrders:      repository.NewWorkOrderRepository(sqlDB),
		Clock:           a.clock,
		Logger:          a.logger,
		Notifier:        notifier,
		Timeout:         timeout,
		ReviewThreshold: cfg.Pipeline.ConfidenceThreshold,
	}
	var narrator collab.Narrator
	if cfg.Collaborators.NLUURL != "" {
		nlu := collab.NewNLUClient(cfg.Collaborators.NLUURL, cfg.Collaborators.UserAgent, timeout)
		deps.Classifier = nlu
		deps.Validator = nlu
		deps.RiskAssessor = nlu
		deps.Transcriber = nlu
		deps.ImageAnalyzer = nlu
		narrator = nlu
	}
	if cfg.Collaborators.GeocoderURL != "" {
		deps.Geocoder = collab.NewNominatim(cfg.Collaborators.GeocoderURL, cfg.Collaborators.UserAgent, timeout)
	}

	a.complaints = complaints.NewService(sqlDB, pipeline.DefaultStages(deps),
		complaints.WithClock(a.clock),
		complaints.WithLogger(a.logger),
		complaints.WithNotifier(notifier))
	a.admin = admin.NewService(sqlDB,
		admin.WithClock(a.clock),
		admin.WithLogger(a.logger),
		admin.WithNotifier(notifier))
	a.sla = sla.NewMonitor(sqlDB,
		sla.WithClock(a.clock),
		sla.WithLogger(a.logger),
		sla.WithNotifier(notifier),
		sla.WithEscalateOnce(cfg.SLA.EscalateOnce))
	a.clusters = cluster.NewDetector(sqlDB, clusterSettings(cfg.Cluster),
		cluster.WithClock(a.clock),
		cluster.WithLogger(a.logger))
	if cfg.Briefing.Enabled {
		opts := []briefing.Option{
			briefing.WithClock(a.clock),
			briefing.WithLogger(a.logger),
			briefing.WithTimeout(timeout),
		}
		if narrator != nil {
			opts = append(opts, briefing.WithNarrator(narrator))
		}
		a.briefings = briefing.NewGenerator(sqlDB, opts...)
	}
}

func clusterSettings(c config.ClusterConfig) cluster.Settings {
	return cluster.Settings{
		Lookback:   time.Duration(c.LookbackDays) * 24 * time.Hour,
		MinSize:    c.MinSize,
		Precision:  c.GeoPrecision,
		SLA:        time.Duration(c.SLAHours) * time.Hour,
		CostFactor: c.CostFactor,
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
