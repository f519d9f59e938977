// Package config provides configuration management for CivicFlow.
// Configurations are loaded from TOML files with XDG-compliant paths.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Service       ServiceConfig       `toml:"service"`
	Server        ServerConfig        `toml:"server"`
	Pipeline      PipelineConfig      `toml:"pipeline"`
	SLA           SLAConfig           `toml:"sla"`
	Cluster       ClusterConfig       `toml:"cluster"`
	Briefing      BriefingConfig      `toml:"briefing"`
	Collaborators CollaboratorsConfig `toml:"collaborators"`
	Email         EmailConfig         `toml:"email"`
	Simulation    SimulationConfig    `toml:"simulation"`
	Display       DisplayConfig       `toml:"display"`
	Logging       LoggingConfig       `toml:"logging"`
	Database      DatabaseConfig      `toml:"database"`
}

// ServiceConfig identifies the deployment.
type ServiceConfig struct {
	Name string `toml:"name"`
	// DefaultTenant is created by the seed command and used for
	// submissions that carry no tenant.
	DefaultTenant string `toml:"default_tenant"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr                  string `toml:"addr"`
	AdminToken            string `toml:"admin_token"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// RequestTimeout returns the per-request deadline.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// PipelineConfig controls complaint processing.
type PipelineConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
	// CollaboratorTimeoutSeconds bounds every external call a stage makes.
	CollaboratorTimeoutSeconds int     `toml:"collaborator_timeout_seconds"`
	ConfidenceThreshold        float64 `toml:"confidence_threshold"`
}

// CollaboratorTimeout returns the per-call deadline for collaborators.
func (p PipelineConfig) CollaboratorTimeout() time.Duration {
	return time.Duration(p.CollaboratorTimeoutSeconds) * time.Second
}

// SLAConfig controls the deadline monitor.
type SLAConfig struct {
	ScanIntervalMinutes int `toml:"scan_interval_minutes"`
	// EscalateOnce suppresses repeat escalations for a work order that has
	// already been escalated.
	EscalateOnce bool `toml:"escalate_once"`
}

// ScanInterval returns the monitor tick.
func (s SLAConfig) ScanInterval() time.Duration {
	return time.Duration(s.ScanIntervalMinutes) * time.Minute
}

// ClusterConfig controls the grouping batch job.
type ClusterConfig struct {
	IntervalMinutes int     `toml:"interval_minutes"`
	LookbackDays    int     `toml:"lookback_days"`
	MinSize         int     `toml:"min_size"`
	GeoPrecision    int     `toml:"geo_precision"`
	SLAHours        int     `toml:"sla_hours"`
	CostFactor      float64 `toml:"cost_factor"`
}

// Interval returns the detector tick.
func (c ClusterConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// BriefingConfig controls the daily briefing.
type BriefingConfig struct {
	Enabled bool `toml:"enabled"`
	Hour    int  `toml:"hour"`
}

// CollaboratorsConfig points at the external analysis services. Empty
// URLs disable a collaborator and the local fallback is used instead.
type CollaboratorsConfig struct {
	NLUURL      string `toml:"nlu_url"`
	GeocoderURL string `toml:"geocoder_url"`
	UserAgent   string `toml:"user_agent"`
}

// EmailConfig controls outbound citizen email.
type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	Username string `toml:"username"`
	// Password is normally supplied through CIVICFLOW_SMTP_PASSWORD.
	Password string `toml:"password,omitempty"`
	From     string `toml:"from"`
}

// SimulationConfig controls the demo clock used by the console.
type SimulationConfig struct {
	Enabled   bool    `toml:"enabled"`
	TimeScale float64 `toml:"time_scale"`
}

// DisplayConfig controls TUI appearance.
type DisplayConfig struct {
	ColorScheme ColorScheme `toml:"color_scheme"`
	DateFormat  string      `toml:"date_format"`
	TimeFormat  string      `toml:"time_format"`
}

// ColorScheme defines the terminal color palette.
type ColorScheme string

const (
	ColorSchemeCivic ColorScheme = "civic"
	ColorSchemeAmber ColorScheme = "amber"
	ColorSchemeMono  ColorScheme = "mono"
)

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level LogLevel `toml:"level"`
	File  string   `toml:"file"`
}

// LogLevel defines logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// DatabaseConfig controls SQLite database settings.
type DatabaseConfig struct {
	Path                string `toml:"path"`
	BackupIntervalHours int    `toml:"backup_interval_hours"`
	BackupRetentionDays int    `toml:"backup_retention_days"`
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		err  error
	}{
		{"service", c.Service.Validate()},
		{"server", c.Server.Validate()},
		{"pipeline", c.Pipeline.Validate()},
		{"sla", c.SLA.Validate()},
		{"cluster", c.Cluster.Validate()},
		{"briefing", c.Briefing.Validate()},
		{"collaborators", c.Collaborators.Validate()},
		{"email", c.Email.Validate()},
		{"simulation", c.Simulation.Validate()},
		{"display", c.Display.Validate()},
		{"logging", c.Logging.Validate()},
		{"database", c.Database.Validate()},
	}

	var errs []error
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, s.err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks that the service configuration is valid.
func (s *ServiceConfig) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Validate checks that the server configuration is valid.
func (s *ServerConfig) Validate() error {
	var errs []error
	if s.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if s.RequestTimeoutSeconds < 1 {
		errs = append(errs, errors.New("request_timeout_seconds must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks that the pipeline configuration is valid.
func (p *PipelineConfig) Validate() error {
	var errs []error
	if p.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if p.QueueSize < 1 {
		errs = append(errs, errors.New("queue_size must be at least 1"))
	}
	if p.CollaboratorTimeoutSeconds < 1 {
		errs = append(errs, errors.New("collaborator_timeout_seconds must be positive"))
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		errs = append(errs, errors.New("confidence_threshold must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// Validate checks that the SLA configuration is valid.
func (s *SLAConfig) Validate() error {
	if s.ScanIntervalMinutes < 1 {
		return errors.New("scan_interval_minutes must be positive")
	}
	return nil
}

// Validate checks that the cluster configuration is valid.
func (c *ClusterConfig) Validate() error {
	var errs []error
	if c.IntervalMinutes < 1 {
		errs = append(errs, errors.New("interval_minutes must be positive"))
	}
	if c.LookbackDays < 1 {
		errs = append(errs, errors.New("lookback_days must be positive"))
	}
	if c.MinSize < 2 {
		errs = append(errs, errors.New("min_size must be at least 2"))
	}
	if c.GeoPrecision < 0 || c.GeoPrecision > 6 {
		errs = append(errs, errors.New("geo_precision must be between 0 and 6"))
	}
	if c.SLAHours < 1 {
		errs = append(errs, errors.New("sla_hours must be positive"))
	}
	if c.CostFactor <= 0 {
		errs = append(errs, errors.New("cost_factor must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks that the briefing configuration is valid.
func (b *BriefingConfig) Validate() error {
	if b.Hour < 0 || b.Hour > 23 {
		return errors.New("hour must be between 0 and 23")
	}
	return nil
}

// Validate checks that the collaborator URLs parse.
func (c *CollaboratorsConfig) Validate() error {
	var errs []error
	for name, raw := range map[string]string{"nlu_url": c.NLUURL, "geocoder_url": c.GeocoderURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid %s: %q", name, raw))
		}
	}
	return errors.Join(errs...)
}

// Validate checks that the email configuration is valid.
func (e *EmailConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	var errs []error
	if e.SMTPHost == "" {
		errs = append(errs, errors.New("smtp_host is required when email is enabled"))
	}
	if e.SMTPPort < 1 || e.SMTPPort > 65535 {
		errs = append(errs, errors.New("smtp_port must be between 1 and 65535"))
	}
	if e.From == "" {
		errs = append(errs, errors.New("from is required when email is enabled"))
	}
	return errors.Join(errs...)
}

// Validate checks that the simulation configuration is valid.
func (s *SimulationConfig) Validate() error {
	if s.TimeScale < 0 {
		return errors.New("time_scale must be non-negative")
	}
	return nil
}

// Validate checks that the display configuration is valid.
func (d *DisplayConfig) Validate() error {
	switch d.ColorScheme {
	case "", ColorSchemeCivic, ColorSchemeAmber, ColorSchemeMono:
		return nil
	default:
		return fmt.Errorf("invalid color_scheme: %s", d.ColorScheme)
	}
}

// Validate checks that the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return fmt.Errorf("invalid log level: %s", l.Level)
	}
}

// Validate checks that the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	var errs []error
	if d.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	if d.BackupIntervalHours < 0 {
		errs = append(errs, errors.New("backup_interval_hours must be non-negative"))
	}
	if d.BackupRetentionDays < 0 {
		errs = append(errs, errors.New("backup_retention_days must be non-negative"))
	}
	return errors.Join(errs...)
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:          "CivicFlow",
			DefaultTenant: "Bangalore Municipal Corporation",
		},
		Server: ServerConfig{
			Addr:                  ":8080",
			RequestTimeoutSeconds: 30,
		},
		Pipeline: PipelineConfig{
			Workers:                    4,
			QueueSize:                  256,
			CollaboratorTimeoutSeconds: 10,
			ConfidenceThreshold:        0.7,
		},
		SLA: SLAConfig{
			ScanIntervalMinutes: 5,
		},
		Cluster: ClusterConfig{
			IntervalMinutes: 60,
			LookbackDays:    7,
			MinSize:         2,
			GeoPrecision:    2,
			SLAHours:        48,
			CostFactor:      0.7,
		},
		Briefing: BriefingConfig{
			Enabled: true,
			Hour:    8,
		},
		Collaborators: CollaboratorsConfig{
			GeocoderURL: "https://nominatim.openstreetmap.org",
			UserAgent:   "CivicFlow/1.0",
		},
		Email: EmailConfig{
			SMTPPort: 587,
			From:     "noreply@civicflow.local",
		},
		Simulation: SimulationConfig{
			TimeScale: 1.0,
		},
		Display: DisplayConfig{
			ColorScheme: ColorSchemeCivic,
			DateFormat:  "2006-01-02",
			TimeFormat:  "15:04",
		},
		Logging: LoggingConfig{
			Level: LogLevelInfo,
			File:  "logs/civicflow.log",
		},
		Database: DatabaseConfig{
			Path:                "civicflow.db",
			BackupIntervalHours: 24,
			BackupRetentionDays: 14,
		},
	}
}
