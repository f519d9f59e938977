package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultConfigFileName is the standard configuration file name.
	DefaultConfigFileName = "civicflow.toml"

	// XDGSubdir is the subdirectory under the XDG config and data homes.
	XDGSubdir = "civicflow"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "CIVICFLOW_"
)

// LoadError represents an error that occurred while loading configuration.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading config from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load resolves configuration in order of precedence:
//  1. Explicit path (if provided)
//  2. XDG config path (~/.config/civicflow/civicflow.toml)
//  3. Current working directory (./civicflow.toml)
//  4. Defaults, written to disk when createDefault is true
//
// Environment overrides are applied last. Returns the configuration and
// the path it was loaded from ("" for unsaved defaults).
func Load(explicitPath string, createDefault bool) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := loadFromFile(explicitPath)
		if err != nil {
			return nil, "", &LoadError{Path: explicitPath, Err: err}
		}
		return cfg, explicitPath, nil
	}

	xdgPath := xdgConfigPath()
	cwdPath := filepath.Join(".", DefaultConfigFileName)
	for _, candidate := range []string{xdgPath, cwdPath} {
		if candidate == "" || !fileExists(candidate) {
			continue
		}
		cfg, err := loadFromFile(candidate)
		if err != nil {
			return nil, "", &LoadError{Path: candidate, Err: err}
		}
		return cfg, candidate, nil
	}

	if !createDefault {
		return nil, "", errors.New("no configuration file found; searched: " + xdgPath + ", " + cwdPath)
	}

	cfg := Default()
	target := cwdPath
	if xdgPath != "" {
		if err := os.MkdirAll(filepath.Dir(xdgPath), 0750); err == nil {
			target = xdgPath
		}
	}
	if err := Save(cfg, target); err != nil {
		applyEnv(cfg)
		return cfg, "", nil
	}
	applyEnv(cfg)
	return cfg, target, nil
}

// loadFromFile decodes a TOML file over the defaults and validates it.
func loadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays secrets and deployment-specific values from the
// environment. Call sites load .env files before this runs.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv(EnvPrefix + "ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv(EnvPrefix + "NLU_URL"); v != "" {
		cfg.Collaborators.NLUURL = v
	}
	if v := os.Getenv(EnvPrefix + "ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(EnvPrefix + "EMAIL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Email.Enabled = b
		}
	}
}

// Save writes a configuration to a TOML file. Secrets are not written.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header := `# CivicFlow configuration
#
# Secrets (SMTP password, admin token) are read from the environment
# or a .env file: CIVICFLOW_SMTP_PASSWORD, CIVICFLOW_ADMIN_TOKEN.

`
	if _, err := f.WriteString(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	out := *cfg
	out.Email.Password = ""
	out.Server.AdminToken = ""
	if err := toml.NewEncoder(f).Encode(out); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}
	return nil
}

// xdgConfigPath returns the XDG-compliant config file path, or "" when no
// home directory can be determined.
func xdgConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, XDGSubdir, DefaultConfigFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", XDGSubdir, DefaultConfigFileName)
}

// dataHome returns $XDG_DATA_HOME/civicflow or "" if unavailable.
func dataHome() string {
	xdg := os.Getenv("XDG_DATA_HOME")
	if xdg == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdg = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(xdg, XDGSubdir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ConfigPath returns the configuration file path that would be used.
func ConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	xdgPath := xdgConfigPath()
	if xdgPath != "" && fileExists(xdgPath) {
		return xdgPath
	}
	cwdPath := filepath.Join(".", DefaultConfigFileName)
	if fileExists(cwdPath) || xdgPath == "" {
		return cwdPath
	}
	return xdgPath
}

// EnsureDataDir creates the directory for the database and returns the
// resolved database path. Relative paths live under the XDG data home.
func EnsureDataDir(cfg *Config) (string, error) {
	dbPath := cfg.Database.Path
	if filepath.IsAbs(dbPath) {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
		return dbPath, nil
	}

	dir := dataHome()
	if dir == "" {
		return dbPath, nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return dbPath, nil
	}
	return filepath.Join(dir, dbPath), nil
}

// EnsureLogDir creates the log directory and returns the log file path,
// or "" when file logging is disabled.
func EnsureLogDir(cfg *Config) (string, error) {
	logPath := cfg.Logging.File
	if logPath == "" {
		return "", nil
	}
	dir := filepath.Dir(logPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", fmt.Errorf("creating log directory: %w", err)
		}
	}
	return logPath, nil
}

// BackupDir returns (and creates) the directory for database backups.
func BackupDir(cfg *Config) (string, error) {
	var dir string
	switch {
	case filepath.IsAbs(cfg.Database.Path):
		dir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	case dataHome() != "":
		dir = filepath.Join(dataHome(), "backups")
	default:
		dir = "backups"
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	return dir, nil
}
