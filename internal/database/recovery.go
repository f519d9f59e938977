package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RecoveryResult indicates the outcome of a recovery attempt.
type RecoveryResult int

const (
	// RecoverySuccess means the database was healthy or repaired in place.
	RecoverySuccess RecoveryResult = iota
	// RecoveryFromBackup means the database was replaced by a backup.
	RecoveryFromBackup
	// RecoveryFailed means no attempt produced a healthy database.
	RecoveryFailed
)

func (r RecoveryResult) String() string {
	switch r {
	case RecoverySuccess:
		return "success"
	case RecoveryFromBackup:
		return "restored_from_backup"
	case RecoveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecoveryStep is one attempted action and its outcome.
type RecoveryStep struct {
	Name      string
	Succeeded bool
	Message   string
	Duration  time.Duration
}

// RecoveryReport describes what AttemptRecovery did.
type RecoveryReport struct {
	Result       RecoveryResult
	DatabasePath string
	BackupUsed   string
	WALRecovered bool
	Steps        []RecoveryStep
}

func (r *RecoveryReport) run(name string, fn func() (string, error)) bool {
	start := time.Now()
	msg, err := fn()
	step := RecoveryStep{Name: name, Succeeded: err == nil, Message: msg, Duration: time.Since(start)}
	if err != nil {
		step.Message = err.Error()
	}
	r.Steps = append(r.Steps, step)
	return step.Succeeded
}

// AttemptRecovery checks a database file before it is opened for service.
// A healthy or missing file passes. Otherwise the WAL is replayed, and if
// that does not help the newest backup that passes an integrity check is
// restored. The damaged file is preserved next to the original.
func AttemptRecovery(dbPath, backupDir string) (*RecoveryReport, error) {
	report := &RecoveryReport{DatabasePath: dbPath}

	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		report.Steps = append(report.Steps, RecoveryStep{Name: "check_exists", Succeeded: true, Message: "no database yet"})
		return report, nil
	}

	if report.run("integrity_check", func() (string, error) { return checkFile(dbPath) }) {
		return report, nil
	}
	slog.Warn("database failed integrity check", "path", dbPath)

	if _, err := os.Stat(dbPath + "-wal"); err == nil {
		if report.run("wal_recovery", func() (string, error) { return replayWAL(dbPath) }) &&
			report.run("post_wal_integrity", func() (string, error) { return checkFile(dbPath) }) {
			report.WALRecovered = true
			slog.Info("database recovered via WAL replay", "path", dbPath)
			return report, nil
		}
	}

	if backupDir != "" {
		var used string
		if report.run("backup_restoration", func() (string, error) {
			var err error
			used, err = restoreNewestBackup(dbPath, backupDir)
			return used, err
		}) {
			report.Result = RecoveryFromBackup
			report.BackupUsed = used
			slog.Warn("database restored from backup", "path", dbPath, "backup", used)
			return report, nil
		}
	}

	report.Result = RecoveryFailed
	slog.Error("database recovery failed", "path", dbPath, "steps", len(report.Steps))
	return report, errors.New("all recovery attempts failed")
}

// checkFile runs an integrity check on a database file opened read-only.
func checkFile(dbPath string) (string, error) {
	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := integrityCheck(ctx, sqlDB)
	if err != nil {
		return "", err
	}
	if len(results) == 1 && results[0] == "ok" {
		return "ok", nil
	}
	return "", fmt.Errorf("integrity check failed: %s", strings.Join(results, "; "))
}

func replayWAL(dbPath string) (string, error) {
	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_txlock=immediate", dbPath))
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA wal_checkpoint(RESTART)"); err != nil {
		return "", fmt.Errorf("WAL checkpoint: %w", err)
	}
	return "WAL checkpoint complete", nil
}

func restoreNewestBackup(dbPath, backupDir string) (string, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return "", fmt.Errorf("reading backup directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		if info, err := entry.Info(); err == nil {
			candidates = append(candidates, candidate{filepath.Join(backupDir, entry.Name()), info.ModTime()})
		}
	}
	if len(candidates) == 0 {
		return "", errors.New("no backup files found")
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.After(candidates[j].modTime) })

	for _, c := range candidates {
		if _, err := checkFile(c.path); err != nil {
			slog.Debug("skipping damaged backup", "path", c.path, "error", err)
			continue
		}

		damaged := dbPath + ".damaged." + time.Now().Format("20060102-150405")
		if err := os.Rename(dbPath, damaged); err != nil {
			slog.Warn("could not preserve damaged database", "path", dbPath, "error", err)
		}
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")

		if err := copyFile(c.path, dbPath); err != nil {
			return "", fmt.Errorf("copying backup: %w", err)
		}
		return c.path, nil
	}
	return "", errors.New("no valid backup found")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying data: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("syncing destination: %w", err)
	}
	return out.Close()
}

// Diagnostics is a read-only description of a database file.
type Diagnostics struct {
	Path          string
	Exists        bool
	SizeBytes     int64
	ModTime       time.Time
	WALExists     bool
	WALSizeBytes  int64
	OpenError     string
	SQLiteVersion string
	JournalMode   string
	PageCount     int
	QuickCheck    string
	SchemaVersion int
}

// Diagnose inspects a database file without modifying it.
func Diagnose(dbPath string) (*Diagnostics, error) {
	diag := &Diagnostics{Path: dbPath}

	info, err := os.Stat(dbPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return diag, nil
	case err != nil:
		return nil, fmt.Errorf("stating database: %w", err)
	}
	diag.Exists = true
	diag.SizeBytes = info.Size()
	diag.ModTime = info.ModTime()

	if wal, err := os.Stat(dbPath + "-wal"); err == nil {
		diag.WALExists = true
		diag.WALSizeBytes = wal.Size()
	}

	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		diag.OpenError = err.Error()
		return diag, nil
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Individual checks are best effort.
	_ = sqlDB.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&diag.SQLiteVersion)
	_ = sqlDB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&diag.JournalMode)
	_ = sqlDB.QueryRowContext(ctx, "PRAGMA page_count").Scan(&diag.PageCount)
	_ = sqlDB.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&diag.QuickCheck)
	_ = sqlDB.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&diag.SchemaVersion)

	return diag, nil
}
