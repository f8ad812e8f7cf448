package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"venuebook/internal/config"

	"github.com/rs/zerolog"
)

const (
	backupPrefix          = "venuebook_"
	defaultBackupInterval = 24 * time.Hour
)

// Snapshot describes a verified backup file.
type Snapshot struct {
	Path     string
	Venues   int
	Bookings int
}

// BackupService periodically snapshots the database with VACUUM INTO and prunes old snapshots.
type BackupService struct {
	db       *DB
	config   config.BackupConfig
	interval time.Duration
	logger   *zerolog.Logger
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	interval := defaultBackupInterval
	if cfg.Schedule != "" {
		d, err := time.ParseDuration(cfg.Schedule)
		if err == nil && d > 0 {
			interval = d
		} else {
			logger.Warn().Str("schedule", cfg.Schedule).Msg("Invalid backup schedule, using 24h")
		}
	}
	return &BackupService{db: db, config: cfg, interval: interval, logger: logger}
}

func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}
	s.logger.Info().Dur("interval", s.interval).Msg("Backup service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.PerformBackup(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("Backup failed")
		}
		s.CleanupOldBackups()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PerformBackup writes a consistent snapshot and checks it can be opened and read back.
// A snapshot that fails the check is removed.
func (s *BackupService) PerformBackup(ctx context.Context) (*Snapshot, error) {
	if s.db.Path() == ":memory:" {
		return nil, errors.New("in-memory database cannot be backed up")
	}
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	path := filepath.Join(s.config.StoragePath,
		backupPrefix+time.Now().Format("20060102_150405.000")+".db")

	// VACUUM INTO не принимает параметры
	quoted := strings.ReplaceAll(path, "'", "''")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO '"+quoted+"'"); err != nil {
		return nil, fmt.Errorf("vacuum into %s: %w", path, err)
	}

	snap, err := verifySnapshot(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	s.logger.Info().
		Str("path", snap.Path).
		Int("venues", snap.Venues).
		Int("bookings", snap.Bookings).
		Msg("Backup completed")
	return snap, nil
}

func verifySnapshot(ctx context.Context, path string) (*Snapshot, error) {
	conn, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer conn.Close()

	var check string
	if err := conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&check); err != nil {
		return nil, fmt.Errorf("snapshot integrity check: %w", err)
	}
	if check != "ok" {
		return nil, fmt.Errorf("snapshot integrity check: %s", check)
	}

	snap := &Snapshot{Path: path}
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM venues").Scan(&snap.Venues); err != nil {
		return nil, fmt.Errorf("count snapshot venues: %w", err)
	}
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM venue_bookings").Scan(&snap.Bookings); err != nil {
		return nil, fmt.Errorf("count snapshot bookings: %w", err)
	}
	return snap, nil
}

// CleanupOldBackups removes snapshots older than the retention window and returns how many.
// Files without our prefix are never touched.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Read backup directory")
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), backupPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, entry.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Delete old backup")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Old backups deleted")
	}
	return removed
}
