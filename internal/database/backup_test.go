package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"venuebook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	createVenue(t, db, "Hall A")

	storagePath := filepath.Join(t.TempDir(), "backups")
	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	logger := zerolog.Nop()
	s := NewBackupService(db, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		snap, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filepath.Base(snap.Path), backupPrefix))
		assert.Equal(t, 1, snap.Venues)
		assert.Equal(t, 0, snap.Bookings)

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		foreign := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		assert.Equal(t, 1, s.CleanupOldBackups())

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.Len(t, files, 2)
		for _, f := range files {
			assert.NotEqual(t, backupPrefix+"old.db", f.Name())
		}
	})
}

func TestVerifySnapshotRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), backupPrefix+"broken.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite"), 0o644))

	_, err := verifySnapshot(context.Background(), path)
	assert.Error(t, err)
}

func TestNewBackupServiceSchedule(t *testing.T) {
	logger := zerolog.Nop()
	assert.Equal(t, time.Hour, NewBackupService(nil, config.BackupConfig{Schedule: "1h"}, &logger).interval)
	assert.Equal(t, defaultBackupInterval, NewBackupService(nil, config.BackupConfig{Schedule: "daily"}, &logger).interval)
}

func TestBackupService_Disabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}
