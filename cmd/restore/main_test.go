package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/tally/internal/backup"
	"github.com/dukerupert/tally/internal/config"
	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBackups(t *testing.T, dbPath string) {
	t.Helper()
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	bs := store.NewBackupStore(db)
	started := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	b, err := bs.Create("tally-2026-03-01T020000Z.db.enc", "backups/tally-2026-03-01T020000Z.db.enc", started)
	require.NoError(t, err)
	require.NoError(t, bs.UpdateCompleted(b.ID, 4096, started.Add(time.Minute)))
}

func TestRunListsBackups(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tally.db")
	seedBackups(t, dbPath)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-list", "-db", dbPath}, &config.Config{}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "backups/tally-2026-03-01T020000Z.db.enc")
	assert.Contains(t, stdout.String(), "completed")
}

func TestRunListEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tally.db")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-list", "-db", dbPath}, &config.Config{}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "No backups recorded")
}

func TestRunRestoreRequiresConfiguration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tally.db")
	seedBackups(t, dbPath)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-db", dbPath}, &config.Config{}, &stdout, &stderr)
	assert.ErrorIs(t, err, backup.ErrDisabled)

	err = run(context.Background(), []string{"-now", "-db", dbPath}, &config.Config{}, &stdout, &stderr)
	assert.ErrorIs(t, err, backup.ErrDisabled)
}
