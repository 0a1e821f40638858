package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukerupert/tally/internal/backup"
	"github.com/dukerupert/tally/internal/config"
	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], config.Load(), os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg *config.Config, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(stderr)

	list := fs.Bool("list", false, "List recorded backups and exit")
	now := fs.Bool("now", false, "Take a backup immediately and exit")
	id := fs.Int64("id", 0, "Backup ID to restore (default: latest completed)")
	dbPath := fs.String("db", cfg.DBPath, "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	backups := store.NewBackupStore(db)
	logger := slog.New(slog.NewTextHandler(stderr, nil))
	mgr := backup.NewManager(backup.FromConfig(cfg), db, backups, logger)

	switch {
	case *list:
		return printBackups(backups, stdout)
	case *now:
		b, err := mgr.RunNow(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Backup %d uploaded to %s (%d bytes)\n", b.ID, b.ObjectKey, b.SizeBytes)
		return nil
	}

	if !mgr.Enabled() {
		return backup.ErrDisabled
	}

	var record *model.Backup
	if *id > 0 {
		record, err = backups.GetByID(*id)
	} else {
		record, err = backups.LatestCompleted()
	}
	if err != nil {
		return fmt.Errorf("failed to look up backup: %w", err)
	}
	if record == nil {
		return backup.ErrBackupNotFound
	}

	// The file is replaced underneath this connection.
	db.Close()

	if err := mgr.RestoreBackup(ctx, record, *dbPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Restored backup %d (%s) into %s\n", record.ID, record.Filename, *dbPath)
	return nil
}

func printBackups(backups *store.BackupStore, w io.Writer) error {
	list, err := backups.List(50)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No backups recorded")
		return nil
	}
	for _, b := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.StartedAt.Format("2006-01-02 15:04:05"), b.Status, b.SizeBytes, b.ObjectKey)
	}
	return nil
}
