// Package backup takes encrypted snapshots of the SQLite database and keeps
// them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/tally/internal/config"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
	_ "modernc.org/sqlite"
)

var (
	ErrDisabled       = errors.New("backup not configured")
	ErrBackupNotFound = errors.New("backup not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// Passphrase encrypts every snapshot. Losing it makes backups unreadable.
	Passphrase string

	Interval  time.Duration
	Retention time.Duration
}

// FromConfig maps the TALLY_BACKUP_* settings.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Bucket:     cfg.BackupBucket,
		Prefix:     cfg.BackupPrefix,
		Region:     cfg.BackupRegion,
		Endpoint:   cfg.BackupEndpoint,
		AccessKey:  cfg.BackupAccessKey,
		SecretKey:  cfg.BackupSecretKey,
		Passphrase: cfg.BackupPassphrase,
		Interval:   cfg.BackupInterval,
		Retention:  cfg.BackupRetention,
	}
}

// Enabled reports whether storage credentials and a passphrase are set.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

// Manager runs scheduled backups and restores.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	db      *sql.DB
	backups *store.BackupStore
	client  s3Client
	logger  *slog.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		logger:  logger,
		now:     time.Now,
	}
	if cfg.Enabled() {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	return m.client != nil
}

// Start runs a backup and prunes old ones every Interval until ctx is
// cancelled or Stop is called. It does nothing when backups are disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() || m.cfg.Interval <= 0 {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if b, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				} else {
					m.logger.Info("backup completed", "id", b.ID, "key", b.ObjectKey, "size_bytes", b.SizeBytes)
				}
				if _, err := m.Prune(ctx); err != nil {
					m.logger.Error("backup prune failed", "error", err)
				}
			}
		}
	}()
}

// Stop waits for the scheduler started by Start to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

// RunNow snapshots the database, encrypts it and uploads it. Runs are
// serialized.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	started := m.now().UTC()
	filename := fmt.Sprintf("tally-%s.db.enc", started.Format("2006-01-02T150405Z"))
	key := path.Join(m.cfg.Prefix, filename)

	record, err := m.backups.Create(filename, key, started)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("snapshot: %w", err))
	}

	sealed, err := Encrypt(snapshot, m.cfg.Passphrase)
	if err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("encrypt: %w", err))
	}

	m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, "")

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("upload to s3: %w", err))
	}

	if err := m.backups.UpdateCompleted(record.ID, int64(len(sealed)), m.now()); err != nil {
		return nil, err
	}
	return m.backups.GetByID(record.ID)
}

func (m *Manager) fail(id int64, err error) error {
	if uerr := m.backups.UpdateStatus(id, model.BackupStatusFailed, err.Error()); uerr != nil {
		m.logger.Error("mark backup failed", "id", id, "error", uerr)
	}
	return err
}

// snapshot returns a consistent copy of the live database. VACUUM INTO
// works for file and in-memory databases alike.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "tally-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	return os.ReadFile(dst)
}

// Prune deletes backups older than Retention from storage and from the
// backups table, returning how many were removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if !m.Enabled() || m.cfg.Retention <= 0 {
		return 0, nil
	}

	keys, err := m.backups.DeleteOlderThan(m.now().Add(-m.cfg.Retention))
	if err != nil {
		return 0, fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	return len(keys), nil
}

// Restore downloads backup id, verifies it and writes it to dstPath. The
// server using dstPath must be stopped first.
func (m *Manager) Restore(ctx context.Context, id int64, dstPath string) error {
	if !m.Enabled() {
		return ErrDisabled
	}

	record, err := m.backups.GetByID(id)
	if err != nil {
		return fmt.Errorf("get backup: %w", err)
	}
	return m.RestoreBackup(ctx, record, dstPath)
}

// RestoreBackup is Restore for a record that was already loaded, so the
// caller can close the database at dstPath before it is replaced.
func (m *Manager) RestoreBackup(ctx context.Context, record *model.Backup, dstPath string) error {
	if !m.Enabled() {
		return ErrDisabled
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return ErrBackupNotFound
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(record.ObjectKey),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	plaintext, err := Decrypt(sealed, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmp := dstPath + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(tmp); err != nil {
		return err
	}

	if err := os.Rename(tmp, dstPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dstPath + "-wal")
	os.Remove(dstPath + "-shm")
	return nil
}

func checkIntegrity(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var integrity string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}
	return nil
}
