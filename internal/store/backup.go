package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/tally/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var errMsg sql.NullString
	var completedAt sql.NullTime
	err := scanner.Scan(&b.ID, &b.Filename, &b.ObjectKey, &b.SizeBytes, &b.Status, &errMsg, &b.StartedAt, &completedAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

const backupCols = `id, filename, object_key, size_bytes, status, error_message, started_at, completed_at, created_at`

// Create records a pending backup that started at startedAt.
func (s *BackupStore) Create(filename, objectKey string, startedAt time.Time) (*model.Backup, error) {
	result, err := s.db.Exec(
		`INSERT INTO backups (filename, object_key, status, started_at) VALUES (?, ?, ?, ?)`,
		filename, objectKey, model.BackupStatusPending, startedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BackupStore) GetByID(id int64) (*model.Backup, error) {
	row := s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	return b, nil
}

// List returns the newest backups first.
func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(
		`SELECT `+backupCols+` FROM backups ORDER BY started_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) UpdateStatus(id int64, status model.BackupStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, error_message = ? WHERE id = ?`,
		status, errPtr, id,
	)
	if err != nil {
		return fmt.Errorf("update backup status: %w", err)
	}
	return nil
}

func (s *BackupStore) UpdateCompleted(id, sizeBytes int64, completedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = ?, error_message = NULL WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, completedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update backup completed: %w", err)
	}
	return nil
}

// DeleteOlderThan removes backups started before the cutoff and returns
// their object keys so the objects can be deleted too.
func (s *BackupStore) DeleteOlderThan(before time.Time) ([]string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT object_key FROM backups WHERE started_at < ?`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("select old backups: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`DELETE FROM backups WHERE started_at < ?`, before.UTC()); err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return keys, nil
}

// LatestCompleted returns the most recent successful backup, or nil.
func (s *BackupStore) LatestCompleted() (*model.Backup, error) {
	row := s.db.QueryRow(
		`SELECT `+backupCols+` FROM backups WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		model.BackupStatusCompleted,
	)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed backup: %w", err)
	}
	return b, nil
}
