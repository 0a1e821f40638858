package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/tally/internal/model"
)

type LogStore struct {
	db *sql.DB
}

func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

func scanLogEntry(scanner interface{ Scan(...any) error }) (*model.LogEntry, error) {
	var e model.LogEntry
	var userID sql.NullInt64
	var meta string
	if err := scanner.Scan(&e.ID, &userID, &e.Action, &meta, &e.IPAddress, &e.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		e.UserID = &userID.Int64
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &e.Meta); err != nil {
			return nil, fmt.Errorf("decode log meta: %w", err)
		}
	}
	return &e, nil
}

const logCols = `id, user_id, action, meta, ip_address, created_at`

func (s *LogStore) Create(userID *int64, action string, meta map[string]any, ip string) error {
	if meta == nil {
		meta = map[string]any{}
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode log meta: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO logs (user_id, action, meta, ip_address) VALUES (?, ?, ?, ?)`,
		nullID(userID), action, string(encoded), ip,
	); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// ListForUsers returns the newest entries belonging to any of userIDs.
func (s *LogStore) ListForUsers(userIDs []int64, limit int) ([]model.LogEntry, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := append(int64Args(userIDs), limit)
	rows, err := s.db.Query(
		`SELECT `+logCols+` FROM logs WHERE user_id IN (`+placeholders(len(userIDs))+`)
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
