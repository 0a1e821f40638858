package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tally/internal/model"
)

type FeedbackStore struct {
	db *sql.DB
}

func NewFeedbackStore(db *sql.DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

func scanFeedback(scanner interface{ Scan(...any) error }) (*model.Feedback, error) {
	var f model.Feedback
	err := scanner.Scan(&f.ID, &f.UserID, &f.ManagerID, &f.Message, &f.CreatedAt, &f.UserName, &f.ManagerName)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const feedbackSelect = `SELECT f.id, f.user_id, f.manager_id, f.message, f.created_at, u.name, m.name
	FROM feedbacks f
	JOIN users u ON u.id = f.user_id
	JOIN users m ON m.id = f.manager_id`

func (s *FeedbackStore) Create(userID, managerID int64, message string) (*model.Feedback, error) {
	result, err := s.db.Exec(
		`INSERT INTO feedbacks (user_id, manager_id, message) VALUES (?, ?, ?)`,
		userID, managerID, message,
	)
	if err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return scanFeedback(s.db.QueryRow(feedbackSelect+` WHERE f.id = ?`, id))
}

// ListReceived returns feedback addressed to userID, newest first.
func (s *FeedbackStore) ListReceived(userID int64) ([]model.Feedback, error) {
	return s.list(feedbackSelect+` WHERE f.user_id = ? ORDER BY f.created_at DESC, f.id DESC`, userID)
}

// ListSent returns feedback written by managerID, optionally only to clientID.
func (s *FeedbackStore) ListSent(managerID, clientID int64) ([]model.Feedback, error) {
	if clientID > 0 {
		return s.list(feedbackSelect+` WHERE f.manager_id = ? AND f.user_id = ? ORDER BY f.created_at DESC, f.id DESC`, managerID, clientID)
	}
	return s.list(feedbackSelect+` WHERE f.manager_id = ? ORDER BY f.created_at DESC, f.id DESC`, managerID)
}

func (s *FeedbackStore) CountSent(managerID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM feedbacks WHERE manager_id = ?`, managerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count feedbacks: %w", err)
	}
	return n, nil
}

func (s *FeedbackStore) list(query string, args ...any) ([]model.Feedback, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedbacks: %w", err)
	}
	defer rows.Close()

	var feedbacks []model.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		feedbacks = append(feedbacks, *f)
	}
	return feedbacks, rows.Err()
}
