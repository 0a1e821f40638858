package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/model"
)

type VerificationCodeStore struct {
	db *sql.DB
}

func NewVerificationCodeStore(db *sql.DB) *VerificationCodeStore {
	return &VerificationCodeStore{db: db}
}

func scanVerificationCode(scanner interface{ Scan(...any) error }) (*model.VerificationCode, error) {
	var vc model.VerificationCode
	err := scanner.Scan(&vc.ID, &vc.UserID, &vc.Code, &vc.Type, &vc.Used, &vc.Attempts, &vc.CreatedAt, &vc.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &vc, nil
}

const verificationCodeCols = `id, user_id, code, type, used, attempts, created_at, expires_at`

// ErrTooManyCodes is returned by Create when the pending-code cap is reached.
var ErrTooManyCodes = errors.New("too many pending verification codes")

// Limit caps unused codes per (user, type) created within Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Create stores a code for (userID, typ) issued at now and valid for ttl.
// The pending-code count and the insert run in one write transaction, so
// concurrent requests cannot push a user past limit.Max.
func (s *VerificationCodeStore) Create(userID int64, typ model.VerificationType, code string, now time.Time, ttl time.Duration, limit Limit) (*model.VerificationCode, error) {
	now = now.UTC()
	var vc *model.VerificationCode
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		var pending int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM verification_codes WHERE user_id = ? AND type = ? AND used = 0 AND created_at > ?`,
			userID, typ, now.Add(-limit.Window),
		).Scan(&pending)
		if err != nil {
			return fmt.Errorf("count verification codes: %w", err)
		}
		if pending >= limit.Max {
			return ErrTooManyCodes
		}

		result, err := tx.Exec(
			`INSERT INTO verification_codes (user_id, code, type, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
			userID, code, typ, now, now.Add(ttl),
		)
		if err != nil {
			return fmt.Errorf("insert verification code: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		row := tx.QueryRow(`SELECT `+verificationCodeCols+` FROM verification_codes WHERE id = ?`, id)
		vc, err = scanVerificationCode(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vc, nil
}

// FindValid returns the most recent unused, unexpired code matching
// (userID, typ, code) with fewer than maxAttempts failed attempts, or nil.
func (s *VerificationCodeStore) FindValid(userID int64, typ model.VerificationType, code string, now time.Time, maxAttempts int) (*model.VerificationCode, error) {
	row := s.db.QueryRow(
		`SELECT `+verificationCodeCols+` FROM verification_codes
		 WHERE user_id = ? AND type = ? AND code = ? AND used = 0 AND expires_at > ? AND attempts < ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID, typ, code, now.UTC(), maxAttempts,
	)
	vc, err := scanVerificationCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find verification code: %w", err)
	}
	return vc, nil
}

// IncrementAttempts counts a wrong guess against every live code of
// (userID, typ) and returns how many codes were touched.
func (s *VerificationCodeStore) IncrementAttempts(userID int64, typ model.VerificationType, now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE verification_codes SET attempts = attempts + 1
		 WHERE user_id = ? AND type = ? AND used = 0 AND expires_at > ?`,
		userID, typ, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// MarkUsed flags the code as consumed. It reports false if the code was
// already used, so two concurrent confirmations cannot both succeed.
func (s *VerificationCodeStore) MarkUsed(id int64) (bool, error) {
	result, err := s.db.Exec(`UPDATE verification_codes SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark verification code used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *VerificationCodeStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM verification_codes WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired verification codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
