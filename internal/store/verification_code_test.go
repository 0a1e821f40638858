package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/model"
)

var codeLimit = Limit{Max: 3, Window: 15 * time.Minute}

func setupVerificationTestDB(t *testing.T) (*VerificationCodeStore, *model.User) {
	t.Helper()
	db := setupTestDB(t)
	u := mustCreateUser(t, NewUserStore(db), "Alice", "alice@example.com", model.RoleUser, nil)
	return NewVerificationCodeStore(db), u
}

func countUnused(t *testing.T, db *sql.DB, userID int64, typ model.VerificationType) int {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM verification_codes WHERE user_id = ? AND type = ? AND used = 0`, userID, typ).Scan(&n)
	if err != nil {
		t.Fatalf("count codes: %v", err)
	}
	return n
}

func TestVerificationCodeCreateEnforcesLimit(t *testing.T) {
	vs, u := setupVerificationTestDB(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	// Outside the window, does not count.
	if _, err := vs.Create(u.ID, model.VerifyEmail, "000001", now.Add(-20*time.Minute), 15*time.Minute, codeLimit); err != nil {
		t.Fatalf("create old: %v", err)
	}
	for i, code := range []string{"000002", "000003", "000004"} {
		if _, err := vs.Create(u.ID, model.VerifyEmail, code, now.Add(time.Duration(i)*time.Second), 15*time.Minute, codeLimit); err != nil {
			t.Fatalf("create %s: %v", code, err)
		}
	}

	_, err := vs.Create(u.ID, model.VerifyEmail, "000005", now.Add(5*time.Second), 15*time.Minute, codeLimit)
	if !errors.Is(err, ErrTooManyCodes) {
		t.Fatalf("err = %v, want ErrTooManyCodes", err)
	}

	// Each type has its own budget.
	if _, err := vs.Create(u.ID, model.VerifyPassword, "000006", now, 15*time.Minute, codeLimit); err != nil {
		t.Errorf("password code: %v", err)
	}
	if n := countUnused(t, vs.db, u.ID, model.VerifyEmail); n != 4 {
		t.Errorf("unused email codes = %d, want 4", n)
	}
}

func TestVerificationCodeCreateConcurrentLimit(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "codes.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u := mustCreateUser(t, NewUserStore(db), "Alice", "alice@example.com", model.RoleUser, nil)
	vs := NewVerificationCodeStore(db)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
		failures []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := vs.Create(u.ID, model.VerifyEmail, "123456", now, 15*time.Minute, codeLimit)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrTooManyCodes):
				rejected++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if created != 3 || rejected != workers-3 {
		t.Errorf("created = %d, rejected = %d; want 3 and %d", created, rejected, workers-3)
	}
	if n := countUnused(t, db, u.ID, model.VerifyEmail); n != 3 {
		t.Errorf("stored unused codes = %d, want 3", n)
	}
}

func TestVerificationCodeFindValidPicksMostRecent(t *testing.T) {
	vs, u := setupVerificationTestDB(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	older, _ := vs.Create(u.ID, model.VerifyEmail, "123456", now.Add(-2*time.Minute), 15*time.Minute, codeLimit)
	newer, _ := vs.Create(u.ID, model.VerifyEmail, "123456", now.Add(-time.Minute), 15*time.Minute, codeLimit)

	got, err := vs.FindValid(u.ID, model.VerifyEmail, "123456", now, 5)
	if err != nil {
		t.Fatalf("find valid: %v", err)
	}
	if got == nil || got.ID != newer.ID {
		t.Fatalf("got %+v, want id %d (older was %d)", got, newer.ID, older.ID)
	}
}

func TestVerificationCodeFindValidRejects(t *testing.T) {
	vs, u := setupVerificationTestDB(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	vs.Create(u.ID, model.VerifyEmail, "111111", now.Add(-16*time.Minute), 15*time.Minute, codeLimit)
	if got, _ := vs.FindValid(u.ID, model.VerifyEmail, "111111", now, 5); got != nil {
		t.Error("expired code should not be valid")
	}

	vs.Create(u.ID, model.VerifyEmail, "222222", now, 15*time.Minute, codeLimit)
	if got, _ := vs.FindValid(u.ID, model.VerifyPassword, "222222", now, 5); got != nil {
		t.Error("code should not match another type")
	}
	if got, _ := vs.FindValid(u.ID, model.VerifyEmail, "999999", now, 5); got != nil {
		t.Error("wrong code should not match")
	}
}

func TestVerificationCodeIncrementAttempts(t *testing.T) {
	vs, u := setupVerificationTestDB(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	vs.Create(u.ID, model.VerifyEmail, "333333", now, 15*time.Minute, codeLimit)
	vs.Create(u.ID, model.VerifyPassword, "444444", now, 15*time.Minute, codeLimit)

	for i := 0; i < 4; i++ {
		n, err := vs.IncrementAttempts(u.ID, model.VerifyEmail, now)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if n != 1 {
			t.Errorf("touched = %d, want 1", n)
		}
	}
	got, _ := vs.FindValid(u.ID, model.VerifyEmail, "333333", now, 5)
	if got == nil {
		t.Fatal("code should still be valid after 4 attempts")
	}
	if got.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", got.Attempts)
	}

	vs.IncrementAttempts(u.ID, model.VerifyEmail, now)
	if got, _ := vs.FindValid(u.ID, model.VerifyEmail, "333333", now, 5); got != nil {
		t.Error("code should be locked after 5 attempts")
	}
	if got, _ := vs.FindValid(u.ID, model.VerifyPassword, "444444", now, 5); got == nil {
		t.Error("other type should be unaffected")
	}
}

func TestVerificationCodeMarkUsedOnce(t *testing.T) {
	vs, u := setupVerificationTestDB(t)
	now := time.Now().UTC()

	vc, err := vs.Create(u.ID, model.VerifyPassword, "654321", now, 15*time.Minute, codeLimit)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := vs.MarkUsed(vc.ID)
	if err != nil || !ok {
		t.Fatalf("first MarkUsed = %v, %v; want true", ok, err)
	}
	ok, err = vs.MarkUsed(vc.ID)
	if err != nil {
		t.Fatalf("second MarkUsed: %v", err)
	}
	if ok {
		t.Error("second MarkUsed should report false")
	}
	if got, _ := vs.FindValid(u.ID, model.VerifyPassword, "654321", now, 5); got != nil {
		t.Error("used code should not be valid")
	}
}
