package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateUser(t *testing.T, us *UserStore, name, email string, role model.Role, managerID *int64) *model.User {
	t.Helper()
	u, err := us.Create(name, email, "hash", role, managerID)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func foodCategoryID(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	c, err := NewCategoryStore(db).GetBySlug("food")
	if err != nil || c == nil {
		t.Fatalf("food category: %v", err)
	}
	return c.ID
}
