package store

import (
	"testing"

	"github.com/dukerupert/tally/internal/model"
)

func TestFeedbackCreateAndList(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	fs := NewFeedbackStore(db)
	mgr := mustCreateUser(t, us, "Manager", "m@example.com", model.RoleManager, nil)
	alice := mustCreateUser(t, us, "Alice", "alice@example.com", model.RoleUser, &mgr.ID)
	bob := mustCreateUser(t, us, "Bob", "bob@example.com", model.RoleUser, &mgr.ID)

	f, err := fs.Create(alice.ID, mgr.ID, "spend less on leisure")
	if err != nil {
		t.Fatalf("create feedback: %v", err)
	}
	if f.ManagerName != "Manager" || f.UserName != "Alice" {
		t.Errorf("feedback names = %q/%q", f.ManagerName, f.UserName)
	}
	fs.Create(bob.ID, mgr.ID, "nice work")

	received, err := fs.ListReceived(alice.ID)
	if err != nil {
		t.Fatalf("list received: %v", err)
	}
	if len(received) != 1 {
		t.Errorf("received = %d, want 1", len(received))
	}

	sent, _ := fs.ListSent(mgr.ID, 0)
	if len(sent) != 2 {
		t.Errorf("sent = %d, want 2", len(sent))
	}
	toBob, _ := fs.ListSent(mgr.ID, bob.ID)
	if len(toBob) != 1 || toBob[0].UserID != bob.ID {
		t.Errorf("sent to bob = %+v", toBob)
	}

	n, err := fs.CountSent(mgr.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
