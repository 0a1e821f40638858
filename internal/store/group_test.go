package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/dukerupert/tally/internal/model"
)

func setupGroupTestDB(t *testing.T) (*sql.DB, *GroupStore, *UserStore) {
	t.Helper()
	db := setupTestDB(t)
	return db, NewGroupStore(db), NewUserStore(db)
}

func TestGroupCreateAddsOwnerAsMember(t *testing.T) {
	_, gs, us := setupGroupTestDB(t)
	owner := mustCreateUser(t, us, "Manager", "m@example.com", model.RoleManager, nil)

	g, err := gs.Create("Family", owner.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if g.Name != "Family" || g.OwnerID != owner.ID {
		t.Errorf("group = %+v", g)
	}
	if g.MemberCount != 1 {
		t.Errorf("member_count = %d, want 1", g.MemberCount)
	}
	member, err := gs.IsMember(g.ID, owner.ID)
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !member {
		t.Error("expected owner to be a member")
	}
}

func TestGroupGetByIDNotFound(t *testing.T) {
	_, gs, _ := setupGroupTestDB(t)

	g, err := gs.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if g != nil {
		t.Error("expected nil for missing group")
	}
}

func TestGroupAddMemberDuplicate(t *testing.T) {
	_, gs, us := setupGroupTestDB(t)
	owner := mustCreateUser(t, us, "Manager", "m@example.com", model.RoleManager, nil)
	u := mustCreateUser(t, us, "Alice", "alice@example.com", model.RoleUser, nil)
	g, _ := gs.Create("Family", owner.ID)

	m, err := gs.AddMember(g.ID, u.ID, owner.ID)
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m.Name != "Alice" || m.AddedBy == nil || *m.AddedBy != owner.ID {
		t.Errorf("member = %+v", m)
	}

	if _, err := gs.AddMember(g.ID, u.ID, owner.ID); !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}

	g, _ = gs.GetByID(g.ID)
	if g.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", g.MemberCount)
	}
}

func TestGroupRemoveMemberIdempotent(t *testing.T) {
	_, gs, us := setupGroupTestDB(t)
	owner := mustCreateUser(t, us, "Manager", "m@example.com", model.RoleManager, nil)
	u := mustCreateUser(t, us, "Alice", "alice@example.com", model.RoleUser, nil)
	g, _ := gs.Create("Family", owner.ID)
	gs.AddMember(g.ID, u.ID, owner.ID)

	for i := 0; i < 2; i++ {
		if err := gs.RemoveMember(g.ID, u.ID); err != nil {
			t.Fatalf("remove member (pass %d): %v", i+1, err)
		}
	}
	if ok, _ := gs.IsMember(g.ID, u.ID); ok {
		t.Error("expected membership removed")
	}
}

func TestGroupListForUser(t *testing.T) {
	_, gs, us := setupGroupTestDB(t)
	owner := mustCreateUser(t, us, "Manager", "m@example.com", model.RoleManager, nil)
	u := mustCreateUser(t, us, "Alice", "alice@example.com", model.RoleUser, nil)

	first, _ := gs.Create("First", owner.ID)
	second, _ := gs.Create("Second", owner.ID)
	gs.Create("Not Alice's", owner.ID)
	gs.AddMember(first.ID, u.ID, owner.ID)
	gs.AddMember(second.ID, u.ID, owner.ID)

	groups, err := gs.ListForUser(u.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].ID != second.ID || groups[1].ID != first.ID {
		t.Errorf("order = [%d %d], want [%d %d]", groups[0].ID, groups[1].ID, second.ID, first.ID)
	}

	owned, _ := gs.ListForUser(owner.ID)
	if len(owned) != 3 {
		t.Errorf("owner groups = %d, want 3", len(owned))
	}
}

func TestGroupListMembersOrderedByName(t *testing.T) {
	_, gs, us := setupGroupTestDB(t)
	owner := mustCreateUser(t, us, "Manager", "m@example.com", model.RoleManager, nil)
	zoe := mustCreateUser(t, us, "Zoe", "zoe@example.com", model.RoleUser, nil)
	ana := mustCreateUser(t, us, "Ana", "ana@example.com", model.RoleUser, nil)
	g, _ := gs.Create("Family", owner.ID)
	gs.AddMember(g.ID, zoe.ID, owner.ID)
	gs.AddMember(g.ID, ana.ID, owner.ID)

	members, err := gs.ListMembers(g.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	var names []string
	for _, m := range members {
		names = append(names, m.Name)
	}
	want := []string{"Ana", "Manager", "Zoe"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}
}

func TestGroupDeleteCascades(t *testing.T) {
	db, gs, us := setupGroupTestDB(t)
	owner := mustCreateUser(t, us, "Manager", "m@example.com", model.RoleManager, nil)
	u := mustCreateUser(t, us, "Alice", "alice@example.com", model.RoleUser, nil)
	g, _ := gs.Create("Family", owner.ID)
	gs.AddMember(g.ID, u.ID, owner.ID)

	as := NewAccountStore(db)
	acct, err := as.Create(&model.Account{
		UserID: u.ID, GroupID: &g.ID, CategoryID: foodCategoryID(t, db),
		Value: mustDecimal(t, "10.00"), Date: model.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	if err := gs.Delete(g.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if got, _ := gs.GetByID(g.ID); got != nil {
		t.Error("expected group gone")
	}
	var n int
	db.QueryRow(`SELECT COUNT(*) FROM group_memberships WHERE group_id = ?`, g.ID).Scan(&n)
	if n != 0 {
		t.Errorf("memberships = %d, want 0", n)
	}
	after, _ := as.GetByID(acct.ID)
	if after == nil || after.GroupID != nil {
		t.Errorf("account after group delete = %+v, want untagged", after)
	}
}
