package model

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"manager", RoleManager, false},
		{"admin", "", true},
		{"", "", true},
		{"Manager", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateManagerLink(t *testing.T) {
	client := &User{ID: 1, Role: RoleUser}
	manager := &User{ID: 2, Role: RoleManager}
	other := &User{ID: 3, Role: RoleUser}

	if err := ValidateManagerLink(client, manager); err != nil {
		t.Errorf("user -> manager: %v", err)
	}
	if err := ValidateManagerLink(client, nil); err != nil {
		t.Errorf("unlink: %v", err)
	}
	if err := ValidateManagerLink(client, other); !errors.Is(err, ErrNotAManager) {
		t.Errorf("user -> user: err = %v, want %v", err, ErrNotAManager)
	}
	if err := ValidateManagerLink(manager, &User{ID: 4, Role: RoleManager}); !errors.Is(err, ErrManagerHasManager) {
		t.Errorf("manager -> manager: err = %v, want %v", err, ErrManagerHasManager)
	}
}

func TestValidateRoleChange(t *testing.T) {
	manager := &User{ID: 2, Role: RoleManager}
	user := &User{ID: 1, Role: RoleUser}

	if err := ValidateRoleChange(user, RoleManager, 0); err != nil {
		t.Errorf("promote: %v", err)
	}
	if err := ValidateRoleChange(manager, RoleUser, 0); err != nil {
		t.Errorf("demote without clients: %v", err)
	}
	if err := ValidateRoleChange(manager, RoleUser, 2); !errors.Is(err, ErrManagerHasClients) {
		t.Errorf("demote with clients: err = %v, want %v", err, ErrManagerHasClients)
	}
	if err := ValidateRoleChange(user, Role("admin"), 0); err == nil {
		t.Error("unknown role should fail")
	}
}

func TestManagedBy(t *testing.T) {
	mgr := int64(9)
	u := User{ID: 1, Role: RoleUser, ManagerID: &mgr}
	if !u.ManagedBy(9) {
		t.Error("expected ManagedBy(9) = true")
	}
	if u.ManagedBy(8) {
		t.Error("expected ManagedBy(8) = false")
	}
	unlinked := User{ID: 2, Role: RoleUser}
	if unlinked.ManagedBy(9) {
		t.Error("expected unlinked user to have no manager")
	}
}
