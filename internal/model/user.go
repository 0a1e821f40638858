package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the closed set of identity roles.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
)

var (
	ErrManagerHasManager = errors.New("a manager cannot be linked to another manager")
	ErrNotAManager       = errors.New("linked user does not have the manager role")
	ErrSelfManaged       = errors.New("a user cannot manage themselves")
	ErrManagerHasClients = errors.New("a manager with clients cannot become a user")
)

// ParseRole returns the Role named by s, or an error if s is not a known role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleManager:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	ManagerID    *int64    `json:"manager_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

// ManagedBy reports whether managerID is the user's linked manager.
func (u *User) ManagedBy(managerID int64) bool {
	return u.ManagerID != nil && *u.ManagerID == managerID
}

// ValidateManagerLink checks that client may be linked to manager. A nil
// manager means unlinking, which is always allowed for a user.
func ValidateManagerLink(client, manager *User) error {
	if client.Role != RoleUser {
		return ErrManagerHasManager
	}
	if manager == nil {
		return nil
	}
	if manager.Role != RoleManager {
		return ErrNotAManager
	}
	if manager.ID == client.ID {
		return ErrSelfManaged
	}
	return nil
}

// ValidateRoleChange checks that u may take role given how many clients
// are linked to u. Promotion to manager is only valid once u's own manager
// link is dropped, which the caller must do in the same write.
func ValidateRoleChange(u *User, role Role, clients int) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if role == RoleUser && u.Role == RoleManager && clients > 0 {
		return ErrManagerHasClients
	}
	return nil
}

// ClientSummary is a managed user with totals over their accounts.
type ClientSummary struct {
	User
	TotalAccounts int             `json:"total_accounts"`
	TotalValue    decimal.Decimal `json:"total_value"`
}
