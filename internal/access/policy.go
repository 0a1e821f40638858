// Package access decides whether a subject may perform an action on a
// resource. Ownership and manager rules combine with OR semantics; the
// manager relationship is looked up on every decision.
package access

import (
	"fmt"

	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/model"
)

type Action string

const (
	ReadAccount   Action = "account.read"
	CreateAccount Action = "account.create"
	DeleteAccount Action = "account.delete"

	ReadGroup    Action = "group.read"
	CreateGroup  Action = "group.create"
	DeleteGroup  Action = "group.delete"
	AddMember    Action = "group.add_member"
	RemoveMember Action = "group.remove_member"

	// ManageClients is the coarse manager-only gate for client management.
	ManageClients Action = "clients.manage"
	// ManageClient additionally requires Resource.OwnerID to be one of the
	// subject's clients.
	ManageClient Action = "client.manage"

	ReadFeedback Action = "feedback.read"
)

// Resource identifies what an action targets. OwnerID is the account owner,
// group owner, feedback recipient or client; GroupID is the account's group
// when it has one.
type Resource struct {
	OwnerID int64
	GroupID int64
}

func AccountResource(a *model.Account) Resource {
	r := Resource{OwnerID: a.UserID}
	if a.GroupID != nil {
		r.GroupID = *a.GroupID
	}
	return r
}

func GroupResource(g *model.Group) Resource {
	return Resource{OwnerID: g.OwnerID, GroupID: g.ID}
}

func UserResource(userID int64) Resource {
	return Resource{OwnerID: userID}
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Directory resolves users for the manager relationship check.
type Directory interface {
	GetByID(id int64) (*model.User, error)
}

// Memberships answers group membership questions.
type Memberships interface {
	IsMember(groupID, userID int64) (bool, error)
}

// DecisionRecorder observes every decision, e.g. for metrics.
type DecisionRecorder interface {
	RecordDecision(action string, allowed bool)
}

type Policy struct {
	users    Directory
	groups   Memberships
	recorder DecisionRecorder
}

func NewPolicy(users Directory, groups Memberships, recorder DecisionRecorder) *Policy {
	return &Policy{users: users, groups: groups, recorder: recorder}
}

// Decide evaluates action for sub on res. The error is non-nil only when a
// lookup fails.
func (p *Policy) Decide(sub auth.Subject, action Action, res Resource) (Decision, error) {
	d, err := p.decide(sub, action, res)
	if err != nil {
		return Decision{}, err
	}
	if p.recorder != nil {
		p.recorder.RecordDecision(string(action), d.Allowed)
	}
	return d, nil
}

// Authorize is Decide with a denial turned into a forbidden error.
func (p *Policy) Authorize(sub auth.Subject, action Action, res Resource) error {
	d, err := p.Decide(sub, action, res)
	if err != nil {
		return apperr.Internal(err)
	}
	if !d.Allowed {
		return apperr.Forbidden(d.Reason)
	}
	return nil
}

func (p *Policy) decide(sub auth.Subject, action Action, res Resource) (Decision, error) {
	switch sub.Role {
	case model.RoleUser, model.RoleManager:
	default:
		return deny(fmt.Sprintf("unknown role %q", sub.Role)), nil
	}

	owner := res.OwnerID == sub.UserID

	switch action {
	case ReadAccount:
		if owner {
			return allow(), nil
		}
		managed, err := p.manages(sub, res.OwnerID)
		if err != nil {
			return Decision{}, err
		}
		if managed {
			return allow(), nil
		}
		member, err := p.inGroup(sub, res)
		if err != nil {
			return Decision{}, err
		}
		if member {
			return allow(), nil
		}
		return deny("account belongs to another user"), nil

	case CreateAccount, DeleteAccount:
		if owner {
			return allow(), nil
		}
		return deny("only the owner can change this account"), nil

	case ReadGroup:
		if owner {
			return allow(), nil
		}
		member, err := p.inGroup(sub, res)
		if err != nil {
			return Decision{}, err
		}
		if member {
			return allow(), nil
		}
		return deny("not a member of this group"), nil

	case AddMember, RemoveMember, DeleteGroup:
		if owner {
			return allow(), nil
		}
		return deny("only the group owner can do this"), nil

	case CreateGroup, ManageClients:
		if sub.Role == model.RoleManager {
			return allow(), nil
		}
		return deny("managers only"), nil

	case ManageClient:
		if sub.Role != model.RoleManager {
			return deny("managers only"), nil
		}
		managed, err := p.manages(sub, res.OwnerID)
		if err != nil {
			return Decision{}, err
		}
		if managed {
			return allow(), nil
		}
		return deny("not one of your clients"), nil

	case ReadFeedback:
		if owner {
			return allow(), nil
		}
		managed, err := p.manages(sub, res.OwnerID)
		if err != nil {
			return Decision{}, err
		}
		if managed {
			return allow(), nil
		}
		return deny("feedback belongs to another user"), nil
	}

	return deny(fmt.Sprintf("unknown action %q", action)), nil
}

// manages reports whether sub is a manager and userID is linked to them.
func (p *Policy) manages(sub auth.Subject, userID int64) (bool, error) {
	if sub.Role != model.RoleManager || userID == 0 {
		return false, nil
	}
	u, err := p.users.GetByID(userID)
	if err != nil {
		return false, err
	}
	return u != nil && u.ManagedBy(sub.UserID), nil
}

// inGroup reports whether sub owns or belongs to the resource's group.
func (p *Policy) inGroup(sub auth.Subject, res Resource) (bool, error) {
	if res.GroupID == 0 {
		return false, nil
	}
	return p.groups.IsMember(res.GroupID, sub.UserID)
}
