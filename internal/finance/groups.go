package finance

import (
	"context"
	"errors"

	"github.com/dukerupert/tally/internal/access"
	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
)

// GroupDetail is a group with its members ordered by name.
type GroupDetail struct {
	model.Group
	Members []model.GroupMember `json:"members"`
}

// ListGroups returns every group sub owns or belongs to, newest first.
func (s *Service) ListGroups(sub auth.Subject) ([]model.Group, error) {
	groups, err := s.groups.ListForUser(sub.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if groups == nil {
		groups = []model.Group{}
	}
	return groups, nil
}

func (s *Service) GetGroup(sub auth.Subject, id int64) (*GroupDetail, error) {
	g, err := s.requireGroup(sub, id, access.ReadGroup)
	if err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(g.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if members == nil {
		members = []model.GroupMember{}
	}
	return &GroupDetail{Group: *g, Members: members}, nil
}

// CreateGroup creates a group owned by sub, who becomes its first member.
func (s *Service) CreateGroup(ctx context.Context, sub auth.Subject, name string) (*model.Group, error) {
	if err := s.policy.Authorize(sub, access.CreateGroup, access.Resource{}); err != nil {
		return nil, err
	}
	name = s.clean(name)
	if name == "" {
		return nil, apperr.Validation("name", "group name is required")
	}

	g, err := s.groups.Create(name, sub.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.activity.Record(ctx, activity.GroupCreated, map[string]any{"group_id": g.ID, "name": g.Name}, sub.UserID)
	return g, nil
}

// DeleteGroup removes the group and its memberships. Accounts tagged with
// it are kept and untagged.
func (s *Service) DeleteGroup(ctx context.Context, sub auth.Subject, id int64) error {
	g, err := s.requireGroup(sub, id, access.DeleteGroup)
	if err != nil {
		return err
	}
	if err := s.groups.Delete(g.ID); err != nil {
		return apperr.Internal(err)
	}
	s.activity.Record(ctx, activity.GroupDeleted, map[string]any{"group_id": g.ID}, sub.UserID)
	return nil
}

// AddMember adds the user registered under email to the group.
func (s *Service) AddMember(ctx context.Context, sub auth.Subject, groupID int64, email string) (*model.GroupMember, error) {
	g, err := s.requireGroup(sub, groupID, access.AddMember)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("email", "email is required")
	}

	u, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}

	m, err := s.groups.AddMember(g.ID, u.ID, sub.UserID)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("user is already a member")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.activity.Record(ctx, activity.MemberAdded, map[string]any{"group_id": g.ID, "user_id": u.ID}, sub.UserID)
	return m, nil
}

// RemoveMember drops userID's membership row. Removing a non-member
// succeeds. An owner whose row is removed stays an implicit member.
func (s *Service) RemoveMember(ctx context.Context, sub auth.Subject, groupID, userID int64) error {
	g, err := s.requireGroup(sub, groupID, access.RemoveMember)
	if err != nil {
		return err
	}
	if err := s.groups.RemoveMember(g.ID, userID); err != nil {
		return apperr.Internal(err)
	}
	s.activity.Record(ctx, activity.MemberRemoved, map[string]any{"group_id": g.ID, "user_id": userID}, sub.UserID)
	return nil
}
