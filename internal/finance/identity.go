package finance

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ProfileInput is a profile update. A nil ManagerEmail leaves the manager
// link alone; an empty one removes it.
type ProfileInput struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	VerifyToken  string  `json:"verify_token"`
	ManagerEmail *string `json:"manager_email"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return string(hash), nil
}

// newUser validates and inserts a user. It backs both self registration and
// manager-created clients.
func (s *Service) newUser(name, email, password string, role model.Role, managerID *int64) (*model.User, error) {
	name = s.clean(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	if email == "" {
		return nil, apperr.Validation("email", "email is required")
	}
	if !validEmail(email) {
		return nil, apperr.Validation("email", "invalid email")
	}
	if len(password) < minPasswordLen {
		return nil, apperr.Validation("password", "password must be at least 6 characters")
	}

	taken, err := s.users.EmailTaken(email, 0)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if taken {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(name, email, hash, role, managerID)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("email already registered")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// Register creates a self-managed account. Role defaults to user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	role := model.RoleUser
	if in.Role != "" {
		r, err := model.ParseRole(in.Role)
		if err != nil {
			return nil, apperr.Validation("role", "role must be user or manager")
		}
		role = r
	}

	u, err := s.newUser(in.Name, in.Email, in.Password, role, nil)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.UserRegistered, map[string]any{
		"user_id": u.ID,
		"email":   u.Email,
		"role":    string(u.Role),
	}, u.ID)
	return u, nil
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, apperr.Validation("email", "email and password are required")
	}

	u, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, apperr.Unauthenticated("invalid email or password")
	}

	sess, err := s.sessions.Create(u.ID)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}

	s.activity.Record(ctx, activity.UserLogin, map[string]any{"email": email}, u.ID)
	return u, sess, nil
}

// Logout ends the subject's session and drops any verify token bound to it.
func (s *Service) Logout(ctx context.Context, sub auth.Subject) error {
	if err := s.sessions.Delete(sub.SessionID); err != nil {
		return apperr.Internal(err)
	}
	s.vault.Clear(sub.SessionID)
	s.activity.Record(ctx, activity.UserLogout, map[string]any{}, sub.UserID)
	return nil
}

// Me returns the subject's current profile.
func (s *Service) Me(sub auth.Subject) (*model.User, error) {
	u, err := s.users.GetByID(sub.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.Unauthenticated("user no longer exists")
	}
	return u, nil
}

// Manager returns the subject's linked manager, or nil when unlinked.
func (s *Service) Manager(sub auth.Subject) (*model.User, error) {
	u, err := s.Me(sub)
	if err != nil {
		return nil, err
	}
	if u.ManagerID == nil {
		return nil, nil
	}
	m, err := s.users.GetByID(*u.ManagerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return m, nil
}

// UpdateProfile changes name, email, password and the manager link. An
// email change or a new password requires a verify token from the gate,
// which is consumed once the update is stored.
func (s *Service) UpdateProfile(ctx context.Context, sub auth.Subject, in ProfileInput) (*model.User, error) {
	current, err := s.Me(sub)
	if err != nil {
		return nil, err
	}

	name := s.clean(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" {
		return nil, apperr.Validation("name", "name and email are required")
	}
	if !validEmail(email) {
		return nil, apperr.Validation("email", "invalid email")
	}
	if in.Password != "" && len(in.Password) < minPasswordLen {
		return nil, apperr.Validation("password", "password must be at least 6 characters")
	}

	emailChanged := email != current.Email
	if emailChanged || in.Password != "" || in.VerifyToken != "" {
		required := model.VerifyPassword
		if emailChanged {
			required = model.VerifyEmail
		}
		if err := s.gate.Check(sub, required, in.VerifyToken); err != nil {
			return nil, err
		}
	}

	if emailChanged {
		taken, err := s.users.EmailTaken(email, current.ID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if taken {
			return nil, apperr.Conflict("email already in use")
		}
	}

	updated := *current
	updated.Name = name
	updated.Email = email

	var linkAction string
	var linkMeta map[string]any
	if in.ManagerEmail != nil {
		managerEmail := normalizeEmail(*in.ManagerEmail)
		var manager *model.User
		if managerEmail != "" {
			manager, err = s.users.GetByEmail(managerEmail)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			if manager == nil {
				return nil, apperr.Validation("manager_email", "no manager found with this email")
			}
		}
		// Managers never carry a link, so clearing one is a no-op for them.
		if manager != nil || current.Role == model.RoleUser {
			if err := model.ValidateManagerLink(current, manager); err != nil {
				return nil, apperr.Validation("manager_email", err.Error())
			}
			if manager == nil {
				updated.ManagerID = nil
				linkAction, linkMeta = activity.ManagerUnlinked, map[string]any{}
			} else {
				updated.ManagerID = &manager.ID
				linkAction, linkMeta = activity.ManagerLinked, map[string]any{"manager_email": managerEmail}
			}
		}
	}

	if in.Password != "" {
		hash, err := s.hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = hash
	}

	u, err := s.users.Update(&updated)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("email already in use")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if in.VerifyToken != "" {
		s.gate.Consume(sub)
	}
	if linkAction != "" {
		if current.ManagerID != nil {
			s.invalidateOverview(*current.ManagerID)
		}
		if u.ManagerID != nil {
			s.invalidateOverview(*u.ManagerID)
		}
		s.activity.Record(ctx, linkAction, linkMeta, u.ID)
	}
	s.activity.Record(ctx, activity.UserUpdated, map[string]any{"email": u.Email}, u.ID)
	return u, nil
}
