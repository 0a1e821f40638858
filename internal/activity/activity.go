// Package activity records user-visible audit events. Recording never fails
// the operation that triggered it: sink errors are logged and dropped.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/tally/internal/auth"
)

const (
	UserRegistered     = "user_registered"
	UserLogin          = "user_login"
	UserLogout         = "user_logout"
	UserUpdated        = "user_updated"
	ManagerLinked      = "manager_linked"
	ManagerUnlinked    = "manager_unlinked"
	AccountCreated     = "account_created"
	AccountDeleted     = "account_deleted"
	GroupCreated       = "group_created"
	GroupDeleted       = "group_deleted"
	MemberAdded        = "member_added"
	MemberRemoved      = "member_removed"
	ClientCreated      = "client_created_by_manager"
	FeedbackSent       = "feedback_sent"
	ReportExported     = "report_exported"
	VerificationSent   = "verification_code_sent"
	VerificationPassed = "verification_code_confirmed"
)

type Event struct {
	UserID *int64         `json:"user_id"`
	Action string         `json:"action"`
	Meta   map[string]any `json:"meta"`
	IP     string         `json:"ip_address"`
	At     time.Time      `json:"at"`
}

// Sink persists or forwards events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Logger is what operations depend on.
type Logger interface {
	Record(ctx context.Context, action string, meta map[string]any, userID int64)
}

type Recorder struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, logger: logger, now: time.Now}
}

// Record writes the event to every sink. userID 0 records an anonymous event.
func (r *Recorder) Record(ctx context.Context, action string, meta map[string]any, userID int64) {
	e := Event{
		Action: action,
		Meta:   meta,
		IP:     auth.ClientIP(ctx),
		At:     r.now().UTC(),
	}
	if userID != 0 {
		e.UserID = &userID
	}
	for _, s := range r.sinks {
		if err := s.Write(ctx, e); err != nil {
			r.logger.WarnContext(ctx, "activity sink failed", "action", action, "error", err)
		}
	}
}

// Discard is a Logger that records nothing.
type Discard struct{}

func (Discard) Record(context.Context, string, map[string]any, int64) {}
