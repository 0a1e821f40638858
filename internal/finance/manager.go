package finance

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/tally/internal/access"
	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/export"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/stats"
	"github.com/dukerupert/tally/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const maxFeedbackLen = 2000

type ClientDetails struct {
	Client     *model.User           `json:"client"`
	Accounts   []model.Account       `json:"accounts"`
	Stats      stats.Summary         `json:"stats"`
	ByCategory []stats.CategoryTotal `json:"by_category"`
	ByMonth    []stats.MonthTotal    `json:"by_month"`
}

// Overview is the manager dashboard summary across every client.
type Overview struct {
	TotalClients   int             `json:"total_clients"`
	TotalAccounts  int             `json:"total_accounts"`
	TotalValue     decimal.Decimal `json:"total_value"`
	TotalFeedbacks int             `json:"total_feedbacks"`
}

type Report struct {
	Filename string
	Records  int
	Data     []byte
}

func overviewKey(managerID int64) string {
	return fmt.Sprintf("overview:%d", managerID)
}

func (s *Service) invalidateOverview(managerID int64) {
	s.overviewCache.Delete(overviewKey(managerID))
}

// invalidateOverviewFor drops the cached overview of userID's manager.
func (s *Service) invalidateOverviewFor(userID int64) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		s.logger.Warn("resolve manager for cache invalidation", "user_id", userID, "error", err)
		return
	}
	if u != nil && u.ManagerID != nil {
		s.invalidateOverview(*u.ManagerID)
	}
}

// CreateClient registers a user already linked to the acting manager.
func (s *Service) CreateClient(ctx context.Context, sub auth.Subject, in RegisterInput) (*model.User, error) {
	if err := s.policy.Authorize(sub, access.ManageClients, access.Resource{}); err != nil {
		return nil, err
	}
	managerID := sub.UserID
	u, err := s.newUser(in.Name, in.Email, in.Password, model.RoleUser, &managerID)
	if err != nil {
		return nil, err
	}

	s.invalidateOverview(sub.UserID)
	s.activity.Record(ctx, activity.ClientCreated, map[string]any{"user_id": u.ID, "email": u.Email}, sub.UserID)
	return u, nil
}

// ListClients returns the manager's clients ordered by name with their
// account totals.
func (s *Service) ListClients(sub auth.Subject) ([]model.ClientSummary, error) {
	if err := s.policy.Authorize(sub, access.ManageClients, access.Resource{}); err != nil {
		return nil, err
	}
	clients, err := s.users.ListClients(sub.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	ids := make([]int64, len(clients))
	for i, c := range clients {
		ids[i] = c.ID
	}
	accounts, err := s.accounts.List(store.AccountQuery{UserIDs: ids})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	totals := stats.ByUser(accounts)

	out := make([]model.ClientSummary, 0, len(clients))
	for _, c := range clients {
		t := totals[c.ID]
		total := decimal.Zero
		if t.Count > 0 {
			total = t.Total.Round(2)
		}
		out = append(out, model.ClientSummary{User: c, TotalAccounts: t.Count, TotalValue: total})
	}
	return out, nil
}

// ClientDetails returns a client's recent accounts and aggregates over all
// of their accounts.
func (s *Service) ClientDetails(sub auth.Subject, clientID int64) (*ClientDetails, error) {
	client, err := s.requireClient(sub, clientID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.List(store.AccountQuery{UserIDs: []int64{client.ID}})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	recent := accounts
	if len(recent) > clientDetailLimit {
		recent = recent[:clientDetailLimit]
	}
	if recent == nil {
		recent = []model.Account{}
	}
	byCategory := stats.ByCategory(accounts)
	if byCategory == nil {
		byCategory = []stats.CategoryTotal{}
	}
	byMonth := stats.ByMonth(accounts, s.today(), stats.DefaultMonthsBack)
	if byMonth == nil {
		byMonth = []stats.MonthTotal{}
	}

	return &ClientDetails{
		Client:     client,
		Accounts:   recent,
		Stats:      stats.Summarize(accounts),
		ByCategory: byCategory,
		ByMonth:    byMonth,
	}, nil
}

// SendFeedback stores a message from the manager to one of their clients.
func (s *Service) SendFeedback(ctx context.Context, sub auth.Subject, clientID int64, message string) (*model.Feedback, error) {
	if clientID <= 0 {
		return nil, apperr.Validation("user_id", "client is required")
	}
	if _, err := s.requireClient(sub, clientID); err != nil {
		return nil, err
	}
	message = s.clean(message)
	if message == "" {
		return nil, apperr.Validation("message", "message is required")
	}
	if len([]rune(message)) > maxFeedbackLen {
		return nil, apperr.Validation("message", fmt.Sprintf("message must be at most %d characters", maxFeedbackLen))
	}

	f, err := s.feedbacks.Create(clientID, sub.UserID, message)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.invalidateOverview(sub.UserID)
	s.activity.Record(ctx, activity.FeedbackSent, map[string]any{"feedback_id": f.ID, "user_id": clientID}, sub.UserID)
	return f, nil
}

// ListFeedback returns feedback received by a user, or sent by a manager.
// Managers may narrow to one client.
func (s *Service) ListFeedback(sub auth.Subject, clientID int64) ([]model.Feedback, error) {
	var (
		list []model.Feedback
		err  error
	)
	switch sub.Role {
	case model.RoleManager:
		if clientID != 0 {
			if _, err := s.requireClient(sub, clientID); err != nil {
				return nil, err
			}
		}
		list, err = s.feedbacks.ListSent(sub.UserID, clientID)
	case model.RoleUser:
		if err := s.policy.Authorize(sub, access.ReadFeedback, access.UserResource(sub.UserID)); err != nil {
			return nil, err
		}
		list, err = s.feedbacks.ListReceived(sub.UserID)
	default:
		return nil, apperr.Forbidden("unknown role")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if list == nil {
		list = []model.Feedback{}
	}
	return list, nil
}

// ManagerOverview summarizes every client of the manager. Results are
// cached until a client's accounts or the manager's feedback change.
func (s *Service) ManagerOverview(ctx context.Context, sub auth.Subject) (*Overview, error) {
	if err := s.policy.Authorize(sub, access.ManageClients, access.Resource{}); err != nil {
		return nil, err
	}
	ov, err := s.overviewCache.GetOrLoad(overviewKey(sub.UserID), func() (*Overview, error) {
		return s.loadOverview(ctx, sub.UserID)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return ov, nil
}

func (s *Service) loadOverview(ctx context.Context, managerID int64) (*Overview, error) {
	ov := &Overview{TotalValue: decimal.Zero}
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		ids, err := s.users.ClientIDs(managerID)
		if err != nil {
			return err
		}
		accounts, err := s.accounts.List(store.AccountQuery{UserIDs: ids})
		if err != nil {
			return err
		}
		sum := stats.Summarize(accounts)
		ov.TotalClients = len(ids)
		ov.TotalAccounts = sum.Count
		ov.TotalValue = sum.Total
		return nil
	})
	g.Go(func() error {
		n, err := s.feedbacks.CountSent(managerID)
		if err != nil {
			return err
		}
		ov.TotalFeedbacks = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ov, nil
}

// Export renders the accounts of the manager's clients as CSV, optionally
// narrowed to one client and one month.
func (s *Service) Export(ctx context.Context, sub auth.Subject, clientID int64, month string) (*Report, error) {
	if err := s.policy.Authorize(sub, access.ManageClients, access.Resource{}); err != nil {
		return nil, err
	}
	if month != "" && !validMonth(month) {
		return nil, apperr.Validation("month", "month must be YYYY-MM")
	}

	var ids []int64
	if clientID != 0 {
		if _, err := s.requireClient(sub, clientID); err != nil {
			return nil, err
		}
		ids = []int64{clientID}
	} else {
		var err error
		ids, err = s.users.ClientIDs(sub.UserID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
	}

	accounts, err := s.accounts.List(store.AccountQuery{UserIDs: ids, Filter: model.AccountFilter{Month: month}})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, accounts); err != nil {
		return nil, apperr.Internal(err)
	}

	s.activity.Record(ctx, activity.ReportExported, map[string]any{"records": len(accounts)}, sub.UserID)
	return &Report{
		Filename: export.Filename(s.today()),
		Records:  len(accounts),
		Data:     buf.Bytes(),
	}, nil
}

// ListLogs returns the newest activity entries for the subject, and for a
// manager also for every client.
func (s *Service) ListLogs(sub auth.Subject) ([]model.LogEntry, error) {
	ids, err := s.scopeUserIDs(sub)
	if err != nil {
		return nil, err
	}
	entries, err := s.logs.ListForUsers(ids, logListLimit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	return entries, nil
}

func validMonth(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}
