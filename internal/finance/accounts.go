package finance

import (
	"context"
	"strings"

	"github.com/dukerupert/tally/internal/access"
	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/categorize"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
	"github.com/shopspring/decimal"
)

const categoriesKey = "categories"

type AccountInput struct {
	CategoryID  int64           `json:"category_id"`
	Value       decimal.Decimal `json:"value"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	GroupID     *int64          `json:"group_id"`
}

// ListQuery narrows ListAccounts. ClientID is only meaningful for managers.
type ListQuery struct {
	Filter   model.AccountFilter
	ClientID int64
}

// Categories returns every category ordered by name.
func (s *Service) Categories() ([]model.Category, error) {
	cats, err := s.categoryCache.GetOrLoad(categoriesKey, s.categories.List)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return cats, nil
}

// SuggestCategory picks a category for an expense description.
func (s *Service) SuggestCategory(description string) (*model.Category, error) {
	if strings.TrimSpace(description) == "" {
		return nil, apperr.Validation("description", "description is required")
	}
	slug := categorize.Suggest(description)

	cats, err := s.Categories()
	if err != nil {
		return nil, err
	}
	for i := range cats {
		if cats[i].Slug == slug {
			return &cats[i], nil
		}
	}
	return nil, apperr.NotFound("category not found")
}

// scopeUserIDs is the set of owners whose accounts sub sees by default:
// the subject, plus every client for a manager.
func (s *Service) scopeUserIDs(sub auth.Subject) ([]int64, error) {
	ids := []int64{sub.UserID}
	if sub.Role != model.RoleManager {
		return ids, nil
	}
	clients, err := s.users.ClientIDs(sub.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return append(ids, clients...), nil
}

// requireClient checks that sub is a manager and clientID one of their
// clients. Non-managers get Forbidden; anyone else's user is NotFound.
func (s *Service) requireClient(sub auth.Subject, clientID int64) (*model.User, error) {
	if err := s.policy.Authorize(sub, access.ManageClients, access.Resource{}); err != nil {
		return nil, err
	}
	d, err := s.policy.Decide(sub, access.ManageClient, access.UserResource(clientID))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !d.Allowed {
		return nil, apperr.NotFound("client not found")
	}
	client, err := s.users.GetByID(clientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if client == nil {
		return nil, apperr.NotFound("client not found")
	}
	return client, nil
}

// requireGroup loads a group and checks that sub may act on it.
func (s *Service) requireGroup(sub auth.Subject, groupID int64, action access.Action) (*model.Group, error) {
	g, err := s.groups.GetByID(groupID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	if err := s.policy.Authorize(sub, action, access.GroupResource(g)); err != nil {
		return nil, err
	}
	return g, nil
}

// ListAccounts returns the accounts visible to sub, newest first. Filtering
// by group lists every account tagged with it; filtering by client limits a
// manager to that client.
func (s *Service) ListAccounts(sub auth.Subject, q ListQuery) ([]model.Account, error) {
	if q.Filter.Month != "" && !validMonth(q.Filter.Month) {
		return nil, apperr.Validation("month", "month must be YYYY-MM")
	}

	var userIDs []int64
	switch {
	case q.ClientID != 0:
		if _, err := s.requireClient(sub, q.ClientID); err != nil {
			return nil, err
		}
		userIDs = []int64{q.ClientID}
	case q.Filter.GroupID == 0:
		ids, err := s.scopeUserIDs(sub)
		if err != nil {
			return nil, err
		}
		userIDs = ids
	}

	if q.Filter.GroupID != 0 {
		if _, err := s.requireGroup(sub, q.Filter.GroupID, access.ReadGroup); err != nil {
			return nil, err
		}
	}

	accounts, err := s.accounts.List(store.AccountQuery{UserIDs: userIDs, Filter: q.Filter})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	return accounts, nil
}

// GetAccount returns one account if sub may read it.
func (s *Service) GetAccount(sub auth.Subject, id int64) (*model.Account, error) {
	a, err := s.accounts.GetByID(id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if a == nil {
		return nil, apperr.NotFound("account not found")
	}
	if err := s.policy.Authorize(sub, access.ReadAccount, access.AccountResource(a)); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAccount records an expense owned by sub.
func (s *Service) CreateAccount(ctx context.Context, sub auth.Subject, in AccountInput) (*model.Account, error) {
	if !in.Value.IsPositive() {
		return nil, apperr.Validation("value", "value must be greater than zero")
	}
	date, err := model.ParseDate(in.Date)
	if err != nil {
		return nil, apperr.Validation("date", "date must be YYYY-MM-DD")
	}
	if in.CategoryID <= 0 {
		return nil, apperr.Validation("category_id", "category is required")
	}
	cat, err := s.categories.GetByID(in.CategoryID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if cat == nil {
		return nil, apperr.Validation("category_id", "unknown category")
	}

	a := &model.Account{
		UserID:      sub.UserID,
		CategoryID:  cat.ID,
		Value:       in.Value.Round(2),
		Date:        date,
		Description: s.clean(in.Description),
	}

	if in.GroupID != nil && *in.GroupID > 0 {
		g, err := s.groups.GetByID(*in.GroupID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if g == nil {
			return nil, apperr.Validation("group_id", "unknown group")
		}
		if err := s.policy.Authorize(sub, access.ReadGroup, access.GroupResource(g)); err != nil {
			return nil, err
		}
		a.GroupID = &g.ID
	}

	if err := s.policy.Authorize(sub, access.CreateAccount, access.AccountResource(a)); err != nil {
		return nil, err
	}

	created, err := s.accounts.Create(a)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.invalidateOverviewFor(sub.UserID)
	s.activity.Record(ctx, activity.AccountCreated, map[string]any{
		"account_id": created.ID,
		"value":      created.Value.StringFixed(2),
	}, sub.UserID)
	return created, nil
}

// DeleteAccount removes an expense. Accounts the subject cannot see are
// reported as not found; visible accounts owned by someone else are
// forbidden.
func (s *Service) DeleteAccount(ctx context.Context, sub auth.Subject, id int64) error {
	a, err := s.accounts.GetByID(id)
	if err != nil {
		return apperr.Internal(err)
	}
	if a == nil {
		return apperr.NotFound("account not found")
	}
	res := access.AccountResource(a)

	visible, err := s.policy.Decide(sub, access.ReadAccount, res)
	if err != nil {
		return apperr.Internal(err)
	}
	if !visible.Allowed {
		return apperr.NotFound("account not found")
	}
	if err := s.policy.Authorize(sub, access.DeleteAccount, res); err != nil {
		return err
	}

	if err := s.accounts.Delete(id); err != nil {
		return apperr.Internal(err)
	}

	s.invalidateOverviewFor(a.UserID)
	s.activity.Record(ctx, activity.AccountDeleted, map[string]any{"account_id": id}, sub.UserID)
	return nil
}
