// Package finance implements the tracker's operations: identity, accounts,
// groups and manager oversight. Every operation takes the acting subject,
// authorizes through the access policy and returns apperr errors.
package finance

import (
	"log/slog"
	"time"

	"github.com/dukerupert/tally/internal/access"
	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/cache"
	"github.com/dukerupert/tally/internal/export"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/security"
	"github.com/dukerupert/tally/internal/store"
	"github.com/dukerupert/tally/internal/verify"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// clientDetailLimit caps the recent accounts shown on a client page.
	clientDetailLimit = 50
	logListLimit      = 200
)

type Deps struct {
	Users      *store.UserStore
	Sessions   *store.SessionStore
	Groups     *store.GroupStore
	Accounts   *store.AccountStore
	Categories *store.CategoryStore
	Feedbacks  *store.FeedbackStore
	Logs       *store.LogStore

	Policy    *access.Policy
	Gate      *verify.Gate
	Vault     *auth.TokenVault
	Activity  activity.Logger
	Sanitizer *security.TextSanitizer
	Exporter  *export.CSV
	Logger    *slog.Logger
}

type Options struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	// Location decides which calendar month is "current" for monthly totals.
	Location *time.Location
}

type Service struct {
	users      *store.UserStore
	sessions   *store.SessionStore
	groups     *store.GroupStore
	accounts   *store.AccountStore
	categories *store.CategoryStore
	feedbacks  *store.FeedbackStore
	logs       *store.LogStore

	policy    *access.Policy
	gate      *verify.Gate
	vault     *auth.TokenVault
	activity  activity.Logger
	sanitizer *security.TextSanitizer
	exporter  *export.CSV
	logger    *slog.Logger

	categoryCache *cache.TTL[[]model.Category]
	overviewCache *cache.TTL[*Overview]

	loc        *time.Location
	now        func() time.Time
	bcryptCost int
}

func New(d Deps, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	act := d.Activity
	if act == nil {
		act = activity.Discard{}
	}

	s := &Service{
		users:      d.Users,
		sessions:   d.Sessions,
		groups:     d.Groups,
		accounts:   d.Accounts,
		categories: d.Categories,
		feedbacks:  d.Feedbacks,
		logs:       d.Logs,
		policy:     d.Policy,
		gate:       d.Gate,
		vault:      d.Vault,
		activity:   act,
		sanitizer:  d.Sanitizer,
		exporter:   d.Exporter,
		logger:     logger.With("component", "finance"),
		loc:        loc,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}

	s.categoryCache = cache.New[[]model.Category](opts.CacheTTL)
	s.overviewCache = cache.New[*Overview](opts.CacheTTL)
	s.SetCacheEnabled(opts.CacheEnabled)
	return s
}

// SetCacheEnabled toggles memoization at runtime. Disabling drops every
// cached entry.
func (s *Service) SetCacheEnabled(enabled bool) {
	s.categoryCache.SetEnabled(enabled)
	s.overviewCache.SetEnabled(enabled)
}

func (s *Service) ClearCache() {
	s.categoryCache.Clear()
	s.overviewCache.Clear()
}

// SweepCache drops expired entries and returns how many were removed.
func (s *Service) SweepCache() int {
	return s.categoryCache.CleanExpired() + s.overviewCache.CleanExpired()
}

func (s *Service) clean(in string) string {
	if s.sanitizer == nil {
		return in
	}
	return s.sanitizer.Clean(in)
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}
