package finance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/tally/internal/access"
	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/export"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/security"
	"github.com/dukerupert/tally/internal/store"
	"github.com/dukerupert/tally/internal/verify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	sessions *store.SessionStore
	gate     *verify.Gate
	users    *store.UserStore
	accounts *store.AccountStore
	foodID   int64
	nextSess int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	groups := store.NewGroupStore(db)
	accounts := store.NewAccountStore(db)
	categories := store.NewCategoryStore(db)
	vault := auth.NewTokenVault()
	logs := store.NewLogStore(db)
	sessions := store.NewSessionStore(db, time.Hour)
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := activity.NewRecorder(discard, activity.NewStoreSink(logs))

	gateCfg := verify.DefaultConfig()
	gateCfg.Debug = true
	gate := verify.NewGate(store.NewVerificationCodeStore(db), vault, recorder, nil, gateCfg)

	exporter, err := export.NewCSV("pt-BR", "R$")
	require.NoError(t, err)

	svc := New(Deps{
		Users:      users,
		Sessions:   sessions,
		Groups:     groups,
		Accounts:   accounts,
		Categories: categories,
		Feedbacks:  store.NewFeedbackStore(db),
		Logs:       logs,
		Policy:     access.NewPolicy(users, groups, nil),
		Gate:       gate,
		Vault:      vault,
		Activity:   recorder,
		Sanitizer:  security.NewTextSanitizer(),
		Exporter:   exporter,
		Logger:     discard,
	}, Options{CacheEnabled: true, CacheTTL: time.Minute})
	svc.now = func() time.Time { return fixedNow }
	svc.bcryptCost = bcrypt.MinCost

	food, err := categories.GetBySlug("food")
	require.NoError(t, err)
	require.NotNil(t, food)

	return &fixture{svc: svc, sessions: sessions, gate: gate, users: users, accounts: accounts, foodID: food.ID}
}

// subject builds the request subject for u with a fresh session id.
func (f *fixture) subject(u *model.User) auth.Subject {
	f.nextSess++
	return auth.Subject{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, SessionID: f.nextSess}
}

func (f *fixture) register(t *testing.T, name, email string, role model.Role) *model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Name: name, Email: email, Password: "secret1", Role: string(role),
	})
	require.NoError(t, err)
	return u
}

// managerWithClient registers a manager and creates one client under them.
func (f *fixture) managerWithClient(t *testing.T) (manager, client auth.Subject) {
	t.Helper()
	m := f.register(t, "Marta", "marta@example.com", model.RoleManager)
	manager = f.subject(m)
	c, err := f.svc.CreateClient(context.Background(), manager, RegisterInput{
		Name: "Bruno", Email: "bruno@example.com", Password: "secret1",
	})
	require.NoError(t, err)
	return manager, f.subject(c)
}

func (f *fixture) expense(t *testing.T, sub auth.Subject, value, date string) *model.Account {
	t.Helper()
	a, err := f.svc.CreateAccount(context.Background(), sub, AccountInput{
		CategoryID: f.foodID,
		Value:      mustDecimal(t, value),
		Date:       date,
	})
	require.NoError(t, err)
	return a
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
