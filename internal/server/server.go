package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/tally/internal/access"
	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/config"
	"github.com/dukerupert/tally/internal/export"
	"github.com/dukerupert/tally/internal/finance"
	"github.com/dukerupert/tally/internal/handler"
	"github.com/dukerupert/tally/internal/metrics"
	"github.com/dukerupert/tally/internal/middleware"
	"github.com/dukerupert/tally/internal/security"
	"github.com/dukerupert/tally/internal/store"
	"github.com/dukerupert/tally/internal/verify"
	"github.com/prometheus/client_golang/prometheus"
)

// limiterMaxIdle is how long an idle client IP keeps its rate limit bucket.
const limiterMaxIdle = 10 * time.Minute

type Server struct {
	db       *sql.DB
	authH    *handler.AuthHandler
	accountH *handler.AccountHandler
	groupH   *handler.GroupHandler
	managerH *handler.ManagerHandler
	service  *finance.Service
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer

	sessionStore *store.SessionStore
	userStore    *store.UserStore
	codeStore    *store.VerificationCodeStore
	vault        *auth.TokenVault
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

// New wires stores, the policy, the verification gate and the finance
// service onto db. Activity goes to the logs table, to the activity counter
// on reg, and to any extra sinks.
func New(db *sql.DB, cfg *config.Config, reg *prometheus.Registry, sinks []activity.Sink, logger *slog.Logger) (*Server, error) {
	collector := metrics.NewCollector(reg)

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionLifetime)
	codeStore := store.NewVerificationCodeStore(db)
	groupStore := store.NewGroupStore(db)
	logStore := store.NewLogStore(db)

	all := append([]activity.Sink{
		activity.NewStoreSink(logStore),
		activity.NewCountingSink(collector),
	}, sinks...)
	recorder := activity.NewRecorder(logger.With("component", "activity"), all...)

	exporter, err := export.NewCSV(cfg.ExportLocale, cfg.CurrencySymbol)
	if err != nil {
		return nil, fmt.Errorf("csv exporter: %w", err)
	}

	gateCfg := verify.DefaultConfig()
	gateCfg.Debug = cfg.Debug
	gateCfg.StrictType = cfg.StrictVerifyType

	vault := auth.NewTokenVault()
	gate := verify.NewGate(codeStore, vault, recorder, collector, gateCfg)

	svc := finance.New(finance.Deps{
		Users:      userStore,
		Sessions:   sessionStore,
		Groups:     groupStore,
		Accounts:   store.NewAccountStore(db),
		Categories: store.NewCategoryStore(db),
		Feedbacks:  store.NewFeedbackStore(db),
		Logs:       logStore,
		Policy:     access.NewPolicy(userStore, groupStore, collector),
		Gate:       gate,
		Vault:      vault,
		Activity:   recorder,
		Sanitizer:  security.NewTextSanitizer(),
		Exporter:   exporter,
		Logger:     logger,
	}, finance.Options{
		CacheEnabled: cfg.CacheEnabled,
		CacheTTL:     cfg.CacheTTL,
		Location:     cfg.Location(),
	})

	return &Server{
		db:           db,
		authH:        handler.NewAuthHandler(svc, gate, sessionStore, userStore, logger.With("component", "auth")),
		accountH:     handler.NewAccountHandler(svc, logger.With("component", "account")),
		groupH:       handler.NewGroupHandler(svc, logger.With("component", "group")),
		managerH:     handler.NewManagerHandler(svc, logger.With("component", "manager")),
		service:      svc,
		metrics:      collector,
		gatherer:     reg,
		sessionStore: sessionStore,
		userStore:    userStore,
		codeStore:    codeStore,
		vault:        vault,
		rateLimiter:  middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		logger:       logger,
	}, nil
}

// Service returns the finance service.
func (s *Server) Service() *finance.Service {
	return s.service
}

// Cleanup drops expired sessions, verification codes, verify tokens, cache
// entries and idle rate limit buckets.
func (s *Server) Cleanup(now time.Time) {
	if n, err := s.sessionStore.DeleteExpired(); err != nil {
		s.logger.Error("session cleanup", "error", err)
	} else if n > 0 {
		s.logger.Debug("expired sessions removed", "count", n)
	}
	if n, err := s.codeStore.DeleteExpired(now); err != nil {
		s.logger.Error("verification code cleanup", "error", err)
	} else if n > 0 {
		s.logger.Debug("expired verification codes removed", "count", n)
	}
	s.vault.Sweep(now)
	s.service.SweepCache()
	s.rateLimiter.Cleanup(limiterMaxIdle)
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /api/auth/me", s.authH.Me)
	outerMux.HandleFunc("GET /api/categories", s.accountH.Categories)
	outerMux.HandleFunc("GET /api/categories/suggest", s.accountH.SuggestCategory)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", metrics.Handler(s.gatherer))

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	var h http.Handler = outerMux
	h = middleware.ClientIP(h)
	h = middleware.Metrics(s.metrics)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	h = middleware.SecurityHeaders(h)
	return middleware.Recover(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session and profile
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("PUT /api/auth/account", s.authH.UpdateAccount)
	mux.HandleFunc("GET /api/auth/manager", s.authH.Manager)

	// Verification
	mux.HandleFunc("POST /api/verify/send-code", s.authH.SendCode)
	mux.HandleFunc("POST /api/verify/confirm-code", s.authH.ConfirmCode)

	// Accounts
	mux.HandleFunc("GET /api/accounts", s.accountH.List)
	mux.HandleFunc("POST /api/accounts", s.accountH.Create)
	mux.HandleFunc("GET /api/accounts/{id}", s.accountH.Get)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.accountH.Delete)

	// Groups
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("GET /api/groups/{id}", s.groupH.Get)
	mux.HandleFunc("DELETE /api/groups/{id}", s.groupH.Delete)
	mux.HandleFunc("POST /api/groups/{id}/members", s.groupH.AddMember)
	mux.HandleFunc("DELETE /api/groups/{id}/members/{user_id}", s.groupH.RemoveMember)

	// Feedback and activity, both roles
	mux.HandleFunc("GET /api/feedbacks", s.managerH.ListFeedback)
	mux.HandleFunc("GET /api/logs", s.managerH.Logs)

	// Manager only
	mgr := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireManager(h)
	}
	mux.Handle("POST /api/manager/clients", mgr(s.managerH.CreateClient))
	mux.Handle("GET /api/manager/clients", mgr(s.managerH.ListClients))
	mux.Handle("GET /api/manager/clients/{id}", mgr(s.managerH.ClientDetails))
	mux.Handle("POST /api/manager/feedbacks", mgr(s.managerH.SendFeedback))
	mux.Handle("GET /api/manager/stats", mgr(s.managerH.Stats))
	mux.Handle("GET /api/manager/export", mgr(s.managerH.Export))
}
