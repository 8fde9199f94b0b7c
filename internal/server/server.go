package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/catalog"
	"github.com/dukerupert/roadpoints/internal/config"
	"github.com/dukerupert/roadpoints/internal/email"
	"github.com/dukerupert/roadpoints/internal/handler"
	"github.com/dukerupert/roadpoints/internal/metrics"
	"github.com/dukerupert/roadpoints/internal/middleware"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
	"github.com/dukerupert/roadpoints/internal/scheduler"
	"github.com/dukerupert/roadpoints/internal/store"
	ws "github.com/dukerupert/roadpoints/internal/websocket"
)

const (
	loginLimit  = 10
	loginWindow = time.Minute
)

type Server struct {
	db           *sql.DB
	cfg          *config.Config
	engine       *points.Engine
	hub          *ws.Hub
	metrics      *metrics.Metrics
	notifier     *email.Notifier
	scheduler    *scheduler.Runner
	issuer       *auth.Issuer
	revokedStore *store.RevokedTokenStore
	rateLimiter  *middleware.RateLimiter
	authH        *handler.AuthHandler
	pointsH      *handler.PointsHandler
	orderH       *handler.OrderHandler
	catalogH     *handler.CatalogHandler
	settingsH    *handler.SettingsHandler
	applicationH *handler.ApplicationHandler
	adminH       *handler.AdminHandler
	logger       *slog.Logger
}

// New wires stores, the points engine and its observers, and the HTTP
// handlers. A nil source uses the eBay client from cfg; a nil mailer sends
// no email.
func New(db *sql.DB, cfg *config.Config, source catalog.Source, mailer *email.Client, logger *slog.Logger) (*Server, error) {
	if source == nil {
		source = catalog.NewEbayClient(cfg.Ebay)
	}
	if mailer == nil {
		mailer = email.NewClient("", cfg.FromEmail, cfg.BaseURL)
	}

	userStore := store.NewUserStore(db)
	sponsorStore := store.NewSponsorStore(db)
	membershipStore := store.NewSponsorDriverStore(db)
	policyStore := store.NewPolicyStore(db)
	catalogStore := store.NewCatalogStore(db)
	orderStore := store.NewOrderStore(db)
	appStore := store.NewApplicationStore(db)
	revokedStore := store.NewRevokedTokenStore(db)
	errorLogStore := store.NewErrorLogStore(db)

	hub := ws.NewHub(logger)
	m := metrics.New()
	notifier := email.NewNotifier(mailer, userStore, logger)

	engine := points.NewEngine(db,
		points.WithLogger(logger),
		points.WithObserver(m),
		points.WithObserver(hub),
		points.WithObserver(notifier),
	)

	runner := scheduler.New(logger, m)
	schedules := scheduler.Schedules{
		Accrual:      cfg.AccrualSchedule,
		Expiration:   cfg.ExpirationSchedule,
		TokenCleanup: cfg.CleanupSchedule,
	}
	for _, job := range scheduler.StandardJobs(engine, revokedStore, schedules) {
		if err := runner.Add(job); err != nil {
			return nil, err
		}
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	audited := catalog.NewAudited(source, errorLogStore, logger)

	return &Server{
		db:           db,
		cfg:          cfg,
		engine:       engine,
		hub:          hub,
		metrics:      m,
		notifier:     notifier,
		scheduler:    runner,
		issuer:       issuer,
		revokedStore: revokedStore,
		rateLimiter:  middleware.NewRateLimiter(loginLimit, loginWindow),
		authH:        handler.NewAuthHandler(userStore, revokedStore, issuer, logger.With("component", "auth")),
		pointsH:      handler.NewPointsHandler(engine, membershipStore, logger.With("component", "points_handler")),
		orderH:       handler.NewOrderHandler(engine, orderStore, logger.With("component", "order")),
		catalogH:     handler.NewCatalogHandler(engine, audited, catalogStore, membershipStore, errorLogStore, logger.With("component", "catalog_handler")),
		settingsH:    handler.NewSettingsHandler(policyStore, logger.With("component", "settings")),
		applicationH: handler.NewApplicationHandler(appStore, sponsorStore, logger.With("component", "application")),
		adminH:       handler.NewAdminHandler(engine, policyStore, sponsorStore, logger.With("component", "admin")),
		logger:       logger,
	}, nil
}

// Engine returns the points engine.
func (s *Server) Engine() *points.Engine {
	return s.engine
}

// Start runs the scheduled jobs and the rate limiter sweeper until ctx ends.
func (s *Server) Start(ctx context.Context) {
	s.scheduler.Start(ctx)
	go s.rateLimiter.RunSweeper(ctx, 5*time.Minute)
}

// Close stops scheduled jobs and waits for queued emails.
func (s *Server) Close() {
	s.scheduler.Stop()
	s.notifier.Wait()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("POST /api/auth/login",
		middleware.RateLimit(s.rateLimiter, middleware.ByIP)(http.HandlerFunc(s.authH.Login)))

	s.registerProtectedRoutes(mux)

	var h http.Handler = middleware.Metrics(s.metrics)(mux)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	if len(s.cfg.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         600,
		}).Handler(h)
	}
	return h
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// guard wraps h with authentication and, when roles are given, a role check.
func (s *Server) guard(h http.HandlerFunc, roles ...model.Role) http.Handler {
	var next http.Handler = h
	if len(roles) > 0 {
		next = middleware.RequireRole(roles...)(next)
	}
	return middleware.RequireAuth(s.issuer, s.revokedStore)(next)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	driver := func(h http.HandlerFunc) http.Handler { return s.guard(h, model.RoleDriver) }
	sponsor := func(h http.HandlerFunc) http.Handler { return s.guard(h, model.RoleSponsor) }
	admin := func(h http.HandlerFunc) http.Handler { return s.guard(h, model.RoleAdmin) }

	// Any authenticated user
	mux.Handle("POST /api/auth/logout", s.guard(s.authH.Logout))
	mux.Handle("GET /api/auth/me", s.guard(s.authH.Me))
	mux.Handle("GET /ws", s.guard(ws.HandleWebSocket(s.hub, s.cfg.CORSOrigins, s.logger.With("component", "websocket"))))

	// Driver routes
	mux.Handle("GET /api/driver/points/history", driver(s.pointsH.History))
	mux.Handle("GET /api/driver/points/history-monthly", driver(s.pointsH.Summary))
	mux.Handle("GET /api/driver/points/month/{month}", driver(s.pointsH.Month))
	mux.Handle("GET /api/driver/catalog", driver(s.catalogH.ListForDriver))
	mux.Handle("GET /api/driver/orders", driver(s.orderH.ListMine))
	mux.Handle("POST /api/driver/orders", driver(s.orderH.Purchase))
	mux.Handle("POST /api/driver/orders/{id}/cancel", driver(s.orderH.Cancel))
	mux.Handle("GET /api/driver/applications", driver(s.applicationH.ListMine))
	mux.Handle("POST /api/driver/applications", driver(s.applicationH.Apply))

	// Sponsor routes
	mux.Handle("GET /api/sponsor/settings", sponsor(s.settingsH.Get))
	mux.Handle("PUT /api/sponsor/settings", sponsor(s.settingsH.Update))
	mux.Handle("POST /api/sponsor/points/add", sponsor(s.pointsH.Add))
	mux.Handle("POST /api/sponsor/points/deduct", sponsor(s.pointsH.Deduct))
	mux.Handle("GET /api/sponsor/drivers", sponsor(s.pointsH.Drivers))
	mux.Handle("GET /api/sponsor/drivers/{driver_id}/points", sponsor(s.pointsH.History))
	mux.Handle("GET /api/sponsor/drivers/{driver_id}/points/history-monthly", sponsor(s.pointsH.Summary))
	mux.Handle("GET /api/sponsor/drivers/{driver_id}/points/month/{month}", sponsor(s.pointsH.Month))
	mux.Handle("GET /api/sponsor/catalog/search", sponsor(s.catalogH.Search))
	mux.Handle("GET /api/sponsor/catalog", sponsor(s.catalogH.List))
	mux.Handle("POST /api/sponsor/catalog", sponsor(s.catalogH.Add))
	mux.Handle("DELETE /api/sponsor/catalog/{item_id}", sponsor(s.catalogH.Delete))
	mux.Handle("GET /api/sponsor/error-logs", sponsor(s.catalogH.ErrorLogs))
	mux.Handle("GET /api/sponsor/orders", sponsor(s.orderH.ListSponsor))
	mux.Handle("POST /api/sponsor/orders/{id}/fulfill", sponsor(s.orderH.Fulfill))
	mux.Handle("GET /api/sponsor/applications", sponsor(s.applicationH.ListSponsor))
	mux.Handle("POST /api/sponsor/applications/{id}/approve", sponsor(s.applicationH.Approve))
	mux.Handle("POST /api/sponsor/applications/{id}/reject", sponsor(s.applicationH.Reject))

	// Admin routes
	mux.Handle("GET /api/admin/point-expiration/settings", admin(s.adminH.ListExpiration))
	mux.Handle("POST /api/admin/point-expiration/settings", admin(s.adminH.SetExpiration))
	mux.Handle("POST /api/admin/point-expiration/run", admin(s.adminH.RunExpiration))
	mux.Handle("POST /api/admin/accrual/run", admin(s.adminH.RunAccrual))
	mux.Handle("GET /api/admin/ledger/verify", admin(s.adminH.VerifyLedger))
}
