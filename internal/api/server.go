package api

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/illegalcall/proflow-login/internal/config"
	"github.com/illegalcall/proflow-login/internal/events"
	"github.com/illegalcall/proflow-login/internal/login"
	"github.com/illegalcall/proflow-login/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps are the collaborators the server does not build itself.
type Deps struct {
	Redis     *redis.Client
	Auth      login.AuthService
	Publisher *events.Publisher // nil disables the audit trail
	Logger    *slog.Logger
}

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	redis     *redis.Client
	auth      login.AuthService
	publisher *events.Publisher
	sessions  *session.Store
	gate      *storage.FlightGate
	cookies   *securecookie.SecureCookie
	pages     *template.Template
	logger    *slog.Logger
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Redis == nil || deps.Auth == nil {
		return nil, fmt.Errorf("redis client and auth service are required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	cookies, err := newCookieCodec(cfg.Client, log)
	if err != nil {
		return nil, err
	}

	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	secure := cfg.Server.Environment == "production"
	sessions := session.New(session.Config{
		Expiration:        cfg.Client.SessionIdleTime,
		Storage:           storage.NewFiberStorage(deps.Redis, "session:"),
		KeyLookup:         "cookie:" + cfg.Client.SessionCookie,
		CookieHTTPOnly:    true,
		CookieSecure:      secure,
		CookieSameSite:    fiber.CookieSameSiteLaxMode,
		CookieSessionOnly: true,
	})

	app := fiber.New(fiber.Config{
		AppName: "proflow-login",
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestWindow,
		Storage:    storage.NewFiberStorage(deps.Redis, "limiter:"),
	}))

	server := &Server{
		app:       app,
		cfg:       cfg,
		redis:     deps.Redis,
		auth:      deps.Auth,
		publisher: deps.Publisher,
		sessions:  sessions,
		gate:      storage.NewFlightGate(deps.Redis, cfg.Auth.FlightTTL),
		cookies:   cookies,
		pages:     pages,
		logger:    log,
	}

	// Routes
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	web := s.app.Group("/", s.clientIdentity)
	web.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/login", fiber.StatusFound)
	})
	web.Get("/login", s.handleLoginPage)
	web.Post("/login", s.handleLogin)
	web.Get("/auth/google", s.handleGoogle)

	// Protected routes
	web.Get(s.cfg.Auth.TeacherRoute, append(s.dashboardGuard(), s.handleDashboard(login.RoleTeacher))...)
	web.Get(s.cfg.Auth.StudentRoute, append(s.dashboardGuard(), s.handleDashboard(login.RoleStudent))...)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(s.cfg.Server.ShutdownTimeout)
}
