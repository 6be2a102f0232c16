package api

import (
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"

	"github.com/illegalcall/proflow-login/internal/login"
	"github.com/illegalcall/proflow-login/internal/storage"
)

type dashboardPage struct {
	Title  string
	Role   string
	Toasts []toast
}

// dashboardGuard lets a request through only when the browser holds an auth
// token. With JWT_SECRET set the token must also verify.
func (s *Server) dashboardGuard() []fiber.Handler {
	guard := []fiber.Handler{s.injectBearer}
	if s.cfg.JWT.Secret != "" {
		guard = append(guard, jwtware.New(jwtware.Config{
			SigningKey: []byte(s.cfg.JWT.Secret),
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				s.logger.Info("Rejected dashboard token", "client", clientID(c), "error", err)
				return c.Redirect("/login", fiber.StatusSeeOther)
			},
		}))
	}
	return guard
}

// injectBearer moves the token from the durable store into the
// Authorization header so the JWT middleware can read it.
func (s *Server) injectBearer(c *fiber.Ctx) error {
	token, ok, err := s.durableStore(c).Get(c.UserContext(), login.KeyAuthToken)
	if err != nil {
		s.logger.Error("Failed to read auth token", "error", err)
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if !ok || token == "" {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return c.Next()
}

func (s *Server) handleDashboard(role login.Role) fiber.Handler {
	title := "Student dashboard"
	if role == login.RoleTeacher {
		title = "Teacher dashboard"
	}
	return func(c *fiber.Ctx) error {
		sess, err := s.sessions.Get(c)
		if err != nil {
			return s.sessionError(err)
		}

		// session storage wins over the remembered role
		current, ok, _ := storage.NewSessionStore(sess).Get(c.UserContext(), login.KeyUserRole)
		if !ok {
			current, _, err = s.durableStore(c).Get(c.UserContext(), login.KeyUserRole)
			if err != nil {
				s.logger.Warn("Failed to read remembered role", "error", err)
			}
		}

		toasts, popped := popFlash(sess)
		if err := saveSession(sess, popped); err != nil {
			return s.sessionError(err)
		}
		return s.render(c, fiber.StatusOK, "dashboard.html", dashboardPage{
			Title:  title,
			Role:   current,
			Toasts: toasts,
		})
	}
}
