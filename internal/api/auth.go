package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/illegalcall/proflow-login/internal/events"
	"github.com/illegalcall/proflow-login/internal/login"
	"github.com/illegalcall/proflow-login/internal/metrics"
	"github.com/illegalcall/proflow-login/internal/models"
	"github.com/illegalcall/proflow-login/internal/storage"
)

const (
	actionSubmit         = "submit"
	actionTogglePassword = "toggle-password"
	actionGoogle         = "google"
)

const msgSignInInProgress = "A sign-in is already in progress"

type loginPage struct {
	Form         login.FormState
	Errors       login.ErrorMap
	ShowPassword bool
	Loading      bool
	Toasts       []toast
	Roles        []login.Role
}

// newFlow wires a login flow to the current request.
func (s *Server) newFlow(c *fiber.Ctx, sess *session.Session, n *flashNotifier, nav *redirectNavigator) *login.Flow {
	return login.NewFlow(login.Deps{
		Auth:      s.auth,
		Durable:   s.durableStore(c),
		Session:   storage.NewSessionStore(sess),
		Notifier:  n,
		Navigator: nav,
		Routes: login.Routes{
			Teacher:     s.cfg.Auth.TeacherRoute,
			Student:     s.cfg.Auth.StudentRoute,
			GoogleLogin: s.cfg.Auth.GoogleLoginURL(),
		},
		Logger: s.logger.With("client", clientID(c)),
	})
}

func (s *Server) handleLoginPage(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return s.sessionError(err)
	}
	held, err := s.gate.Held(c.UserContext(), clientID(c))
	if err != nil {
		s.logger.Warn("Failed to read submission gate", "error", err)
	}
	toasts, popped := popFlash(sess)
	return s.renderLogin(c, sess, loadForm(sess), toasts, held, fiber.StatusOK, popped)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return s.sessionError(err)
	}
	form := loadForm(sess)
	s.applyPostedFields(c, form)

	notifier := &flashNotifier{}
	nav := &redirectNavigator{}
	flow := s.newFlow(c, sess, notifier, nav)

	switch c.FormValue("action", actionSubmit) {
	case actionSubmit:
		return s.submit(c, sess, form, flow, notifier, nav)
	case actionTogglePassword:
		form.TogglePasswordVisibility()
		return s.renderLogin(c, sess, form, notifier.toasts, false, fiber.StatusOK, false)
	case actionGoogle:
		return s.googleSignIn(c, sess, form, flow, notifier, nav)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown action",
		})
	}
}

func (s *Server) handleGoogle(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return s.sessionError(err)
	}
	notifier := &flashNotifier{}
	nav := &redirectNavigator{}
	flow := s.newFlow(c, sess, notifier, nav)
	return s.googleSignIn(c, sess, loadForm(sess), flow, notifier, nav)
}

func (s *Server) submit(c *fiber.Ctx, sess *session.Session, form *login.Form, flow *login.Flow, notifier *flashNotifier, nav *redirectNavigator) error {
	id := clientID(c)
	state := form.State()

	// forms are rebuilt per request, so only the gate refuses a resubmission
	acquired, err := s.gate.Acquire(c.UserContext(), id)
	if err != nil {
		s.logger.Error("Failed to acquire submission gate", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Login is temporarily unavailable",
		})
	}
	if !acquired {
		metrics.RecordAttempt(metrics.OutcomeBusy)
		notifier.Info(msgSignInInProgress)
		return s.renderLogin(c, sess, form, notifier.toasts, true, fiber.StatusConflict, false)
	}
	defer func() {
		if err := s.gate.Release(context.Background(), id); err != nil {
			s.logger.Warn("Failed to release submission gate", "error", err)
		}
	}()

	result, err := flow.Submit(c.UserContext(), form)

	var validationErr *login.ValidationError
	switch {
	case errors.As(err, &validationErr):
		metrics.RecordAttempt(metrics.OutcomeRejected)
		s.publish(c, models.EventLoginRejected, state, "", "", login.MsgMissingFields)
		return s.renderLogin(c, sess, form, notifier.toasts, false, fiber.StatusUnprocessableEntity, false)
	case err != nil:
		metrics.RecordAttempt(metrics.OutcomeFailed)
		s.publish(c, models.EventLoginFailed, state, "", "", login.UserMessage(err))
		return s.renderLogin(c, sess, form, notifier.toasts, false, fiber.StatusUnauthorized, false)
	}

	metrics.RecordAttempt(metrics.OutcomeSucceeded)
	s.publish(c, models.EventLoginSucceeded, state, string(result.User.Role), events.SubjectFromToken(result.AccessToken), "")

	sess.Delete(sessionKeyForm)
	pushFlash(sess, notifier.toasts)
	if err := sess.Save(); err != nil {
		return s.sessionError(err)
	}
	return c.Redirect(nav.path, fiber.StatusSeeOther)
}

func (s *Server) googleSignIn(c *fiber.Ctx, sess *session.Session, form *login.Form, flow *login.Flow, notifier *flashNotifier, nav *redirectNavigator) error {
	held, err := s.gate.Held(c.UserContext(), clientID(c))
	if err != nil {
		s.logger.Warn("Failed to read submission gate", "error", err)
	}
	if held {
		metrics.RecordAttempt(metrics.OutcomeBusy)
		notifier.Info(msgSignInInProgress)
		return s.renderLogin(c, sess, form, notifier.toasts, true, fiber.StatusConflict, false)
	}

	if err := flow.GoogleSignIn(form); err != nil {
		return s.renderLogin(c, sess, form, notifier.toasts, true, fiber.StatusConflict, false)
	}
	metrics.RecordAttempt(metrics.OutcomeGoogle)
	s.publish(c, models.EventGoogleRedirect, form.State(), "", "", "")

	// the page is left behind, so the info toast is only logged
	s.logger.Info("Redirecting to Google sign-in", "client", clientID(c), "toasts", len(notifier.toasts))
	return c.Redirect(nav.url, fiber.StatusFound)
}

// applyPostedFields copies the posted inputs into the form. Only fields whose
// value changed count as edited, so untouched fields keep their errors.
func (s *Server) applyPostedFields(c *fiber.Ctx, form *login.Form) {
	current := form.State()

	if email := c.FormValue(login.FieldEmail); email != current.Email {
		_ = form.Set(login.FieldEmail, email)
	}
	if password := c.FormValue(login.FieldPassword); password != current.Password {
		_ = form.Set(login.FieldPassword, password)
	}
	if role := c.FormValue(login.FieldRole); role != "" && role != string(current.Role) {
		if err := form.Set(login.FieldRole, role); err != nil {
			s.logger.Debug("Ignoring posted role", "role", role, "error", err)
		}
	}
	remember := c.FormValue(login.FieldRememberMe) != ""
	if remember != current.RememberMe {
		form.SetRememberMe(remember)
	}
}

func (s *Server) renderLogin(c *fiber.Ctx, sess *session.Session, form *login.Form, toasts []toast, loading bool, status int, dirty bool) error {
	if saveForm(sess, form) {
		dirty = true
	}
	if err := saveSession(sess, dirty); err != nil {
		return s.sessionError(err)
	}
	return s.render(c, status, "login.html", loginPage{
		Form:         form.State(),
		Errors:       form.Errors(),
		ShowPassword: form.ShowPassword(),
		Loading:      loading || form.Loading(),
		Toasts:       toasts,
		Roles:        []login.Role{login.RoleStudent, login.RoleTeacher},
	})
}

func (s *Server) render(c *fiber.Ctx, status int, name string, data any) error {
	c.Status(status)
	c.Type("html", "utf-8")
	if err := s.pages.ExecuteTemplate(c.Response().BodyWriter(), name, data); err != nil {
		s.logger.Error("Failed to render page", "page", name, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to render page")
	}
	return nil
}

func (s *Server) publish(c *fiber.Ctx, kind string, state login.FormState, role, subject, message string) {
	ev := models.LoginEvent{
		Type:          kind,
		Email:         login.MaskEmail(state.Email),
		RequestedRole: string(state.Role),
		Role:          role,
		Subject:       subject,
		ClientID:      clientID(c),
		Message:       message,
	}
	if err := s.publisher.Publish(ev); err != nil {
		s.logger.Warn("Failed to publish login event", "type", kind, "error", err)
	}
}

func (s *Server) sessionError(err error) error {
	s.logger.Error("Session storage failure", slog.Any("error", err))
	return fiber.NewError(fiber.StatusInternalServerError, "Session unavailable")
}
