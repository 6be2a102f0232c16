package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Routes are the landing pages per role and the external Google entry.
type Routes struct {
	Teacher     string
	Student     string
	GoogleLogin string
}

// Flow runs the submission and Google sign-in actions for a form.
type Flow struct {
	auth     AuthService
	durable  Store
	session  Store
	notifier Notifier
	nav      Navigator
	routes   Routes
	logger   *slog.Logger
}

// Deps bundles the collaborators of a Flow.
type Deps struct {
	Auth      AuthService
	Durable   Store
	Session   Store
	Notifier  Notifier
	Navigator Navigator
	Routes    Routes
	Logger    *slog.Logger
}

func NewFlow(d Deps) *Flow {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	routes := d.Routes
	if routes.Teacher == "" {
		routes.Teacher = "/teacher-dashboard/"
	}
	if routes.Student == "" {
		routes.Student = "/student-dashboard/"
	}
	return &Flow{
		auth:     d.Auth,
		durable:  d.Durable,
		session:  d.Session,
		notifier: d.Notifier,
		nav:      d.Navigator,
		routes:   routes,
		logger:   logger,
	}
}

// Submit validates the form, exchanges the credentials, persists the token
// and role and navigates to the role's landing route. Exactly one auth call
// is made per accepted submission. The form's loading flag is set for the
// duration of that call and cleared on every exit path.
func (fl *Flow) Submit(ctx context.Context, form *Form) (result *AuthResult, err error) {
	if form.Loading() {
		return nil, ErrSubmissionInProgress
	}

	state := form.State()
	errs := Validate(state)
	form.setErrors(errs)
	if len(errs) > 0 {
		fl.notifier.Error(MsgMissingFields)
		return nil, &ValidationError{Fields: errs}
	}

	if !form.begin() {
		return nil, ErrSubmissionInProgress
	}
	defer form.end()
	defer func() {
		// a panicking collaborator is reported like any other failure
		if r := recover(); r != nil {
			fl.logger.Error("Login submission panicked", "panic", r)
			result = nil
			err = &RequestError{Err: fmt.Errorf("panic: %v", r)}
			fl.notifier.Error(UserMessage(err))
		}
	}()

	result, err = fl.auth.Login(ctx, Credentials{
		Email:    state.Email,
		Password: state.Password,
		Role:     state.Role,
	})
	if err == nil {
		err = fl.persist(ctx, state.RememberMe, result)
	}
	if err != nil {
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			err = &RequestError{Err: err}
		}
		fl.logger.Warn("Login failed", "email", MaskEmail(state.Email), "role", state.Role, "error", err)
		fl.notifier.Error(UserMessage(err))
		return nil, err
	}

	fl.logger.Info("Login succeeded", "email", MaskEmail(state.Email), "role", result.User.Role)
	fl.notifier.Success(MsgLoginSuccessful)
	fl.nav.GoTo(fl.TargetFor(result.User.Role))
	return result, nil
}

// persist writes the token and role. authToken and access_token always go
// to durable storage; the role goes to durable storage only with remember-me.
func (fl *Flow) persist(ctx context.Context, remember bool, res *AuthResult) error {
	if res == nil {
		return errors.New("empty auth response")
	}
	role := string(res.User.Role)

	if err := fl.durable.Set(ctx, KeyAuthToken, res.AccessToken); err != nil {
		return fmt.Errorf("persist %s: %w", KeyAuthToken, err)
	}
	roleStore := fl.session
	if remember {
		roleStore = fl.durable
	}
	if err := roleStore.Set(ctx, KeyUserRole, role); err != nil {
		return fmt.Errorf("persist %s: %w", KeyUserRole, err)
	}
	if err := fl.durable.Set(ctx, KeyAccessToken, res.AccessToken); err != nil {
		return fmt.Errorf("persist %s: %w", KeyAccessToken, err)
	}
	return nil
}

// TargetFor maps a role to its landing route. Anything but teacher lands on
// the student dashboard.
func (fl *Flow) TargetFor(role Role) string {
	if role == RoleTeacher {
		return fl.routes.Teacher
	}
	return fl.routes.Student
}

// GoogleSignIn hands the whole sign-in over to the external OAuth route.
func (fl *Flow) GoogleSignIn(form *Form) error {
	if form != nil && form.Loading() {
		return ErrSubmissionInProgress
	}
	fl.notifier.Info(MsgGoogleRedirect)
	fl.nav.RedirectTo(fl.routes.GoogleLogin)
	return nil
}
