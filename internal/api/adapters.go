package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/illegalcall/proflow-login/internal/login"
)

const (
	sessionKeyForm  = "form"
	sessionKeyFlash = "flash"
)

const (
	toastInfo    = "info"
	toastSuccess = "success"
	toastError   = "error"
)

type toast struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// flashNotifier collects the toasts raised while handling one request.
type flashNotifier struct {
	toasts []toast
}

func (n *flashNotifier) Info(message string) { n.add(toastInfo, message) }
func (n *flashNotifier) Success(message string) { n.add(toastSuccess, message) }
func (n *flashNotifier) Error(message string) { n.add(toastError, message) }

func (n *flashNotifier) add(kind, message string) {
	n.toasts = append(n.toasts, toast{Kind: kind, Message: message})
}

// redirectNavigator records where the flow wants to go. The handler turns an
// in-app path into a 303 and an external URL into a 302.
type redirectNavigator struct {
	path string
	url  string
}

func (n *redirectNavigator) GoTo(path string) { n.path = path }
func (n *redirectNavigator) RedirectTo(url string) { n.url = url }

// formSnapshot is what survives between requests. FormState never
// serializes the password.
type formSnapshot struct {
	State        login.FormState `json:"state"`
	Errors       login.ErrorMap  `json:"errors,omitempty"`
	ShowPassword bool            `json:"showPassword,omitempty"`
}

func loadForm(sess *session.Session) *login.Form {
	raw, _ := sess.Get(sessionKeyForm).(string)
	if raw == "" {
		return login.NewForm()
	}
	var snap formSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return login.NewForm()
	}
	return login.RestoreForm(snap.State, snap.Errors, snap.ShowPassword)
}

// saveForm stores the form snapshot and reports whether it differs from the
// one already in the session.
func saveForm(sess *session.Session, form *login.Form) bool {
	raw, err := json.Marshal(formSnapshot{
		State:        form.State(),
		Errors:       form.Errors(),
		ShowPassword: form.ShowPassword(),
	})
	if err != nil {
		return false
	}
	if current, _ := sess.Get(sessionKeyForm).(string); current == string(raw) {
		return false
	}
	sess.Set(sessionKeyForm, string(raw))
	return true
}

func pushFlash(sess *session.Session, toasts []toast) {
	if len(toasts) == 0 {
		return
	}
	pending := append(peekFlash(sess), toasts...)
	raw, err := json.Marshal(pending)
	if err != nil {
		return
	}
	sess.Set(sessionKeyFlash, string(raw))
}

// popFlash drains the pending toasts. The flag is false when there was
// nothing to drain and the session is untouched.
func popFlash(sess *session.Session) ([]toast, bool) {
	if sess.Get(sessionKeyFlash) == nil {
		return nil, false
	}
	toasts := peekFlash(sess)
	sess.Delete(sessionKeyFlash)
	return toasts, true
}

// saveSession writes the session back only when the request changed it or
// the session is new. Page views that change nothing never overwrite values
// another request stored in the meantime.
func saveSession(sess *session.Session, changed bool) error {
	if !changed && !sess.Fresh() {
		return nil
	}
	return sess.Save()
}

func peekFlash(sess *session.Session) []toast {
	raw, _ := sess.Get(sessionKeyFlash).(string)
	if raw == "" {
		return nil
	}
	var toasts []toast
	if err := json.Unmarshal([]byte(raw), &toasts); err != nil {
		return nil
	}
	return toasts
}
