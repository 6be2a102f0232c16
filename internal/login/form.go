package login

import (
	"fmt"
	"strconv"
	"sync"
)

// Field names as they appear in ErrorMap and in posted forms.
const (
	FieldEmail      = "email"
	FieldPassword   = "password"
	FieldRole       = "role"
	FieldRememberMe = "rememberMe"
)

// FormState is the user-editable part of the form.
type FormState struct {
	Email      string `json:"email" validate:"required"`
	Password   string `json:"-" validate:"required"`
	Role       Role   `json:"role"`
	RememberMe bool   `json:"rememberMe"`
}

// ErrorMap maps a field name to its message. Only failing fields have keys.
type ErrorMap map[string]string

// Form owns the mutable state of one rendered login form.
type Form struct {
	mu           sync.Mutex
	state        FormState
	errors       ErrorMap
	loading      bool
	showPassword bool
}

// NewForm returns an idle form with the student role selected.
func NewForm() *Form {
	return &Form{
		state:  FormState{Role: RoleStudent},
		errors: ErrorMap{},
	}
}

// RestoreForm rebuilds a form from a saved state and error set. An invalid
// role falls back to student.
func RestoreForm(state FormState, errs ErrorMap, showPassword bool) *Form {
	if !state.Role.Valid() {
		state.Role = RoleStudent
	}
	f := &Form{state: state, errors: ErrorMap{}, showPassword: showPassword}
	for k, v := range errs {
		f.errors[k] = v
	}
	return f
}

// Set edits one field and clears that field's error.
func (f *Form) Set(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldEmail:
		f.state.Email = value
	case FieldPassword:
		f.state.Password = value
	case FieldRole:
		role := Role(value)
		if !role.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidRole, value)
		}
		f.state.Role = role
	case FieldRememberMe:
		checked, err := strconv.ParseBool(value)
		if err != nil {
			checked = value == "on"
		}
		f.state.RememberMe = checked
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	delete(f.errors, field)
	return nil
}

func (f *Form) SetRememberMe(remember bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.RememberMe = remember
	delete(f.errors, FieldRememberMe)
}

func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Errors returns a copy of the current field errors.
func (f *Form) Errors() ErrorMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(ErrorMap, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

func (f *Form) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Form) ShowPassword() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.showPassword
}

func (f *Form) TogglePasswordVisibility() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showPassword = !f.showPassword
}

func (f *Form) setErrors(errs ErrorMap) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = make(ErrorMap, len(errs))
	for k, v := range errs {
		f.errors[k] = v
	}
}

// begin flips the loading flag on. It reports false when a submission is
// already in flight.
func (f *Form) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loading {
		return false
	}
	f.loading = true
	return true
}

func (f *Form) end() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
}
