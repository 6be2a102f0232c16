// Package login holds the ProFlow sign-in flow: form state, validation,
// submission against the auth API, token persistence and role routing.
// It knows nothing about HTTP servers or templates; front ends plug in
// through the capability interfaces below.
package login

import "context"

// Role is the account type selected on the form and echoed by the auth API.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether r is one of the selectable roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Persistence keys read by the rest of the application.
const (
	KeyAuthToken   = "authToken"
	KeyUserRole    = "userRole"
	KeyAccessToken = "access_token"
)

// Credentials is the body posted to the auth API.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// User is the account record returned with a successful login. Role is kept
// as the raw string so unknown values can still be routed.
type User struct {
	ID       int    `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active,omitempty"`
}

// AuthResult is the success payload of the auth API.
type AuthResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	User        User   `json:"user"`
}

// AuthService performs the credential exchange.
type AuthService interface {
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
}

// Notifier is the global transient notification channel.
type Notifier interface {
	Info(message string)
	Success(message string)
	Error(message string)
}

// Store is a string key-value area. The flow uses two: a durable one that
// outlives the browser session and a session-scoped one.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Navigator moves the user. GoTo is an in-app route change, RedirectTo a
// full navigation to an absolute URL.
type Navigator interface {
	GoTo(path string)
	RedirectTo(url string)
}
