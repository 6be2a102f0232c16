package models

import "time"

// LoginEvent is one login form action, published for the audit trail.
type LoginEvent struct {
	ID            int       `json:"id,omitempty" db:"id"`
	Type          string    `json:"type" db:"event_type"`
	Email         string    `json:"email" db:"email"` // masked
	RequestedRole string    `json:"requested_role" db:"requested_role"`
	Role          string    `json:"role,omitempty" db:"role"`
	Subject       string    `json:"subject,omitempty" db:"subject"`
	ClientID      string    `json:"client_id" db:"client_id"`
	Message       string    `json:"message,omitempty" db:"message"`
	OccurredAt    time.Time `json:"occurred_at" db:"occurred_at"`
}

const (
	EventLoginSucceeded = "login.succeeded"
	EventLoginFailed    = "login.failed"
	EventLoginRejected  = "login.rejected"
	EventGoogleRedirect = "login.google_redirect"
)
