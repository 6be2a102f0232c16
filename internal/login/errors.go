package login

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	MsgMissingFields      = "Please fill in all required fields"
	MsgInvalidCredentials = "Invalid credentials. Please try again."
	MsgLoginSuccessful    = "Login successful!"
	MsgGoogleRedirect     = "Redirecting to Google login..."
)

var (
	// ErrSubmissionInProgress is returned when the form is already waiting
	// on the auth API.
	ErrSubmissionInProgress = errors.New("login: submission already in progress")
	// ErrInvalidRole rejects role values outside student/teacher.
	ErrInvalidRole = errors.New("login: invalid role")
	// ErrUnknownField rejects edits to fields the form does not have.
	ErrUnknownField = errors.New("login: unknown field")
)

// ValidationError is a local, field-scoped failure. It never reaches the
// network layer.
type ValidationError struct {
	Fields ErrorMap
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "login: validation failed: " + strings.Join(names, ", ")
}

// RequestError is any failure of the auth call: transport errors and
// rejected credentials alike. Status is zero when no response arrived.
type RequestError struct {
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("login: auth request failed with status %d: %s", e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("login: auth request failed with status %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("login: auth request failed: %v", e.Err)
	default:
		return "login: auth request failed"
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the user for err: the server-supplied
// message when there is one, the generic fallback otherwise.
func UserMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && strings.TrimSpace(reqErr.Message) != "" {
		return reqErr.Message
	}
	return MsgInvalidCredentials
}
