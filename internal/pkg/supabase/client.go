package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/illegalcall/proflow-login/internal/login"
)

// signInClient is the part of gotrue.Client the login flow needs.
type signInClient interface {
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
}

// AuthService signs users in against Supabase GoTrue instead of the ProFlow
// auth API. The ProFlow role lives in the user's metadata.
type AuthService struct {
	client signInClient
	logger *slog.Logger
}

// extractProjectRef extracts just the project reference ID from a Supabase URL
// From: akrqbuajqkirdekonpzy.supabase.co
// To: akrqbuajqkirdekonpzy
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	ref, _, _ := strings.Cut(url, ".")
	return ref
}

// NewAuthService builds the client and checks the project answers.
func NewAuthService(supabaseURL, supabaseKey string, logger *slog.Logger) (*AuthService, error) {
	if supabaseURL == "" || supabaseKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_KEY must be set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	projectRef := extractProjectRef(supabaseURL)
	logger.Info("Initializing Supabase client", "project", projectRef)

	client := gotrue.New(projectRef, supabaseKey)
	if _, err := client.GetSettings(); err != nil {
		return nil, fmt.Errorf("failed to connect to Supabase: %w", err)
	}
	return &AuthService{client: client, logger: logger}, nil
}

// Login implements login.AuthService. A role mismatch is rejected the same
// way the ProFlow API rejects it.
func (s *AuthService) Login(ctx context.Context, creds login.Credentials) (*login.AuthResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &login.RequestError{Err: err}
	}
	res, err := s.client.SignInWithEmailPassword(creds.Email, creds.Password)
	if err != nil {
		s.logger.Warn("Supabase sign-in failed", "email", login.MaskEmail(creds.Email), "error", err)
		return nil, &login.RequestError{Err: fmt.Errorf("authentication failed: %w", err)}
	}
	if res == nil || res.AccessToken == "" {
		return nil, &login.RequestError{Err: fmt.Errorf("authentication failed: empty session")}
	}

	role := roleFromUser(res.User)
	if creds.Role != "" && role != creds.Role {
		return nil, &login.RequestError{
			Status:  401,
			Message: fmt.Sprintf("User is not a %s", creds.Role),
		}
	}

	return &login.AuthResult{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		User: login.User{
			Email: res.User.Email,
			Role:  role,
		},
	}, nil
}

// roleFromUser reads the role from user metadata, then app metadata.
// Accounts without one are students.
func roleFromUser(u types.User) login.Role {
	for _, meta := range []map[string]interface{}{u.UserMetadata, u.AppMetadata} {
		if v, ok := meta["role"].(string); ok && v != "" {
			return login.Role(v)
		}
	}
	return login.RoleStudent
}
