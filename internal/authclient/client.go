package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/illegalcall/proflow-login/internal/login"
	"github.com/illegalcall/proflow-login/internal/metrics"
)

const loginPath = "/api/auth/login"

var errIncompleteResponse = errors.New("login response has no access_token or user role")

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Client talks to the ProFlow auth API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client for baseURL. A zero timeout leaves the call to
// the transport's own behaviour.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Login posts the credentials and decodes the token response. Any non-2xx
// status becomes a *login.RequestError carrying the server's message, if any.
func (c *Client) Login(ctx context.Context, creds login.Credentials) (*login.AuthResult, error) {
	if c == nil {
		return nil, &login.RequestError{Err: fmt.Errorf("auth client is nil")}
	}

	body, err := json.Marshal(creds)
	if err != nil {
		return nil, &login.RequestError{Err: fmt.Errorf("failed to marshal credentials: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, &login.RequestError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		metrics.ObserveAuthRequest("error", time.Since(start))
		return nil, &login.RequestError{Err: fmt.Errorf("failed to send login request: %w", err)}
	}
	defer resp.Body.Close()
	metrics.ObserveAuthRequest(statusClass(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &login.RequestError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	var res login.AuthResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &login.RequestError{Status: resp.StatusCode, Err: fmt.Errorf("failed to decode login response: %w", err)}
	}
	if res.AccessToken == "" || res.User.Role == "" {
		return nil, &login.RequestError{Status: resp.StatusCode, Err: errIncompleteResponse}
	}
	return &res, nil
}

// errorMessage returns the top-level "message" string of an error body.
func errorMessage(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return ""
	}
	if msg := gjson.GetBytes(raw, "message"); msg.Type == gjson.String {
		return msg.Str
	}
	return ""
}

// statusClass buckets a status code into its class for metrics labels.
func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
