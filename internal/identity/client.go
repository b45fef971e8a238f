package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// APIError is a typed rejection from the identity provider. Message carries
// the provider's human-readable description and is safe to show to the user.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client implements Provider against a GoTrue-style REST API.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates an identity provider client. baseURL is the root of the
// provider's auth API; serviceKey is the service credential used for both
// the apikey header and admin lookups.
func NewClient(baseURL, serviceKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, bearer string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	if bearer == "" {
		bearer = c.serviceKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	return req, nil
}

// do sends the request and decodes a JSON response into out (when non-nil).
// Non-2xx statuses become *APIError carrying the provider's message.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError extracts the provider's error message. GoTrue variants use
// several field names across versions.
func decodeAPIError(resp *http.Response) error {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	message := ""
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		switch {
		case body.Msg != "":
			message = body.Msg
		case body.Message != "":
			message = body.Message
		case body.ErrorDescription != "":
			message = body.ErrorDescription
		case body.Error != "":
			message = body.Error
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/signup", credentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, err
	}
	var session Session
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignIn exchanges credentials for a session via the password grant.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/token?grant_type=password", credentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, err
	}
	var session Session
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session behind the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/logout", nil, accessToken)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// UserFromToken resolves the user behind an access token.
func (c *Client) UserFromToken(ctx context.Context, accessToken string) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/user", nil, accessToken)
	if err != nil {
		return nil, err
	}
	var user User
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// IsEmailRegistered looks the email up through the admin user listing.
func (c *Client) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	path := "/admin/users?per_page=1&query=" + url.QueryEscape(email)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return false, err
	}
	var listing struct {
		Users []User `json:"users"`
	}
	if err := c.do(req, &listing); err != nil {
		return false, err
	}
	return len(listing.Users) > 0, nil
}

// SendRecoveryCode asks the provider to email a one-time recovery code.
func (c *Client) SendRecoveryCode(ctx context.Context, email string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/recover", map[string]string{"email": email}, "")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// VerifyRecoveryCode validates a one-time code for the recovery purpose.
func (c *Client) VerifyRecoveryCode(ctx context.Context, email, code string) (*Session, error) {
	body := map[string]string{
		"type":  "recovery",
		"email": email,
		"token": code,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/verify", body, "")
	if err != nil {
		return nil, err
	}
	var session Session
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdatePassword sets a new password for the recovery-authenticated user.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	req, err := c.newRequest(ctx, http.MethodPut, "/user", map[string]string{"password": newPassword}, accessToken)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
