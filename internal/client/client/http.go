package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

const maxResponseBytes = 1 << 20

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewHTTPClient talks to the API rooted at baseURL; each call is bounded
// by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type message struct {
	Message string `json:"message"`
}

func (c *HTTPClient) Register(ctx context.Context, email string, password []byte) (*User, error) {
	body, err := credentialsBody(email, password)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(body)

	var u User
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login stores the token pair for later authenticated calls.
func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) error {
	body, err := credentialsBody(email, password)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(body)

	var tp tokenPair
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &tp); err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken, c.refreshToken = tp.AccessToken, tp.RefreshToken
	c.mu.Unlock()
	return nil
}

// Refresh exchanges the stored refresh token for a new access token.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	var tp tokenPair
	body := map[string]string{"refresh_token": refresh}
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", "", body, &tp); err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = tp.AccessToken
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) Me(ctx context.Context) (string, error) {
	return c.greet(ctx, "/api/auth/me")
}

func (c *HTTPClient) Greeting(ctx context.Context, scope Scope) (string, error) {
	return c.greet(ctx, "/api/users/"+string(scope))
}

func (c *HTTPClient) greet(ctx context.Context, path string) (string, error) {
	var m message
	if err := c.authorized(ctx, http.MethodGet, path, &m); err != nil {
		return "", err
	}
	return m.Message, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var st struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", "", nil, &st); err != nil {
		return err
	}
	if st.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

// Logout forgets the token pair. Tokens are stateless, so nothing is sent.
func (c *HTTPClient) Logout() {
	c.mu.Lock()
	c.accessToken, c.refreshToken = "", ""
	c.mu.Unlock()
}

// authorized sends the stored access token. An expired token is refreshed
// once and the request replayed.
func (c *HTTPClient) authorized(ctx context.Context, method, path string, out any) error {
	c.mu.Lock()
	access, refresh := c.accessToken, c.refreshToken
	c.mu.Unlock()

	err := c.do(ctx, method, path, access, nil, out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.accessTokenExpired() || refresh == "" {
		return err
	}

	if err := c.Refresh(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	access = c.accessToken
	c.mu.Unlock()
	return c.do(ctx, method, path, access, nil, out)
}

// credentialsBody encodes {"email","password"} straight from the password
// bytes. The result is allocated once at its worst-case size, so the only
// copy of the password is the returned slice, which the caller wipes.
func credentialsBody(email string, password []byte) ([]byte, error) {
	quotedEmail, err := json.Marshal(email)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	const hex = "0123456789abcdef"
	buf := make([]byte, 0, len(quotedEmail)+6*len(password)+len(`{"email":,"password":""}`))
	buf = append(buf, `{"email":`...)
	buf = append(buf, quotedEmail...)
	buf = append(buf, `,"password":"`...)
	for _, b := range password {
		switch {
		case b == '"' || b == '\\':
			buf = append(buf, '\\', b)
		case b < 0x20:
			buf = append(buf, '\\', 'u', '0', '0', hex[b>>4], hex[b&0xf])
		default:
			buf = append(buf, b)
		}
	}
	buf = append(buf, '"', '}')
	return buf, nil
}

// do sends in as the JSON body; a []byte is sent as already encoded.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if raw, ok := in.([]byte); ok {
		body = bytes.NewReader(raw)
	} else if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Type == "" {
		return &APIError{Status: status, Message: http.StatusText(status)}
	}
	body.Error.Status = status
	return &body.Error
}
