package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"devconnect/logger"
	"devconnect/models"
)

var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the DevConnect REST backend. It keeps the session
// cookie in its jar and remembers who is logged in.
type Client struct {
	baseURL string
	http    *http.Client
	jar     http.CookieJar

	mu   sync.RWMutex
	user *models.User
}

type authResponse struct {
	User models.User `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		jar:     jar,
		http: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Jar holds the session cookie. The websocket dialer shares it.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// CurrentUser implements chat.Identity.
func (c *Client) CurrentUser() (models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return models.User{}, false
	}
	return *c.user, true
}

func (c *Client) setUser(u *models.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

// Register creates an account and logs straight into it.
func (c *Client) Register(ctx context.Context, username, email, password string) (models.User, error) {
	body := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, nil); err != nil {
		return models.User{}, err
	}
	logger.Info("Registered account", "username", username)
	return c.Login(ctx, email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return models.User{}, err
	}
	c.setUser(&resp.User)
	logger.Info("Logged in", "username", resp.User.Username)
	return resp.User, nil
}

// Me restores the identity from an existing session cookie.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.setUser(nil)
		}
		return models.User{}, err
	}
	c.setUser(&resp.User)
	return resp.User, nil
}

// Logout ends the session. The local identity is dropped even when the
// request fails.
func (c *Client) Logout(ctx context.Context) error {
	c.setUser(nil)
	if err := c.do(ctx, http.MethodGet, "/auth/logout", nil, nil); err != nil {
		logger.Warn("Logout request failed", "error", err)
		return err
	}
	return nil
}

// Users implements chat.DirectoryFetcher.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s %s: %w: %s", method, path, ErrUnauthorized, e.Error)
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
