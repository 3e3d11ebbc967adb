// Package client is a Go API client for the ExamEval backend with a file
// persisted session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/edlabhq/exameval/core/exam"
	"github.com/edlabhq/exameval/core/user"
)

// DefaultWatchInterval is the assigned-test poll period.
const DefaultWatchInterval = 5 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	store   *SessionStore
	session Session
}

// New builds a Client and restores any previously saved session.
func New(baseURL string, store *SessionStore) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
	}
	if store != nil {
		c.session = store.Restore()
	}
	return c
}

func (c *Client) Session() Session { return c.session }

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("api error (status %d): %v", e.StatusCode, e.Fields)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	Error   json.RawMessage `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (string, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return "", errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return "", errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "sending request")
	}
	defer res.Body.Close()

	var env envelope
	if err = json.NewDecoder(res.Body).Decode(&env); err != nil {
		return "", errors.Wrap(err, "decoding response")
	}

	if res.StatusCode >= http.StatusBadRequest || !env.Success {
		apiErr := &APIError{StatusCode: res.StatusCode}
		if err = json.Unmarshal(env.Error, &apiErr.Fields); err != nil {
			_ = json.Unmarshal(env.Error, &apiErr.Message)
		}
		return "", apiErr
	}

	if out != nil {
		if err = json.Unmarshal(env.Data, out); err != nil {
			return "", errors.Wrap(err, "decoding response data")
		}
	}
	return env.Token, nil
}

// saveSession persists the session; only called after a successful exchange
// so a failed call never clobbers the previous session.
func (c *Client) saveSession(usr user.User, token string) error {
	c.session = Session{User: usr, Token: token}
	if c.store != nil {
		return c.store.Save(c.session)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, nu user.NewUser) (user.User, error) {
	var usr user.User
	token, err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", nu, &usr)
	if err != nil {
		return user.User{}, err
	}
	return usr, c.saveSession(usr, token)
}

func (c *Client) Login(ctx context.Context, email, password string) (user.User, error) {
	body := map[string]string{"email": email, "password": password}
	var usr user.User
	token, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &usr)
	if err != nil {
		return user.User{}, err
	}
	return usr, c.saveSession(usr, token)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/v1/auth/logout", nil, nil)
	if err != nil {
		return err
	}
	c.session = Session{}
	if c.store != nil {
		return c.store.Clear()
	}
	return nil
}

func (c *Client) Me(ctx context.Context) (user.User, error) {
	var usr user.User
	_, err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &usr)
	return usr, err
}

func (c *Client) UpdateProfile(ctx context.Context, up user.UpdateProfile) (user.User, error) {
	var usr user.User
	_, err := c.do(ctx, http.MethodPut, "/api/v1/auth/updateprofile", up, &usr)
	if err != nil {
		return user.User{}, err
	}
	c.session.User = usr
	if c.store != nil {
		if err = c.store.Save(c.session); err != nil {
			return usr, err
		}
	}
	return usr, nil
}

// AssignedTests lists the caller's pending assigned tests.
func (c *Client) AssignedTests(ctx context.Context) ([]exam.StudentTest, error) {
	var tests []exam.StudentTest
	_, err := c.do(ctx, http.MethodGet, "/api/v1/tests?tab=assigned", nil, &tests)
	return tests, err
}

// WatchAssignedTests short-polls the pending assigned tests and calls fn with
// each successful result until ctx is cancelled. Poll failures are skipped;
// the next tick tries again.
func (c *Client) WatchAssignedTests(ctx context.Context, interval time.Duration, fn func([]exam.StudentTest)) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if tests, err := c.AssignedTests(ctx); err == nil {
				fn(tests)
			}
		}
	}
}
