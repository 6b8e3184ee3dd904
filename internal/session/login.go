package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Credentials identify the account. They must never be logged.
type Credentials struct {
	Username string
	Password string
}

// Identity is what the service tells us about the logged in account
type Identity struct {
	UserID    string
	SessionID string
}

// AuthError reports a failed login. It is fatal for a run.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("login failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("login failed with status %d: %s", e.StatusCode, e.Message)
	default:
		return "login failed: " + e.Message
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an AuthError
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// LoginOptions configures Login
type LoginOptions struct {
	BaseURL   string
	LoginPath string
	Timeout   time.Duration
}

// Login posts the credentials and returns a client carrying the session cookie
func Login(ctx context.Context, opts LoginOptions, creds Credentials) (*HTTPClient, Identity, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, Identity{}, &AuthError{Message: "missing credentials"}
	}

	client, err := NewHTTPClient(opts.BaseURL, opts.Timeout)
	if err != nil {
		return nil, Identity{}, &AuthError{Err: err}
	}

	payload, err := json.Marshal(map[string]string{
		"username_or_email": creds.Username,
		"password":          creds.Password,
	})
	if err != nil {
		return nil, Identity{}, &AuthError{Err: err}
	}

	req, err := client.buildRequest(ctx, Request{Method: http.MethodPost, Path: opts.LoginPath}, bytes.NewReader(payload))
	if err != nil {
		return nil, Identity{}, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.send(req)
	if err != nil {
		return nil, Identity{}, &AuthError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(resp.Body, "message").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, Identity{}, &AuthError{StatusCode: resp.StatusCode, Message: msg}
	}

	body := gjson.ParseBytes(resp.Body)
	identity := Identity{
		UserID:    body.Get("user_id").String(),
		SessionID: body.Get("session_id").String(),
	}
	if identity.UserID == "" {
		identity.UserID = identity.SessionID
	}
	if identity.UserID == "" {
		return nil, Identity{}, &AuthError{StatusCode: resp.StatusCode, Message: "response carries no user_id"}
	}
	return client, identity, nil
}
