package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"endpoint-prober/internal/clock"
)

func newLoginServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["username_or_email"] != "alice" || body["password"] != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"bad credentials"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "peloton_session_id", Value: "s1", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"u42","session_id":"s1"}`))
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("peloton_session_id")
		if err != nil || c.Value != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("X-Echo-Query", r.URL.RawQuery)
		w.Header().Set("X-Echo-Header", r.Header.Get("X-Test"))
		w.Write([]byte(`{"id":"u42"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLogin_Success(t *testing.T) {
	srv := newLoginServer(t)
	client, identity, err := Login(context.Background(),
		LoginOptions{BaseURL: srv.URL, LoginPath: "/auth/login", Timeout: time.Second},
		Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u42", SessionID: "s1"}, identity)

	resp, err := client.Do(context.Background(), Request{
		Method: "get",
		Path:   "/api/me",
		Header: http.Header{"X-Test": {"yes"}},
		Query:  url.Values{"user_query": {"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user_query=a", resp.Header.Get("X-Echo-Query"))
	assert.Equal(t, "yes", resp.Header.Get("X-Echo-Header"))
	assert.JSONEq(t, `{"id":"u42"}`, string(resp.Body))
}

func TestLogin_Rejected(t *testing.T) {
	srv := newLoginServer(t)
	_, _, err := Login(context.Background(),
		LoginOptions{BaseURL: srv.URL, LoginPath: "/auth/login", Timeout: time.Second},
		Credentials{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "bad credentials")
	assert.NotContains(t, err.Error(), "wrong")
}

func TestLogin_MissingCredentials(t *testing.T) {
	_, _, err := Login(context.Background(), LoginOptions{BaseURL: "http://127.0.0.1:1"}, Credentials{})
	assert.True(t, IsAuthError(err))
}

func TestLogin_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, _, err := Login(context.Background(),
		LoginOptions{BaseURL: srv.URL, LoginPath: "/auth/login", Timeout: time.Second},
		Credentials{Username: "a", Password: "b"})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.NotNil(t, authErr.Err)
}

type countingClient struct{ n int }

func (c *countingClient) Do(context.Context, Request) (*Response, error) {
	c.n++
	return &Response{StatusCode: http.StatusOK}, nil
}

func TestPaced_PausesBetweenCalls(t *testing.T) {
	inner := &countingClient{}
	clk := clock.NewFake(time.Unix(0, 0))
	paced := NewPaced(inner, clk, 2*time.Second)

	for i := 0; i < 3; i++ {
		_, err := paced.Do(context.Background(), Request{Path: "/x"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.n)
	assert.Equal(t, 3, paced.Calls())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clk.Sleeps)
}

func TestPaced_CancelledDuringPause(t *testing.T) {
	inner := &countingClient{}
	paced := NewPaced(inner, clock.NewFake(time.Unix(0, 0)), time.Second)
	_, err := paced.Do(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = paced.Do(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.n)
}
