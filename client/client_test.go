package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edlabhq/exameval/core/exam"
	"github.com/edlabhq/exameval/core/user"
)

func writeJSON(t *testing.T, w http.ResponseWriter, code int, body interface{}) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func newAPIStub(t *testing.T, handler http.HandlerFunc) (*Client, *SessionStore) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	return New(srv.URL, store), store
}

func TestClient_Login(t *testing.T) {
	t.Run("persists the session on success", func(t *testing.T) {
		c, store := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/auth/login", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "jane@test.cd", body["email"])

			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    user.User{ID: "u1", Email: "jane@test.cd"},
				"token":   "tok",
			})
		})

		usr, err := c.Login(context.Background(), "jane@test.cd", "pwd")
		require.NoError(t, err)
		assert.Equal(t, "u1", usr.ID)
		assert.True(t, c.Session().Authenticated())
		assert.Equal(t, "tok", store.Restore().Token)
	})

	t.Run("failure keeps the previous session", func(t *testing.T) {
		c, store := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"error":   "invalid credentials",
			})
		})
		require.NoError(t, store.Save(Session{Token: "old"}))

		_, err := c.Login(context.Background(), "jane@test.cd", "wrong")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid credentials", apiErr.Message)
		assert.Equal(t, "old", store.Restore().Token)
	})

	t.Run("field errors are decoded", func(t *testing.T) {
		c, _ := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   map[string]string{"email": "email is a required field"},
			})
		})

		_, err := c.Login(context.Background(), "", "")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "email is a required field", apiErr.Fields["email"])
	})
}

func TestClient_Logout(t *testing.T) {
	c, store := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/auth/logout", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]string{"message": "Logged out"},
		})
	})
	require.NoError(t, store.Save(Session{Token: "tok"}))
	c.session = store.Restore()

	require.NoError(t, c.Logout(context.Background()))
	assert.False(t, c.Session().Authenticated())
	assert.False(t, store.Restore().Authenticated())
}

func TestClient_AssignedTests(t *testing.T) {
	c, _ := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tests", r.URL.Path)
		require.Equal(t, "assigned", r.URL.Query().Get("tab"))
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    []exam.StudentTest{{Test: exam.Test{ID: "t1", Title: "Physics Midterm"}}},
		})
	})

	tests, err := c.AssignedTests(context.Background())
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, "t1", tests[0].ID)
}

func TestClient_WatchAssignedTests(t *testing.T) {
	var polls int32
	c, _ := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		// every other poll fails; failed polls must be skipped, not fatal
		if atomic.AddInt32(&polls, 1)%2 == 0 {
			writeJSON(t, w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"error":   "boom",
			})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    []exam.StudentTest{{Test: exam.Test{ID: "t1"}}},
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan []exam.StudentTest, 8)
	done := make(chan error, 1)
	go func() {
		done <- c.WatchAssignedTests(ctx, 5*time.Millisecond, func(tests []exam.StudentTest) {
			calls <- tests
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case tests := <-calls:
			require.Len(t, tests, 1)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a poll")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestClient_UpdateProfile(t *testing.T) {
	c, store := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/v1/auth/updateprofile", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    user.User{ID: "u1", Email: "jane@test.cd", Institution: "Lycée Boboto"},
		})
	})
	require.NoError(t, store.Save(Session{User: user.User{ID: "u1"}, Token: "tok"}))
	c.session = store.Restore()

	usr, err := c.UpdateProfile(context.Background(), user.UpdateProfile{Institution: "Lycée Boboto"})
	require.NoError(t, err)
	assert.Equal(t, "Lycée Boboto", usr.Institution)
	assert.Equal(t, "Lycée Boboto", store.Restore().User.Institution)
}
