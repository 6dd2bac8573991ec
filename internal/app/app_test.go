package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"streakTracker/internal/app"
	"streakTracker/internal/config"
	"streakTracker/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, repository string) *app.App {
	t.Helper()

	dir := t.TempDir()
	body := "repository:\n  type: " + repository + "\n  sqlite_path: " + filepath.Join(dir, "streaks.db") +
		"\nsweep:\n  cron_secret: test-secret\n"
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	a, err := app.New(cfg).Init(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)
	return a
}

type client struct {
	t      *testing.T
	h      http.Handler
	userID string
}

func (c *client) call(method, target string, body any) (int, map[string]json.RawMessage) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(middleware.UserIDHeader, c.userID)
	}
	req.RemoteAddr = "192.0.2.1:1234"

	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)

	var out map[string]json.RawMessage
	_ = json.NewDecoder(w.Body).Decode(&out)
	return w.Code, out
}

func field[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestApp_TaskLifecycle(t *testing.T) {
	for _, repository := range []string{"inmemory", "sqlite"} {
		t.Run(repository, func(t *testing.T) {
			a := newTestApp(t, repository)
			c := &client{t: t, h: a.Router()}

			code, body := c.call(http.MethodGet, "/health", nil)
			require.Equal(t, http.StatusOK, code)

			code, body = c.call(http.MethodPost, "/users", map[string]string{"timezone": "Europe/Berlin"})
			require.Equal(t, http.StatusCreated, code)
			c.userID = field[map[string]any](t, body["user"])["user_id"].(string)

			code, body = c.call(http.MethodPost, "/tasks", map[string]any{
				"title":             "Water plants",
				"scheduled_date":    "2024-03-01T08:00:00Z",
				"is_recurring":      true,
				"recurring_pattern": map[string]any{"frequency": "weekly", "interval": 1},
			})
			require.Equal(t, http.StatusCreated, code)
			taskID := field[map[string]any](t, body["task"])["id"].(string)

			code, _ = c.call(http.MethodGet, "/tasks/"+taskID, nil)
			assert.Equal(t, http.StatusOK, code)

			code, body = c.call(http.MethodPost, "/tasks/"+taskID+"/complete", nil)
			require.Equal(t, http.StatusOK, code)
			next := field[map[string]any](t, body["next"])
			assert.Equal(t, "2024-03-08T08:00:00Z", next["scheduled_date"])
			assert.Equal(t, taskID, next["recurring_parent_id"])

			code, body = c.call(http.MethodPost, "/tasks/"+taskID+"/complete", nil)
			assert.Equal(t, http.StatusConflict, code)
			assert.Equal(t, `"ALREADY_COMPLETED"`, string(body["error"]))

			code, body = c.call(http.MethodGet, "/schedule?from=2024-03-01T00:00:00Z&to=2024-03-29T00:00:00Z", nil)
			require.Equal(t, http.StatusOK, code)
			// the stored successor on the 8th plus virtual 15th and 22nd
			assert.Equal(t, "3", string(body["count"]))

			code, _ = c.call(http.MethodPut, "/me/timezone", map[string]string{"timezone": "Asia/Tokyo"})
			assert.Equal(t, http.StatusOK, code)

			code, body = c.call(http.MethodGet, "/me/streak", nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "Asia/Tokyo", field[map[string]any](t, body["streak"])["timezone"])
		})
	}
}

func TestApp_RequiresUser(t *testing.T) {
	a := newTestApp(t, "inmemory")
	c := &client{t: t, h: a.Router()}

	code, _ := c.call(http.MethodGet, "/me/streak", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	c.userID = "00000000-0000-0000-0000-000000000001"
	code, body := c.call(http.MethodGet, "/me/streak", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, `"NOT_FOUND"`, string(body["error"]))
}

func TestApp_CronRoute(t *testing.T) {
	a := newTestApp(t, "inmemory")

	req := httptest.NewRequest(http.MethodPost, "/cron/check-streaks", nil)
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/cron/check-streaks", nil)
	req.Header.Set("Authorization", "Bearer test-secret")
	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
}
