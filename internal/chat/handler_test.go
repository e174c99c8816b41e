package chat

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/budgetdesk/budgetdesk/internal/shared"
)

func newChatServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis, *fixture) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(client, "budgetdesk_session", "secret", time.Hour, false)
	f := newFixture()

	r := chi.NewRouter()
	r.Use(shared.SessionMiddleware(sessions, logger))
	NewHandler(logger, f.conv).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mr, f
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postChat(t *testing.T, client *http.Client, url, body string) (int, map[string]any) {
	t.Helper()
	res, err := client.Post(url+"/api/chat", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer res.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func say(t *testing.T, client *http.Client, url, msg string) any {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"message": msg})
	require.NoError(t, err)
	status, out := postChat(t, client, url, string(payload))
	require.Equal(t, http.StatusOK, status)
	return out["response"]
}

func TestChatHandlerRejectsMissingMessage(t *testing.T) {
	srv, _, _ := newChatServer(t)
	client := newClient(t)

	for _, body := range []string{`{}`, `{"message":""}`, `{"message":"   "}`, `not json`} {
		status, out := postChat(t, client, srv.URL, body)
		require.Equal(t, http.StatusBadRequest, status, body)
		require.Equal(t, "No message provided", out["error"], body)
	}
}

func TestChatHandlerPersistsSessionState(t *testing.T) {
	srv, mr, _ := newChatServer(t)
	client := newClient(t)

	require.Equal(t, AuthPromptReply, say(t, client, srv.URL, "hello"))
	require.Equal(t, AuthSuccessReply, say(t, client, srv.URL, testPassphrase))
	require.Equal(t, "Now operating as Alice Smith", say(t, client, srv.URL, "as alice"))
	require.Equal(t, NoBudgetInfoReply, say(t, client, srv.URL, "show me my budget"))
	require.NotEmpty(t, mr.Keys())

	// A second client starts unauthenticated.
	other := newClient(t)
	require.Equal(t, AuthPromptReply, say(t, other, srv.URL, "show me my budget"))
}

func TestChatHandlerExpiredSessionStartsOver(t *testing.T) {
	srv, mr, _ := newChatServer(t)
	client := newClient(t)

	require.Equal(t, AuthSuccessReply, say(t, client, srv.URL, testPassphrase))
	mr.FastForward(2 * time.Hour)
	require.Equal(t, AuthPromptReply, say(t, client, srv.URL, "reconcile aop 1"))
}

func TestChatHandlerReturnsChartPayload(t *testing.T) {
	srv, _, f := newChatServer(t)
	f.budgets.chart.Labels = []string{"Alice Smith"}
	client := newClient(t)

	require.Equal(t, AuthSuccessReply, say(t, client, srv.URL, testPassphrase))
	resp, ok := say(t, client, srv.URL, "chart budgets for aop 1").(map[string]any)
	require.True(t, ok)
	require.Equal(t, "chart", resp["type"])
	require.Equal(t, "bar", resp["chartType"])
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []any{"Alice Smith"}, data["labels"])
}
