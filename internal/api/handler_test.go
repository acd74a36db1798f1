package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HARSHARORA2812/Vichola/internal/auth"
	"github.com/HARSHARORA2812/Vichola/internal/domain"
	"github.com/HARSHARORA2812/Vichola/internal/service"
	"github.com/HARSHARORA2812/Vichola/internal/store"
	"github.com/HARSHARORA2812/Vichola/internal/ws"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	log := zap.NewNop().Sugar()
	svc := service.NewChatService(store.NewMemoryStore(), nil, log)
	validator := auth.NewValidator(testSecret)
	router := ws.NewRouter(ws.NewHub(), validator, nil, log, 25*time.Second, 10*time.Second, 65536)
	return NewServer(svc, validator, router, nil, log)
}

func bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.Sign(testSecret, userID, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, app *fiber.App, method, path, bearer string, body any) (*http.Response, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return resp, env
}

func decodeThread(t *testing.T, env Envelope) domain.Thread {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var thread domain.Thread
	require.NoError(t, json.Unmarshal(raw, &thread))
	return thread
}

func TestMissingTokenUnauthorized(t *testing.T) {
	app := newTestApp(t)
	resp, env := doJSON(t, app, http.MethodGet, "/v1/threads", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "error", env.Status)
}

func TestExpiredTokenUnauthorized(t *testing.T) {
	app := newTestApp(t)
	token, err := auth.Sign(testSecret, "u1", -time.Minute)
	require.NoError(t, err)

	resp, env := doJSON(t, app, http.MethodGet, "/v1/threads", "Bearer "+token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "error", env.Status)
}

func TestGetThreadCreatesAndIsStable(t *testing.T) {
	app := newTestApp(t)
	bearer := bearerFor(t, "u1")

	resp, env := doJSON(t, app, http.MethodGet, "/v1/thread/u2", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", env.Status)

	first := decodeThread(t, env)
	require.NotEmpty(t, first.ID)
	require.Empty(t, first.Messages)

	// same id on repeat, and from the peer's side
	_, env = doJSON(t, app, http.MethodGet, "/v1/thread/u2", bearer, nil)
	require.Equal(t, first.ID, decodeThread(t, env).ID)

	_, env = doJSON(t, app, http.MethodGet, "/v1/thread/u1", bearerFor(t, "u2"), nil)
	require.Equal(t, first.ID, decodeThread(t, env).ID)
}

func TestPostMessageAppends(t *testing.T) {
	app := newTestApp(t)
	bearer := bearerFor(t, "u1")

	resp, env := doJSON(t, app, http.MethodPost, "/v1/thread/u2", bearer,
		fiber.Map{"content": "Hi!", "correlationId": "c-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	thread := decodeThread(t, env)
	require.Len(t, thread.Messages, 1)
	last := thread.Messages[0]
	require.Equal(t, "Hi!", last.Content)
	require.Equal(t, "u1", last.Sender)
	require.Equal(t, "c-1", last.CorrelationID)
	require.NotEmpty(t, last.ID)
}

func TestPostEmptyContentRejected(t *testing.T) {
	app := newTestApp(t)
	bearer := bearerFor(t, "u1")

	for _, content := range []string{"", "   "} {
		resp, env := doJSON(t, app, http.MethodPost, "/v1/thread/u2", bearer,
			fiber.Map{"content": content})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "error", env.Status)
	}

	// the rejected sends must not have created messages
	_, env := doJSON(t, app, http.MethodGet, "/v1/thread/u2", bearer, nil)
	require.Empty(t, decodeThread(t, env).Messages)
}

func TestPostToSelfRejected(t *testing.T) {
	app := newTestApp(t)
	resp, _ := doJSON(t, app, http.MethodPost, "/v1/thread/u1", bearerFor(t, "u1"),
		fiber.Map{"content": "hello me"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListThreadsMostRecentFirst(t *testing.T) {
	app := newTestApp(t)
	bearer := bearerFor(t, "u1")

	_, _ = doJSON(t, app, http.MethodPost, "/v1/thread/older", bearer, fiber.Map{"content": "first"})
	time.Sleep(5 * time.Millisecond)
	_, _ = doJSON(t, app, http.MethodPost, "/v1/thread/newer", bearer, fiber.Map{"content": "second"})

	resp, env := doJSON(t, app, http.MethodGet, "/v1/threads", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out []domain.ThreadSummary
	require.NoError(t, json.Unmarshal(raw, &out))

	require.Len(t, out, 2)
	require.Equal(t, "newer", out[0].Peer)
	require.Equal(t, "older", out[1].Peer)
}
