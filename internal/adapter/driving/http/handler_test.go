package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httphandler "github.com/ericfisherdev/tokenlink/internal/adapter/driving/http"
	"github.com/ericfisherdev/tokenlink/internal/application"
	"github.com/ericfisherdev/tokenlink/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockSubmitter struct {
	tokens []string
	err    error
}

func (m *mockSubmitter) SubmitCredential(token string) error {
	if strings.TrimSpace(token) == "" {
		return application.ErrEmptyCredential
	}
	if m.err != nil {
		return m.err
	}
	m.tokens = append(m.tokens, token)
	return nil
}

type mockSource struct {
	session model.Session
}

func (m *mockSource) Snapshot() model.Session { return m.session }

type mockTransitionLog struct {
	items     []model.Transition
	err       error
	lastLimit int
}

func (m *mockTransitionLog) Append(_ context.Context, t model.Transition) error {
	m.items = append(m.items, t)
	return nil
}

func (m *mockTransitionLog) Recent(_ context.Context, limit int) ([]model.Transition, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.items) {
		return m.items[:limit], nil
	}
	return m.items, nil
}

// setupMux wires the API routes and middleware the same way cmd/tokenlink
// does, backed by the given mocks.
func setupMux(submitter *mockSubmitter, source *mockSource, log *mockTransitionLog) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	statusSvc := application.NewStatusService(source, log, application.DefaultPolicy())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(submitter, statusSvc, logger))
	return httphandler.ApplyMiddleware(mux, logger)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

func postJSON(mux http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credential", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHealth(t *testing.T) {
	mux := setupMux(&mockSubmitter{}, &mockSource{session: model.Session{State: model.StateActive}}, &mockTransitionLog{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "active", resp["session"])
	assert.NotEmpty(t, resp["time"])
}

func TestGetSession(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &mockSource{session: model.Session{
		State:      model.StateReconnecting,
		RetryCount: 2,
		CycleID:    "cycle-1",
		Token:      "secret",
		UpdatedAt:  updated,
	}}
	mux := setupMux(&mockSubmitter{}, source, &mockTransitionLog{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret", "token must never be exposed")

	var resp httphandler.SessionResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "reconnecting", resp.State)
	assert.False(t, resp.Connected)
	assert.Equal(t, 2, resp.RetryCount)
	assert.Equal(t, 3, resp.MaxRetries)
	assert.Equal(t, "cycle-1", resp.CycleID)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp.UpdatedAt)
}

func TestListTransitions(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := &mockTransitionLog{items: []model.Transition{
		{ID: 2, From: model.StateActive, To: model.StateReconnecting, RetryCount: 1, Reason: "session disconnected", At: at},
		{ID: 1, From: model.StateConnecting, To: model.StateActive, Reason: "session ready", At: at},
	}}
	mux := setupMux(&mockSubmitter{}, &mockSource{}, log)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLen   int
		wantLimit int
	}{
		{name: "default limit", query: "", wantCode: http.StatusOK, wantLen: 2, wantLimit: 20},
		{name: "explicit limit", query: "?limit=1", wantCode: http.StatusOK, wantLen: 1, wantLimit: 1},
		{name: "capped limit", query: "?limit=1000", wantCode: http.StatusOK, wantLen: 2, wantLimit: 100},
		{name: "invalid limit", query: "?limit=abc", wantCode: http.StatusBadRequest},
		{name: "zero limit", query: "?limit=0", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/session/transitions"+tt.query, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp []httphandler.TransitionResponse
			decodeJSON(t, rec, &resp)
			assert.Len(t, resp, tt.wantLen)
			assert.Equal(t, tt.wantLimit, log.lastLimit)
			assert.Equal(t, "reconnecting", resp[0].To)
			assert.Equal(t, "2026-03-01T12:00:00Z", resp[0].At)
		})
	}
}

func TestListTransitions_StoreError(t *testing.T) {
	mux := setupMux(&mockSubmitter{}, &mockSource{}, &mockTransitionLog{err: errors.New("db closed")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session/transitions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListTransitions_EmptyIsArray(t *testing.T) {
	mux := setupMux(&mockSubmitter{}, &mockSource{}, &mockTransitionLog{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session/transitions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSubmitCredential(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		submitErr   error
		wantCode    int
		wantTokens  []string
		wantMessage string
	}{
		{name: "accepted", body: `{"token":"ghp_abc"}`, wantCode: http.StatusAccepted, wantTokens: []string{"ghp_abc"}},
		{name: "blank token", body: `{"token":"  "}`, wantCode: http.StatusUnprocessableEntity, wantMessage: "token is required"},
		{name: "missing token", body: `{}`, wantCode: http.StatusUnprocessableEntity, wantMessage: "token is required"},
		{name: "malformed json", body: `{"token":`, wantCode: http.StatusBadRequest, wantMessage: "invalid JSON body"},
		{name: "submit failure", body: `{"token":"ghp_abc"}`, submitErr: errors.New("stopped"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &mockSubmitter{err: tt.submitErr}
			mux := setupMux(submitter, &mockSource{}, &mockTransitionLog{})

			rec := postJSON(mux, tt.body)

			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantTokens, submitter.tokens)
			if tt.wantMessage != "" {
				var resp map[string]string
				decodeJSON(t, rec, &resp)
				assert.Equal(t, tt.wantMessage, resp["error"])
			}
		})
	}
}

func TestSubmitCredential_RequiresJSONContentType(t *testing.T) {
	submitter := &mockSubmitter{}
	mux := setupMux(submitter, &mockSource{}, &mockTransitionLog{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/credential", strings.NewReader("token=ghp_abc"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Empty(t, submitter.tokens)
}

func TestRecoveryMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := httphandler.ApplyMiddleware(mux, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "internal server error", resp["error"])
}

func TestMethodNotAllowed(t *testing.T) {
	mux := setupMux(&mockSubmitter{}, &mockSource{}, &mockTransitionLog{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
