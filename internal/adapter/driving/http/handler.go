// Package httphandler implements the JSON API driving adapter.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/tokenlink/internal/application"
)

const (
	maxTransitionLimit = 100
	maxRequestBody     = 64 << 10
)

// CredentialSubmitter accepts a token for persistence and connection.
type CredentialSubmitter interface {
	SubmitCredential(token string) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	submitter CredentialSubmitter
	statusSvc *application.StatusService
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	submitter CredentialSubmitter,
	statusSvc *application.StatusService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		submitter: submitter,
		statusSvc: statusSvc,
		logger:    logger,
	}
}

// RegisterAPIRoutes registers the /api/v1 routes on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/session", h.GetSession)
	mux.HandleFunc("GET /api/v1/session/transitions", h.ListTransitions)
	mux.HandleFunc("POST /api/v1/credential", h.SubmitCredential)
}

// ApplyMiddleware wraps handler with logging and recovery middleware.
func ApplyMiddleware(handler http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, handler)
	wrapped = loggingMiddleware(logger, wrapped)
	return wrapped
}

// Health returns a simple health check response with the session state.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	status := h.statusSvc.GetSessionStatus()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Session: status.Session.State.String(),
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// GetSession returns the current session state.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.statusSvc.GetSessionStatus()))
}

// ListTransitions returns recent state transitions, newest first. The
// optional limit query parameter is capped at 100.
func (h *Handler) ListTransitions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxTransitionLimit)
	}

	status, err := h.statusSvc.GetSessionStatusWithHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list transitions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]TransitionResponse, 0, len(status.Transitions))
	for _, t := range status.Transitions {
		resp = append(resp, toTransitionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitCredential stores a new token and starts connecting with it. The
// result of the connect attempt is observable through GetSession.
func (h *Handler) SubmitCredential(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return
	}

	var req CredentialRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err = h.submitter.SubmitCredential(req.Token)
	if errors.Is(err, application.ErrEmptyCredential) {
		writeError(w, http.StatusUnprocessableEntity, "token is required")
		return
	}
	if err != nil {
		h.logger.Error("failed to submit credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}
