package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/tokenlink/internal/application"
	"github.com/ericfisherdev/tokenlink/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
	Time    string `json:"time"`
}

// SessionResponse is the JSON representation of the managed session.
type SessionResponse struct {
	State      string `json:"state"`
	Connected  bool   `json:"connected"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	CycleID    string `json:"cycle_id,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// TransitionResponse is the JSON representation of one state transition.
type TransitionResponse struct {
	ID         int64  `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	RetryCount int    `json:"retry_count"`
	CycleID    string `json:"cycle_id,omitempty"`
	Reason     string `json:"reason"`
	At         string `json:"at"`
}

// CredentialRequest is the JSON body for the submit credential endpoint.
type CredentialRequest struct {
	Token string `json:"token"`
}

// AcceptedResponse acknowledges an asynchronous operation.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// toSessionResponse converts a SessionStatus to its JSON representation.
func toSessionResponse(status application.SessionStatus) SessionResponse {
	s := status.Session
	resp := SessionResponse{
		State:      s.State.String(),
		Connected:  status.Connected(),
		RetryCount: s.RetryCount,
		MaxRetries: status.MaxRetries,
		CycleID:    s.CycleID,
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toTransitionResponse converts a domain Transition to its JSON representation.
func toTransitionResponse(t model.Transition) TransitionResponse {
	return TransitionResponse{
		ID:         t.ID,
		From:       t.From.String(),
		To:         t.To.String(),
		RetryCount: t.RetryCount,
		CycleID:    t.CycleID,
		Reason:     t.Reason,
		At:         t.At.UTC().Format(time.RFC3339),
	}
}
