// Package web implements the HTML GUI driving adapter using templ components.
// It is also the presentation gate: the session manager selects the surface
// and the handler serves it.
package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/tokenlink/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/tokenlink/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/tokenlink/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/tokenlink/internal/application"
	"github.com/ericfisherdev/tokenlink/internal/domain/model"
)

const (
	appTitle = "tokenlink"

	// Seconds between automatic reloads while the session is changing.
	refreshPending = 2
	refreshIdle    = 10

	historyLimit = 10
)

// CredentialSubmitter accepts a token typed into the prompt.
type CredentialSubmitter interface {
	SubmitCredential(token string) error
}

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	gate      *Gate
	submitter CredentialSubmitter
	statusSvc *application.StatusService
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	gate *Gate,
	submitter CredentialSubmitter,
	statusSvc *application.StatusService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		gate:      gate,
		submitter: submitter,
		statusSvc: statusSvc,
		logger:    logger,
	}
}

// Index renders whichever surface the gate currently shows.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	switch h.gate.Surface() {
	case model.SurfaceCredentialPrompt:
		h.renderPrompt(w, r, http.StatusOK, "")
	case model.SurfaceMain:
		h.renderSession(w, r)
	default:
		h.render(w, r, http.StatusOK, templates.Layout(appTitle, refreshPending, pages.Starting()))
	}
}

// SubmitCredential handles POST /credential from the prompt form.
func (h *Handler) SubmitCredential(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}

	err := h.submitter.SubmitCredential(r.PostFormValue("token"))
	if errors.Is(err, application.ErrEmptyCredential) {
		h.renderPrompt(w, r, http.StatusUnprocessableEntity, "Enter a token.")
		return
	}
	if err != nil {
		h.logger.Error("failed to submit credential", "error", err)
		h.renderPrompt(w, r, http.StatusInternalServerError, "The token could not be submitted.")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) promptViewModel(w http.ResponseWriter, r *http.Request, errMsg string) vm.PromptViewModel {
	return vm.PromptViewModel{
		CSRFToken: csrfToken(w, r),
		HelpHTML:  promptHelpHTML(),
		Error:     errMsg,
	}
}

func (h *Handler) renderPrompt(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	page := h.promptViewModel(w, r, errMsg)

	refresh := 0
	if state := h.statusSvc.GetSessionStatus().Session.State; isPending(state) {
		page.Notice = "Connecting with the submitted token."
		refresh = refreshPending
	}

	h.render(w, r, status, templates.Layout(appTitle, refresh, pages.CredentialPrompt(page)))
}

func (h *Handler) renderSession(w http.ResponseWriter, r *http.Request) {
	status, err := h.statusSvc.GetSessionStatusWithHistory(r.Context(), historyLimit)
	if err != nil {
		h.logger.Error("failed to load transition history", "error", err)
		status = h.statusSvc.GetSessionStatus()
	}

	page := toSessionViewModel(status)
	refresh := refreshIdle
	switch {
	case isPending(status.Session.State):
		refresh = refreshPending
	case status.Session.State == model.StateDisconnected:
		// A connect attempt failed; offer the form and stop reloading.
		prompt := h.promptViewModel(w, r, "")
		page.Prompt = &prompt
		refresh = 0
	}
	h.render(w, r, http.StatusOK, templates.Layout(appTitle, refresh, pages.Session(page)))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "error", err)
	}
}

func isPending(state model.SessionState) bool {
	return state == model.StateConnecting || state == model.StateReconnecting
}
