// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// PromptViewModel holds the data for the credential prompt page.
type PromptViewModel struct {
	CSRFToken string
	HelpHTML  string // sanitized HTML
	Error     string
	Notice    string
}

// SessionViewModel holds the data for the main surface.
type SessionViewModel struct {
	State       string
	StateClass  string // CSS modifier: ok, pending, down
	Connected   bool
	RetryCount  int
	MaxRetries  int
	CycleID     string
	UpdatedAt   string
	Transitions []TransitionViewModel

	// Prompt is set when the session is down and a new token can be entered
	// without waiting for the credential prompt.
	Prompt *PromptViewModel
}

// TransitionViewModel holds one row of the transition history table.
type TransitionViewModel struct {
	From       string
	To         string
	Reason     string
	RetryCount int
	At         string
}
