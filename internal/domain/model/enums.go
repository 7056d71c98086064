package model

// SessionState is the lifecycle state of the single managed session.
type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateActive       SessionState = "active"
	StateReconnecting SessionState = "reconnecting"
	// StateFailed is terminal for a retry cycle. The manager leaves it
	// immediately for StateDisconnected and asks for a new credential.
	StateFailed SessionState = "failed"
)

// String returns the state name.
func (s SessionState) String() string {
	return string(s)
}

// SurfaceKind identifies which UI surface the presentation gate shows.
type SurfaceKind string

const (
	SurfaceNone             SurfaceKind = ""
	SurfaceCredentialPrompt SurfaceKind = "credential_prompt"
	SurfaceMain             SurfaceKind = "main"
)
