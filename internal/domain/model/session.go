package model

import "time"

// Session is the logical connection to the external service. It is owned by
// the session manager and copied out as a snapshot for readers.
type Session struct {
	State      SessionState
	RetryCount int

	// Generation identifies the current connect or reconnect cycle. Connect
	// results, client events and reconnect timers carry the generation they
	// were issued for and are dropped when it no longer matches.
	Generation uint64

	// ConnectPending is set while a connect call is unresolved, whatever its
	// generation. ConnectDeferred marks a connect for the current generation
	// that waits for the pending one to resolve.
	ConnectPending  bool
	ConnectDeferred bool

	// DropPending records a disconnect from the current connection that
	// arrived before its connect call returned.
	DropPending bool

	// CycleID is a random id for the current connect cycle, for logs.
	CycleID string

	// Token is the credential value the manager currently holds. It is never
	// exposed through APIs.
	Token string

	UpdatedAt time.Time
}

// Transition records one state change of the session.
type Transition struct {
	ID         int64
	From       SessionState
	To         SessionState
	RetryCount int
	CycleID    string
	Reason     string
	At         time.Time
}
