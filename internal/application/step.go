package application

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

// Defaults for the reconnect policy. The external service rate-limits
// reconnects, so the delay is fixed rather than exponential.
const (
	DefaultMaxRetries     = 3
	DefaultReconnectDelay = 5 * time.Second
)

// Policy holds the retry settings applied by Step.
type Policy struct {
	MaxRetries     int
	ReconnectDelay time.Duration
}

// DefaultPolicy returns a Policy with DefaultMaxRetries and DefaultReconnectDelay.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     DefaultMaxRetries,
		ReconnectDelay: DefaultReconnectDelay,
	}
}

// Event is an input to the session state machine.
type Event interface {
	isEvent()
}

// CredentialLoaded carries the result of reading the credential store.
// CycleID is the id to assign if the event starts a new connect cycle.
type CredentialLoaded struct {
	Token   string
	Err     error
	CycleID string
}

// ConnectResult carries the outcome of a connect attempt issued for Generation.
type ConnectResult struct {
	Generation uint64
	Err        error
}

// SessionReady is emitted by the connection opened for Generation when the
// session is usable.
type SessionReady struct {
	Generation uint64
}

// SessionErrored is emitted by the connection opened for Generation for
// non-fatal errors.
type SessionErrored struct {
	Generation uint64
	Err        error
}

// SessionDropped is emitted by the connection opened for Generation when the
// session is lost.
type SessionDropped struct {
	Generation uint64
}

// ReconnectDue fires when the reconnect delay scheduled for Generation elapses.
type ReconnectDue struct {
	Generation uint64
}

func (CredentialLoaded) isEvent() {}
func (ConnectResult) isEvent()    {}
func (SessionReady) isEvent()     {}
func (SessionErrored) isEvent()   {}
func (SessionDropped) isEvent()   {}
func (ReconnectDue) isEvent()     {}

// Effect is an action Step asks the caller to perform.
type Effect interface {
	isEffect()
}

// Connect asks for a connect attempt tagged with Generation.
type Connect struct {
	Generation uint64
	Token      string
	Attempt    int
}

// ScheduleReconnect asks for a one-shot timer that delivers ReconnectDue.
type ScheduleReconnect struct {
	Generation uint64
	Delay      time.Duration
	Attempt    int
}

// CancelReconnect asks to stop any pending reconnect timer.
type CancelReconnect struct{}

// CloseClient asks to tear down whatever session the client still holds.
type CloseClient struct{}

// ShowCredentialPrompt asks the presentation gate for the credential prompt.
type ShowCredentialPrompt struct{}

// ShowMainSurface asks the presentation gate for the main surface.
type ShowMainSurface struct{}

// Transitioned records a state change.
type Transitioned struct {
	From       model.SessionState
	To         model.SessionState
	RetryCount int
	CycleID    string
	Reason     string
}

// Report asks the caller to log Err at Level.
type Report struct {
	Level slog.Level
	Msg   string
	Err   error
}

func (Connect) isEffect()              {}
func (ScheduleReconnect) isEffect()    {}
func (CancelReconnect) isEffect()      {}
func (CloseClient) isEffect()          {}
func (ShowCredentialPrompt) isEffect() {}
func (ShowMainSurface) isEffect()      {}
func (Transitioned) isEffect()         {}
func (Report) isEffect()               {}

// NewSession returns the initial session value.
func NewSession() model.Session {
	return model.Session{State: model.StateDisconnected}
}

// Step applies ev to s and returns the next session together with the effects
// the caller must execute, in order. Step performs no I/O.
func Step(s model.Session, ev Event, p Policy) (model.Session, []Effect) {
	switch ev := ev.(type) {
	case CredentialLoaded:
		return onCredentialLoaded(s, ev)
	case ConnectResult:
		return onConnectResult(s, ev, p)
	case SessionReady:
		if s.State != model.StateConnecting || ev.Generation != s.Generation || s.DropPending {
			return s, nil
		}
		return activate(s, "session ready")
	case SessionErrored:
		if ev.Generation != s.Generation {
			return s, nil
		}
		return s, []Effect{Report{
			Level: slog.LevelError,
			Msg:   "session error",
			Err:   fmt.Errorf("%w: %w", ErrSessionError, ev.Err),
		}}
	case SessionDropped:
		if ev.Generation != s.Generation {
			return s, nil
		}
		return onDropped(s, p)
	case ReconnectDue:
		return onReconnectDue(s, ev)
	}
	return s, nil
}

func onCredentialLoaded(s model.Session, ev CredentialLoaded) (model.Session, []Effect) {
	token := strings.TrimSpace(ev.Token)

	if s.State != model.StateDisconnected {
		// A cycle is already running. Keep the newer token for the next
		// attempt but never start a second connect.
		if ev.Err == nil && token != "" {
			s.Token = token
		}
		return s, nil
	}

	if ev.Err != nil {
		if errors.Is(ev.Err, driven.ErrCredentialNotFound) {
			return s, []Effect{ShowCredentialPrompt{}}
		}
		return s, []Effect{
			Report{Level: slog.LevelError, Msg: "failed to read credential", Err: ev.Err},
			ShowCredentialPrompt{},
		}
	}
	if token == "" {
		return s, []Effect{ShowCredentialPrompt{}}
	}

	s.Token = token
	s.CycleID = ev.CycleID
	s.Generation++
	moved := moveTo(&s, model.StateConnecting, "credential available")
	return s, append([]Effect{moved}, issueConnect(&s)...)
}

func onConnectResult(s model.Session, ev ConnectResult, p Policy) (model.Session, []Effect) {
	if !s.ConnectPending {
		return s, nil
	}
	s.ConnectPending = false

	if s.State != model.StateConnecting || ev.Generation != s.Generation {
		return onSupersededConnect(s, ev)
	}

	if ev.Err != nil {
		s.DropPending = false
		moved := moveTo(&s, model.StateDisconnected, "connect failed")
		return s, []Effect{
			Report{Level: slog.LevelError, Msg: "connect attempt failed", Err: fmt.Errorf("%w: %w", ErrConnectFailed, ev.Err)},
			moved,
		}
	}
	if s.DropPending {
		s.DropPending = false
		return disconnect(s, p, "session lost before connect returned")
	}
	return activate(s, "connected")
}

// onSupersededConnect handles a result that no longer drives the state: the
// session was activated early by a ready event, or the cycle moved on while
// the call was running.
func onSupersededConnect(s model.Session, ev ConnectResult) (model.Session, []Effect) {
	if s.ConnectDeferred {
		s.ConnectDeferred = false
		// The deferred connect replaces whatever the finished call opened.
		return s, issueConnect(&s)
	}
	if ev.Err == nil && s.State != model.StateActive {
		return s, []Effect{CloseClient{}}
	}
	return s, nil
}

// issueConnect emits a connect for the current generation, or defers it
// while an earlier call is unresolved.
func issueConnect(s *model.Session) []Effect {
	if s.ConnectPending {
		s.ConnectDeferred = true
		return nil
	}
	s.ConnectPending = true
	return []Effect{Connect{Generation: s.Generation, Token: s.Token, Attempt: s.RetryCount}}
}

func activate(s model.Session, reason string) (model.Session, []Effect) {
	s.RetryCount = 0
	moved := moveTo(&s, model.StateActive, reason)
	return s, []Effect{moved, ShowMainSurface{}}
}

func onDropped(s model.Session, p Policy) (model.Session, []Effect) {
	switch s.State {
	case model.StateActive:
		return disconnect(s, p, "session disconnected")
	case model.StateConnecting:
		// The connection died before its connect call returned. The result
		// decides whether this counts as a disconnect or a connect failure.
		s.DropPending = true
		return s, nil
	}
	return s, nil
}

// disconnect counts a lost session and either schedules a reconnect or gives
// up on the cycle.
func disconnect(s model.Session, p Policy, reason string) (model.Session, []Effect) {
	s.RetryCount++
	if s.RetryCount >= p.MaxRetries {
		return exhaust(s, reason)
	}

	s.Generation++
	moved := moveTo(&s, model.StateReconnecting, reason)
	return s, []Effect{moved, ScheduleReconnect{
		Generation: s.Generation,
		Delay:      p.ReconnectDelay,
		Attempt:    s.RetryCount,
	}}
}

func exhaust(s model.Session, reason string) (model.Session, []Effect) {
	// Bumping the generation orphans any pending timer, connect result or
	// client event. ConnectPending stays set until the call returns.
	s.Generation++
	s.DropPending = false
	s.ConnectDeferred = false
	failed := moveTo(&s, model.StateFailed, reason)
	s.RetryCount = 0
	reset := moveTo(&s, model.StateDisconnected, "awaiting new credential")
	return s, []Effect{
		CancelReconnect{},
		CloseClient{},
		failed,
		Report{Level: slog.LevelWarn, Msg: "giving up on session", Err: ErrRetryExhausted},
		reset,
		ShowCredentialPrompt{},
	}
}

func onReconnectDue(s model.Session, ev ReconnectDue) (model.Session, []Effect) {
	if s.State != model.StateReconnecting || ev.Generation != s.Generation {
		return s, nil
	}
	s.Generation++
	moved := moveTo(&s, model.StateConnecting, "reconnect delay elapsed")
	return s, append([]Effect{moved}, issueConnect(&s)...)
}

func moveTo(s *model.Session, to model.SessionState, reason string) Transitioned {
	t := Transitioned{
		From:       s.State,
		To:         to,
		RetryCount: s.RetryCount,
		CycleID:    s.CycleID,
		Reason:     reason,
	}
	s.State = to
	return t
}
