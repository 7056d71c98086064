// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

// eventBuffer bounds how many operations and client events may queue while
// the loop is busy with a store read or write.
const eventBuffer = 64

// startRequest and submitRequest are handled by the loop itself because they
// need store I/O before Step can run.
type startRequest struct{}

type submitRequest struct {
	token string
}

func (startRequest) isEvent()  {}
func (submitRequest) isEvent() {}

// SessionManager owns the single session and its retry state machine. All
// state changes happen on the goroutine running Run; the public methods only
// enqueue work for it.
type SessionManager struct {
	store       driven.CredentialStore
	client      driven.SessionClient
	gate        driven.PresentationGate
	transitions driven.TransitionLog
	clock       clockwork.Clock
	policy      Policy
	logger      *slog.Logger

	events   chan Event
	done     chan struct{}
	snapshot atomic.Pointer[model.Session]

	// Owned by the Run goroutine.
	session model.Session
	timer   clockwork.Timer
}

// NewSessionManager creates a SessionManager. transitions may be nil to
// disable the transition history.
func NewSessionManager(
	store driven.CredentialStore,
	client driven.SessionClient,
	gate driven.PresentationGate,
	transitions driven.TransitionLog,
	clock clockwork.Clock,
	policy Policy,
	logger *slog.Logger,
) *SessionManager {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = DefaultMaxRetries
	}
	if policy.ReconnectDelay <= 0 {
		policy.ReconnectDelay = DefaultReconnectDelay
	}

	m := &SessionManager{
		store:       store,
		client:      client,
		gate:        gate,
		transitions: transitions,
		clock:       clock,
		policy:      policy,
		logger:      logger,
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
		session:     NewSession(),
	}
	m.publish()
	return m
}

// Policy returns the retry policy in effect.
func (m *SessionManager) Policy() Policy {
	return m.policy
}

// Run processes operations and client events until ctx is canceled. It must
// be called exactly once.
func (m *SessionManager) Run(ctx context.Context) error {
	defer close(m.done)
	defer m.stopTimer()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session manager stopped")
			return nil
		case ev := <-m.events:
			m.handle(ctx, ev)
		}
	}
}

// Start reads the credential store and connects, or asks for a credential
// when none is stored.
func (m *SessionManager) Start() {
	m.post(startRequest{})
}

// SubmitCredential persists token and then runs the same logic as Start.
// A successful connect shows the main surface, which replaces the prompt.
func (m *SessionManager) SubmitCredential(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyCredential
	}
	m.post(submitRequest{token: token})
	return nil
}

// Snapshot returns the most recently published session. The token is blanked.
func (m *SessionManager) Snapshot() model.Session {
	return *m.snapshot.Load()
}

func (m *SessionManager) post(ev Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *SessionManager) handle(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case startRequest:
		m.apply(ctx, m.loadCredential(ctx))
	case submitRequest:
		if err := m.store.Put(ctx, ev.token); err != nil {
			m.logger.Error("failed to persist credential", "error", err)
			return
		}
		m.logger.Info("credential saved")
		m.apply(ctx, m.loadCredential(ctx))
	default:
		m.apply(ctx, ev)
	}
}

func (m *SessionManager) loadCredential(ctx context.Context) CredentialLoaded {
	cred, err := m.store.Get(ctx)
	return CredentialLoaded{
		Token:   cred.Token,
		Err:     err,
		CycleID: uuid.NewString(),
	}
}

func (m *SessionManager) apply(ctx context.Context, ev Event) {
	next, effects := Step(m.session, ev, m.policy)
	if next != m.session {
		next.UpdatedAt = m.clock.Now()
		m.session = next
		m.publish()
	}

	for _, eff := range effects {
		m.execute(ctx, eff)
	}
}

func (m *SessionManager) execute(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case Connect:
		m.connect(ctx, e)
	case ScheduleReconnect:
		m.scheduleReconnect(e)
	case CancelReconnect:
		m.stopTimer()
	case CloseClient:
		if err := m.client.Close(); err != nil {
			m.logger.Warn("failed to close session client", "error", err)
		}
	case ShowCredentialPrompt:
		m.gate.ShowCredentialPrompt()
	case ShowMainSurface:
		m.gate.ShowMainSurface()
	case Transitioned:
		m.record(ctx, e)
	case Report:
		m.logger.Log(ctx, e.Level, e.Msg, "error", e.Err, "cycle_id", m.session.CycleID)
	}
}

func (m *SessionManager) connect(ctx context.Context, e Connect) {
	if e.Attempt > 0 {
		m.logger.Info("attempting to reconnect", "attempt", e.Attempt, "max_retries", m.policy.MaxRetries)
	}
	l := connectionListener{m: m, generation: e.Generation}
	go func() {
		err := m.client.Connect(ctx, e.Token, l)
		m.post(ConnectResult{Generation: e.Generation, Err: err})
	}()
}

// connectionListener forwards the events of one connection to the loop,
// tagged with the generation the connection was opened for.
type connectionListener struct {
	m          *SessionManager
	generation uint64
}

var _ driven.SessionListener = connectionListener{}

func (l connectionListener) OnSessionReady() {
	l.m.post(SessionReady{Generation: l.generation})
}

func (l connectionListener) OnSessionError(err error) {
	l.m.post(SessionErrored{Generation: l.generation, Err: err})
}

func (l connectionListener) OnSessionDisconnected() {
	l.m.post(SessionDropped{Generation: l.generation})
}

func (m *SessionManager) scheduleReconnect(e ScheduleReconnect) {
	m.stopTimer()
	m.logger.Info("reconnect scheduled", "attempt", e.Attempt, "delay", e.Delay)
	m.timer = m.clock.AfterFunc(e.Delay, func() {
		m.post(ReconnectDue{Generation: e.Generation})
	})
}

func (m *SessionManager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *SessionManager) record(ctx context.Context, e Transitioned) {
	m.logger.Info("session state changed",
		"from", e.From,
		"to", e.To,
		"reason", e.Reason,
		"retry_count", e.RetryCount,
		"cycle_id", e.CycleID,
	)
	if m.transitions == nil {
		return
	}

	t := model.Transition{
		From:       e.From,
		To:         e.To,
		RetryCount: e.RetryCount,
		CycleID:    e.CycleID,
		Reason:     e.Reason,
		At:         m.clock.Now(),
	}
	if err := m.transitions.Append(ctx, t); err != nil {
		m.logger.Error("failed to record transition", "error", err)
	}
}

func (m *SessionManager) publish() {
	snap := m.session
	snap.Token = ""
	m.snapshot.Store(&snap)
}
