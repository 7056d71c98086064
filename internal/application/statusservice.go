package application

import (
	"context"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

// defaultTransitionLimit caps how many transitions a status view includes.
const defaultTransitionLimit = 20

// SnapshotSource provides the current session value.
type SnapshotSource interface {
	Snapshot() model.Session
}

// SessionStatus is the read-only view of the session shown on the main
// surface and returned by the HTTP API.
type SessionStatus struct {
	Session     model.Session
	MaxRetries  int
	Transitions []model.Transition
}

// Connected reports whether the session is currently usable.
func (s SessionStatus) Connected() bool {
	return s.Session.State == model.StateActive
}

// StatusService assembles SessionStatus values from the manager snapshot and
// the transition history. It depends only on port interfaces.
type StatusService struct {
	source      SnapshotSource
	transitions driven.TransitionLog
	policy      Policy
}

// NewStatusService creates a StatusService. transitions may be nil, in which
// case statuses carry no history.
func NewStatusService(source SnapshotSource, transitions driven.TransitionLog, policy Policy) *StatusService {
	return &StatusService{
		source:      source,
		transitions: transitions,
		policy:      policy,
	}
}

// GetSessionStatus returns the current session with no transition history.
func (s *StatusService) GetSessionStatus() SessionStatus {
	return SessionStatus{
		Session:    s.source.Snapshot(),
		MaxRetries: s.policy.MaxRetries,
	}
}

// GetSessionStatusWithHistory returns the current session together with up to
// limit recent transitions, newest first. A non-positive limit uses the default.
func (s *StatusService) GetSessionStatusWithHistory(ctx context.Context, limit int) (SessionStatus, error) {
	status := s.GetSessionStatus()
	if s.transitions == nil {
		return status, nil
	}
	if limit <= 0 {
		limit = defaultTransitionLimit
	}

	recent, err := s.transitions.Recent(ctx, limit)
	if err != nil {
		return SessionStatus{}, err
	}
	status.Transitions = recent
	return status, nil
}
