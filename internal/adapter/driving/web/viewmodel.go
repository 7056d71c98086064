package web

import (
	"time"

	vm "github.com/ericfisherdev/tokenlink/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/tokenlink/internal/application"
	"github.com/ericfisherdev/tokenlink/internal/domain/model"
)

const timeLayout = "2006-01-02 15:04:05"

// toSessionViewModel converts a SessionStatus into the main surface view model.
func toSessionViewModel(status application.SessionStatus) vm.SessionViewModel {
	s := status.Session

	transitions := make([]vm.TransitionViewModel, 0, len(status.Transitions))
	for _, t := range status.Transitions {
		transitions = append(transitions, vm.TransitionViewModel{
			From:       t.From.String(),
			To:         t.To.String(),
			Reason:     t.Reason,
			RetryCount: t.RetryCount,
			At:         formatTime(t.At),
		})
	}

	return vm.SessionViewModel{
		State:       s.State.String(),
		StateClass:  stateClass(s.State),
		Connected:   status.Connected(),
		RetryCount:  s.RetryCount,
		MaxRetries:  status.MaxRetries,
		CycleID:     s.CycleID,
		UpdatedAt:   formatTime(s.UpdatedAt),
		Transitions: transitions,
	}
}

func stateClass(state model.SessionState) string {
	switch state {
	case model.StateActive:
		return "ok"
	case model.StateConnecting, model.StateReconnecting:
		return "pending"
	default:
		return "down"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}
