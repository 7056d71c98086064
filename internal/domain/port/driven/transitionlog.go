package driven

import (
	"context"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
)

// TransitionLog defines the driven port for the session state change history.
type TransitionLog interface {
	// Append stores a transition. The ID field is assigned by the store.
	Append(ctx context.Context, t model.Transition) error
	// Recent returns up to limit transitions, newest first.
	Recent(ctx context.Context, limit int) ([]model.Transition, error)
}
