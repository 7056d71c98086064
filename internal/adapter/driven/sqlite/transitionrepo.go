package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TransitionLog = (*TransitionRepo)(nil)

// TransitionRepo is the SQLite implementation of the TransitionLog port.
// The history is capped at keep rows; older rows are pruned on append.
type TransitionRepo struct {
	db   *DB
	keep int
}

// NewTransitionRepo creates a TransitionRepo that retains the newest keep rows.
// A non-positive keep disables pruning.
func NewTransitionRepo(db *DB, keep int) *TransitionRepo {
	return &TransitionRepo{db: db, keep: keep}
}

// Append stores a transition and prunes rows beyond the retention cap.
func (r *TransitionRepo) Append(ctx context.Context, t model.Transition) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const insertQuery = `
		INSERT INTO session_transitions (from_state, to_state, retry_count, cycle_id, reason, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := tx.ExecContext(ctx, insertQuery,
		string(t.From), string(t.To), t.RetryCount, t.CycleID, t.Reason, at.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert transition %s->%s: %w", t.From, t.To, err)
	}

	if r.keep > 0 {
		const pruneQuery = `
			DELETE FROM session_transitions
			WHERE id NOT IN (SELECT id FROM session_transitions ORDER BY id DESC LIMIT ?)
		`
		if _, err := tx.ExecContext(ctx, pruneQuery, r.keep); err != nil {
			return fmt.Errorf("prune transitions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// Recent returns up to limit transitions, newest first.
func (r *TransitionRepo) Recent(ctx context.Context, limit int) ([]model.Transition, error) {
	const query = `
		SELECT id, from_state, to_state, retry_count, cycle_id, reason, at
		FROM session_transitions
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	transitions := []model.Transition{}
	for rows.Next() {
		var (
			t        model.Transition
			from, to string
			at       string
		)
		if err := rows.Scan(&t.ID, &from, &to, &t.RetryCount, &t.CycleID, &t.Reason, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From = model.SessionState(from)
		t.To = model.SessionState(to)
		t.At, err = parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("parse at for transition %d: %w", t.ID, err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}

	return transitions, nil
}
