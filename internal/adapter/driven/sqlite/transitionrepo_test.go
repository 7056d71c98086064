package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tokenlink/internal/domain/model"
)

func TestTransitionRepo_AppendAndRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransitionRepo(db, 0)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, model.Transition{
		From: model.StateDisconnected, To: model.StateConnecting, CycleID: "c1", Reason: "credential available", At: at,
	}))
	require.NoError(t, repo.Append(ctx, model.Transition{
		From: model.StateConnecting, To: model.StateActive, CycleID: "c1", Reason: "connected", At: at.Add(time.Second),
	}))

	got, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.StateActive, got[0].To)
	assert.Equal(t, model.StateConnecting, got[0].From)
	assert.Equal(t, "connected", got[0].Reason)
	assert.True(t, got[0].At.Equal(at.Add(time.Second)))
	assert.Equal(t, model.StateConnecting, got[1].To)
}

func TestTransitionRepo_RecentEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransitionRepo(db, 0)

	got, err := repo.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransitionRepo_PrunesBeyondKeep(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransitionRepo(db, 3)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, repo.Append(ctx, model.Transition{
			From: model.StateActive, To: model.StateReconnecting, RetryCount: i,
		}))
	}

	assert.Equal(t, 3, countRows(t, db, "session_transitions"))
	got, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 4, got[0].RetryCount)
	assert.Equal(t, 2, got[2].RetryCount)
}
