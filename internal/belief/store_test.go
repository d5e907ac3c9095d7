package belief

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/learnloop/internal/store"
)

func TestStore_GetCreatesDefault(t *testing.T) {
	s := NewStore(store.NewMemory())
	ctx := context.Background()

	snap, err := s.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.Equal(t, 0.05, snap.Mastered("anything"))

	st, err := s.Get(ctx, "u1", "budgeting_basics")
	require.NoError(t, err)
	assert.Equal(t, 0.8, st.Unknown)
	assert.Equal(t, int64(0), st.InteractionCount)

	snap, err = s.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestStore_CompareAndSet(t *testing.T) {
	s := NewStore(store.NewMemory())
	ctx := context.Background()

	cur, err := s.Get(ctx, "u1", "c1")
	require.NoError(t, err)

	next, err := Apply(cur, Correct, DefaultParams(), time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CompareAndSet(ctx, "u1", "c1", cur.InteractionCount, next))

	err = s.CompareAndSet(ctx, "u1", "c1", cur.InteractionCount, next)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStore_RejectsInvalidWrite(t *testing.T) {
	s := NewStore(store.NewMemory())
	ctx := context.Background()

	_, err := s.Get(ctx, "u1", "c1")
	require.NoError(t, err)

	bad := State{Unknown: 0.5, Partial: 0.5, Mastered: 0.5, InteractionCount: 1}
	err = s.CompareAndSet(ctx, "u1", "c1", 0, bad)
	var iv *InvariantViolation
	require.True(t, errors.As(err, &iv), "got %v", err)

	st, err := s.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 0.05, st.Mastered)
}

func TestStore_CommitDuplicate(t *testing.T) {
	s := NewStore(store.NewMemory())
	ctx := context.Background()

	cur, err := s.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	next, err := Apply(cur, Correct, DefaultParams(), time.Now())
	require.NoError(t, err)

	ev := store.InteractionEvent{ID: "e1", UserID: "u1", ConceptID: "c1", IsCorrect: true, Timestamp: time.Now()}
	require.NoError(t, s.Commit(ctx, "u1", "c1", 0, next, ev))

	again, err := Apply(next, Correct, DefaultParams(), time.Now())
	require.NoError(t, err)
	err = s.Commit(ctx, "u1", "c1", next.InteractionCount, again, ev)
	assert.ErrorIs(t, err, ErrDuplicateObservation)
}
