package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/learnloop/internal/conceptgraph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachBackend runs fn against the SQLite and in-memory stores.
func forEachBackend(t *testing.T, fn func(t *testing.T, r Repos)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, openTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

func defaultBelief(user, concept string) BeliefRecord {
	return BeliefRecord{
		UserID:      user,
		ConceptID:   concept,
		Unknown:     0.8,
		Partial:     0.15,
		Mastered:    0.05,
		LastUpdated: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{
		"concepts", "concept_prerequisites", "belief_states",
		"interaction_events", "presentations", "compilation_traces", "llm_request_events",
	} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestBeliefCheckConstraint(t *testing.T) {
	s := openTestStore(t)
	_, err := s.DB().Exec(`INSERT INTO belief_states
		(user_id, concept_id, belief_unknown, belief_partial, belief_mastered, interaction_count, last_updated)
		VALUES ('u', 'c', 0.5, 0.5, 0.5, 0, 0)`)
	if err == nil {
		t.Fatal("expected CHECK constraint to reject a belief summing to 1.5")
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := newSequenceCounter(s.DB())
	if err != nil {
		t.Fatalf("new sequence counter: %v", err)
	}

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := sc.Next(ctx, nil)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	for i := 1; i < len(seqs); i++ {
		if seqs[i] != seqs[i-1]+1 {
			t.Errorf("seq[%d] = %d, want %d", i, seqs[i], seqs[i-1]+1)
		}
	}
}

func TestGetOrCreateBelief(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.BeliefRepo()

		first, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", "budgeting"))
		require.NoError(t, err)
		assert.InDelta(t, 0.05, first.Mastered, 1e-9)
		assert.Equal(t, int64(0), first.InteractionCount)

		// A second call with a different init returns the stored row.
		other := defaultBelief("u1", "budgeting")
		other.Mastered, other.Unknown = 0.5, 0.35
		again, err := repo.GetOrCreateBelief(ctx, other)
		require.NoError(t, err)
		assert.InDelta(t, 0.05, again.Mastered, 1e-9)

		list, err := repo.ListBeliefs(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		none, err := repo.ListBeliefs(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestCompareAndSwapBelief(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.BeliefRepo()

		cur, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", "c1"))
		require.NoError(t, err)

		next := cur
		next.Unknown, next.Partial, next.Mastered = 0.56, 0.105, 0.335
		next.InteractionCount = 1
		require.NoError(t, repo.CompareAndSwapBelief(ctx, 0, next))

		// Stale version is rejected.
		stale := next
		stale.InteractionCount = 1
		err = repo.CompareAndSwapBelief(ctx, 0, stale)
		assert.ErrorIs(t, err, ErrVersionConflict)

		got, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", "c1"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.InteractionCount)
		assert.InDelta(t, 0.335, got.Mastered, 1e-9)
	})
}

func TestCommitObservation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.BeliefRepo()

		cur, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", "c1"))
		require.NoError(t, err)

		next := cur
		next.Unknown, next.Partial, next.Mastered = 0.56, 0.105, 0.335
		next.InteractionCount = 1
		ev := InteractionEvent{
			ID:          "ev-1",
			UserID:      "u1",
			CardID:      "card-1",
			ConceptID:   "c1",
			Observation: "correct",
			AnswerIndex: 2,
			IsCorrect:   true,
			Timestamp:   time.Now().UTC(),
		}
		require.NoError(t, repo.CommitObservation(ctx, 0, next, ev))

		// Same event id again: rejected, belief untouched.
		again := next
		again.InteractionCount = 2
		err = repo.CommitObservation(ctx, 1, again, ev)
		assert.ErrorIs(t, err, ErrDuplicateEvent)

		got, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", "c1"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.InteractionCount)

		events, err := r.EventRepo().ListInteractions(ctx, "u1", QueryOpts{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "card-1", events[0].CardID)
		assert.True(t, events[0].IsCorrect)
	})
}

func TestCommitObservation_ConflictWritesNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.BeliefRepo()

		cur, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", "c1"))
		require.NoError(t, err)
		next := cur
		next.InteractionCount = 6

		err = repo.CommitObservation(ctx, 5, next, InteractionEvent{
			ID: "ev-x", UserID: "u1", ConceptID: "c1", Observation: "incorrect", Timestamp: time.Now(),
		})
		require.True(t, errors.Is(err, ErrVersionConflict), "got %v", err)

		events, err := r.EventRepo().ListInteractions(ctx, "u1", QueryOpts{})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestLatestInteractions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.BeliefRepo()
		base := time.Now().UTC().Truncate(time.Millisecond)

		commit := func(concept, id string, correct bool, at time.Time) {
			cur, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", concept))
			require.NoError(t, err)
			next := cur
			next.InteractionCount++
			require.NoError(t, repo.CommitObservation(ctx, cur.InteractionCount, next, InteractionEvent{
				ID: id, UserID: "u1", ConceptID: concept, IsCorrect: correct, Timestamp: at,
			}))
		}
		commit("a", "e1", true, base)
		commit("a", "e2", false, base)
		commit("b", "e3", true, base.Add(time.Second))

		latest, err := r.EventRepo().LatestInteractions(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, "e2", latest["a"].ID)
		assert.False(t, latest["a"].IsCorrect)
		assert.Equal(t, "e3", latest["b"].ID)

		limited, err := r.EventRepo().ListInteractions(ctx, "u1", QueryOpts{Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, "e3", limited[0].ID)
	})
}

func TestLatestInteractions_ConcurrentCommits(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.BeliefRepo()

		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 5; {
					cur, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", "a"))
					if err != nil {
						t.Error(err)
						return
					}
					next := cur
					next.InteractionCount++
					err = repo.CommitObservation(ctx, cur.InteractionCount, next, InteractionEvent{
						ID:        fmt.Sprintf("w%d-%d", w, i),
						UserID:    "u1",
						CardID:    strconv.FormatInt(next.InteractionCount, 10),
						ConceptID: "a",
						Timestamp: time.Now().UTC(),
					})
					if errors.Is(err, ErrVersionConflict) {
						continue
					}
					if err != nil {
						t.Error(err)
						return
					}
					i++
				}
			}()
		}
		wg.Wait()

		final, err := repo.GetOrCreateBelief(ctx, defaultBelief("u1", "a"))
		require.NoError(t, err)
		require.Equal(t, int64(40), final.InteractionCount)

		latest, err := r.EventRepo().LatestInteractions(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "40", latest["a"].CardID, "latest event must be the one that produced the current belief")
	})
}

func TestMemoryLatestInteractions_IgnoresAppendOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	cur, err := m.GetOrCreateBelief(ctx, defaultBelief("u1", "a"))
	require.NoError(t, err)

	for i, correct := range []bool{true, false} {
		next := cur
		next.InteractionCount = int64(i + 1)
		require.NoError(t, m.CommitObservation(ctx, cur.InteractionCount, next, InteractionEvent{
			ID: fmt.Sprintf("e%d", i+1), UserID: "u1", ConceptID: "a", IsCorrect: correct, Timestamp: time.Now(),
		}))
		cur = next
	}
	// Two committers can append in the opposite order of their swaps.
	evs := m.events["u1"]
	evs[0], evs[1] = evs[1], evs[0]

	latest, err := m.LatestInteractions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "e2", latest["a"].ID)
	assert.False(t, latest["a"].IsCorrect)
}

func TestPresentations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		events := r.EventRepo()
		base := time.Now().UTC().Truncate(time.Millisecond)

		empty, err := events.LatestPresentations(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, empty)

		require.NoError(t, events.RecordPresentation(ctx, "u1", "a", "card-1", base))
		require.NoError(t, events.RecordPresentation(ctx, "u1", "a", "card-2", base.Add(time.Minute)))
		require.NoError(t, events.RecordPresentation(ctx, "u1", "b", "card-3", base))
		require.NoError(t, events.RecordPresentation(ctx, "u2", "a", "card-4", base))

		got, err := events.LatestPresentations(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got["a"].Equal(base.Add(time.Minute)), got["a"])
		assert.True(t, got["b"].Equal(base), got["b"])
	})
}

func TestTraces(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.TraceRepo()
		base := time.Now().UTC().Truncate(time.Millisecond)

		for i := 0; i < 3; i++ {
			require.NoError(t, repo.AppendTrace(ctx, TraceRecord{
				ID:              fmt.Sprintf("t%d", i),
				UserID:          "u1",
				SelectedConcept: "budgeting_basics",
				Reason:          "Score: 0.95",
				Candidates:      []string{"budgeting_basics", "emergency_fund"},
				Scores:          map[string]float64{"budgeting_basics": 0.95, "emergency_fund": 0.9},
				Timestamp:       base.Add(time.Duration(i) * time.Second),
			}))
		}

		traces, err := repo.ListTraces(ctx, "u1", 2)
		require.NoError(t, err)
		require.Len(t, traces, 2)
		assert.Equal(t, "t2", traces[0].ID)
		assert.Equal(t, []string{"budgeting_basics", "emergency_fund"}, traces[0].Candidates)
		assert.InDelta(t, 0.9, traces[0].Scores["emergency_fund"], 1e-9)
	})
}

func TestConcepts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.ConceptRepo()

		empty, err := repo.ListConcepts(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		seed := conceptgraph.SeedConcepts()
		require.NoError(t, repo.ReplaceConcepts(ctx, seed))

		got, err := repo.ListConcepts(ctx)
		require.NoError(t, err)
		require.Len(t, got, len(seed))

		g, err := conceptgraph.New(got)
		require.NoError(t, err)
		assert.Equal(t, []string{"emergency_fund", "saving_strategies"}, g.Prerequisites("investment_basics"))

		c, ok := g.Concept("money_basics")
		require.True(t, ok)
		require.NotNil(t, c.Card)
		assert.Equal(t, 3, c.Card.CorrectIndex)

		// Replace drops the previous curriculum.
		require.NoError(t, repo.ReplaceConcepts(ctx, seed[:2]))
		got, err = repo.ListConcepts(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestLLMEvents(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repos) {
		ctx := context.Background()
		repo := r.EventRepo()

		require.NoError(t, repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider: "mock", Model: "m1", Purpose: "card-gen",
			InputTokens: 100, OutputTokens: 50, LatencyMs: 200, Success: true,
			RequestBody: "[user]\nhello",
		}))
		require.NoError(t, repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider: "mock", Model: "m1", Purpose: "card-gen",
			InputTokens: 10, OutputTokens: 5, LatencyMs: 100, Success: false, ErrorMessage: "boom",
		}))

		events, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 10})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.False(t, events[0].Success)
		assert.Equal(t, "boom", events[0].ErrorMessage)

		e, err := repo.GetLLMEvent(ctx, events[1].ID)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "[user]\nhello", e.RequestBody)

		missing, err := repo.GetLLMEvent(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, missing)

		usage, err := repo.LLMUsageByPurpose(ctx)
		require.NoError(t, err)
		require.Len(t, usage, 1)
		assert.Equal(t, 2, usage[0].Calls)
		assert.Equal(t, 110, usage[0].InputTokens)
		assert.Equal(t, int64(150), usage[0].AvgLatencyMs)

		models, err := repo.LLMUsageByModel(ctx)
		require.NoError(t, err)
		require.Len(t, models, 1)
		assert.Equal(t, 55, models[0].OutputTokens)
	})
}
