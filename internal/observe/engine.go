package observe

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/logger"
	"github.com/abhisek/learnloop/internal/store"
)

// maxAttempts bounds the read-compute-commit loop: one try plus one retry.
const maxAttempts = 2

// Meta describes the interaction that produced an observation.
type Meta struct {
	// EventID is the idempotency key. Empty means derive one from the card
	// and the belief version the answer was computed against.
	EventID          string
	CardID           string
	AnswerIndex      int
	TimeSpentSeconds float64
}

// Engine applies observations to persisted beliefs.
type Engine struct {
	graph   *conceptgraph.Graph
	beliefs *belief.Store
	params  belief.Params
	log     *logger.Logger
	now     func() time.Time
}

// NewEngine creates an update engine.
func NewEngine(graph *conceptgraph.Graph, beliefs *belief.Store, params belief.Params, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{graph: graph, beliefs: beliefs, params: params, log: log, now: time.Now}
}

// Params returns the update rates in use.
func (e *Engine) Params() belief.Params {
	return e.params
}

// ApplyObservation updates the learner's belief about conceptID and records
// the interaction event in the same atomic write. It returns the belief
// before and after the update.
//
// A version conflict is retried once against a fresh read; a second conflict
// yields *ConcurrentUpdateError. A repeated Meta.EventID yields
// belief.ErrDuplicateObservation and changes nothing. Without an EventID two
// racing submissions of the same card against the same version share a
// derived id, so only one of them is applied.
func (e *Engine) ApplyObservation(ctx context.Context, userID, conceptID string, obs belief.Observation, meta Meta) (prev, updated belief.State, err error) {
	if !e.graph.Has(conceptID) {
		return prev, updated, &UnknownConceptError{ConceptID: conceptID}
	}

	eventID := meta.EventID
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prev, err = e.beliefs.Get(ctx, userID, conceptID)
		if err != nil {
			return prev, updated, err
		}
		if eventID == "" {
			eventID = derivedEventID(userID, conceptID, meta.CardID, prev.InteractionCount)
		}

		now := e.now().UTC()
		updated, err = belief.Apply(prev, obs, e.params, now)
		if err != nil {
			e.log.Error("belief update produced invalid state",
				"user_id", userID, "concept_id", conceptID, "error", err)
			return prev, updated, err
		}

		if err = ctx.Err(); err != nil {
			return prev, updated, err
		}

		ev := store.InteractionEvent{
			ID:               eventID,
			UserID:           userID,
			CardID:           meta.CardID,
			ConceptID:        conceptID,
			Observation:      string(obs),
			AnswerIndex:      meta.AnswerIndex,
			IsCorrect:        obs == belief.Correct,
			TimeSpentSeconds: meta.TimeSpentSeconds,
			Timestamp:        now,
		}
		err = e.beliefs.Commit(ctx, userID, conceptID, prev.InteractionCount, updated, ev)
		if err == nil {
			e.log.Debug("belief updated",
				"user_id", userID,
				"concept_id", conceptID,
				"observation", obs,
				"mastered_before", prev.Mastered,
				"mastered_after", updated.Mastered,
				"interaction_count", updated.InteractionCount,
			)
			return prev, updated, nil
		}
		if !errors.Is(err, belief.ErrConflict) {
			return prev, updated, err
		}
		e.log.Debug("belief version conflict",
			"user_id", userID, "concept_id", conceptID, "attempt", attempt)
	}
	return prev, updated, &ConcurrentUpdateError{UserID: userID, ConceptID: conceptID}
}

// derivedEventID names an answer by what it answered: the card and the belief
// version it was read at. The id is kept across the conflict retry.
func derivedEventID(userID, conceptID, cardID string, version int64) string {
	name := strings.Join([]string{userID, conceptID, cardID, strconv.FormatInt(version, 10)}, "\x00")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Simulate applies an observation to a supplied snapshot without touching
// storage. It returns the new snapshot and the before/after state.
func (e *Engine) Simulate(snap belief.Snapshot, conceptID string, obs belief.Observation) (belief.Snapshot, belief.State, belief.State, error) {
	if !e.graph.Has(conceptID) {
		return snap, belief.State{}, belief.State{}, &UnknownConceptError{ConceptID: conceptID}
	}
	prev := snap.Get(conceptID)
	updated, err := belief.Apply(prev, obs, e.params, e.now().UTC())
	if err != nil {
		return snap, prev, prev, err
	}
	out := make(belief.Snapshot, len(snap)+1)
	for id, st := range snap {
		out[id] = st
	}
	out[conceptID] = updated
	return out, prev, updated, nil
}
