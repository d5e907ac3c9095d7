package belief

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/learnloop/internal/store"
)

var (
	// ErrConflict means the stored interaction count moved since it was read.
	ErrConflict = errors.New("belief was updated concurrently")

	// ErrDuplicateObservation means the interaction event id was already applied.
	ErrDuplicateObservation = errors.New("observation already recorded")
)

// Snapshot is a point-in-time view of one learner's beliefs keyed by concept.
// Concepts without a stored row read as the default prior.
type Snapshot map[string]State

// Get returns the state for a concept, or the default prior.
func (s Snapshot) Get(conceptID string) State {
	if st, ok := s[conceptID]; ok {
		return st
	}
	return Default()
}

// Mastered returns the mastered probability for a concept.
func (s Snapshot) Mastered(conceptID string) float64 {
	return s.Get(conceptID).Mastered
}

// Store is the validated gateway to persisted beliefs. Every write is checked
// against the probability invariants before it reaches the repository.
type Store struct {
	repo store.BeliefRepo
	now  func() time.Time
}

// NewStore wraps a belief repository.
func NewStore(repo store.BeliefRepo) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Get returns the stored belief, creating the default prior on first access.
func (s *Store) Get(ctx context.Context, userID, conceptID string) (State, error) {
	init := Default()
	init.LastUpdated = s.now().UTC()
	rec, err := s.repo.GetOrCreateBelief(ctx, toRecord(userID, conceptID, init))
	if err != nil {
		return State{}, fmt.Errorf("get belief %s/%s: %w", userID, conceptID, err)
	}
	return fromRecord(rec), nil
}

// CompareAndSet writes next only if the stored interaction count equals
// expected. Returns ErrConflict otherwise.
func (s *Store) CompareAndSet(ctx context.Context, userID, conceptID string, expected int64, next State) error {
	if err := next.Validate(); err != nil {
		return err
	}
	err := s.repo.CompareAndSwapBelief(ctx, expected, toRecord(userID, conceptID, next))
	return mapRepoError(err)
}

// Commit writes next and appends ev atomically. A repeated event id returns
// ErrDuplicateObservation and leaves the belief untouched.
func (s *Store) Commit(ctx context.Context, userID, conceptID string, expected int64, next State, ev store.InteractionEvent) error {
	if err := next.Validate(); err != nil {
		return err
	}
	err := s.repo.CommitObservation(ctx, expected, toRecord(userID, conceptID, next), ev)
	return mapRepoError(err)
}

// ListForUser returns every stored belief for a user.
func (s *Store) ListForUser(ctx context.Context, userID string) (Snapshot, error) {
	recs, err := s.repo.ListBeliefs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list beliefs for %s: %w", userID, err)
	}
	snap := make(Snapshot, len(recs))
	for _, r := range recs {
		snap[r.ConceptID] = fromRecord(r)
	}
	return snap, nil
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrVersionConflict):
		return ErrConflict
	case errors.Is(err, store.ErrDuplicateEvent):
		return ErrDuplicateObservation
	}
	return fmt.Errorf("write belief: %w", err)
}

func toRecord(userID, conceptID string, s State) store.BeliefRecord {
	return store.BeliefRecord{
		UserID:           userID,
		ConceptID:        conceptID,
		Unknown:          s.Unknown,
		Partial:          s.Partial,
		Mastered:         s.Mastered,
		InteractionCount: s.InteractionCount,
		LastUpdated:      s.LastUpdated,
	}
}

func fromRecord(r store.BeliefRecord) State {
	return State{
		Unknown:          r.Unknown,
		Partial:          r.Partial,
		Mastered:         r.Mastered,
		InteractionCount: r.InteractionCount,
		LastUpdated:      r.LastUpdated,
	}
}
