package belief

import (
	"fmt"
	"math"
	"time"
)

// Epsilon is the tolerance on unknown+partial+mastered = 1.
const Epsilon = 0.01

// Level is the coarse mastery label shown to learners.
type Level string

const (
	LevelUnknown  Level = "unknown"
	LevelPartial  Level = "partial"
	LevelMastered Level = "mastered"
)

// State is the three-way probability distribution over a learner's mastery of
// one concept. InteractionCount is monotonic and serves as the version token
// for compare-and-set.
type State struct {
	Unknown          float64   `json:"unknown"`
	Partial          float64   `json:"partial"`
	Mastered         float64   `json:"mastered"`
	InteractionCount int64     `json:"interaction_count"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Default returns the prior for a concept the learner has never touched.
func Default() State {
	return State{Unknown: 0.8, Partial: 0.15, Mastered: 0.05}
}

// Sum returns unknown + partial + mastered.
func (s State) Sum() float64 {
	return s.Unknown + s.Partial + s.Mastered
}

// Validate checks the probability invariants. It never clamps.
func (s State) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"unknown", s.Unknown},
		{"partial", s.Partial},
		{"mastered", s.Mastered},
	} {
		if !(c.v >= 0 && c.v <= 1) {
			return &InvariantViolation{State: s, Reason: fmt.Sprintf("%s = %v outside [0, 1]", c.name, c.v)}
		}
	}
	if sum := s.Sum(); math.Abs(sum-1) > Epsilon {
		return &InvariantViolation{State: s, Reason: fmt.Sprintf("components sum to %.4f", sum)}
	}
	if s.InteractionCount < 0 {
		return &InvariantViolation{State: s, Reason: "negative interaction count"}
	}
	return nil
}

// Normalize rescales the components so they sum to exactly 1.
func (s State) Normalize() (State, error) {
	total := s.Sum()
	if !(total > 0) || math.IsInf(total, 0) {
		return s, &InvariantViolation{State: s, Reason: fmt.Sprintf("cannot normalize total %v", total)}
	}
	s.Unknown /= total
	s.Partial /= total
	s.Mastered /= total
	return s, nil
}

// Level classifies the state: mastered at or above threshold, partial when
// the partial mass dominates, unknown otherwise.
func (s State) Level(threshold float64) Level {
	switch {
	case s.Mastered >= threshold:
		return LevelMastered
	case s.Partial > 0.5:
		return LevelPartial
	default:
		return LevelUnknown
	}
}

// InvariantViolation reports a belief that breaks the probability invariants.
// It indicates a bug and is never silently corrected.
type InvariantViolation struct {
	State  State
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("belief invariant violated: %s (unknown=%.4f partial=%.4f mastered=%.4f)",
		e.Reason, e.State.Unknown, e.State.Partial, e.State.Mastered)
}
