package belief

import (
	"fmt"
	"strings"
	"time"
)

// Observation is a graded outcome fed into the update rule.
type Observation string

const (
	Correct   Observation = "correct"
	Incorrect Observation = "incorrect"
)

// ParseObservation accepts the canonical names and the quiz/simulation
// aliases used by clients.
func ParseObservation(s string) (Observation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "correct", "quiz_correct", "simulation_good":
		return Correct, nil
	case "incorrect", "quiz_wrong", "simulation_poor":
		return Incorrect, nil
	}
	return "", fmt.Errorf("unknown observation %q", s)
}

// ObservationFor maps a graded answer to an observation.
func ObservationFor(correct bool) Observation {
	if correct {
		return Correct
	}
	return Incorrect
}

// Params are the learning and decay rates of the update rule.
type Params struct {
	Alpha float64 // fraction of unknown+partial moved to mastered on a correct answer
	Beta  float64 // fraction of mastered+partial moved to unknown on an incorrect answer
}

// DefaultParams returns the default rates.
func DefaultParams() Params {
	return Params{Alpha: 0.3, Beta: 0.15}
}

// Validate checks that both rates lie in (0, 1].
func (p Params) Validate() error {
	if !(p.Alpha > 0 && p.Alpha <= 1) {
		return fmt.Errorf("learning rate must be in (0, 1], got %v", p.Alpha)
	}
	if !(p.Beta > 0 && p.Beta <= 1) {
		return fmt.Errorf("decay rate must be in (0, 1], got %v", p.Beta)
	}
	return nil
}

// Apply returns the state after one observation. A correct answer moves
// Alpha of the unknown and partial mass into mastered; an incorrect one moves
// Beta of the mastered and partial mass into unknown. Donor components shrink
// proportionally, the result is renormalized and validated, and the
// interaction count advances by one.
func Apply(s State, obs Observation, p Params, now time.Time) (State, error) {
	if err := s.Validate(); err != nil {
		return s, err
	}

	next := s
	switch obs {
	case Correct:
		shift := p.Alpha * (s.Unknown + s.Partial)
		next.Mastered = s.Mastered + shift
		next.Unknown = s.Unknown * (1 - p.Alpha)
		next.Partial = s.Partial * (1 - p.Alpha)
	case Incorrect:
		shift := p.Beta * (s.Mastered + s.Partial)
		next.Unknown = s.Unknown + shift
		next.Mastered = s.Mastered * (1 - p.Beta)
		next.Partial = s.Partial * (1 - p.Beta)
	default:
		return s, fmt.Errorf("unknown observation %q", obs)
	}

	next, err := next.Normalize()
	if err != nil {
		return s, err
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	next.InteractionCount = s.InteractionCount + 1
	next.LastUpdated = now
	return next, nil
}
