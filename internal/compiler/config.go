package compiler

import (
	"fmt"
	"time"
)

// Config holds the tunable constants of the scoring function.
type Config struct {
	MasteryThreshold float64       // prerequisite mastery needed for readiness
	TopK             int           // maximum plan length
	UrgencyBonus     float64       // added for arrears concepts
	RecencyPenalty   float64       // subtracted when the concept was just served
	RecencyWindow    time.Duration // how recent "just served" is
	MaxRelevance     float64       // cap on the context multiplier
	IntroduceBelow   float64       // mastered below this with no history is "introduce"
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		MasteryThreshold: 0.6,
		TopK:             5,
		UrgencyBonus:     0.25,
		RecencyPenalty:   0.1,
		RecencyWindow:    2 * time.Minute,
		MaxRelevance:     2.0,
		IntroduceBelow:   0.2,
	}
}

// Validate rejects tunings that break the scoring properties.
func (c Config) Validate() error {
	switch {
	case !(c.MasteryThreshold > 0 && c.MasteryThreshold <= 1):
		return fmt.Errorf("mastery threshold must be in (0, 1], got %v", c.MasteryThreshold)
	case c.TopK < 1:
		return fmt.Errorf("top-k must be at least 1, got %d", c.TopK)
	case c.UrgencyBonus <= 0:
		return fmt.Errorf("urgency bonus must be positive, got %v", c.UrgencyBonus)
	case c.RecencyPenalty < 0:
		return fmt.Errorf("recency penalty must not be negative, got %v", c.RecencyPenalty)
	case c.RecencyWindow < 0:
		return fmt.Errorf("recency window must not be negative, got %v", c.RecencyWindow)
	case c.MaxRelevance < 1:
		return fmt.Errorf("max relevance must be at least 1, got %v", c.MaxRelevance)
	}
	return nil
}
