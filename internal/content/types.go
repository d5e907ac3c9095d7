package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/conceptgraph"
)

// ErrCardNotFound is returned when a card id was never served or has expired.
var ErrCardNotFound = errors.New("card not found")

// Quiz is the multiple-choice check attached to a card.
type Quiz struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
	Explanation        string   `json:"explanation"`
}

// Card is one unit of learning content for a concept.
type Card struct {
	ID        string       `json:"id"`
	ConceptID string       `json:"concept_id"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Quiz      Quiz         `json:"quiz"`
	Source    string       `json:"source"`
	Level     belief.Level `json:"mastery_level"`
}

// IsCorrect grades an answer index.
func (c *Card) IsCorrect(answerIndex int) bool {
	return answerIndex == c.Quiz.CorrectAnswerIndex
}

// Source produces cards for concepts. Implementations must be safe for
// concurrent use.
type Source interface {
	// CardFor returns a card for concept pitched at the learner's level.
	CardFor(ctx context.Context, concept conceptgraph.Concept, level belief.Level) (*Card, error)

	// Name identifies the source in logs and card payloads.
	Name() string
}

// ValidationError describes why a card is unusable.
type ValidationError struct {
	Source  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid card from %s: %s", e.Source, e.Message)
}

// Validate checks a card's structure: content present, at least two
// distinct options, and the correct index in range.
func Validate(c *Card) *ValidationError {
	fail := func(msg string) *ValidationError {
		return &ValidationError{Source: c.Source, Message: msg}
	}
	if strings.TrimSpace(c.Content) == "" {
		return fail("empty content")
	}
	if strings.TrimSpace(c.Quiz.Question) == "" {
		return fail("empty quiz question")
	}
	if len(c.Quiz.Options) < 2 {
		return fail(fmt.Sprintf("need at least 2 options, got %d", len(c.Quiz.Options)))
	}
	seen := make(map[string]bool, len(c.Quiz.Options))
	for _, opt := range c.Quiz.Options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if key == "" {
			return fail("empty option")
		}
		if seen[key] {
			return fail(fmt.Sprintf("duplicate option %q", opt))
		}
		seen[key] = true
	}
	if c.Quiz.CorrectAnswerIndex < 0 || c.Quiz.CorrectAnswerIndex >= len(c.Quiz.Options) {
		return fail(fmt.Sprintf("correct index %d out of range", c.Quiz.CorrectAnswerIndex))
	}
	return nil
}
