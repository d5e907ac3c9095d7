package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/llm"
)

// QuizOptions is the number of answer options a generated card carries.
const QuizOptions = 4

// CardSchema is the structured output requested from the model.
var CardSchema = &llm.Schema{
	Name:        "learning-card",
	Description: "A short personal-finance lesson with one multiple-choice question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"card_title": map[string]any{
				"type":        "string",
				"description": "Short, engaging title for the card",
			},
			"learning_text": map[string]any{
				"type":        "string",
				"description": "2-3 sentences teaching the concept with a concrete example",
			},
			"quiz_question": map[string]any{
				"type":        "string",
				"description": "One question that checks understanding of the text",
			},
			"quiz_options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": QuizOptions,
				"maxItems": QuizOptions,
			},
			"correct_answer_index": map[string]any{
				"type":    "integer",
				"minimum": 0,
				"maximum": QuizOptions - 1,
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "Why the correct option is right",
			},
		},
		"required": []string{
			"card_title", "learning_text", "quiz_question",
			"quiz_options", "correct_answer_index", "explanation",
		},
		"additionalProperties": false,
	},
}

const systemPrompt = `You write personal-finance learning cards for adults with no finance background.
Keep the learning text to 2-3 plain sentences with one concrete example.
Write exactly 4 answer options. Only one option may be correct and the others must be plausible.`

// cardOutput is the raw model response before validation.
type cardOutput struct {
	Title              string   `json:"card_title"`
	LearningText       string   `json:"learning_text"`
	Question           string   `json:"quiz_question"`
	Options            []string `json:"quiz_options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
	Explanation        string   `json:"explanation"`
}

// LLMConfig tunes generation requests.
type LLMConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultLLMConfig returns the generation settings used by the server.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{MaxTokens: 800, Temperature: 0.7}
}

// LLMSource generates cards through an LLM provider.
type LLMSource struct {
	provider llm.Provider
	config   LLMConfig
}

// NewLLMSource creates a source backed by provider.
func NewLLMSource(provider llm.Provider, cfg LLMConfig) *LLMSource {
	return &LLMSource{provider: provider, config: cfg}
}

func (s *LLMSource) Name() string { return "llm" }

func (s *LLMSource) CardFor(ctx context.Context, concept conceptgraph.Concept, level belief.Level) (*Card, error) {
	if llm.PurposeFrom(ctx) == "unknown" {
		ctx = llm.WithPurpose(ctx, llm.PurposeCardGen)
	}

	req := llm.Request{
		System:      systemPrompt,
		Prompt:      buildUserMessage(concept, level),
		Schema:      CardSchema,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate card for %s: %w", concept.ID, err)
	}

	var raw cardOutput
	if err := resp.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse card for %s: %w", concept.ID, err)
	}

	card := &Card{
		ID:        uuid.NewString(),
		ConceptID: concept.ID,
		Title:     strings.TrimSpace(raw.Title),
		Content:   strings.TrimSpace(raw.LearningText),
		Quiz: Quiz{
			Question:           strings.TrimSpace(raw.Question),
			Options:            raw.Options,
			CorrectAnswerIndex: raw.CorrectAnswerIndex,
			Explanation:        strings.TrimSpace(raw.Explanation),
		},
		Source: s.Name(),
		Level:  level,
	}
	if card.Title == "" {
		card.Title = concept.Name
	}

	if verr := Validate(card); verr != nil {
		return nil, verr
	}
	if len(card.Quiz.Options) != QuizOptions {
		return nil, &ValidationError{Source: s.Name(), Message: fmt.Sprintf("need %d options, got %d", QuizOptions, len(card.Quiz.Options))}
	}
	return card, nil
}

// buildUserMessage describes the concept and how far along the learner is.
func buildUserMessage(concept conceptgraph.Concept, level belief.Level) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Concept: %s\n", concept.Name)
	fmt.Fprintf(&b, "Description: %s\n", concept.Description)
	fmt.Fprintf(&b, "Difficulty: %d/5\n", concept.Difficulty)
	if len(concept.Tags) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(concept.Tags, ", "))
	}

	switch level {
	case belief.LevelMastered:
		b.WriteString("The learner already knows this well. Write an advanced card that applies the concept to a tricky situation.")
	case belief.LevelPartial:
		b.WriteString("The learner has seen this before. Write a reinforcement card with a worked example.")
	default:
		b.WriteString("The learner is new to this. Write a beginner introduction.")
	}
	return b.String()
}
