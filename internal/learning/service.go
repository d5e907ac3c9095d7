// Package learning is the request-level facade over the curriculum engine:
// it selects cards, grades answers, and reports progress and plans.
package learning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/compiler"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/content"
	"github.com/abhisek/learnloop/internal/llm"
	"github.com/abhisek/learnloop/internal/logger"
	"github.com/abhisek/learnloop/internal/observe"
	"github.com/abhisek/learnloop/internal/store"
)

// DefaultUserID is used when a request carries no user identity.
const DefaultUserID = "default_user"

// CardStore serves cards and remembers served ones for grading.
type CardStore interface {
	content.Source
	Lookup(ctx context.Context, cardID string) (*content.Card, error)
	Invalidate(ctx context.Context, conceptID string) error
	Cached(ctx context.Context, conceptID string, level belief.Level) bool
	Warm(ctx context.Context, reqs []content.WarmRequest, parallel int) error
}

// Pre-generation covers the head of the next plan.
const (
	warmAhead    = 3
	warmParallel = 2
)

// Deps are the collaborators of a Service.
type Deps struct {
	Compiler *compiler.Compiler
	Engine   *observe.Engine
	Beliefs  *belief.Store
	Traces   *compiler.TraceLogger
	Cards    CardStore
	// Events records served cards for the recency penalty. Optional.
	Events        store.EventRepo
	PregenTimeout time.Duration
	Log           *logger.Logger
}

// Service implements the learning and curriculum operations.
type Service struct {
	graph         *conceptgraph.Graph
	compiler      *compiler.Compiler
	engine        *observe.Engine
	beliefs       *belief.Store
	traces        *compiler.TraceLogger
	cards         CardStore
	events        store.EventRepo
	threshold     float64
	pregenTimeout time.Duration
	log           *logger.Logger

	background sync.WaitGroup
}

// NewService wires a Service.
func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	timeout := d.PregenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		graph:         d.Compiler.Graph(),
		compiler:      d.Compiler,
		engine:        d.Engine,
		beliefs:       d.Beliefs,
		traces:        d.Traces,
		cards:         d.Cards,
		events:        d.Events,
		threshold:     d.Compiler.Config().MasteryThreshold,
		pregenTimeout: timeout,
		log:           log,
	}
}

// Graph returns the concept graph being served.
func (s *Service) Graph() *conceptgraph.Graph {
	return s.graph
}

// Wait blocks until background card pre-generation has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Explanation tells the learner why a card was chosen.
type Explanation struct {
	MasteryPercent   float64         `json:"mastery_percent"`
	Difficulty       int             `json:"difficulty"`
	ConceptName      string          `json:"concept_name"`
	WhySelected      string          `json:"why_selected"`
	Readiness        float64         `json:"readiness"`
	Urgency          float64         `json:"urgency"`
	Relevance        float64         `json:"relevance"`
	InteractionCount int64           `json:"interaction_count"`
	MasteryLevel     belief.Level    `json:"mastery_level"`
	Action           compiler.Action `json:"action"`
}

// NextCard is the response to a next-card request.
type NextCard struct {
	Card        *content.Card `json:"card"`
	Explanation Explanation   `json:"explanation"`
}

// NextCard compiles the learner's plan and returns a card for the top
// concept. Excluded concepts are skipped unless nothing else remains.
func (s *Service) NextCard(ctx context.Context, userID string, exclude []string, lctx compiler.Context) (*NextCard, error) {
	res, err := s.compiler.Plan(ctx, userID, compiler.Options{Exclude: exclude, Context: lctx})
	if err != nil {
		return nil, err
	}
	top, ok := res.Top()
	if !ok {
		return nil, &NotFoundError{Resource: "concept", ID: "next"}
	}

	concept, _ := s.graph.Concept(top.ConceptID)
	st := res.Beliefs.Get(top.ConceptID)
	level := st.Level(s.threshold)

	card, err := s.cards.CardFor(ctx, concept, level)
	if err != nil {
		return nil, fmt.Errorf("card for %s: %w", concept.ID, err)
	}
	if s.events != nil {
		if err := s.events.RecordPresentation(ctx, userID, concept.ID, card.ID, time.Now().UTC()); err != nil {
			s.log.Warn("failed to record card presentation",
				"user_id", userID, "concept_id", concept.ID, "error", err)
		}
	}

	readiness := 0.0
	if top.Factors.Readiness {
		readiness = 1
	}
	return &NextCard{
		Card: card,
		Explanation: Explanation{
			MasteryPercent:   round(st.Mastered*100, 1),
			Difficulty:       concept.Difficulty,
			ConceptName:      concept.Name,
			WhySelected:      top.Reason,
			Readiness:        readiness,
			Urgency:          round(top.Factors.MasteryGap+top.Factors.Urgency, 3),
			Relevance:        round(top.Factors.Relevance, 3),
			InteractionCount: st.InteractionCount,
			MasteryLevel:     level,
			Action:           top.Action,
		},
	}, nil
}

// SubmitRequest is a learner's answer to a served card.
type SubmitRequest struct {
	CardID           string  `json:"card_id"`
	AnswerIndex      int     `json:"answer_index"`
	TimeSpentSeconds float64 `json:"time_spent_seconds"`
	ClientEventID    string  `json:"client_event_id,omitempty"`
}

// BeliefUpdate reports the mastery change caused by an answer.
type BeliefUpdate struct {
	ConceptID       string       `json:"concept_id"`
	PreviousMastery float64      `json:"previous_mastery"`
	NewMastery      float64      `json:"new_mastery"`
	Change          string       `json:"change"`
	MasteryLevel    belief.Level `json:"mastery_level"`
}

// SubmitResult is the response to a submitted answer.
type SubmitResult struct {
	IsCorrect     bool         `json:"is_correct"`
	Explanation   string       `json:"explanation"`
	BeliefUpdate  BeliefUpdate `json:"belief_update"`
	NextCardReady bool         `json:"next_card_ready"`
}

// SubmitAnswer grades an answer against the served card, updates the
// learner's belief, and starts preparing the next card.
func (s *Service) SubmitAnswer(ctx context.Context, userID string, req SubmitRequest) (*SubmitResult, error) {
	if req.CardID == "" {
		return nil, &ValidationError{Field: "card_id", Reason: "required"}
	}
	if req.AnswerIndex < 0 {
		return nil, &ValidationError{Field: "answer_index", Reason: "must not be negative"}
	}
	if req.TimeSpentSeconds < 0 || math.IsNaN(req.TimeSpentSeconds) {
		return nil, &ValidationError{Field: "time_spent_seconds", Reason: "must not be negative"}
	}

	card, err := s.cards.Lookup(ctx, req.CardID)
	if errors.Is(err, content.ErrCardNotFound) {
		return nil, &NotFoundError{Resource: "card", ID: req.CardID}
	}
	if err != nil {
		return nil, err
	}
	if req.AnswerIndex >= len(card.Quiz.Options) {
		return nil, &ValidationError{
			Field:  "answer_index",
			Reason: fmt.Sprintf("card has %d options", len(card.Quiz.Options)),
		}
	}

	correct := card.IsCorrect(req.AnswerIndex)
	prev, updated, err := s.engine.ApplyObservation(ctx, userID, card.ConceptID, belief.ObservationFor(correct), observe.Meta{
		EventID:          req.ClientEventID,
		CardID:           card.ID,
		AnswerIndex:      req.AnswerIndex,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		return nil, err
	}

	oldLevel, newLevel := prev.Level(s.threshold), updated.Level(s.threshold)
	if oldLevel != newLevel {
		if err := s.cards.Invalidate(ctx, card.ConceptID); err != nil {
			s.log.Warn("failed to invalidate cached cards", "concept_id", card.ConceptID, "error", err)
		} else {
			s.log.Info("mastery level changed, card cache cleared",
				"user_id", userID, "concept_id", card.ConceptID, "from", oldLevel, "to", newLevel)
		}
	}

	explanation := card.Quiz.Explanation
	if !correct {
		explanation = "Not quite. " + explanation
	}

	return &SubmitResult{
		IsCorrect:   correct,
		Explanation: explanation,
		BeliefUpdate: BeliefUpdate{
			ConceptID:       card.ConceptID,
			PreviousMastery: round(prev.Mastered, 2),
			NewMastery:      round(updated.Mastered, 2),
			Change:          formatChange(updated.Mastered - prev.Mastered),
			MasteryLevel:    newLevel,
		},
		NextCardReady: s.pregenerate(ctx, userID),
	}, nil
}

// pregenerate warms cards for the head of the learner's next plan in the
// background. It reports whether preparation was started.
func (s *Service) pregenerate(ctx context.Context, userID string) bool {
	if s.graph.Len() == 0 {
		return false
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pregenTimeout)
		defer cancel()
		bg = llm.WithPurpose(bg, llm.PurposeWarmup)

		res, err := s.compiler.Plan(bg, userID, compiler.Options{DryRun: true, TopK: warmAhead})
		if err != nil {
			s.log.Warn("next card pre-generation failed", "user_id", userID, "error", err)
			return
		}
		reqs := s.warmRequests(bg, res)
		if len(reqs) == 0 {
			return
		}
		if err := s.cards.Warm(bg, reqs, warmParallel); err != nil {
			s.log.Warn("next card pre-generation failed", "user_id", userID, "error", err)
			return
		}
		s.log.Debug("next cards pre-generated", "user_id", userID, "cards", len(reqs))
	}()
	return true
}

// warmRequests lists the plan items whose card is not cached yet.
func (s *Service) warmRequests(ctx context.Context, res *compiler.Result) []content.WarmRequest {
	var reqs []content.WarmRequest
	for _, it := range res.Items {
		level := res.Beliefs.Get(it.ConceptID).Level(s.threshold)
		if s.cards.Cached(ctx, it.ConceptID, level) {
			continue
		}
		concept, ok := s.graph.Concept(it.ConceptID)
		if !ok {
			continue
		}
		reqs = append(reqs, content.WarmRequest{Concept: concept, Level: level})
	}
	return reqs
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// formatChange renders a mastery delta with an explicit sign, e.g. "+0.29".
func formatChange(delta float64) string {
	d := round(delta, 2)
	if d >= 0 {
		return fmt.Sprintf("+%.2f", math.Abs(d))
	}
	return fmt.Sprintf("%.2f", d)
}
