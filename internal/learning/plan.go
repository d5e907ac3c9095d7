package learning

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/compiler"
	"github.com/abhisek/learnloop/internal/content"
	"github.com/abhisek/learnloop/internal/store"
)

// cardParallelism bounds concurrent card fetches while building a plan.
const cardParallelism = 4

// PlanEntry is a plan item with the card the learner would see for it.
type PlanEntry struct {
	compiler.PlanItem
	Card *content.Card `json:"card,omitempty"`
}

// PlanView is the response shape shared by the plan and what-if endpoints.
type PlanView struct {
	Plan        []PlanEntry             `json:"plan"`
	Beliefs     map[string]belief.State `json:"beliefs"`
	CompilerLog []string                `json:"compiler_log"`
	Fallback    bool                    `json:"fallback"`
	TraceID     string                  `json:"trace_id,omitempty"`
}

// PlanRequest adjusts a plan compile.
type PlanRequest struct {
	Exclude []string
	TopK    int
	Context compiler.Context
}

// Plan compiles the learner's current plan and records its trace.
func (s *Service) Plan(ctx context.Context, userID string, req PlanRequest) (*PlanView, error) {
	res, err := s.compiler.Plan(ctx, userID, compiler.Options{
		Exclude: req.Exclude,
		TopK:    req.TopK,
		Context: req.Context,
	})
	if err != nil {
		return nil, err
	}
	view := s.view(ctx, res)
	if res.TraceRecorded {
		view.TraceID = res.Trace.ID
	}
	return view, nil
}

// ObservationInput is the observation half of a what-if request.
type ObservationInput struct {
	ConceptID   string `json:"concept_id"`
	Observation string `json:"observation"`
}

// SimulateRequest is a what-if plan: client-held beliefs plus one
// hypothetical observation.
type SimulateRequest struct {
	Beliefs     map[string]belief.State `json:"beliefs"`
	Observation ObservationInput        `json:"observation"`
	Context     compiler.Context        `json:"context"`
}

// SimulatePlan applies the observation to the supplied beliefs and compiles
// a plan from the result. Nothing is persisted and no trace is written.
func (s *Service) SimulatePlan(ctx context.Context, userID string, req SimulateRequest) (*PlanView, error) {
	snap := make(belief.Snapshot, len(req.Beliefs))
	for _, id := range sortedIDs(req.Beliefs) {
		st := req.Beliefs[id]
		if !s.graph.Has(id) {
			return nil, &ValidationError{Field: "beliefs", Reason: fmt.Sprintf("unknown concept %q", id)}
		}
		if err := st.Validate(); err != nil {
			return nil, &ValidationError{Field: "beliefs." + id, Reason: "not a probability distribution", Err: err}
		}
		snap[id] = st
	}

	obs, err := belief.ParseObservation(req.Observation.Observation)
	if err != nil {
		return nil, &ValidationError{Field: "observation.observation", Reason: "unsupported value", Err: err}
	}
	if req.Observation.ConceptID == "" {
		return nil, &ValidationError{Field: "observation.concept_id", Reason: "required"}
	}

	next, prev, updated, err := s.engine.Simulate(snap, req.Observation.ConceptID, obs)
	if err != nil {
		return nil, err
	}

	res, err := s.compiler.Plan(ctx, userID, compiler.Options{
		Beliefs: next,
		Context: req.Context,
		DryRun:  true,
	})
	if err != nil {
		return nil, err
	}

	view := s.view(ctx, res)
	view.CompilerLog = append([]string{fmt.Sprintf(
		"Applied observation %s to %s (mastered %.2f -> %.2f)",
		obs, req.Observation.ConceptID, prev.Mastered, updated.Mastered,
	)}, view.CompilerLog...)
	return view, nil
}

// view expands a compile result: every concept gets a belief (defaults for
// untouched ones) and every item gets a card. Card failures leave the card
// empty.
func (s *Service) view(ctx context.Context, res *compiler.Result) *PlanView {
	view := &PlanView{
		Plan:        make([]PlanEntry, len(res.Items)),
		Beliefs:     make(map[string]belief.State, s.graph.Len()),
		CompilerLog: res.Log,
		Fallback:    res.Fallback,
	}
	for _, c := range s.graph.Concepts() {
		view.Beliefs[c.ID] = res.Beliefs.Get(c.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cardParallelism)
	for i, item := range res.Items {
		view.Plan[i].PlanItem = item
		g.Go(func() error {
			concept, _ := s.graph.Concept(item.ConceptID)
			level := res.Beliefs.Get(item.ConceptID).Level(s.threshold)
			card, err := s.cards.CardFor(gctx, concept, level)
			if err != nil {
				s.log.Warn("no card for plan item", "concept_id", item.ConceptID, "error", err)
				return nil
			}
			view.Plan[i].Card = card
			return nil
		})
	}
	_ = g.Wait()
	return view
}

// Traces returns the learner's most recent compilation traces.
func (s *Service) Traces(ctx context.Context, userID string, limit int) ([]store.TraceRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.traces.List(ctx, userID, limit)
}

func sortedIDs(m map[string]belief.State) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
