package compiler

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/logger"
	"github.com/abhisek/learnloop/internal/store"
)

// Factors is the score breakdown for one concept.
type Factors struct {
	Readiness      bool    `json:"readiness"`
	MasteryGap     float64 `json:"mastery_gap"`
	Urgency        float64 `json:"urgency"`
	Relevance      float64 `json:"relevance"`
	RecencyPenalty float64 `json:"recency_penalty"`
	Arrears        bool    `json:"arrears"`
}

// PlanItem is one ranked recommendation.
type PlanItem struct {
	ConceptID        string  `json:"concept_id"`
	ConceptName      string  `json:"concept_name"`
	Difficulty       int     `json:"difficulty"`
	Action           Action  `json:"action"`
	Reason           string  `json:"reason"`
	Priority         float64 `json:"priority"`
	Mastered         float64 `json:"mastered"`
	InteractionCount int64   `json:"interaction_count"`
	Factors          Factors `json:"factors"`
}

// Options adjusts a single compile.
type Options struct {
	// Exclude removes concepts before scoring.
	Exclude []string
	// TopK overrides the configured plan length when positive.
	TopK int
	// Context supplies relevance signals.
	Context Context
	// Beliefs replaces the stored snapshot (what-if plans).
	Beliefs belief.Snapshot
	// DryRun skips the compilation trace.
	DryRun bool
}

// Result is the output of one compile.
type Result struct {
	Items    []PlanItem
	Beliefs  belief.Snapshot
	Log      []string
	Fallback bool
	Trace    store.TraceRecord
	// TraceRecorded is false for dry runs and for failed trace writes.
	TraceRecorded bool
}

// Top returns the first plan item, if any.
func (r *Result) Top() (PlanItem, bool) {
	if len(r.Items) == 0 {
		return PlanItem{}, false
	}
	return r.Items[0], true
}

// Compiler ranks ready concepts for a learner.
type Compiler struct {
	graph   *conceptgraph.Graph
	beliefs *belief.Store
	events  store.EventRepo
	traces  *TraceLogger
	cfg     Config
	log     *logger.Logger
	now     func() time.Time
}

// New creates a compiler. cfg must already be validated.
func New(graph *conceptgraph.Graph, beliefs *belief.Store, events store.EventRepo, traces *TraceLogger, cfg Config, log *logger.Logger) *Compiler {
	if log == nil {
		log = logger.Nop()
	}
	return &Compiler{
		graph:   graph,
		beliefs: beliefs,
		events:  events,
		traces:  traces,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Config returns the scoring configuration.
func (c *Compiler) Config() Config {
	return c.cfg
}

// Graph returns the concept graph the compiler plans over.
func (c *Compiler) Graph() *conceptgraph.Graph {
	return c.graph
}

type candidate struct {
	concept conceptgraph.Concept
	state   belief.State
	factors Factors
	score   float64
}

// Plan ranks the ready concepts for userID. It is recomputed on every call.
// Concepts whose prerequisites are not mastered are never candidates. When
// exclusions leave nothing, the first ready concept in topological order is
// returned anyway and the reason says so.
func (c *Compiler) Plan(ctx context.Context, userID string, opts Options) (*Result, error) {
	res := &Result{Beliefs: opts.Beliefs}
	if c.graph.Len() == 0 {
		res.Log = append(res.Log, "Concept graph is empty; nothing to plan")
		return res, nil
	}

	if res.Beliefs == nil {
		snap, err := c.beliefs.ListForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load beliefs: %w", err)
		}
		res.Beliefs = snap
	}

	lastSeen, err := c.history(ctx, userID)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, id := range opts.Exclude {
		if id = strings.TrimSpace(id); id != "" {
			excluded[id] = true
		}
	}

	now := c.now()
	res.Log = append(res.Log, fmt.Sprintf("Compiling plan for %s over %d concepts (threshold %.2f)",
		userID, c.graph.Len(), c.cfg.MasteryThreshold))
	if len(excluded) > 0 {
		res.Log = append(res.Log, "Excluded: "+strings.Join(sortedKeys(excluded), ", "))
	}
	if !opts.Context.IsNeutral() {
		res.Log = append(res.Log, "Applying learner context to relevance")
	}

	var candidates []candidate
	for _, concept := range c.graph.TopologicalOrder() {
		if excluded[concept.ID] {
			continue
		}
		if !c.graph.IsReady(concept.ID, res.Beliefs.Mastered, c.cfg.MasteryThreshold) {
			blocking := c.graph.BlockingPrerequisites(concept.ID, res.Beliefs.Mastered, c.cfg.MasteryThreshold)
			res.Log = append(res.Log, fmt.Sprintf("Skip %s: prerequisites not mastered (%s)",
				concept.ID, strings.Join(blocking, ", ")))
			continue
		}
		cand := c.score(concept, res.Beliefs.Get(concept.ID), lastSeen, opts.Context, now)
		res.Log = append(res.Log, fmt.Sprintf("Candidate %s: gap=%.3f relevance=%.2f urgency=%.2f recency=-%.2f score=%.3f",
			concept.ID, cand.factors.MasteryGap, cand.factors.Relevance, cand.factors.Urgency,
			cand.factors.RecencyPenalty, cand.score))
		candidates = append(candidates, cand)
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if n := cmp.Compare(b.score, a.score); n != 0 {
			return n
		}
		if n := cmp.Compare(a.concept.Difficulty, b.concept.Difficulty); n != 0 {
			return n
		}
		return cmp.Compare(a.concept.ID, b.concept.ID)
	})

	trace := store.TraceRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Scores:    make(map[string]float64, len(candidates)),
		Timestamp: now.UTC(),
	}
	for _, cand := range candidates {
		trace.Candidates = append(trace.Candidates, cand.concept.ID)
		trace.Scores[cand.concept.ID] = cand.score
	}

	if len(candidates) == 0 {
		fb, ok := c.fallback(res.Beliefs)
		if !ok {
			res.Log = append(res.Log, "No concept is ready; nothing to plan")
			return res, nil
		}
		cand := c.score(fb, res.Beliefs.Get(fb.ID), lastSeen, opts.Context, now)
		item := c.toItem(cand)
		item.Reason = fmt.Sprintf("Fallback: every ready concept was excluded, showing %s from the start of the curriculum", fb.Name)
		res.Items = []PlanItem{item}
		res.Fallback = true
		res.Log = append(res.Log, "No ready candidates after exclusions; fell back to topological order: "+fb.ID)
	} else {
		topK := c.cfg.TopK
		if opts.TopK > 0 {
			topK = opts.TopK
		}
		for i, cand := range candidates {
			if i == topK {
				break
			}
			res.Items = append(res.Items, c.toItem(cand))
		}
	}

	top := res.Items[0]
	trace.SelectedConcept = top.ConceptID
	trace.Reason = top.Reason
	res.Trace = trace
	res.Log = append(res.Log, fmt.Sprintf("Selected %s (%s, priority %.3f)", top.ConceptID, top.Action, top.Priority))

	if !opts.DryRun {
		res.TraceRecorded = c.traces.Record(ctx, trace)
	}
	return res, nil
}

// history is what the compiler knows about a learner's recent activity.
type history struct {
	answers   map[string]store.InteractionEvent
	presented map[string]time.Time
}

// seen returns the last time a concept was answered or had a card served.
func (h history) seen(conceptID string) (time.Time, bool) {
	var last time.Time
	if ev, ok := h.answers[conceptID]; ok {
		last = ev.Timestamp
	}
	if at, ok := h.presented[conceptID]; ok && at.After(last) {
		last = at
	}
	return last, !last.IsZero()
}

func (c *Compiler) history(ctx context.Context, userID string) (history, error) {
	var h history
	if c.events == nil {
		return h, nil
	}
	var err error
	if h.answers, err = c.events.LatestInteractions(ctx, userID); err != nil {
		return h, fmt.Errorf("load interaction history: %w", err)
	}
	if h.presented, err = c.events.LatestPresentations(ctx, userID); err != nil {
		return h, fmt.Errorf("load presentation history: %w", err)
	}
	return h, nil
}

// score computes the factors for a ready concept.
func (c *Compiler) score(concept conceptgraph.Concept, st belief.State, h history, lctx Context, now time.Time) candidate {
	f := Factors{
		Readiness:  true,
		MasteryGap: 1 - st.Mastered,
		Relevance:  relevance(lctx, concept.Tags, c.cfg.MaxRelevance),
	}
	if ev, ok := h.answers[concept.ID]; ok && !ev.IsCorrect && st.Mastered < c.cfg.MasteryThreshold {
		f.Arrears = true
		f.Urgency = c.cfg.UrgencyBonus
	}
	if at, ok := h.seen(concept.ID); ok {
		if age := now.Sub(at); age >= 0 && age < c.cfg.RecencyWindow {
			f.RecencyPenalty = c.cfg.RecencyPenalty
		}
	}
	return candidate{
		concept: concept,
		state:   st,
		factors: f,
		score:   f.MasteryGap*f.Relevance + f.Urgency - f.RecencyPenalty,
	}
}

func (c *Compiler) action(cand candidate) Action {
	switch {
	case cand.state.Mastered < c.cfg.IntroduceBelow && cand.state.InteractionCount == 0:
		return ActionIntroduce
	case cand.factors.Arrears:
		return ActionReview
	default:
		return ActionReinforce
	}
}

func (c *Compiler) toItem(cand candidate) PlanItem {
	action := c.action(cand)
	return PlanItem{
		ConceptID:        cand.concept.ID,
		ConceptName:      cand.concept.Name,
		Difficulty:       cand.concept.Difficulty,
		Action:           action,
		Reason:           c.reason(action, cand),
		Priority:         cand.score,
		Mastered:         cand.state.Mastered,
		InteractionCount: cand.state.InteractionCount,
		Factors:          cand.factors,
	}
}

// fallback returns the first ready concept in topological order, ignoring
// exclusions. Roots are always ready, so it only fails on an empty graph.
func (c *Compiler) fallback(snap belief.Snapshot) (conceptgraph.Concept, bool) {
	for _, concept := range c.graph.TopologicalOrder() {
		if c.graph.IsReady(concept.ID, snap.Mastered, c.cfg.MasteryThreshold) {
			return concept, true
		}
	}
	return conceptgraph.Concept{}, false
}

// reason builds the human-readable justification for a plan item.
func (c *Compiler) reason(action Action, cand candidate) string {
	concept := cand.concept
	var parts []string
	switch action {
	case ActionReview:
		parts = append(parts, "your last answer was incorrect")
	case ActionIntroduce:
		if concept.HasPrerequisites() {
			parts = append(parts, "you've mastered the prerequisites")
		} else {
			parts = append(parts, "this is a foundational concept with no prerequisites")
		}
	case ActionReinforce:
		parts = append(parts, fmt.Sprintf("mastery is at %.0f%%", cand.state.Mastered*100))
	}
	if cand.factors.Relevance > 1 {
		parts = append(parts, "it is relevant to your current situation")
	}
	switch {
	case concept.Difficulty <= 2:
		parts = append(parts, "it is beginner-friendly")
	case concept.Difficulty >= 4:
		parts = append(parts, "it builds on what you already know")
	}
	return fmt.Sprintf("%s %s: %s.", action.Verb(), concept.Name, strings.Join(parts, ", and "))
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
