package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abhisek/learnloop/internal/conceptgraph"
)

type beliefKey struct {
	user    string
	concept string
}

// memEvent is an interaction stamped with the belief version it produced.
// Append order can differ from commit order; the version cannot.
type memEvent struct {
	InteractionEvent
	version int64
}

// MemoryStore is an in-process backend. Belief rows live in per-key atomic
// slots so compare-and-set never takes a store-wide lock.
type MemoryStore struct {
	slots sync.Map // beliefKey -> *atomic.Pointer[BeliefRecord]

	mu        sync.RWMutex
	events    map[string][]memEvent // user -> events in append order
	eventIDs  map[string]struct{}
	presented map[beliefKey]time.Time
	traces    map[string][]TraceRecord
	llm       []LLMEvent
	concepts  []conceptgraph.Concept
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string][]memEvent),
		eventIDs:  make(map[string]struct{}),
		presented: make(map[beliefKey]time.Time),
		traces:    make(map[string][]TraceRecord),
	}
}

func (m *MemoryStore) BeliefRepo() BeliefRepo   { return m }
func (m *MemoryStore) EventRepo() EventRepo     { return m }
func (m *MemoryStore) TraceRepo() TraceRepo     { return m }
func (m *MemoryStore) ConceptRepo() ConceptRepo { return m }
func (m *MemoryStore) Close() error             { return nil }

func (m *MemoryStore) slot(user, concept string) *atomic.Pointer[BeliefRecord] {
	key := beliefKey{user, concept}
	if p, ok := m.slots.Load(key); ok {
		return p.(*atomic.Pointer[BeliefRecord])
	}
	p, _ := m.slots.LoadOrStore(key, &atomic.Pointer[BeliefRecord]{})
	return p.(*atomic.Pointer[BeliefRecord])
}

func (m *MemoryStore) GetOrCreateBelief(ctx context.Context, init BeliefRecord) (BeliefRecord, error) {
	if err := ctx.Err(); err != nil {
		return BeliefRecord{}, err
	}
	s := m.slot(init.UserID, init.ConceptID)
	rec := init
	s.CompareAndSwap(nil, &rec)
	return *s.Load(), nil
}

func (m *MemoryStore) ListBeliefs(ctx context.Context, userID string) ([]BeliefRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []BeliefRecord
	m.slots.Range(func(k, v any) bool {
		if k.(beliefKey).user != userID {
			return true
		}
		if rec := v.(*atomic.Pointer[BeliefRecord]).Load(); rec != nil {
			out = append(out, *rec)
		}
		return true
	})
	slices.SortFunc(out, func(a, b BeliefRecord) int { return cmp.Compare(a.ConceptID, b.ConceptID) })
	return out, nil
}

func (m *MemoryStore) CompareAndSwapBelief(ctx context.Context, expected int64, next BeliefRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := m.slot(next.UserID, next.ConceptID)
	cur := s.Load()
	if cur == nil || cur.InteractionCount != expected {
		return ErrVersionConflict
	}
	rec := next
	if !s.CompareAndSwap(cur, &rec) {
		return ErrVersionConflict
	}
	return nil
}

func (m *MemoryStore) CommitObservation(ctx context.Context, expected int64, next BeliefRecord, ev InteractionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Reserve the event id first so a concurrent duplicate cannot slip in
	// between the swap and the append.
	m.mu.Lock()
	if _, dup := m.eventIDs[ev.ID]; dup {
		m.mu.Unlock()
		return ErrDuplicateEvent
	}
	m.eventIDs[ev.ID] = struct{}{}
	m.mu.Unlock()

	if err := m.CompareAndSwapBelief(ctx, expected, next); err != nil {
		m.mu.Lock()
		delete(m.eventIDs, ev.ID)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.events[ev.UserID] = append(m.events[ev.UserID], memEvent{InteractionEvent: ev, version: next.InteractionCount})
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) LatestInteractions(ctx context.Context, userID string) (map[string]InteractionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := make(map[string]memEvent)
	for _, ev := range m.events[userID] {
		if cur, ok := latest[ev.ConceptID]; !ok || ev.version > cur.version {
			latest[ev.ConceptID] = ev
		}
	}
	out := make(map[string]InteractionEvent, len(latest))
	for id, ev := range latest {
		out[id] = ev.InteractionEvent
	}
	return out, nil
}

func (m *MemoryStore) ListInteractions(ctx context.Context, userID string, opts QueryOpts) ([]InteractionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.events[userID]
	var out []InteractionEvent
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if !inRange(ev.Timestamp, opts) {
			continue
		}
		out = append(out, ev.InteractionEvent)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordPresentation(ctx context.Context, userID, conceptID, cardID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presented[beliefKey{userID, conceptID}] = at
	return nil
}

func (m *MemoryStore) LatestPresentations(ctx context.Context, userID string) (map[string]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]time.Time)
	for k, at := range m.presented {
		if k.user == userID {
			out[k.concept] = at
		}
	}
	return out, nil
}

func inRange(ts time.Time, opts QueryOpts) bool {
	if !opts.From.IsZero() && ts.Before(opts.From) {
		return false
	}
	if !opts.To.IsZero() && ts.After(opts.To) {
		return false
	}
	return true
}

func (m *MemoryStore) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llm = append(m.llm, LLMEvent{
		ID:                  int64(len(m.llm) + 1),
		Timestamp:           time.Now().UTC(),
		LLMRequestEventData: data,
	})
	return nil
}

func (m *MemoryStore) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []LLMEvent
	for i := len(m.llm) - 1; i >= 0; i-- {
		e := m.llm[i]
		if (opts.After > 0 && e.ID <= opts.After) || (opts.Before > 0 && e.ID >= opts.Before) {
			continue
		}
		if !inRange(e.Timestamp, opts) {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 1 || id > int64(len(m.llm)) {
		return nil, nil
	}
	e := m.llm[id-1]
	return &e, nil
}

func (m *MemoryStore) LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byPurpose := make(map[string]*LLMUsageStats)
	totalLatency := make(map[string]int64)
	for _, e := range m.llm {
		st, ok := byPurpose[e.Purpose]
		if !ok {
			st = &LLMUsageStats{Purpose: e.Purpose}
			byPurpose[e.Purpose] = st
		}
		st.Calls++
		st.InputTokens += e.InputTokens
		st.OutputTokens += e.OutputTokens
		totalLatency[e.Purpose] += e.LatencyMs
	}
	var out []LLMUsageStats
	for _, p := range slices.Sorted(maps.Keys(byPurpose)) {
		st := *byPurpose[p]
		st.AvgLatencyMs = totalLatency[p] / int64(st.Calls)
		out = append(out, st)
	}
	return out, nil
}

func (m *MemoryStore) LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byModel := make(map[string]*LLMModelUsage)
	for _, e := range m.llm {
		mu, ok := byModel[e.Model]
		if !ok {
			mu = &LLMModelUsage{Model: e.Model}
			byModel[e.Model] = mu
		}
		mu.Calls++
		mu.InputTokens += e.InputTokens
		mu.OutputTokens += e.OutputTokens
	}
	var out []LLMModelUsage
	for _, model := range slices.Sorted(maps.Keys(byModel)) {
		out = append(out, *byModel[model])
	}
	return out, nil
}

func (m *MemoryStore) AppendTrace(ctx context.Context, tr TraceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traces[tr.UserID] = append(m.traces[tr.UserID], tr)
	return nil
}

func (m *MemoryStore) ListTraces(ctx context.Context, userID string, limit int) ([]TraceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	traces := m.traces[userID]
	var out []TraceRecord
	for i := len(traces) - 1; i >= 0; i-- {
		out = append(out, traces[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) ListConcepts(ctx context.Context) ([]conceptgraph.Concept, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.concepts), nil
}

func (m *MemoryStore) ReplaceConcepts(ctx context.Context, concepts []conceptgraph.Concept) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.concepts = slices.Clone(concepts)
	return nil
}
