package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/learnloop/internal/conceptgraph"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a compare-and-set finds a stored
	// interaction count different from the expected one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateEvent is returned when an interaction event id has already
	// been recorded. Nothing is written in that case.
	ErrDuplicateEvent = errors.New("duplicate interaction event")
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // id > After (LLM events only)
	Before int64     // id < Before (LLM events only)
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// BeliefRecord is the persisted form of one learner's belief about one concept.
type BeliefRecord struct {
	UserID           string
	ConceptID        string
	Unknown          float64
	Partial          float64
	Mastered         float64
	InteractionCount int64
	LastUpdated      time.Time
}

// InteractionEvent is one graded answer. Append-only.
type InteractionEvent struct {
	ID               string
	UserID           string
	CardID           string
	ConceptID        string
	Observation      string
	AnswerIndex      int
	IsCorrect        bool
	TimeSpentSeconds float64
	Timestamp        time.Time
}

// TraceRecord is the audit row written after every compile.
type TraceRecord struct {
	ID              string
	UserID          string
	SelectedConcept string
	Reason          string
	Candidates      []string
	Scores          map[string]float64
	Timestamp       time.Time
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates token usage per purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates token usage per model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// BeliefRepo stores belief rows keyed by (user, concept).
type BeliefRepo interface {
	// GetOrCreateBelief returns the stored row, inserting init first when
	// no row exists.
	GetOrCreateBelief(ctx context.Context, init BeliefRecord) (BeliefRecord, error)

	// ListBeliefs returns every stored row for a user.
	ListBeliefs(ctx context.Context, userID string) ([]BeliefRecord, error)

	// CompareAndSwapBelief replaces the row only if its interaction count
	// still equals expected. Returns ErrVersionConflict otherwise.
	CompareAndSwapBelief(ctx context.Context, expected int64, next BeliefRecord) error

	// CommitObservation performs CompareAndSwapBelief and appends ev as one
	// atomic unit.
	CommitObservation(ctx context.Context, expected int64, next BeliefRecord, ev InteractionEvent) error
}

// EventRepo provides append and query access to interaction and LLM events.
type EventRepo interface {
	// LatestInteractions returns the most recent interaction per concept.
	LatestInteractions(ctx context.Context, userID string) (map[string]InteractionEvent, error)

	// ListInteractions returns a user's interactions, newest first.
	ListInteractions(ctx context.Context, userID string, opts QueryOpts) ([]InteractionEvent, error)

	// RecordPresentation notes that a card for conceptID was served at at.
	// Only the latest presentation per (user, concept) is kept.
	RecordPresentation(ctx context.Context, userID, conceptID, cardID string, at time.Time) error

	// LatestPresentations returns when each concept was last served.
	LatestPresentations(ctx context.Context, userID string) (map[string]time.Time, error)

	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one LLM event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error)

	// LLMUsageByPurpose aggregates usage per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)

	// LLMUsageByModel aggregates usage per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}

// TraceRepo stores compilation traces.
type TraceRepo interface {
	AppendTrace(ctx context.Context, tr TraceRecord) error

	// ListTraces returns a user's traces, newest first. limit <= 0 means all.
	ListTraces(ctx context.Context, userID string, limit int) ([]TraceRecord, error)
}

// ConceptRepo stores the curriculum.
type ConceptRepo interface {
	ListConcepts(ctx context.Context) ([]conceptgraph.Concept, error)

	// ReplaceConcepts swaps the whole curriculum in one transaction.
	ReplaceConcepts(ctx context.Context, concepts []conceptgraph.Concept) error
}

// Repos groups the repositories a backend provides.
type Repos interface {
	BeliefRepo() BeliefRepo
	EventRepo() EventRepo
	TraceRepo() TraceRepo
	ConceptRepo() ConceptRepo
	Close() error
}
