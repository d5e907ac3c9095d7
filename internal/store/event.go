package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sequenceCounter hands out the monotonic sequence stamped on every
// interaction event. Timestamps can collide within a millisecond, so
// "latest event" is defined by sequence, not by time.
//
// The RETURNING clause makes the increment atomic at the database level; the
// mutex serializes callers within the process.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
// Pass a transaction to make the increment part of a larger unit of work.
func (sc *sequenceCounter) Next(ctx context.Context, q querier) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if q == nil {
		q = sc.db
	}
	var seq int64
	err := q.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var interactionColumns = []string{
	"id", "user_id", "card_id", "concept_id", "observation",
	"answer_index", "is_correct", "time_spent_seconds", "timestamp",
}

// insertInteraction appends ev with the given sequence number.
func insertInteraction(ctx context.Context, q querier, seq int64, ev InteractionEvent) error {
	query, args := builder.Insert("interaction_events").
		Columns(append([]string{"sequence"}, interactionColumns...)...).
		Values(seq, ev.ID, ev.UserID, ev.CardID, ev.ConceptID, ev.Observation,
			ev.AnswerIndex, boolToInt(ev.IsCorrect), ev.TimeSpentSeconds, toMillis(ev.Timestamp)).
		Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("insert interaction event: %w", err)
	}
	return nil
}

func scanInteraction(rows *sql.Rows, extra ...any) (InteractionEvent, error) {
	var (
		ev        InteractionEvent
		isCorrect int
		createdAt int64
	)
	dest := []any{&ev.ID, &ev.UserID, &ev.CardID, &ev.ConceptID, &ev.Observation,
		&ev.AnswerIndex, &isCorrect, &ev.TimeSpentSeconds, &createdAt}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return InteractionEvent{}, err
	}
	ev.IsCorrect = isCorrect != 0
	ev.Timestamp = fromMillis(createdAt)
	return ev, nil
}

// eventRepo implements EventRepo on SQLite.
type eventRepo struct {
	db *sql.DB
}

func (r *eventRepo) LatestInteractions(ctx context.Context, userID string) (map[string]InteractionEvent, error) {
	// SQLite returns the bare columns of the row holding MAX(sequence).
	cols := append(append([]string{}, interactionColumns...), entsql.Max("sequence"))
	query, args := builder.Select(cols...).
		From(builder.Table("interaction_events")).
		Where(entsql.EQ("user_id", userID)).
		GroupBy("concept_id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest interactions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]InteractionEvent)
	for rows.Next() {
		var seq int64
		ev, err := scanInteraction(rows, &seq)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out[ev.ConceptID] = ev
	}
	return out, rows.Err()
}

func (r *eventRepo) ListInteractions(ctx context.Context, userID string, opts QueryOpts) ([]InteractionEvent, error) {
	preds := []*entsql.Predicate{entsql.EQ("user_id", userID)}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", toMillis(opts.From)))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", toMillis(opts.To)))
	}
	sel := builder.Select(interactionColumns...).
		From(builder.Table("interaction_events")).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []InteractionEvent
	for rows.Next() {
		ev, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *eventRepo) RecordPresentation(ctx context.Context, userID, conceptID, cardID string, at time.Time) error {
	query, args := builder.Insert("presentations").
		Columns("user_id", "concept_id", "card_id", "presented_at").
		Values(userID, conceptID, cardID, toMillis(at)).
		OnConflict(entsql.ConflictColumns("user_id", "concept_id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record presentation: %w", err)
	}
	return nil
}

func (r *eventRepo) LatestPresentations(ctx context.Context, userID string) (map[string]time.Time, error) {
	query, args := builder.Select("concept_id", "presented_at").
		From(builder.Table("presentations")).
		Where(entsql.EQ("user_id", userID)).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query presentations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			conceptID string
			at        int64
		)
		if err := rows.Scan(&conceptID, &at); err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		out[conceptID] = fromMillis(at)
	}
	return out, rows.Err()
}

var llmColumns = []string{
	"id", "created_at", "provider", "model", "purpose", "input_tokens", "output_tokens",
	"latency_ms", "success", "error_message", "request_body", "response_body",
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	query, args := builder.Insert("llm_request_events").
		Columns(llmColumns[1:]...).
		Values(toMillis(time.Now()), data.Provider, data.Model, data.Purpose,
			data.InputTokens, data.OutputTokens, data.LatencyMs, boolToInt(data.Success),
			data.ErrorMessage, data.RequestBody, data.ResponseBody).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func scanLLMEvent(row interface{ Scan(...any) error }) (LLMEvent, error) {
	var (
		e         LLMEvent
		createdAt int64
		success   int
	)
	err := row.Scan(&e.ID, &createdAt, &e.Provider, &e.Model, &e.Purpose, &e.InputTokens,
		&e.OutputTokens, &e.LatencyMs, &success, &e.ErrorMessage, &e.RequestBody, &e.ResponseBody)
	if err != nil {
		return LLMEvent{}, err
	}
	e.Timestamp = fromMillis(createdAt)
	e.Success = success != 0
	return e, nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("id", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("id", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("created_at", toMillis(opts.From)))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("created_at", toMillis(opts.To)))
	}
	sel := builder.Select(llmColumns...).
		From(builder.Table("llm_request_events")).
		OrderBy(entsql.Desc("id"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	defer rows.Close()

	var out []LLMEvent
	for rows.Next() {
		e, err := scanLLMEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan LLM event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error) {
	query, args := builder.Select(llmColumns...).
		From(builder.Table("llm_request_events")).
		Where(entsql.EQ("id", id)).
		Query()
	e, err := scanLLMEvent(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get LLM event: %w", err)
	}
	return &e, nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error) {
	query, args := builder.Select("purpose", entsql.Count("*"), entsql.Sum("input_tokens"),
		entsql.Sum("output_tokens"), entsql.Avg("latency_ms")).
		From(builder.Table("llm_request_events")).
		GroupBy("purpose").
		OrderBy("purpose").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage by purpose: %w", err)
	}
	defer rows.Close()

	var out []LLMUsageStats
	for rows.Next() {
		var (
			st  LLMUsageStats
			avg float64
		)
		if err := rows.Scan(&st.Purpose, &st.Calls, &st.InputTokens, &st.OutputTokens, &avg); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		st.AvgLatencyMs = int64(avg)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error) {
	query, args := builder.Select("model", entsql.Count("*"), entsql.Sum("input_tokens"),
		entsql.Sum("output_tokens")).
		From(builder.Table("llm_request_events")).
		GroupBy("model").
		OrderBy("model").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage by model: %w", err)
	}
	defer rows.Close()

	var out []LLMModelUsage
	for rows.Next() {
		var mu LLMModelUsage
		if err := rows.Scan(&mu.Model, &mu.Calls, &mu.InputTokens, &mu.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan model usage: %w", err)
		}
		out = append(out, mu)
	}
	return out, rows.Err()
}
