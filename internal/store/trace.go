package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

var traceColumns = []string{
	"id", "user_id", "selected_concept_id", "reason", "candidate_concepts", "scores", "timestamp",
}

// traceRepo implements TraceRepo on SQLite. Candidate and score columns are
// JSON text.
type traceRepo struct {
	db *sql.DB
}

func (r *traceRepo) AppendTrace(ctx context.Context, tr TraceRecord) error {
	candidates, err := json.Marshal(nonNilStrings(tr.Candidates))
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}
	scores := tr.Scores
	if scores == nil {
		scores = map[string]float64{}
	}
	scoreJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}

	query, args := builder.Insert("compilation_traces").
		Columns(traceColumns...).
		Values(tr.ID, tr.UserID, tr.SelectedConcept, tr.Reason, string(candidates),
			string(scoreJSON), toMillis(tr.Timestamp)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save compilation trace: %w", err)
	}
	return nil
}

func (r *traceRepo) ListTraces(ctx context.Context, userID string, limit int) ([]TraceRecord, error) {
	sel := builder.Select(traceColumns...).
		From(builder.Table("compilation_traces")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("timestamp"), entsql.Desc("rowid"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var out []TraceRecord
	for rows.Next() {
		var (
			tr                 TraceRecord
			candidates, scores string
			createdAt          int64
		)
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.SelectedConcept, &tr.Reason,
			&candidates, &scores, &createdAt); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		if err := json.Unmarshal([]byte(candidates), &tr.Candidates); err != nil {
			return nil, fmt.Errorf("decode candidates for trace %s: %w", tr.ID, err)
		}
		if err := json.Unmarshal([]byte(scores), &tr.Scores); err != nil {
			return nil, fmt.Errorf("decode scores for trace %s: %w", tr.ID, err)
		}
		tr.Timestamp = fromMillis(createdAt)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
