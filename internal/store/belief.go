package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

var beliefColumns = []string{
	"user_id", "concept_id", "belief_unknown", "belief_partial", "belief_mastered", "interaction_count", "last_updated",
}

// beliefRepo implements BeliefRepo on SQLite. The interaction_count column
// doubles as the optimistic-concurrency version.
type beliefRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func scanBelief(row interface{ Scan(...any) error }) (BeliefRecord, error) {
	var (
		rec     BeliefRecord
		updated int64
	)
	err := row.Scan(&rec.UserID, &rec.ConceptID, &rec.Unknown, &rec.Partial, &rec.Mastered,
		&rec.InteractionCount, &updated)
	if err != nil {
		return BeliefRecord{}, err
	}
	rec.LastUpdated = fromMillis(updated)
	return rec, nil
}

func (r *beliefRepo) GetOrCreateBelief(ctx context.Context, init BeliefRecord) (BeliefRecord, error) {
	insert, args := builder.Insert("belief_states").
		Columns(beliefColumns...).
		Values(init.UserID, init.ConceptID, init.Unknown, init.Partial, init.Mastered,
			init.InteractionCount, toMillis(init.LastUpdated)).
		OnConflict(entsql.ConflictColumns("user_id", "concept_id"), entsql.DoNothing()).
		Query()
	if _, err := r.db.ExecContext(ctx, insert, args...); err != nil {
		return BeliefRecord{}, fmt.Errorf("insert belief: %w", err)
	}

	query, args := builder.Select(beliefColumns...).
		From(builder.Table("belief_states")).
		Where(entsql.And(entsql.EQ("user_id", init.UserID), entsql.EQ("concept_id", init.ConceptID))).
		Query()
	rec, err := scanBelief(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return BeliefRecord{}, ErrNotFound
	}
	if err != nil {
		return BeliefRecord{}, fmt.Errorf("get belief: %w", err)
	}
	return rec, nil
}

func (r *beliefRepo) ListBeliefs(ctx context.Context, userID string) ([]BeliefRecord, error) {
	query, args := builder.Select(beliefColumns...).
		From(builder.Table("belief_states")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("concept_id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query beliefs: %w", err)
	}
	defer rows.Close()

	var out []BeliefRecord
	for rows.Next() {
		rec, err := scanBelief(rows)
		if err != nil {
			return nil, fmt.Errorf("scan belief: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *beliefRepo) CompareAndSwapBelief(ctx context.Context, expected int64, next BeliefRecord) error {
	return casBelief(ctx, r.db, expected, next)
}

func (r *beliefRepo) CommitObservation(ctx context.Context, expected int64, next BeliefRecord, ev InteractionEvent) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	seq, err := r.seq.Next(ctx, tx)
	if err != nil {
		return err
	}
	if err = insertInteraction(ctx, tx, seq, ev); err != nil {
		return err
	}
	if err = casBelief(ctx, tx, expected, next); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit observation: %w", err)
	}
	return nil
}

// casBelief updates the row only when interaction_count still equals expected.
func casBelief(ctx context.Context, q querier, expected int64, next BeliefRecord) error {
	query, args := builder.Update("belief_states").
		Set("belief_unknown", next.Unknown).
		Set("belief_partial", next.Partial).
		Set("belief_mastered", next.Mastered).
		Set("interaction_count", next.InteractionCount).
		Set("last_updated", toMillis(next.LastUpdated)).
		Where(entsql.And(
			entsql.EQ("user_id", next.UserID),
			entsql.EQ("concept_id", next.ConceptID),
			entsql.EQ("interaction_count", expected),
		)).
		Query()

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update belief: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update belief: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}
