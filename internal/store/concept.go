package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/abhisek/learnloop/internal/conceptgraph"
)

// conceptRepo implements ConceptRepo on the concepts and
// concept_prerequisites tables.
type conceptRepo struct {
	db *sql.DB
}

func (r *conceptRepo) ListConcepts(ctx context.Context) ([]conceptgraph.Concept, error) {
	query, args := builder.Select("id", "name", "description", "difficulty",
		"estimated_time_minutes", "tags", "card").
		From(builder.Table("concepts")).
		OrderBy("id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query concepts: %w", err)
	}
	defer rows.Close()

	var (
		out   []conceptgraph.Concept
		index = make(map[string]int)
	)
	for rows.Next() {
		var (
			c    conceptgraph.Concept
			tags string
			card sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Difficulty,
			&c.EstimatedMins, &tags, &card); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", c.ID, err)
		}
		if card.Valid && card.String != "" {
			c.Card = &conceptgraph.AuthoredCard{}
			if err := json.Unmarshal([]byte(card.String), c.Card); err != nil {
				return nil, fmt.Errorf("decode card for %s: %w", c.ID, err)
			}
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	query, args = builder.Select("concept_id", "prerequisite_id").
		From(builder.Table("concept_prerequisites")).
		OrderBy("concept_id", "prerequisite_id").
		Query()
	edges, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prerequisites: %w", err)
	}
	defer edges.Close()

	for edges.Next() {
		var conceptID, prereqID string
		if err := edges.Scan(&conceptID, &prereqID); err != nil {
			return nil, fmt.Errorf("scan prerequisite: %w", err)
		}
		if i, ok := index[conceptID]; ok {
			out[i].Prerequisites = append(out[i].Prerequisites, prereqID)
		}
	}
	return out, edges.Err()
}

func (r *conceptRepo) ReplaceConcepts(ctx context.Context, concepts []conceptgraph.Concept) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"concept_prerequisites", "concepts"} {
		query, args := builder.Delete(table).Query()
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, c := range concepts {
		tags, mErr := json.Marshal(nonNilStrings(c.Tags))
		if mErr != nil {
			return fmt.Errorf("marshal tags for %s: %w", c.ID, mErr)
		}
		var card any
		if c.Card != nil {
			b, mErr := json.Marshal(c.Card)
			if mErr != nil {
				return fmt.Errorf("marshal card for %s: %w", c.ID, mErr)
			}
			card = string(b)
		}
		query, args := builder.Insert("concepts").
			Columns("id", "name", "description", "difficulty", "estimated_time_minutes", "tags", "card").
			Values(c.ID, c.Name, c.Description, c.Difficulty, c.EstimatedMins, string(tags), card).
			Query()
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert concept %s: %w", c.ID, err)
		}
	}

	for _, c := range concepts {
		for _, prereqID := range c.Prerequisites {
			query, args := builder.Insert("concept_prerequisites").
				Columns("concept_id", "prerequisite_id").
				Values(c.ID, prereqID).
				Query()
			if _, err = tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert prerequisite %s -> %s: %w", c.ID, prereqID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit concepts: %w", err)
	}
	return nil
}
