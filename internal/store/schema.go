package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied on every open. Timestamps are unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS concepts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		difficulty INTEGER NOT NULL CHECK (difficulty BETWEEN 1 AND 5),
		estimated_time_minutes INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		card TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS concept_prerequisites (
		concept_id TEXT NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
		prerequisite_id TEXT NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
		PRIMARY KEY (concept_id, prerequisite_id)
	)`,
	`CREATE TABLE IF NOT EXISTS belief_states (
		user_id TEXT NOT NULL,
		concept_id TEXT NOT NULL,
		belief_unknown REAL NOT NULL CHECK (belief_unknown >= 0 AND belief_unknown <= 1),
		belief_partial REAL NOT NULL CHECK (belief_partial >= 0 AND belief_partial <= 1),
		belief_mastered REAL NOT NULL CHECK (belief_mastered >= 0 AND belief_mastered <= 1),
		interaction_count INTEGER NOT NULL DEFAULT 0 CHECK (interaction_count >= 0),
		last_updated INTEGER NOT NULL,
		PRIMARY KEY (user_id, concept_id),
		CHECK (abs(belief_unknown + belief_partial + belief_mastered - 1.0) <= 0.01)
	)`,
	`CREATE TABLE IF NOT EXISTS interaction_events (
		id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		card_id TEXT NOT NULL DEFAULT '',
		concept_id TEXT NOT NULL,
		observation TEXT NOT NULL,
		answer_index INTEGER NOT NULL DEFAULT -1,
		is_correct INTEGER NOT NULL,
		time_spent_seconds REAL NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interaction_events_user
		ON interaction_events (user_id, concept_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS presentations (
		user_id TEXT NOT NULL,
		concept_id TEXT NOT NULL,
		card_id TEXT NOT NULL DEFAULT '',
		presented_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, concept_id)
	)`,
	`CREATE TABLE IF NOT EXISTS compilation_traces (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		selected_concept_id TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		candidate_concepts TEXT NOT NULL DEFAULT '[]',
		scores TEXT NOT NULL DEFAULT '{}',
		timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_compilation_traces_user
		ON compilation_traces (user_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
