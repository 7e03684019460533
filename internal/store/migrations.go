package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	return s.migrateV1()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS learning_entries (
		signature TEXT PRIMARY KEY,
		solution TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		effectiveness REAL NOT NULL DEFAULT 0.5,
		times_used INTEGER NOT NULL DEFAULT 0,
		times_succeeded INTEGER NOT NULL DEFAULT 0,
		last_used INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS performance_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_type TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		success INTEGER NOT NULL,
		quality REAL NOT NULL DEFAULT 0,
		tokens_used INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_metrics_op_ts ON performance_metrics(operation_type, timestamp);
	CREATE INDEX IF NOT EXISTS idx_metrics_ts ON performance_metrics(timestamp);

	CREATE TABLE IF NOT EXISTS suggestions (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		plan TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL,
		expected_impact TEXT NOT NULL DEFAULT 'medium',
		effort_estimate TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'pending',
		severity REAL NOT NULL DEFAULT 0,
		source_ref TEXT NOT NULL DEFAULT '',
		confidence TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_suggestions_status ON suggestions(status, priority);
	CREATE INDEX IF NOT EXISTS idx_suggestions_created ON suggestions(created_at);

	CREATE TABLE IF NOT EXISTS analyzed_sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		actions_taken INTEGER NOT NULL,
		assets_created INTEGER NOT NULL,
		errors_encountered INTEGER NOT NULL,
		pain_points INTEGER NOT NULL,
		analyzed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyzed_at ON analyzed_sessions(analyzed_at);

	CREATE TABLE IF NOT EXISTS unresolved_pain (
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		last_seen INTEGER NOT NULL,
		PRIMARY KEY (user_id, category)
	);

	CREATE TABLE IF NOT EXISTS daily_reports (
		report_date TEXT PRIMARY KEY,
		health_score REAL NOT NULL,
		payload TEXT NOT NULL,
		generated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("v1 schema: %w", err)
	}
	return nil
}
