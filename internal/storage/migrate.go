package storage

import (
	"context"
	"fmt"
)

// Migrate creates the schema if it does not exist. embedDim fixes the pgvector
// column width; changing it requires re-indexing all materials.
func Migrate(ctx context.Context, db *DB, embedDim int) error {
	if embedDim <= 0 {
		embedDim = 1536
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS materials (
			material_id      TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			material_type    TEXT NOT NULL DEFAULT '',
			file_type        TEXT NOT NULL DEFAULT '',
			file_path        TEXT NOT NULL DEFAULT '',
			content_text     TEXT NOT NULL DEFAULT '',
			author           TEXT NOT NULL DEFAULT '',
			page_count       INT NOT NULL DEFAULT 0,
			word_count       INT NOT NULL DEFAULT 0,
			topics           JSONB NOT NULL DEFAULT '[]',
			chapters         JSONB NOT NULL DEFAULT '[]',
			chunk_count      INT NOT NULL DEFAULT 0,
			embedding_status TEXT NOT NULL DEFAULT 'pending',
			error_message    TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			chunk_id          TEXT PRIMARY KEY,
			material_id       TEXT NOT NULL REFERENCES materials(material_id) ON DELETE CASCADE,
			chunk_index       INT NOT NULL,
			text              TEXT NOT NULL,
			chapter           TEXT NOT NULL DEFAULT '',
			embedding         vector(%d),
			embedding_version TEXT NOT NULL DEFAULT 'v1',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (material_id, chunk_index)
		)`, embedDim),
		`CREATE TABLE IF NOT EXISTS tests (
			test_id     TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			test_type   TEXT NOT NULL,
			settings    JSONB NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			question_id    TEXT PRIMARY KEY,
			test_id        TEXT NOT NULL REFERENCES tests(test_id) ON DELETE CASCADE,
			position       INT NOT NULL,
			question_text  TEXT NOT NULL,
			question_type  TEXT NOT NULL,
			difficulty     TEXT NOT NULL DEFAULT '',
			points         DOUBLE PRECISION NOT NULL DEFAULT 1,
			explanation    TEXT NOT NULL DEFAULT '',
			correct_answer TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS choices (
			choice_id   TEXT PRIMARY KEY,
			question_id TEXT NOT NULL REFERENCES questions(question_id) ON DELETE CASCADE,
			position    INT NOT NULL,
			text        TEXT NOT NULL,
			is_correct  BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			attempt_id   TEXT PRIMARY KEY,
			test_id      TEXT NOT NULL REFERENCES tests(test_id) ON DELETE CASCADE,
			user_id      TEXT NOT NULL,
			started_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			score        DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
			percentage   DOUBLE PRECISION NOT NULL DEFAULT 0,
			feedback     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS answers (
			answer_id          TEXT PRIMARY KEY,
			attempt_id         TEXT NOT NULL REFERENCES attempts(attempt_id) ON DELETE CASCADE,
			question_id        TEXT NOT NULL REFERENCES questions(question_id) ON DELETE CASCADE,
			answer_text        TEXT NOT NULL DEFAULT '',
			selected_choice_id TEXT NOT NULL DEFAULT '',
			is_correct         BOOLEAN,
			points_awarded     DOUBLE PRECISION NOT NULL DEFAULT 0,
			feedback           TEXT NOT NULL DEFAULT '',
			UNIQUE (attempt_id, question_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_materials_user ON materials(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_material ON chunks(material_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tests_user ON tests(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}
