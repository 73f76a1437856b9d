package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockID int64 = 2026101901

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates every intake table. Startups of api, worker and mcp
// serialize on an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS clients (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	phone TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS deadline_extractions (
	id BIGSERIAL PRIMARY KEY,
	source_id TEXT NOT NULL,
	text_excerpt TEXT NOT NULL,
	extracted_count INTEGER NOT NULL,
	extraction_timestamp TIMESTAMPTZ NOT NULL,
	client_id BIGINT REFERENCES clients(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS deadlines (
	id BIGSERIAL PRIMARY KEY,
	extraction_id BIGINT REFERENCES deadline_extractions(id) ON DELETE SET NULL,
	deadline_date DATE NOT NULL,
	description TEXT NOT NULL,
	working_days_remaining INTEGER NOT NULL,
	risk_level TEXT NOT NULL,
	source_id TEXT NOT NULL,
	client_id BIGINT REFERENCES clients(id) ON DELETE SET NULL,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_deadlines_client ON deadlines(client_id);
CREATE INDEX IF NOT EXISTS idx_deadlines_source ON deadlines(source_id);
CREATE INDEX IF NOT EXISTS idx_deadlines_open_date ON deadlines(deadline_date) WHERE completed = FALSE;

CREATE TABLE IF NOT EXISTS documents (
	document_id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL DEFAULT '',
	client_id BIGINT REFERENCES clients(id) ON DELETE SET NULL,
	doc_type TEXT NOT NULL,
	matter_id TEXT,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	key_entities JSONB NOT NULL DEFAULT '{}'::jsonb,
	summary TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	original_metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	text_preview TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_client ON documents(client_id);
CREATE INDEX IF NOT EXISTS idx_documents_doc_type ON documents(doc_type);

CREATE TABLE IF NOT EXISTS hint_extractions (
	id BIGSERIAL PRIMARY KEY,
	client_id BIGINT REFERENCES clients(id) ON DELETE SET NULL,
	document_id TEXT NOT NULL,
	extracted_data JSONB NOT NULL,
	model_version TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_hint_extractions_document ON hint_extractions(document_id);

CREATE TABLE IF NOT EXISTS validations (
	id BIGSERIAL PRIMARY KEY,
	validation_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	client_id BIGINT REFERENCES clients(id) ON DELETE SET NULL,
	extraction_id BIGINT,
	validation_status TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	feedback TEXT NOT NULL DEFAULT '',
	verified_items JSONB NOT NULL DEFAULT '[]'::jsonb,
	discrepancies JSONB NOT NULL DEFAULT '[]'::jsonb,
	missing_information JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_validations_entity ON validations(validation_type, entity_id, created_at DESC);

CREATE TABLE IF NOT EXISTS analyses (
	id BIGSERIAL PRIMARY KEY,
	firm_id TEXT NOT NULL,
	analysis_type TEXT NOT NULL,
	input_data JSONB NOT NULL,
	result JSONB NOT NULL,
	risk_level TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_firm ON analyses(firm_id, created_at DESC);
`

type scanner interface {
	Scan(dest ...any) error
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func nullableString(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	out := v.String
	return &out
}

func marshalJSON(field string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", field, err)
	}
	return raw, nil
}

func unmarshalJSON(field string, raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func rowsAffected(res sql.Result, op string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n, nil
}
