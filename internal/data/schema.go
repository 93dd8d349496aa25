// internal/data/schema.go
package data

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the resource tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cases (
  case_id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  client_name text NOT NULL,
  client_email text NOT NULL,
  client_phone text,
  status text NOT NULL DEFAULT 'OPEN',
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS client_communications (
  communication_id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  case_id uuid NOT NULL REFERENCES cases(case_id),
  channel text NOT NULL,
  direction text NOT NULL,
  status text NOT NULL,
  sender text NOT NULL,
  recipient text NOT NULL,
  subject text,
  message_content text,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  sent_at timestamptz,
  opened_at timestamptz,
  provider_ref text
);
CREATE TABLE IF NOT EXISTS documents (
  document_id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  case_id uuid NOT NULL REFERENCES cases(case_id),
  original_file_name text NOT NULL,
  original_file_size bigint NOT NULL,
  original_file_type text NOT NULL,
  original_location text NOT NULL,
  status text NOT NULL DEFAULT 'PENDING',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  processed_file_name text,
  processed_file_size bigint,
  processed_location text,
  batch_id text
);
CREATE TABLE IF NOT EXISTS document_analysis (
  analysis_id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  document_id uuid NOT NULL REFERENCES documents(document_id),
  case_id uuid NOT NULL REFERENCES cases(case_id),
  analysis_content text NOT NULL,
  analysis_status text NOT NULL DEFAULT 'PENDING',
  model_used text NOT NULL,
  tokens_used int,
  analyzed_at timestamptz,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  analysis_reasoning text,
  context_summary_created boolean DEFAULT false
);
CREATE INDEX IF NOT EXISTS idx_communications_case ON client_communications (case_id);
CREATE INDEX IF NOT EXISTS idx_documents_case ON documents (case_id);
CREATE INDEX IF NOT EXISTS idx_analysis_document ON document_analysis (document_id);
`)
	return err
}

// Tables maps resource names to their backing tables. Resource and table
// names coincide today; the indirection keeps the executor from assuming
// that.
func Tables() map[string]string {
	return map[string]string{
		"cases":                 "cases",
		"client_communications": "client_communications",
		"documents":             "documents",
		"document_analysis":     "document_analysis",
	}
}
