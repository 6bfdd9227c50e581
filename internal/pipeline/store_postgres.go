package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type PostgresResultStore struct {
	pool *pgxpool.Pool
}

func NewPostgresResultStore(pool *pgxpool.Pool) *PostgresResultStore {
	return &PostgresResultStore{pool: pool}
}

const ResultSchema = `
CREATE TABLE IF NOT EXISTS branch_results (
	seq         BIGSERIAL PRIMARY KEY,
	document_id UUID NOT NULL,
	job_id      UUID NOT NULL,
	module      TEXT NOT NULL,
	status      TEXT NOT NULL,
	output      JSONB NOT NULL DEFAULT '{}',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS branch_results_job_idx ON branch_results (document_id, job_id);

CREATE TABLE IF NOT EXISTS document_records (
	document_id UUID NOT NULL,
	job_id      UUID NOT NULL,
	tenant_id   UUID NOT NULL,
	record      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (document_id, job_id)
);
CREATE INDEX IF NOT EXISTS document_records_doc_idx ON document_records (document_id, created_at);
`

func (s *PostgresResultStore) SaveBranch(ctx context.Context, result BranchResult) error {
	output, err := json.Marshal(result.Output)
	if err != nil {
		return fmt.Errorf("marshal branch output: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO branch_results (document_id, job_id, module, status, output, error, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		result.DocumentID.String(), result.JobID.String(), result.Module, string(result.Status),
		output, result.Error, result.StartedAt, result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert branch result: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) ListBranches(ctx context.Context, documentID id.DocumentID, jobID id.JobID) ([]BranchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, job_id, module, status, output, error, started_at, finished_at
		FROM branch_results
		WHERE document_id = $1 AND job_id = $2
		ORDER BY seq ASC
	`, documentID.String(), jobID.String())
	if err != nil {
		return nil, fmt.Errorf("query branch results: %w", err)
	}
	defer rows.Close()

	var results []BranchResult
	for rows.Next() {
		var (
			result   BranchResult
			docID    string
			jID      string
			status   string
			rawOut   []byte
		)
		if err := rows.Scan(&docID, &jID, &result.Module, &status, &rawOut, &result.Error, &result.StartedAt, &result.FinishedAt); err != nil {
			return nil, err
		}
		if result.DocumentID, err = id.ParseDocumentID(docID); err != nil {
			return nil, err
		}
		if result.JobID, err = id.ParseJobID(jID); err != nil {
			return nil, err
		}
		result.Status = BranchStatus(status)
		if err := json.Unmarshal(rawOut, &result.Output); err != nil {
			return nil, fmt.Errorf("decode branch output: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *PostgresResultStore) SaveRecord(ctx context.Context, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO document_records (document_id, job_id, tenant_id, record, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (document_id, job_id) DO UPDATE SET record = EXCLUDED.record
	`, record.DocumentID.String(), record.JobID.String(), record.TenantID.String(), raw, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) GetRecord(ctx context.Context, documentID id.DocumentID, jobID id.JobID) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT record FROM document_records WHERE document_id = $1 AND job_id = $2
	`, documentID.String(), jobID.String())
	return scanRecord(row, documentID)
}

func (s *PostgresResultStore) LatestRecord(ctx context.Context, documentID id.DocumentID) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT record FROM document_records WHERE document_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, documentID.String())
	return scanRecord(row, documentID)
}

func scanRecord(row pgx.Row, documentID id.DocumentID) (Record, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, dErrors.Newf(dErrors.CodeNotFound, "no record for document %s", documentID)
		}
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}
