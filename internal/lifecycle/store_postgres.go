package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// PostgresJobStore persists document jobs in PostgreSQL.
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJobStore(pool *pgxpool.Pool) *PostgresJobStore {
	return &PostgresJobStore{pool: pool}
}

const JobSchema = `
CREATE TABLE IF NOT EXISTS document_jobs (
	document_id    UUID PRIMARY KEY,
	job_id         UUID NOT NULL,
	tenant_id      UUID NOT NULL,
	citizen_id     UUID NOT NULL,
	state          TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	raw_text       TEXT NOT NULL DEFAULT '',
	dedup_hash     TEXT NOT NULL DEFAULT '',
	decision       TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	risk_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	provisional    BOOLEAN NOT NULL DEFAULT FALSE,
	sync_status    TEXT NOT NULL DEFAULT '',
	legal_standing TEXT NOT NULL DEFAULT '',
	expires_at     TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS document_jobs_tenant_idx ON document_jobs (tenant_id, created_at);
CREATE INDEX IF NOT EXISTS document_jobs_dedup_idx ON document_jobs (tenant_id, dedup_hash);
`

func (s *PostgresJobStore) Create(ctx context.Context, job domain.DocumentJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_jobs (
			document_id, job_id, tenant_id, citizen_id, state,
			file_name, raw_text, dedup_hash, decision,
			confidence, risk_score, provisional, sync_status, legal_standing,
			expires_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		job.DocumentID.String(), job.JobID.String(), job.TenantID.String(), job.CitizenID.String(),
		string(job.State), job.FileName, job.RawText, job.DedupHash, string(job.Decision),
		job.Confidence, job.RiskScore, job.Provisional, string(job.SyncStatus), string(job.LegalStanding),
		job.ExpiresAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, documentID id.DocumentID) (domain.DocumentJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, job_id, tenant_id, citizen_id, state,
		       file_name, raw_text, dedup_hash, decision,
		       confidence, risk_score, provisional, sync_status, legal_standing,
		       expires_at, created_at, updated_at
		FROM document_jobs WHERE document_id = $1
	`, documentID.String())
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeNotFound, "document %s not found", documentID)
	}
	return job, err
}

func (s *PostgresJobStore) Update(ctx context.Context, job domain.DocumentJob) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE document_jobs SET
			job_id = $2, state = $3, dedup_hash = $4, decision = $5,
			confidence = $6, risk_score = $7, provisional = $8,
			sync_status = $9, legal_standing = $10, expires_at = $11, updated_at = $12
		WHERE document_id = $1
	`,
		job.DocumentID.String(), job.JobID.String(), string(job.State), job.DedupHash, string(job.Decision),
		job.Confidence, job.RiskScore, job.Provisional,
		string(job.SyncStatus), string(job.LegalStanding), job.ExpiresAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "document %s not found", job.DocumentID)
	}
	return nil
}

func (s *PostgresJobStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]domain.DocumentJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, job_id, tenant_id, citizen_id, state,
		       file_name, raw_text, dedup_hash, decision,
		       confidence, risk_score, provisional, sync_status, legal_standing,
		       expires_at, created_at, updated_at
		FROM document_jobs WHERE tenant_id = $1
		ORDER BY created_at ASC
	`, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.DocumentJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresJobStore) Tenants(ctx context.Context) ([]id.TenantID, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM document_jobs`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	var out []id.TenantID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		tenantID, err := id.ParseTenantID(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, tenantID)
	}
	return out, rows.Err()
}

func (s *PostgresJobStore) CountByDedupHash(ctx context.Context, tenantID id.TenantID, hash string, exclude id.DocumentID) (int, error) {
	if hash == "" {
		return 0, nil
	}
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM document_jobs
		WHERE tenant_id = $1 AND dedup_hash = $2 AND document_id <> $3
	`, tenantID.String(), hash, exclude.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count dedup hash: %w", err)
	}
	return count, nil
}

func (s *PostgresJobStore) CountByDedupHashGlobal(ctx context.Context, hash string, exclude id.DocumentID) (int, error) {
	if hash == "" {
		return 0, nil
	}
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM document_jobs
		WHERE dedup_hash = $1 AND document_id <> $2
	`, hash, exclude.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count dedup hash: %w", err)
	}
	return count, nil
}

func scanJob(row pgx.Row) (domain.DocumentJob, error) {
	var (
		job        domain.DocumentJob
		documentID string
		jobID      string
		tenantID   string
		citizenID  string
		state      string
		decision   string
		syncStatus string
		standing   string
	)
	err := row.Scan(
		&documentID, &jobID, &tenantID, &citizenID, &state,
		&job.FileName, &job.RawText, &job.DedupHash, &decision,
		&job.Confidence, &job.RiskScore, &job.Provisional, &syncStatus, &standing,
		&job.ExpiresAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return domain.DocumentJob{}, err
	}
	if job.DocumentID, err = id.ParseDocumentID(documentID); err != nil {
		return domain.DocumentJob{}, err
	}
	if job.JobID, err = id.ParseJobID(jobID); err != nil {
		return domain.DocumentJob{}, err
	}
	if job.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return domain.DocumentJob{}, err
	}
	if job.CitizenID, err = id.ParseCitizenID(citizenID); err != nil {
		return domain.DocumentJob{}, err
	}
	job.State = domain.DocumentState(state)
	job.Decision = domain.Decision(decision)
	job.SyncStatus = domain.SyncStatus(syncStatus)
	job.LegalStanding = domain.LegalStanding(standing)
	return job, nil
}
