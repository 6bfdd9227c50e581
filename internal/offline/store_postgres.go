package offline

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

const Schema = `
CREATE TABLE IF NOT EXISTS offline_records (
	record_id            TEXT PRIMARY KEY,
	document_id          UUID,
	tenant_id            UUID NOT NULL,
	citizen_id           UUID NOT NULL,
	file_name            TEXT NOT NULL,
	raw_text             TEXT NOT NULL DEFAULT '',
	provisional_decision TEXT NOT NULL DEFAULT '',
	provisional_fields   JSONB NOT NULL DEFAULT '{}',
	local_model_versions JSONB NOT NULL DEFAULT '{}',
	sync_status          TEXT NOT NULL,
	captured_at          TIMESTAMPTZ NOT NULL,
	synced_at            TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS offline_records_backlog_idx ON offline_records (tenant_id, captured_at) WHERE sync_status IN ('PENDING','QUEUE_OVERFLOW');
`

type PostgresRecordStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordStore(pool *pgxpool.Pool) *PostgresRecordStore {
	return &PostgresRecordStore{pool: pool}
}

const recordColumns = `
	record_id, document_id, tenant_id, citizen_id, file_name, raw_text,
	provisional_decision, provisional_fields, local_model_versions,
	sync_status, captured_at, synced_at
`

func (s *PostgresRecordStore) Create(ctx context.Context, r domain.OfflineRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO offline_records (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, r.RecordID, documentParam(r.DocumentID), r.TenantID.String(), r.CitizenID.String(),
		r.FileName, r.RawText, string(r.ProvisionalDecision), r.ProvisionalFields,
		r.LocalModelVersions, string(r.SyncStatus), r.CapturedAt, r.SyncedAt)
	if err != nil {
		return fmt.Errorf("insert offline record: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) Get(ctx context.Context, recordID string) (domain.OfflineRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM offline_records WHERE record_id = $1
	`, recordID)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OfflineRecord{}, dErrors.Newf(dErrors.CodeNotFound, "offline record %s not found", recordID)
	}
	return r, err
}

func (s *PostgresRecordStore) Update(ctx context.Context, r domain.OfflineRecord) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE offline_records SET
			document_id = $2, sync_status = $3, synced_at = $4
		WHERE record_id = $1
	`, r.RecordID, documentParam(r.DocumentID), string(r.SyncStatus), r.SyncedAt)
	if err != nil {
		return fmt.Errorf("update offline record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "offline record %s not found", r.RecordID)
	}
	return nil
}

func (s *PostgresRecordStore) ListBacklog(ctx context.Context, tenantID id.TenantID) ([]domain.OfflineRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM offline_records
		WHERE tenant_id = $1 AND sync_status IN ('PENDING','QUEUE_OVERFLOW')
		ORDER BY captured_at ASC
	`, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("query offline backlog: %w", err)
	}
	defer rows.Close()

	var out []domain.OfflineRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresRecordStore) CountBacklog(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM offline_records
		WHERE tenant_id = $1 AND sync_status IN ('PENDING','QUEUE_OVERFLOW')
	`, tenantID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count offline backlog: %w", err)
	}
	return count, nil
}

func documentParam(documentID id.DocumentID) any {
	if documentID.IsZero() {
		return nil
	}
	return documentID.String()
}

func scanRecord(row pgx.Row) (domain.OfflineRecord, error) {
	var (
		r          domain.OfflineRecord
		docID      *string
		tenantID   string
		citizenID  string
		decision   string
		syncStatus string
	)
	err := row.Scan(&r.RecordID, &docID, &tenantID, &citizenID, &r.FileName, &r.RawText,
		&decision, &r.ProvisionalFields, &r.LocalModelVersions, &syncStatus, &r.CapturedAt, &r.SyncedAt)
	if err != nil {
		return domain.OfflineRecord{}, err
	}
	if docID != nil {
		if r.DocumentID, err = id.ParseDocumentID(*docID); err != nil {
			return domain.OfflineRecord{}, err
		}
	}
	if r.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return domain.OfflineRecord{}, err
	}
	if r.CitizenID, err = id.ParseCitizenID(citizenID); err != nil {
		return domain.OfflineRecord{}, err
	}
	r.ProvisionalDecision = domain.Decision(decision)
	r.SyncStatus = domain.SyncStatus(syncStatus)
	return r, nil
}
