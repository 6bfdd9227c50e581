package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

const Schema = `
CREATE TABLE IF NOT EXISTS webhook_outbox (
	outbox_id    TEXT PRIMARY KEY,
	document_id  UUID NOT NULL,
	tenant_id    UUID NOT NULL,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL DEFAULT '{}',
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	delivered_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS webhook_outbox_pending_idx ON webhook_outbox (tenant_id, created_at) WHERE status = 'PENDING';
`

type PostgresOutboxStore struct {
	pool *pgxpool.Pool
}

func NewPostgresOutboxStore(pool *pgxpool.Pool) *PostgresOutboxStore {
	return &PostgresOutboxStore{pool: pool}
}

const outboxColumns = `
	outbox_id, document_id, tenant_id, event_type, payload, status, created_at, delivered_at
`

func (s *PostgresOutboxStore) Enqueue(ctx context.Context, entry OutboxEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_outbox (`+outboxColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.OutboxID, entry.DocumentID.String(), entry.TenantID.String(),
		entry.EventType, entry.Payload, string(entry.Status), entry.CreatedAt, entry.DeliveredAt)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresOutboxStore) Get(ctx context.Context, outboxID string) (OutboxEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+outboxColumns+` FROM webhook_outbox WHERE outbox_id = $1
	`, outboxID)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutboxEntry{}, dErrors.Newf(dErrors.CodeNotFound, "outbox entry %s not found", outboxID)
	}
	return entry, err
}

func (s *PostgresOutboxStore) ListPending(ctx context.Context, tenantID id.TenantID, limit int) ([]OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+outboxColumns+` FROM webhook_outbox
		WHERE tenant_id = $1 AND status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $2
	`, tenantID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresOutboxStore) MarkDelivered(ctx context.Context, outboxID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_outbox SET status = 'DELIVERED', delivered_at = $2 WHERE outbox_id = $1
	`, outboxID, at)
	if err != nil {
		return fmt.Errorf("mark outbox delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "outbox entry %s not found", outboxID)
	}
	return nil
}

func scanEntry(row pgx.Row) (OutboxEntry, error) {
	var (
		entry    OutboxEntry
		docID    string
		tenantID string
		status   string
	)
	err := row.Scan(&entry.OutboxID, &docID, &tenantID, &entry.EventType,
		&entry.Payload, &status, &entry.CreatedAt, &entry.DeliveredAt)
	if err != nil {
		return OutboxEntry{}, err
	}
	if entry.DocumentID, err = id.ParseDocumentID(docID); err != nil {
		return OutboxEntry{}, err
	}
	if entry.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return OutboxEntry{}, err
	}
	entry.Status = OutboxStatus(status)
	return entry, nil
}
