package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
)

// PostgresStore persists events in an append-only table keyed by document id
// with ascending sequence order. Rows are insert-only; there is no update or
// delete path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema is applied by the deployment's migration step; kept here so tests
// can create the table directly.
const Schema = `
CREATE TABLE IF NOT EXISTS document_events (
	seq            BIGSERIAL PRIMARY KEY,
	event_id       UUID NOT NULL UNIQUE,
	document_id    UUID NOT NULL,
	tenant_id      UUID NOT NULL,
	event_type     TEXT NOT NULL,
	actor_type     TEXT NOT NULL,
	actor_id       TEXT NOT NULL DEFAULT '',
	payload        JSONB NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	policy_version INT NOT NULL DEFAULT 0,
	model_versions JSONB NOT NULL DEFAULT '{}',
	correlation_id UUID,
	causation_id   UUID,
	schema_version INT NOT NULL DEFAULT 1,
	occurred_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS document_events_document_idx ON document_events (document_id, seq);
CREATE INDEX IF NOT EXISTS document_events_tenant_idx ON document_events (tenant_id, seq);
`

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	versions, err := json.Marshal(event.ModelVersions)
	if err != nil {
		return fmt.Errorf("marshal model versions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO document_events (
			event_id, document_id, tenant_id, event_type,
			actor_type, actor_id, payload, reason,
			policy_version, model_versions, correlation_id, causation_id,
			schema_version, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		event.EventID.String(),
		event.DocumentID.String(),
		event.TenantID.String(),
		string(event.Type),
		string(event.Actor.Type),
		event.Actor.ID,
		payload,
		event.Reason,
		event.PolicyVersion,
		versions,
		nullableID(event.CorrelationID.String(), event.CorrelationID.IsZero()),
		nullableID(event.CausationID.String(), event.CausationID.IsZero()),
		event.SchemaVersion,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, documentID id.DocumentID) ([]Event, error) {
	return s.list(ctx, `document_id = $1`, documentID.String())
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Event, error) {
	return s.list(ctx, `tenant_id = $1`, tenantID.String())
}

func (s *PostgresStore) list(ctx context.Context, where string, arg any) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, document_id, tenant_id, event_type,
		       actor_type, actor_id, payload, reason,
		       policy_version, model_versions, correlation_id, causation_id,
		       schema_version, occurred_at
		FROM document_events
		WHERE `+where+`
		ORDER BY seq ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e             Event
			eventID       string
			documentID    string
			tenantID      string
			eventType     string
			actorType     string
			payload       []byte
			versions      []byte
			correlationID *string
			causationID   *string
		)
		if err := rows.Scan(
			&eventID, &documentID, &tenantID, &eventType,
			&actorType, &e.Actor.ID, &payload, &e.Reason,
			&e.PolicyVersion, &versions, &correlationID, &causationID,
			&e.SchemaVersion, &e.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.EventID, err = id.ParseEventID(eventID); err != nil {
			return nil, err
		}
		if e.DocumentID, err = id.ParseDocumentID(documentID); err != nil {
			return nil, err
		}
		if e.TenantID, err = id.ParseTenantID(tenantID); err != nil {
			return nil, err
		}
		e.Type = Type(eventType)
		e.Actor.Type = domain.ActorType(actorType)
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		if err := json.Unmarshal(versions, &e.ModelVersions); err != nil {
			return nil, fmt.Errorf("unmarshal model versions: %w", err)
		}
		if correlationID != nil {
			if jobID, err := id.ParseJobID(*correlationID); err == nil {
				e.CorrelationID = jobID
			}
		}
		if causationID != nil {
			if causation, err := id.ParseEventID(*causationID); err == nil {
				e.CausationID = causation
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullableID(s string, zero bool) any {
	if zero {
		return nil
	}
	return s
}
