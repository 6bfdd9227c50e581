package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

const Schema = `
CREATE TABLE IF NOT EXISTS review_assignments (
	assignment_id    UUID PRIMARY KEY,
	document_id      UUID NOT NULL,
	tenant_id        UUID NOT NULL,
	queue_name       TEXT NOT NULL,
	priority         INT NOT NULL,
	status           TEXT NOT NULL,
	assigned_officer UUID,
	escalation_level INT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
	claimed_at       TIMESTAMPTZ,
	resolved_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS review_assignments_queue_idx ON review_assignments (tenant_id, queue_name, status, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS review_assignments_doc_idx ON review_assignments (document_id) WHERE status <> 'RESOLVED';

CREATE TABLE IF NOT EXISTS officers (
	officer_id UUID PRIMARY KEY,
	tenant_id  UUID NOT NULL,
	role       TEXT NOT NULL,
	queues     TEXT[] NOT NULL DEFAULT '{}',
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS disputes (
	dispute_id    TEXT PRIMARY KEY,
	document_id   UUID NOT NULL,
	tenant_id     UUID NOT NULL,
	reason        TEXT NOT NULL,
	evidence_note TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	resolved_at   TIMESTAMPTZ
);
`

type PostgresAssignmentStore struct {
	pool *pgxpool.Pool
}

func NewPostgresAssignmentStore(pool *pgxpool.Pool) *PostgresAssignmentStore {
	return &PostgresAssignmentStore{pool: pool}
}

const assignmentColumns = `
	assignment_id, document_id, tenant_id, queue_name, priority, status,
	assigned_officer, escalation_level, created_at, claimed_at, resolved_at
`

func (s *PostgresAssignmentStore) Create(ctx context.Context, a domain.ReviewAssignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_assignments (`+assignmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, a.AssignmentID.String(), a.DocumentID.String(), a.TenantID.String(), a.QueueName, a.Priority,
		string(a.Status), officerParam(a.AssignedOfficer), a.EscalationLevel, a.CreatedAt, a.ClaimedAt, a.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (s *PostgresAssignmentStore) Get(ctx context.Context, assignmentID id.AssignmentID) (domain.ReviewAssignment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM review_assignments WHERE assignment_id = $1
	`, assignmentID.String())
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ReviewAssignment{}, dErrors.Newf(dErrors.CodeNotFound, "assignment %s not found", assignmentID)
	}
	return a, err
}

func (s *PostgresAssignmentStore) Update(ctx context.Context, a domain.ReviewAssignment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE review_assignments SET
			queue_name = $2, priority = $3, status = $4, assigned_officer = $5,
			escalation_level = $6, claimed_at = $7, resolved_at = $8
		WHERE assignment_id = $1
	`, a.AssignmentID.String(), a.QueueName, a.Priority, string(a.Status),
		officerParam(a.AssignedOfficer), a.EscalationLevel, a.ClaimedAt, a.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "assignment %s not found", a.AssignmentID)
	}
	return nil
}

func (s *PostgresAssignmentStore) OpenByDocument(ctx context.Context, documentID id.DocumentID) (domain.ReviewAssignment, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM review_assignments
		WHERE document_id = $1 AND status <> 'RESOLVED'
		LIMIT 1
	`, documentID.String())
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ReviewAssignment{}, false, nil
	}
	if err != nil {
		return domain.ReviewAssignment{}, false, err
	}
	return a, true, nil
}

func (s *PostgresAssignmentStore) NextWaiting(ctx context.Context, tenantID id.TenantID, queueName string, limit int) ([]domain.ReviewAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM review_assignments
		WHERE tenant_id = $1 AND queue_name = $2 AND status = 'WAITING_FOR_REVIEW'
		ORDER BY priority DESC, created_at ASC
		LIMIT $3
	`, tenantID.String(), queueName, limit)
	if err != nil {
		return nil, fmt.Errorf("query waiting assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.ReviewAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresAssignmentStore) CountAssigned(ctx context.Context, tenantID id.TenantID, officerID id.OfficerID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM review_assignments
		WHERE tenant_id = $1 AND assigned_officer = $2 AND status = 'ASSIGNED'
	`, tenantID.String(), officerID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count assigned: %w", err)
	}
	return count, nil
}

func (s *PostgresAssignmentStore) ListUnresolvedOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ReviewAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM review_assignments
		WHERE status <> 'RESOLVED' AND created_at < $1
		ORDER BY created_at ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query unresolved assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.ReviewAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func officerParam(officerID id.OfficerID) any {
	if officerID.IsZero() {
		return nil
	}
	return officerID.String()
}

func scanAssignment(row pgx.Row) (domain.ReviewAssignment, error) {
	var (
		a         domain.ReviewAssignment
		aID       string
		docID     string
		tenantID  string
		status    string
		officerID *string
	)
	err := row.Scan(&aID, &docID, &tenantID, &a.QueueName, &a.Priority, &status,
		&officerID, &a.EscalationLevel, &a.CreatedAt, &a.ClaimedAt, &a.ResolvedAt)
	if err != nil {
		return domain.ReviewAssignment{}, err
	}
	if a.AssignmentID, err = id.ParseAssignmentID(aID); err != nil {
		return domain.ReviewAssignment{}, err
	}
	if a.DocumentID, err = id.ParseDocumentID(docID); err != nil {
		return domain.ReviewAssignment{}, err
	}
	if a.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return domain.ReviewAssignment{}, err
	}
	if officerID != nil {
		if a.AssignedOfficer, err = id.ParseOfficerID(*officerID); err != nil {
			return domain.ReviewAssignment{}, err
		}
	}
	a.Status = domain.AssignmentStatus(status)
	return a, nil
}

type PostgresOfficerStore struct {
	pool *pgxpool.Pool
}

func NewPostgresOfficerStore(pool *pgxpool.Pool) *PostgresOfficerStore {
	return &PostgresOfficerStore{pool: pool}
}

func (s *PostgresOfficerStore) Upsert(ctx context.Context, officer domain.Officer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO officers (officer_id, tenant_id, role, queues, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (officer_id) DO UPDATE SET role = EXCLUDED.role, queues = EXCLUDED.queues, active = EXCLUDED.active
	`, officer.OfficerID.String(), officer.TenantID.String(), officer.Role, officer.Queues, officer.Active, officer.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert officer: %w", err)
	}
	return nil
}

func (s *PostgresOfficerStore) Get(ctx context.Context, officerID id.OfficerID) (domain.Officer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT officer_id, tenant_id, role, queues, active, created_at FROM officers WHERE officer_id = $1
	`, officerID.String())
	officer, err := scanOfficer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Officer{}, dErrors.Newf(dErrors.CodeNotFound, "officer %s not found", officerID)
	}
	return officer, err
}

func (s *PostgresOfficerStore) ListEligible(ctx context.Context, tenantID id.TenantID, queueName string) ([]domain.Officer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT officer_id, tenant_id, role, queues, active, created_at FROM officers
		WHERE tenant_id = $1 AND active AND $2 = ANY(queues)
		ORDER BY created_at ASC
	`, tenantID.String(), queueName)
	if err != nil {
		return nil, fmt.Errorf("query officers: %w", err)
	}
	defer rows.Close()

	var out []domain.Officer
	for rows.Next() {
		officer, err := scanOfficer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, officer)
	}
	return out, rows.Err()
}

func scanOfficer(row pgx.Row) (domain.Officer, error) {
	var (
		officer   domain.Officer
		officerID string
		tenantID  string
	)
	err := row.Scan(&officerID, &tenantID, &officer.Role, &officer.Queues, &officer.Active, &officer.CreatedAt)
	if err != nil {
		return domain.Officer{}, err
	}
	if officer.OfficerID, err = id.ParseOfficerID(officerID); err != nil {
		return domain.Officer{}, err
	}
	officer.TenantID, err = id.ParseTenantID(tenantID)
	return officer, err
}

type PostgresDisputeStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDisputeStore(pool *pgxpool.Pool) *PostgresDisputeStore {
	return &PostgresDisputeStore{pool: pool}
}

func (s *PostgresDisputeStore) Create(ctx context.Context, dispute domain.Dispute) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO disputes (dispute_id, document_id, tenant_id, reason, evidence_note, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, dispute.DisputeID, dispute.DocumentID.String(), dispute.TenantID.String(),
		dispute.Reason, dispute.EvidenceNote, string(dispute.Status), dispute.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

func (s *PostgresDisputeStore) OpenByDocument(ctx context.Context, documentID id.DocumentID) (domain.Dispute, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT dispute_id, document_id, tenant_id, reason, evidence_note, status, created_at, resolved_at
		FROM disputes WHERE document_id = $1 AND status = 'OPEN'
		LIMIT 1
	`, documentID.String())
	var (
		dispute  domain.Dispute
		docID    string
		tenantID string
		status   string
	)
	err := row.Scan(&dispute.DisputeID, &docID, &tenantID, &dispute.Reason, &dispute.EvidenceNote, &status, &dispute.CreatedAt, &dispute.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Dispute{}, false, nil
	}
	if err != nil {
		return domain.Dispute{}, false, err
	}
	if dispute.DocumentID, err = id.ParseDocumentID(docID); err != nil {
		return domain.Dispute{}, false, err
	}
	if dispute.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return domain.Dispute{}, false, err
	}
	dispute.Status = domain.DisputeStatus(status)
	return dispute, true, nil
}

func (s *PostgresDisputeStore) Resolve(ctx context.Context, disputeID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE disputes SET status = 'RESOLVED', resolved_at = $2 WHERE dispute_id = $1
	`, disputeID, at)
	if err != nil {
		return fmt.Errorf("resolve dispute: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "dispute %s not found", disputeID)
	}
	return nil
}
