package tenant

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

type PostgresPolicyStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPolicyStore(pool *pgxpool.Pool) *PostgresPolicyStore {
	return &PostgresPolicyStore{pool: pool}
}

const PolicySchema = `
CREATE TABLE IF NOT EXISTS tenant_policies (
	tenant_id                TEXT NOT NULL,
	version                  INT NOT NULL,
	hard_reject_risk         DOUBLE PRECISION NOT NULL,
	min_approval_confidence  DOUBLE PRECISION NOT NULL,
	max_approval_risk        DOUBLE PRECISION NOT NULL,
	min_extract_confidence   DOUBLE PRECISION NOT NULL,
	review_sla_days          INT NOT NULL,
	escalation_step_days     INT NOT NULL,
	senior_queue             TEXT NOT NULL,
	sync_capacity_per_minute INT NOT NULL,
	offline_backlog_limit    INT NOT NULL,
	api_rate_limit_per_minute INT NOT NULL,
	max_documents_per_day    INT NOT NULL,
	data_retention_days      INT NOT NULL,
	cross_tenant_dedup       BOOLEAN NOT NULL,
	PRIMARY KEY (tenant_id, version)
);
`

const policyColumns = `
	tenant_id, version,
	hard_reject_risk, min_approval_confidence, max_approval_risk, min_extract_confidence,
	review_sla_days, escalation_step_days, senior_queue,
	sync_capacity_per_minute, offline_backlog_limit,
	api_rate_limit_per_minute, max_documents_per_day, data_retention_days,
	cross_tenant_dedup
`

func (s *PostgresPolicyStore) Latest(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+policyColumns+`
		FROM tenant_policies WHERE tenant_id = $1
		ORDER BY version DESC LIMIT 1
	`, tenantID.String())
	policy, err := scanPolicy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TenantPolicy{}, dErrors.Newf(dErrors.CodeNotFound, "no policy for tenant %s", tenantID)
	}
	return policy, err
}

func (s *PostgresPolicyStore) Version(ctx context.Context, tenantID id.TenantID, version int) (domain.TenantPolicy, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+policyColumns+`
		FROM tenant_policies WHERE tenant_id = $1 AND version = $2
	`, tenantID.String(), version)
	policy, err := scanPolicy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TenantPolicy{}, dErrors.Newf(dErrors.CodeNotFound, "policy version %d for tenant %s not found", version, tenantID)
	}
	return policy, err
}

func (s *PostgresPolicyStore) Save(ctx context.Context, policy domain.TenantPolicy) (domain.TenantPolicy, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tenant_policies (`+policyColumns+`)
		VALUES (
			$1,
			COALESCE((SELECT MAX(version) FROM tenant_policies WHERE tenant_id = $1), 0) + 1,
			$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
		)
		RETURNING version
	`,
		policy.TenantID.String(),
		policy.HardRejectRisk, policy.MinApprovalConfidence, policy.MaxApprovalRisk, policy.MinExtractConfidence,
		policy.ReviewSLADays, policy.EscalationStepDays, policy.SeniorQueue,
		policy.SyncCapacityPerMinute, policy.OfflineBacklogLimit,
		policy.APIRateLimitPerMinute, policy.MaxDocumentsPerDay, policy.DataRetentionDays,
		policy.CrossTenantDedup,
	)
	if err := row.Scan(&policy.Version); err != nil {
		return domain.TenantPolicy{}, fmt.Errorf("insert policy: %w", err)
	}
	return policy, nil
}

func scanPolicy(row pgx.Row) (domain.TenantPolicy, error) {
	var (
		policy   domain.TenantPolicy
		tenantID string
	)
	err := row.Scan(
		&tenantID, &policy.Version,
		&policy.HardRejectRisk, &policy.MinApprovalConfidence, &policy.MaxApprovalRisk, &policy.MinExtractConfidence,
		&policy.ReviewSLADays, &policy.EscalationStepDays, &policy.SeniorQueue,
		&policy.SyncCapacityPerMinute, &policy.OfflineBacklogLimit,
		&policy.APIRateLimitPerMinute, &policy.MaxDocumentsPerDay, &policy.DataRetentionDays,
		&policy.CrossTenantDedup,
	)
	if err != nil {
		return domain.TenantPolicy{}, err
	}
	policy.TenantID, err = id.ParseTenantID(tenantID)
	return policy, err
}
