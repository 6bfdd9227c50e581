package tenant_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"veridoc/internal/domain"
	"veridoc/internal/tenant"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type TenantSuite struct {
	suite.Suite

	ctx context.Context
	svc *tenant.Service
}

func (s *TenantSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = tenant.NewService(tenant.NewMemoryPolicyStore(), logger)
}

func (s *TenantSuite) TestResolve_FallsBackToDefaults() {
	tenantID := id.NewTenantID()

	policy, err := s.svc.Resolve(s.ctx, tenantID)
	s.Require().NoError(err)
	s.Equal(domain.DefaultPolicy(tenantID), policy)
}

func (s *TenantSuite) TestResolve_RequiresTenantID() {
	_, err := s.svc.Resolve(s.ctx, id.TenantID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *TenantSuite) TestUpdate_AllocatesVersions() {
	tenantID := id.NewTenantID()
	policy := domain.DefaultPolicy(tenantID)
	policy.ReviewSLADays = 5

	first, err := s.svc.Update(s.ctx, policy)
	s.Require().NoError(err)
	s.Equal(1, first.Version)

	policy.ReviewSLADays = 2
	second, err := s.svc.Update(s.ctx, policy)
	s.Require().NoError(err)
	s.Equal(2, second.Version)

	latest, err := s.svc.Resolve(s.ctx, tenantID)
	s.Require().NoError(err)
	s.Equal(2, latest.Version)
	s.Equal(2, latest.ReviewSLADays)
}

func (s *TenantSuite) TestUpdate_RejectsInvalidThresholds() {
	tenantID := id.NewTenantID()

	policy := domain.DefaultPolicy(tenantID)
	policy.HardRejectRisk = 1.5
	_, err := s.svc.Update(s.ctx, policy)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	policy = domain.DefaultPolicy(tenantID)
	policy.MaxApprovalRisk = policy.HardRejectRisk
	_, err = s.svc.Update(s.ctx, policy)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	policy = domain.DefaultPolicy(tenantID)
	policy.SyncCapacityPerMinute = 0
	_, err = s.svc.Update(s.ctx, policy)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *TenantSuite) TestResolveVersion_PinsOldVersions() {
	tenantID := id.NewTenantID()
	policy := domain.DefaultPolicy(tenantID)
	policy.MinApprovalConfidence = 0.8

	_, err := s.svc.Update(s.ctx, policy)
	s.Require().NoError(err)
	policy.MinApprovalConfidence = 0.9
	_, err = s.svc.Update(s.ctx, policy)
	s.Require().NoError(err)

	pinned, err := s.svc.ResolveVersion(s.ctx, tenantID, 1)
	s.Require().NoError(err)
	s.Equal(0.8, pinned.MinApprovalConfidence)
}

func (s *TenantSuite) TestResolveVersion_ImplicitDefaultForVersionOne() {
	tenantID := id.NewTenantID()

	policy, err := s.svc.ResolveVersion(s.ctx, tenantID, 1)
	s.Require().NoError(err)
	s.Equal(domain.DefaultPolicy(tenantID), policy)

	_, err = s.svc.ResolveVersion(s.ctx, tenantID, 2)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestTenantSuite(t *testing.T) {
	suite.Run(t, new(TenantSuite))
}
