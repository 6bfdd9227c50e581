package stages

import (
	"context"

	id "veridoc/pkg/domain"
)

// DedupCounter counts prior submissions sharing a content fingerprint.
type DedupCounter interface {
	CountByDedupHash(ctx context.Context, tenantID id.TenantID, hash string, exclude id.DocumentID) (int, error)
	CountByDedupHashGlobal(ctx context.Context, hash string, exclude id.DocumentID) (int, error)
}

// DedupResult reports cross-submission duplicate evidence.
type DedupResult struct {
	DedupHash          string
	DuplicateCount     int
	SuspectedDuplicate bool
	Scope              string
}

// CheckDuplicates looks the fingerprint up within the tenant, or across all
// tenants when the tenant policy enables cross-tenant fraud detection.
func CheckDuplicates(ctx context.Context, counter DedupCounter, tenantID id.TenantID, documentID id.DocumentID, hash string, crossTenant bool) (DedupResult, error) {
	var (
		count int
		scope string
		err   error
	)
	if crossTenant {
		scope = "GLOBAL"
		count, err = counter.CountByDedupHashGlobal(ctx, hash, documentID)
	} else {
		scope = "TENANT"
		count, err = counter.CountByDedupHash(ctx, tenantID, hash, documentID)
	}
	if err != nil {
		return DedupResult{}, err
	}
	return DedupResult{
		DedupHash:          hash,
		DuplicateCount:     count,
		SuspectedDuplicate: count > 0,
		Scope:              scope,
	}, nil
}
