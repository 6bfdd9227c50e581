package domain

import (
	"time"

	id "veridoc/pkg/domain"
)

// OfflineRecord is a provisional result captured without connectivity to the
// central pipeline. It carries no legal standing until reconciled; the central
// re-computation always supersedes it.
type OfflineRecord struct {
	RecordID   string
	DocumentID id.DocumentID
	TenantID   id.TenantID
	CitizenID  id.CitizenID

	FileName string
	RawText  string

	ProvisionalDecision Decision
	ProvisionalFields   map[string]string
	LocalModelVersions  map[string]string

	SyncStatus SyncStatus

	CapturedAt time.Time
	SyncedAt   *time.Time
}

// SyncOutcome summarizes one reconciliation window.
type SyncOutcome struct {
	Pending    int
	Synced     int
	Conflicted int
	Overflowed int
	Failed     int
}
