package eventbus

import (
	"time"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
)

// Type names a document event. The full set is enumerated in contracts.go;
// publishing an unknown type is rejected.
type Type string

// Event is the immutable, append-only audit record. CorrelationID links all
// events of one job execution; CausationID points at the event that caused
// this one, forming a causal chain per document.
type Event struct {
	EventID    id.EventID
	DocumentID id.DocumentID
	TenantID   id.TenantID

	Type  Type
	Actor domain.Actor

	Payload map[string]any
	Reason  string

	PolicyVersion int
	ModelVersions map[string]string

	CorrelationID id.JobID
	CausationID   id.EventID

	SchemaVersion int
	OccurredAt    time.Time
}

// Filter selects event types for a subscription. An empty filter matches
// everything.
type Filter struct {
	Types []Type
}

func (f Filter) matches(t Type) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, want := range f.Types {
		if want == t {
			return true
		}
	}
	return false
}
