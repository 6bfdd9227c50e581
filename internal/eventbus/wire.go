package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
)

// wireEnvelope is the JSON form events take on external transports. IDs
// travel as strings so brokers and stream consumers stay schema-agnostic.
type wireEnvelope struct {
	EventID       string            `json:"event_id"`
	DocumentID    string            `json:"document_id"`
	TenantID      string            `json:"tenant_id"`
	Type          string            `json:"event_type"`
	ActorType     string            `json:"actor_type"`
	ActorID       string            `json:"actor_id,omitempty"`
	Payload       map[string]any    `json:"payload"`
	Reason        string            `json:"reason,omitempty"`
	PolicyVersion int               `json:"policy_version,omitempty"`
	ModelVersions map[string]string `json:"model_versions,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CausationID   string            `json:"causation_id,omitempty"`
	SchemaVersion int               `json:"schema_version"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func wireEvent(e Event) wireEnvelope {
	env := wireEnvelope{
		EventID:       e.EventID.String(),
		DocumentID:    e.DocumentID.String(),
		TenantID:      e.TenantID.String(),
		Type:          string(e.Type),
		ActorType:     string(e.Actor.Type),
		ActorID:       e.Actor.ID,
		Payload:       e.Payload,
		Reason:        e.Reason,
		PolicyVersion: e.PolicyVersion,
		ModelVersions: e.ModelVersions,
		SchemaVersion: e.SchemaVersion,
		OccurredAt:    e.OccurredAt,
	}
	if !e.CorrelationID.IsZero() {
		env.CorrelationID = e.CorrelationID.String()
	}
	if !e.CausationID.IsZero() {
		env.CausationID = e.CausationID.String()
	}
	return env
}

func decodeWireEvent(data []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event envelope: %w", err)
	}
	eventID, err := id.ParseEventID(env.EventID)
	if err != nil {
		return Event{}, err
	}
	documentID, err := id.ParseDocumentID(env.DocumentID)
	if err != nil {
		return Event{}, err
	}
	tenantID, err := id.ParseTenantID(env.TenantID)
	if err != nil {
		return Event{}, err
	}
	e := Event{
		EventID:       eventID,
		DocumentID:    documentID,
		TenantID:      tenantID,
		Type:          Type(env.Type),
		Actor:         domain.Actor{Type: domain.ActorType(env.ActorType), ID: env.ActorID},
		Payload:       env.Payload,
		Reason:        env.Reason,
		PolicyVersion: env.PolicyVersion,
		ModelVersions: env.ModelVersions,
		SchemaVersion: env.SchemaVersion,
		OccurredAt:    env.OccurredAt,
	}
	if env.CorrelationID != "" {
		if jobID, err := id.ParseJobID(env.CorrelationID); err == nil {
			e.CorrelationID = jobID
		}
	}
	if env.CausationID != "" {
		if causation, err := id.ParseEventID(env.CausationID); err == nil {
			e.CausationID = causation
		}
	}
	return e, nil
}
