package domain

import (
	"github.com/google/uuid"

	dErrors "veridoc/pkg/domain-errors"
)

// Typed UUID wrappers keep document, job, and actor identifiers from being
// swapped at call sites. The compiler enforces the distinction.
type (
	DocumentID   uuid.UUID
	JobID        uuid.UUID
	TenantID     uuid.UUID
	CitizenID    uuid.UUID
	OfficerID    uuid.UUID
	EventID      uuid.UUID
	AssignmentID uuid.UUID
)

func NewDocumentID() DocumentID     { return DocumentID(uuid.New()) }
func NewJobID() JobID               { return JobID(uuid.New()) }
func NewTenantID() TenantID         { return TenantID(uuid.New()) }
func NewCitizenID() CitizenID       { return CitizenID(uuid.New()) }
func NewOfficerID() OfficerID       { return OfficerID(uuid.New()) }
func NewEventID() EventID           { return EventID(uuid.New()) }
func NewAssignmentID() AssignmentID { return AssignmentID(uuid.New()) }

func (id DocumentID) String() string   { return uuid.UUID(id).String() }
func (id JobID) String() string        { return uuid.UUID(id).String() }
func (id TenantID) String() string     { return uuid.UUID(id).String() }
func (id CitizenID) String() string    { return uuid.UUID(id).String() }
func (id OfficerID) String() string    { return uuid.UUID(id).String() }
func (id EventID) String() string      { return uuid.UUID(id).String() }
func (id AssignmentID) String() string { return uuid.UUID(id).String() }

func (id DocumentID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id JobID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CitizenID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id OfficerID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AssignmentID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling renders ids as canonical UUID strings in JSON and logs.
func (id DocumentID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id JobID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id TenantID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id CitizenID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id OfficerID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id AssignmentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *DocumentID) UnmarshalText(text []byte) error {
	parsed, err := ParseDocumentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *JobID) UnmarshalText(text []byte) error {
	parsed, err := ParseJobID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TenantID) UnmarshalText(text []byte) error {
	parsed, err := ParseTenantID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CitizenID) UnmarshalText(text []byte) error {
	parsed, err := ParseCitizenID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *OfficerID) UnmarshalText(text []byte) error {
	parsed, err := ParseOfficerID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EventID) UnmarshalText(text []byte) error {
	parsed, err := ParseEventID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AssignmentID) UnmarshalText(text []byte) error {
	parsed, err := ParseAssignmentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id must not be empty")
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "malformed id %q", raw)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "nil id is not allowed")
	}
	return u, nil
}

func ParseDocumentID(raw string) (DocumentID, error) {
	u, err := parseUUID(raw)
	return DocumentID(u), err
}

func ParseJobID(raw string) (JobID, error) {
	u, err := parseUUID(raw)
	return JobID(u), err
}

func ParseTenantID(raw string) (TenantID, error) {
	u, err := parseUUID(raw)
	return TenantID(u), err
}

func ParseCitizenID(raw string) (CitizenID, error) {
	u, err := parseUUID(raw)
	return CitizenID(u), err
}

func ParseOfficerID(raw string) (OfficerID, error) {
	u, err := parseUUID(raw)
	return OfficerID(u), err
}

func ParseEventID(raw string) (EventID, error) {
	u, err := parseUUID(raw)
	return EventID(u), err
}

func ParseAssignmentID(raw string) (AssignmentID, error) {
	u, err := parseUUID(raw)
	return AssignmentID(u), err
}
