package model

import "time"

// EntityType identifies one of the synced record kinds. Contact kinds own
// child collections (emails, phones, addresses, skills); activity kinds are
// flat rows keyed by external ID only.
type EntityType string

const (
	EntityVolunteer     EntityType = "volunteer"
	EntityTeacher       EntityType = "teacher"
	EntityStudent       EntityType = "student"
	EntityEvent         EntityType = "event"
	EntityParticipation EntityType = "participation"
	EntityHistory       EntityType = "history"
)

// AllEntityTypes returns every synced type, contact kinds first so that
// activity records can reference contacts created in the same full sync.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityVolunteer,
		EntityTeacher,
		EntityStudent,
		EntityEvent,
		EntityParticipation,
		EntityHistory,
	}
}

func (t EntityType) Valid() bool {
	switch t {
	case EntityVolunteer, EntityTeacher, EntityStudent,
		EntityEvent, EntityParticipation, EntityHistory:
		return true
	}
	return false
}

// IsContact reports whether the type lives in the contacts table and owns
// child collections.
func (t EntityType) IsContact() bool {
	switch t {
	case EntityVolunteer, EntityTeacher, EntityStudent:
		return true
	}
	return false
}

// AttrNames lists the syncable attributes of an entity type. Field maps are
// validated against this list at startup; attribute names double as column
// names in the local store.
func AttrNames(t EntityType) []string {
	switch t {
	case EntityVolunteer, EntityTeacher, EntityStudent:
		return []string{"first_name", "last_name", "title", "status", "organization", "notes", "birth_date"}
	case EntityEvent:
		return []string{"name", "location", "status", "starts_at", "ends_at"}
	case EntityParticipation:
		return []string{"contact_external_id", "event_external_id", "role", "status", "hours"}
	case EntityHistory:
		return []string{"contact_external_id", "kind", "summary", "occurred_at"}
	}
	return nil
}

// LocalEntity is a persisted row of any entity type. Attrs holds the
// normalized attribute values keyed by attribute name; child collections are
// populated for contact kinds only.
type LocalEntity struct {
	ID         int64      `json:"id"`
	Type       EntityType `json:"entity_type"`
	ExternalID *string    `json:"external_id,omitempty"`

	Attrs map[string]string `json:"attrs"`

	Emails    []Email   `json:"emails,omitempty"`
	Phones    []Phone   `json:"phones,omitempty"`
	Addresses []Address `json:"addresses,omitempty"`
	Skills    []Skill   `json:"skills,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins the first and last name attributes for contact kinds.
func (e *LocalEntity) FullName() string {
	first := e.Attrs["first_name"]
	last := e.Attrs["last_name"]
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

type Email struct {
	ID        int64      `json:"id"`
	Address   string     `json:"address"`
	Label     string     `json:"label"`
	Primary   bool       `json:"is_primary"`
	BouncedAt *time.Time `json:"bounced_at,omitempty"`
}

type Phone struct {
	ID      int64  `json:"id"`
	Number  string `json:"number"`
	Label   string `json:"label"`
	Primary bool   `json:"is_primary"`
}

type Address struct {
	ID         int64  `json:"id"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Label      string `json:"label"`
	Primary    bool   `json:"is_primary"`
}

// Key identifies an address within a contact for set-union reconciliation.
func (a Address) Key() string {
	return a.Line1 + "|" + a.PostalCode
}

type Skill struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}
