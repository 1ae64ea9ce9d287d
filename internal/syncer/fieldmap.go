package syncer

import (
	"fmt"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// Normalizer canonicalizes one remote field value before comparison and
// storage.
type Normalizer func(string) string

// FieldDescriptor declares one remote-key → local-attribute correspondence.
// AuthoritativeEmpty lets an explicitly empty remote value clear a populated
// local one; by default an absent or empty remote field never overwrites
// good local data.
type FieldDescriptor struct {
	RemoteKey          string
	LocalAttr          string
	Normalize          Normalizer
	AuthoritativeEmpty bool
	Required           bool
}

func (d FieldDescriptor) normalize(s string) string {
	if d.Normalize == nil {
		return NormalizeSpace(s)
	}
	return d.Normalize(s)
}

var contactFields = []FieldDescriptor{
	{RemoteKey: "first_name", LocalAttr: "first_name", Required: true},
	{RemoteKey: "last_name", LocalAttr: "last_name", Required: true},
	{RemoteKey: "title", LocalAttr: "title"},
	{RemoteKey: "status", LocalAttr: "status", Normalize: NormalizeEnum},
	{RemoteKey: "organization", LocalAttr: "organization"},
	{RemoteKey: "notes", LocalAttr: "notes"},
	{RemoteKey: "birth_date", LocalAttr: "birth_date", Normalize: NormalizeDate},
}

// fieldMaps is the static per-entity-type mapping table. It replaces the ad
// hoc per-route dictionaries of earlier importers and is validated once at
// startup.
var fieldMaps = map[model.EntityType][]FieldDescriptor{
	model.EntityVolunteer: contactFields,
	model.EntityTeacher:   contactFields,
	model.EntityStudent:   contactFields,
	model.EntityEvent: {
		{RemoteKey: "name", LocalAttr: "name", Required: true},
		{RemoteKey: "location", LocalAttr: "location"},
		{RemoteKey: "status", LocalAttr: "status", Normalize: NormalizeEnum},
		{RemoteKey: "starts_at", LocalAttr: "starts_at", Normalize: NormalizeDate},
		{RemoteKey: "ends_at", LocalAttr: "ends_at", Normalize: NormalizeDate},
	},
	model.EntityParticipation: {
		{RemoteKey: "contact_id", LocalAttr: "contact_external_id", Required: true},
		{RemoteKey: "event_id", LocalAttr: "event_external_id", Required: true},
		{RemoteKey: "role", LocalAttr: "role", Normalize: NormalizeEnum},
		{RemoteKey: "status", LocalAttr: "status", Normalize: NormalizeEnum},
		{RemoteKey: "hours", LocalAttr: "hours"},
	},
	model.EntityHistory: {
		{RemoteKey: "contact_id", LocalAttr: "contact_external_id", Required: true},
		{RemoteKey: "kind", LocalAttr: "kind", Normalize: NormalizeEnum},
		{RemoteKey: "summary", LocalAttr: "summary"},
		// An explicit empty occurred_at clears a previously wrong stamp.
		{RemoteKey: "occurred_at", LocalAttr: "occurred_at", Normalize: NormalizeDate, AuthoritativeEmpty: true},
	},
}

// Descriptors returns the field map for an entity type.
func Descriptors(t model.EntityType) []FieldDescriptor {
	return fieldMaps[t]
}

// primaryPrefs ranks child labels per entity type; when several remote
// values are primary-eligible the earliest-ranked label wins. An entry for
// "" ranks unlabeled children.
var primaryPrefs = map[model.EntityType]map[string][]string{
	model.EntityVolunteer: {
		"email":   {"personal", "home", "work", ""},
		"phone":   {"mobile", "home", "work", ""},
		"address": {"home", "work", ""},
	},
	model.EntityTeacher: {
		"email":   {"work", "school", "personal", ""},
		"phone":   {"work", "mobile", "home", ""},
		"address": {"work", "home", ""},
	},
	model.EntityStudent: {
		"email":   {"school", "personal", "home", ""},
		"phone":   {"mobile", "home", ""},
		"address": {"home", ""},
	},
}

// PrimaryPreference returns the ranked label order for a child kind
// ("email", "phone", "address") of a contact type.
func PrimaryPreference(t model.EntityType, child string) []string {
	if prefs, ok := primaryPrefs[t]; ok {
		return prefs[child]
	}
	return nil
}

// labelRank returns the position of label in the preference order; unknown
// labels rank after all known ones.
func labelRank(prefs []string, label string) int {
	for i, p := range prefs {
		if p == label {
			return i
		}
	}
	return len(prefs)
}

// ValidateFieldMaps checks every descriptor table against the entity
// model: each local attribute must exist and no attribute may be mapped
// twice. Called once at startup; a failure is a programming error.
func ValidateFieldMaps() error {
	for _, t := range model.AllEntityTypes() {
		descs, ok := fieldMaps[t]
		if !ok || len(descs) == 0 {
			return fmt.Errorf("fieldmap: no descriptors for entity type %q", t)
		}
		known := map[string]bool{}
		for _, attr := range model.AttrNames(t) {
			known[attr] = true
		}
		seen := map[string]bool{}
		for _, d := range descs {
			if d.RemoteKey == "" || d.LocalAttr == "" {
				return fmt.Errorf("fieldmap %s: descriptor with empty key or attribute", t)
			}
			if !known[d.LocalAttr] {
				return fmt.Errorf("fieldmap %s: unknown local attribute %q", t, d.LocalAttr)
			}
			if seen[d.LocalAttr] {
				return fmt.Errorf("fieldmap %s: attribute %q mapped twice", t, d.LocalAttr)
			}
			seen[d.LocalAttr] = true
		}
		if t.IsContact() {
			for _, child := range []string{"email", "phone", "address"} {
				if len(PrimaryPreference(t, child)) == 0 {
					return fmt.Errorf("fieldmap %s: no primary preference for %s", t, child)
				}
			}
		}
	}
	return nil
}
