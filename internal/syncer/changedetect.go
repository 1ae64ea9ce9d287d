package syncer

import "github.com/sparkprog/go-crmsync-backend/internal/model"

// FieldChange is one attribute whose normalized remote value differs from
// the local one.
type FieldChange struct {
	Attr string
	Old  string
	New  string
}

// Diff compares a remote record's mapped fields against the local attribute
// values and returns the set of changed attributes. An absent or empty
// remote value never overwrites a populated local value unless the field is
// flagged authoritative-empty, so a transient export gap cannot corrupt
// good local data.
func Diff(localAttrs map[string]string, rec model.RemoteRecord, descs []FieldDescriptor) []FieldChange {
	var changes []FieldChange
	for _, d := range descs {
		incoming := d.normalize(rec.String(d.RemoteKey))
		current := d.normalize(localAttrs[d.LocalAttr])
		if incoming == "" && current != "" && !d.AuthoritativeEmpty {
			continue
		}
		if incoming != current {
			changes = append(changes, FieldChange{Attr: d.LocalAttr, Old: current, New: incoming})
		}
	}
	return changes
}

// changedAttrs renders a diff as the attribute→value map handed to the
// store.
func changedAttrs(changes []FieldChange) map[string]string {
	if len(changes) == 0 {
		return nil
	}
	out := make(map[string]string, len(changes))
	for _, c := range changes {
		out[c.Attr] = c.New
	}
	return out
}
