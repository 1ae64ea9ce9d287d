package model

import (
	"strconv"
	"strings"
	"time"
)

// RemoteRecord is one entity instance as decoded from a CRM export page. It
// is a raw key-value view of the JSON payload; typed access goes through the
// helpers below. Records are created per fetched page and discarded after
// processing.
type RemoteRecord map[string]any

// String returns the value under key rendered as a string, or "" when the
// key is absent or null.
func (r RemoteRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; render integers without exponent.
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// Has reports whether the key is present with a non-null value.
func (r RemoteRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// ExternalID returns the remote unique identifier. Every record in the feed
// is expected to carry one.
func (r RemoteRecord) ExternalID() string {
	return strings.TrimSpace(r.String("id"))
}

// LastModified parses the record's last-modified stamp. The feed emits
// RFC3339; epoch milliseconds are accepted for older export formats.
func (r RemoteRecord) LastModified() *time.Time {
	raw := r.String("last_modified")
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := ts.UTC()
		return &utc
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		ts := time.UnixMilli(ms).UTC()
		return &ts
	}
	return nil
}

// ChildValue is one element of a remote child collection (an email, phone,
// address or skill) reduced to the fields reconciliation cares about.
type ChildValue struct {
	Value   string
	Label   string
	Primary bool
	Extra   map[string]string
}

// childValueKeys are tried in order when locating the payload value of a
// child element.
var childValueKeys = []string{"address", "number", "value", "name"}

// Children decodes the child collection under key. Elements that are not
// objects or carry no usable value are dropped.
func (r RemoteRecord) Children(key string) []ChildValue {
	arr, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]ChildValue, 0, len(arr))
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		child := RemoteRecord(obj)
		cv := ChildValue{
			Label: strings.TrimSpace(child.String("label")),
			Extra: map[string]string{},
		}
		for _, vk := range childValueKeys {
			if s := strings.TrimSpace(child.String(vk)); s != "" {
				cv.Value = s
				break
			}
		}
		if p, ok := obj["primary"].(bool); ok {
			cv.Primary = p
		} else if p, ok := obj["is_primary"].(bool); ok {
			cv.Primary = p
		}
		for k := range obj {
			switch k {
			case "label", "primary", "is_primary":
				continue
			}
			if s := strings.TrimSpace(child.String(k)); s != "" {
				cv.Extra[k] = s
			}
		}
		if cv.Value == "" && len(cv.Extra) == 0 {
			continue
		}
		out = append(out, cv)
	}
	return out
}
