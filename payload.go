package fbrealtime

import "encoding/json"

// PageUpdate is the envelope Facebook posts for realtime updates on the
// page, user, instagram and permissions objects.
type PageUpdate struct {
	Object string        `json:"object"`
	Entry  []UpdateEntry `json:"entry"`
}

// UpdateEntry describes the changes for one object id
type UpdateEntry struct {
	ID            string         `json:"id"`
	Time          int64          `json:"time"`
	UID           string         `json:"uid,omitempty"`
	ChangedFields []string       `json:"changed_fields,omitempty"`
	Changes       []UpdateChange `json:"changes,omitempty"`
}

// UpdateChange is a single field change. Value is left raw since its shape
// depends on the field.
type UpdateChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Fields returns the distinct changed field names across all entries, in order of
// first appearance
func (u PageUpdate) Fields() []string {
	seen := make(map[string]struct{})
	fields := make([]string, 0)
	add := func(field string) {
		if field == "" {
			return
		}
		if _, ok := seen[field]; ok {
			return
		}
		seen[field] = struct{}{}
		fields = append(fields, field)
	}

	for _, entry := range u.Entry {
		for _, field := range entry.ChangedFields {
			add(field)
		}
		for _, change := range entry.Changes {
			add(change.Field)
		}
	}
	return fields
}
