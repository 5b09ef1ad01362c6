package principal

import "strings"

// MappingEntry maps a source farm principal to its target principal
type MappingEntry struct {
	Source string
	Target string
}

// MappingTable is the read-only override table built from a user mapping file.
// It is safe for concurrent use once built.
type MappingTable struct {
	entries []MappingEntry
	index   map[string]int
}

// NewMappingTable builds a table from entries. Sources are compared case-insensitively and a
// later entry for the same source replaces an earlier one.
func NewMappingTable(entries []MappingEntry) *MappingTable {
	t := &MappingTable{
		index: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		key := mappingKey(e.Source)
		if key == "" {
			continue
		}
		entry := MappingEntry{Source: strings.TrimSpace(e.Source), Target: strings.TrimSpace(e.Target)}
		if i, ok := t.index[key]; ok {
			t.entries[i] = entry
			continue
		}
		t.index[key] = len(t.entries)
		t.entries = append(t.entries, entry)
	}
	return t
}

// Lookup returns the entry whose source equals the given identity, ignoring case.
func (t *MappingTable) Lookup(source string) (MappingEntry, bool) {
	if t == nil {
		return MappingEntry{}, false
	}
	i, ok := t.index[mappingKey(source)]
	if !ok {
		return MappingEntry{}, false
	}
	return t.entries[i], true
}

// Len returns the number of distinct sources.
func (t *MappingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the distinct entries in load order.
func (t *MappingTable) Entries() []MappingEntry {
	if t == nil {
		return nil
	}
	out := make([]MappingEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func mappingKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
