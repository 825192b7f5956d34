package mailcapture

import "sort"

// index maps capture ids to storage entries. It is always complete: it is
// built in one pass from a Backend scan and discarded as a whole.
type index struct {
	entries []Entry // newest first
	byID    map[string]Entry
}

func buildIndex(scanned []Entry) *index {
	byID := make(map[string]Entry, len(scanned))
	for _, e := range scanned {
		byID[e.ID] = e
	}

	entries := make([]Entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SortKey() > entries[j].SortKey()
	})

	return &index{entries: entries, byID: byID}
}

func (x *index) lookup(id string) (Entry, bool) {
	e, ok := x.byID[id]
	return e, ok
}

func (x *index) head(limit int) []Entry {
	if limit < len(x.entries) {
		return x.entries[:limit]
	}
	return x.entries
}
