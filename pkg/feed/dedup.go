package feed

import (
	"sort"

	"github.com/plately/plately/pkg/storage"
)

// dedupCanonical collapses rows that refer to the same logical post down to
// one representative each, keyed by the canonical ID. The canonical row wins
// when present; otherwise the first row in fetch order is kept, so repeated
// application is a no-op. The result is re-sorted newest first.
func dedupCanonical(entries []*storage.EntryRecord) []*storage.EntryRecord {
	kept := make([]*storage.EntryRecord, 0, len(entries))
	index := make(map[string]int, len(entries))

	for _, e := range entries {
		key := e.CanonicalID()
		i, ok := index[key]
		if !ok {
			index[key] = len(kept)
			kept = append(kept, e)
			continue
		}
		if kept[i].CanonicalOf != nil && e.CanonicalOf == nil {
			kept[i] = e
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].CreatedAt.Equal(kept[j].CreatedAt) {
			return kept[i].ID > kept[j].ID
		}
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})

	return kept
}
