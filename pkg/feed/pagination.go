package feed

import (
	"time"

	"github.com/plately/plately/pkg/storage"
)

// normalizePageSize clamps a requested page size to the allowed range.
// Non-positive values fall back to the default.
func normalizePageSize(pageSize int) int {
	if pageSize <= 0 {
		return storage.DefaultPageSize
	}
	if pageSize > storage.MaxPageSize {
		return storage.MaxPageSize
	}
	return pageSize
}

// fetchLimit returns the number of rows to over-fetch for a page, capped at
// the absolute limit. One extra row distinguishes a full last page from a page
// with more behind it.
func fetchLimit(pageSize int) int {
	limit := pageSize * storage.OverFetchFactor
	if limit > storage.MaxFetchLimit {
		limit = storage.MaxFetchLimit
	}
	return limit + 1
}

// paginate cuts the deduplicated candidate list down to one page. The cursor
// is the creation time of the last kept item, set only when more remain.
func paginate(entries []*storage.EntryRecord, pageSize int) ([]*storage.EntryRecord, *time.Time, bool) {
	if len(entries) <= pageSize {
		return entries, nil, false
	}

	page := entries[:pageSize]
	cursor := page[len(page)-1].CreatedAt
	return page, &cursor, true
}
