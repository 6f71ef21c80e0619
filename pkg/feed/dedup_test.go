package feed

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/plately/plately/pkg/storage"
)

func strPtr(s string) *string { return &s }

func TestDedupCanonical(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("canonical_row_wins_over_references", func(t *testing.T) {
		entries := []*storage.EntryRecord{
			{ID: "copy", CanonicalOf: strPtr("orig"), CreatedAt: base.Add(time.Hour)},
			{ID: "orig", CreatedAt: base},
		}

		kept := dedupCanonical(entries)
		require.Len(t, kept, 1)
		require.Equal(t, "orig", kept[0].ID)
	})

	t.Run("reference_kept_when_canonical_absent", func(t *testing.T) {
		entries := []*storage.EntryRecord{
			{ID: "copy1", CanonicalOf: strPtr("orig"), CreatedAt: base.Add(time.Hour)},
			{ID: "copy2", CanonicalOf: strPtr("orig"), CreatedAt: base},
		}

		kept := dedupCanonical(entries)
		require.Len(t, kept, 1)
		require.Equal(t, "copy1", kept[0].ID, "first in fetch order is kept")
	})

	t.Run("distinct_posts_untouched_and_resorted", func(t *testing.T) {
		entries := []*storage.EntryRecord{
			{ID: "b", CreatedAt: base},
			{ID: "a", CreatedAt: base.Add(time.Hour)},
		}

		kept := dedupCanonical(entries)
		require.Len(t, kept, 2)
		require.Equal(t, "a", kept[0].ID)
		require.Equal(t, "b", kept[1].ID)
	})

	t.Run("idempotent", func(t *testing.T) {
		entries := []*storage.EntryRecord{
			{ID: "copy", CanonicalOf: strPtr("orig"), CreatedAt: base.Add(time.Hour)},
			{ID: "orig", CreatedAt: base},
			{ID: "other", CreatedAt: base.Add(2 * time.Hour)},
		}

		once := dedupCanonical(entries)
		twice := dedupCanonical(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("dedup not idempotent (-once +twice):\n%s", diff)
		}
	})
}
