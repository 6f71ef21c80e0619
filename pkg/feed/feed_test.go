package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/plately/plately/pkg/storage"
	"github.com/plately/plately/pkg/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubDatastore wraps a FeedDatastore, counting entry reads and allowing
// individual reads to be overridden.
type stubDatastore struct {
	storage.FeedDatastore

	entryCalls      atomic.Int64
	listFeedEntries func(ctx context.Context, filter storage.EntryFilter) ([]*storage.EntryRecord, error)
	countReactions  func(ctx context.Context, entryIDs []string) (map[string]map[string]int, error)
	countComments   func(ctx context.Context, entryIDs []string) (map[string]int, error)
	getProfiles     func(ctx context.Context, userIDs []string) (map[string]*storage.ProfileRecord, error)
}

func (s *stubDatastore) ListFeedEntries(ctx context.Context, filter storage.EntryFilter) ([]*storage.EntryRecord, error) {
	s.entryCalls.Add(1)
	if s.listFeedEntries != nil {
		return s.listFeedEntries(ctx, filter)
	}
	return s.FeedDatastore.ListFeedEntries(ctx, filter)
}

func (s *stubDatastore) CountReactionsByEntry(ctx context.Context, entryIDs []string) (map[string]map[string]int, error) {
	if s.countReactions != nil {
		return s.countReactions(ctx, entryIDs)
	}
	return s.FeedDatastore.CountReactionsByEntry(ctx, entryIDs)
}

func (s *stubDatastore) CountCommentsByEntry(ctx context.Context, entryIDs []string) (map[string]int, error) {
	if s.countComments != nil {
		return s.countComments(ctx, entryIDs)
	}
	return s.FeedDatastore.CountCommentsByEntry(ctx, entryIDs)
}

func (s *stubDatastore) GetProfilesByUserIDs(ctx context.Context, userIDs []string) (map[string]*storage.ProfileRecord, error) {
	if s.getProfiles != nil {
		return s.getProfiles(ctx, userIDs)
	}
	return s.FeedDatastore.GetProfilesByUserIDs(ctx, userIDs)
}

// seedWorld builds the fixture graph used by the assembly tests:
// viewer — friend — acquaintance, with a stranger off to the side.
func seedWorld(t *testing.T) *memory.Datastore {
	t.Helper()

	ds := memory.New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, p := range []*storage.ProfileRecord{
		{UserID: "viewer", DisplayName: "Vera", AvatarPath: "avatars/vera.jpg"},
		{UserID: "friend", DisplayName: "Finn", AvatarPath: "avatars/finn.jpg"},
		{UserID: "acquaintance", DisplayName: "Gus", AvatarPath: "avatars/gus.jpg"},
		{UserID: "stranger", DisplayName: "Sam"},
	} {
		ds.WriteProfile(p)
	}

	ds.WriteConnection(&storage.ConnectionRecord{ID: "c1", RequesterID: "viewer", AddresseeID: "friend", Status: storage.ConnectionStatusAccepted})
	ds.WriteConnection(&storage.ConnectionRecord{ID: "c2", RequesterID: "friend", AddresseeID: "acquaintance", Status: storage.ConnectionStatusAccepted})

	entries := []*storage.EntryRecord{
		{ID: "f-public", OwnerID: "friend", PostVisibility: "public", CreatedAt: base.Add(6 * time.Minute)},
		{ID: "f-friends", OwnerID: "friend", PostVisibility: "friends", CreatedAt: base.Add(5 * time.Minute)},
		{ID: "f-private", OwnerID: "friend", PostVisibility: "private", CreatedAt: base.Add(4 * time.Minute)},
		{ID: "g-fof", OwnerID: "acquaintance", PostVisibility: "friendsOfFriends", CreatedAt: base.Add(3 * time.Minute)},
		{ID: "g-friends", OwnerID: "acquaintance", PostVisibility: "friends", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "s-public", OwnerID: "stranger", PostVisibility: "public", CreatedAt: base.Add(time.Minute)},
		{ID: "v-own", OwnerID: "viewer", PostVisibility: "public", CreatedAt: base},
	}
	for _, e := range entries {
		e.VisibleInFeed = true
		e.Caption = "dinner at the corner spot"
		e.Rating = 4
		e.MediaPaths = []string{"entries/" + e.ID + ".jpg"}
		ds.WriteEntry(e)
	}

	return ds
}

func itemIDs(page *FeedPage) []string {
	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestGetFeedSocialScope(t *testing.T) {
	ds := seedWorld(t)
	defer ds.Close()

	engine := NewEngine(ds)
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopeSocial})
	require.NoError(t, err)

	// f-private never leaks, g-friends requires a direct connection the
	// viewer lacks, the stranger is outside the audience, and the viewer's
	// own entries never appear in their feed.
	require.Equal(t, []string{"f-public", "f-friends", "g-fof"}, itemIDs(page))
	require.False(t, page.HasMore)
	require.Nil(t, page.NextCursor)
}

func TestGetFeedPublicScope(t *testing.T) {
	ds := seedWorld(t)
	defer ds.Close()

	engine := NewEngine(ds)
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopePublic})
	require.NoError(t, err)

	// Only public entries, including strangers', never friends-gated ones
	// and never the viewer's own.
	require.Equal(t, []string{"f-public", "s-public"}, itemIDs(page))
}

func TestGetFeedAssemblesItemFields(t *testing.T) {
	ds := seedWorld(t)
	defer ds.Close()

	tagged := &storage.EntryRecord{
		ID:             "f-tagged",
		OwnerID:        "friend",
		PostVisibility: "public",
		VisibleInFeed:  true,
		Caption:        "team dinner",
		Rating:         5,
		MediaPaths:     []string{"entries/f-tagged.jpg"},
		TaggedUserIDs:  []string{"acquaintance"},
		CreatedAt:      time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
	}
	ds.WriteEntry(tagged)
	ds.WriteReaction(&storage.ReactionRecord{EntryID: "f-tagged", UserID: "viewer", Emoji: "🔥"})
	ds.WriteReaction(&storage.ReactionRecord{EntryID: "f-tagged", UserID: "acquaintance", Emoji: "🔥"})
	ds.WriteComment(&storage.CommentRecord{ID: "m1", EntryID: "f-tagged", UserID: "viewer", Body: "count me in next time"})

	engine := NewEngine(ds, WithMediaURLResolver(NewStaticResolver("https://cdn.example.com")))
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopeSocial, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	require.Equal(t, "f-tagged", item.ID)
	require.Equal(t, "Finn", item.AuthorName)
	require.Equal(t, "https://cdn.example.com/avatars/finn.jpg", item.AuthorAvatarURL)
	require.Equal(t, []string{"https://cdn.example.com/entries/f-tagged.jpg"}, item.MediaURLs)
	require.Equal(t, []UserSummary{{UserID: "acquaintance", DisplayName: "Gus", AvatarURL: "https://cdn.example.com/avatars/gus.jpg"}}, item.TaggedUsers)
	require.True(t, item.CanReact)
	require.True(t, item.CanComment)
	require.Equal(t, map[string]int{"🔥": 2}, item.ReactionCounts)
	require.Equal(t, []string{"🔥"}, item.ViewerReactions)
	require.Equal(t, 1, item.CommentCount)
}

func TestGetFeedCapabilitiesIndependentOfPostVisibility(t *testing.T) {
	ds := seedWorld(t)
	defer ds.Close()

	// Public post from a stranger that gates reactions to friends and
	// comments to nobody. The viewer sees it but can do neither.
	ds.WriteEntry(&storage.EntryRecord{
		ID:                 "s-gated",
		OwnerID:            "stranger",
		PostVisibility:     "public",
		ReactionVisibility: "friends",
		CommentVisibility:  "private",
		VisibleInFeed:      true,
		MediaPaths:         []string{"entries/s-gated.jpg"},
		CreatedAt:          time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
	})
	ds.WriteReaction(&storage.ReactionRecord{EntryID: "s-gated", UserID: "stranger", Emoji: "😋"})
	ds.WriteComment(&storage.CommentRecord{ID: "m1", EntryID: "s-gated", UserID: "stranger", Body: "so good"})

	engine := NewEngine(ds)
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopePublic, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	require.Equal(t, "s-gated", item.ID)
	require.False(t, item.CanReact)
	require.False(t, item.CanComment)
	require.Empty(t, item.ReactionCounts, "gated counts are zeroed, not leaked")
	require.Empty(t, item.ViewerReactions)
	require.Zero(t, item.CommentCount)
}

func TestGetFeedDeduplicatesCanonicalReferences(t *testing.T) {
	ds := seedWorld(t)
	defer ds.Close()

	canonical := "f-public"
	ds.WriteEntry(&storage.EntryRecord{
		ID:             "f-public-copy",
		OwnerID:        "friend",
		PostVisibility: "public",
		VisibleInFeed:  true,
		CanonicalOf:    &canonical,
		MediaPaths:     []string{"entries/f-public.jpg"},
		CreatedAt:      time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
	})

	engine := NewEngine(ds)
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopeSocial})
	require.NoError(t, err)

	require.Equal(t, []string{"f-public", "f-friends", "g-fof"}, itemIDs(page))
}

func TestGetFeedPaginationWalksSnapshotExactlyOnce(t *testing.T) {
	ds := memory.New()
	defer ds.Close()

	ds.WriteProfile(&storage.ProfileRecord{UserID: "stranger", DisplayName: "Sam"})
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		id := string(rune('a' + i))
		ds.WriteEntry(&storage.EntryRecord{
			ID:             id,
			OwnerID:        "stranger",
			PostVisibility: "public",
			VisibleInFeed:  true,
			MediaPaths:     []string{"entries/" + id + ".jpg"},
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}

	engine := NewEngine(ds)

	first, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopePublic, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, first.Items, 5)
	require.True(t, first.HasMore)
	require.NotNil(t, first.NextCursor)

	second, err := engine.GetFeed(context.Background(), &FeedRequest{
		ViewerID: "viewer",
		Scope:    ScopePublic,
		PageSize: 5,
		Cursor:   first.NextCursor,
	})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	require.False(t, second.HasMore)
	require.Nil(t, second.NextCursor)

	seen := map[string]struct{}{}
	for _, item := range append(first.Items, second.Items...) {
		_, dup := seen[item.ID]
		require.False(t, dup, "item %s served twice", item.ID)
		seen[item.ID] = struct{}{}
	}
	require.Len(t, seen, 7, "walk covers the snapshot exactly once")
}

func TestGetFeedEmptyAudienceShortCircuits(t *testing.T) {
	stub := &stubDatastore{FeedDatastore: memory.New()}

	engine := NewEngine(stub)
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "loner", Scope: ScopeSocial})
	require.NoError(t, err)

	require.Empty(t, page.Items)
	require.False(t, page.HasMore)
	require.Nil(t, page.NextCursor)
	require.Zero(t, stub.entryCalls.Load(), "no entry queries for an empty audience")
}

func TestGetFeedDegradedSchemaRetriesOnce(t *testing.T) {
	ds := memory.New(memory.WithoutFeedExtension())
	ds.WriteProfile(&storage.ProfileRecord{UserID: "stranger", DisplayName: "Sam"})
	ds.WriteEntry(&storage.EntryRecord{
		ID:             "s-public",
		OwnerID:        "stranger",
		PostVisibility: "public",
		MediaPaths:     []string{"entries/s-public.jpg"},
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	stub := &stubDatastore{FeedDatastore: ds}

	engine := NewEngine(stub)
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopePublic})
	require.NoError(t, err)

	require.Equal(t, []string{"s-public"}, itemIDs(page))
	require.Equal(t, int64(2), stub.entryCalls.Load(), "exactly one degraded retry")
}

func TestGetFeedEntryQueryFailureIsFatal(t *testing.T) {
	stub := &stubDatastore{
		FeedDatastore: seedWorld(t),
		listFeedEntries: func(_ context.Context, _ storage.EntryFilter) ([]*storage.EntryRecord, error) {
			return nil, errors.New("connection reset")
		},
	}

	engine := NewEngine(stub)
	_, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopeSocial})
	require.Error(t, err)
	require.Equal(t, int64(1), stub.entryCalls.Load(), "no retry for non-schema errors")
}

func TestGetFeedEnrichmentFailsOpen(t *testing.T) {
	stub := &stubDatastore{
		FeedDatastore: seedWorld(t),
		countReactions: func(_ context.Context, _ []string) (map[string]map[string]int, error) {
			return nil, errors.New("connection reset")
		},
		countComments: func(_ context.Context, _ []string) (map[string]int, error) {
			return nil, errors.New("connection reset")
		},
		getProfiles: func(_ context.Context, _ []string) (map[string]*storage.ProfileRecord, error) {
			return nil, errors.New("connection reset")
		},
	}

	engine := NewEngine(stub)
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopeSocial})
	require.NoError(t, err)
	require.Equal(t, []string{"f-public", "f-friends", "g-fof"}, itemIDs(page))

	for _, item := range page.Items {
		require.Empty(t, item.AuthorName)
		require.Empty(t, item.ReactionCounts)
		require.Zero(t, item.CommentCount)
	}
}

func TestGetFeedDropsItemsWithoutResolvableMedia(t *testing.T) {
	ds := seedWorld(t)
	defer ds.Close()

	ds.WriteEntry(&storage.EntryRecord{
		ID:             "f-no-media",
		OwnerID:        "friend",
		PostVisibility: "public",
		VisibleInFeed:  true,
		CreatedAt:      time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
	})

	engine := NewEngine(ds)
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopeSocial})
	require.NoError(t, err)
	require.NotContains(t, itemIDs(page), "f-no-media")
}

func TestGetFeedRequestValidation(t *testing.T) {
	ds := memory.New()
	defer ds.Close()
	engine := NewEngine(ds)

	t.Run("missing_viewer", func(t *testing.T) {
		_, err := engine.GetFeed(context.Background(), &FeedRequest{Scope: ScopePublic})
		require.ErrorIs(t, err, ErrMissingViewer)
	})

	t.Run("unknown_scope", func(t *testing.T) {
		_, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: "trending"})
		require.ErrorIs(t, err, ErrUnknownScope)
	})
}
