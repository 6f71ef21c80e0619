// Package memory provides an in-memory implementation of the feed datastore.
// It is intended for development and tests, not production use.
package memory

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/plately/plately/pkg/storage"
)

var tracer = otel.Tracer("plately/pkg/storage/memory")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "memory."+name)
}

// Datastore is a thread safe in-memory implementation of
// [storage.FeedDatastore].
type Datastore struct {
	mu sync.RWMutex

	connections []*storage.ConnectionRecord
	entries     []*storage.EntryRecord
	reactions   []*storage.ReactionRecord
	comments    []*storage.CommentRecord
	profiles    map[string]*storage.ProfileRecord

	// feedExtension mirrors whether the schema carries the feed extension
	// columns. When false, reads that require those columns fail with
	// ErrSchemaUnsupported, like a SQL store running the base schema.
	feedExtension bool
}

// Ensures that Datastore implements the FeedDatastore interface.
var _ storage.FeedDatastore = (*Datastore)(nil)

// StorageOption defines an option that can be used to alter the behavior of
// the in-memory datastore.
type StorageOption func(*Datastore)

// WithoutFeedExtension configures the datastore to behave as if the feed
// extension columns were never migrated in.
func WithoutFeedExtension() StorageOption {
	return func(ds *Datastore) {
		ds.feedExtension = false
	}
}

// New creates a new [Datastore] storage.
func New(opts ...StorageOption) *Datastore {
	ds := &Datastore{
		profiles:      map[string]*storage.ProfileRecord{},
		feedExtension: true,
	}

	for _, opt := range opts {
		opt(ds)
	}

	return ds
}

// Close see [storage.FeedDatastore].Close.
func (s *Datastore) Close() {}

// WriteProfile stores or replaces a profile.
func (s *Datastore) WriteProfile(p *storage.ProfileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.profiles[p.UserID] = &cp
}

// WriteConnection stores a connection.
func (s *Datastore) WriteConnection(c *storage.ConnectionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.connections = append(s.connections, &cp)
}

// WriteEntry stores an entry.
func (s *Datastore) WriteEntry(e *storage.EntryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.entries = append(s.entries, &cp)
}

// WriteReaction stores a reaction.
func (s *Datastore) WriteReaction(r *storage.ReactionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.reactions = append(s.reactions, &cp)
}

// WriteComment stores a comment.
func (s *Datastore) WriteComment(c *storage.CommentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.comments = append(s.comments, &cp)
}

// ListAcceptedByUser see [storage.ConnectionStore].ListAcceptedByUser.
func (s *Datastore) ListAcceptedByUser(ctx context.Context, userID string) ([]*storage.ConnectionRecord, error) {
	_, span := startTrace(ctx, "ListAcceptedByUser")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*storage.ConnectionRecord
	for _, c := range s.connections {
		if c.Status != storage.ConnectionStatusAccepted {
			continue
		}
		if c.RequesterID == userID || c.AddresseeID == userID {
			cp := *c
			matches = append(matches, &cp)
		}
	}
	return matches, nil
}

// ListAcceptedByRequesters see [storage.ConnectionStore].ListAcceptedByRequesters.
func (s *Datastore) ListAcceptedByRequesters(ctx context.Context, userIDs []string) ([]*storage.ConnectionRecord, error) {
	_, span := startTrace(ctx, "ListAcceptedByRequesters")
	defer span.End()

	return s.listAccepted(userIDs, func(c *storage.ConnectionRecord) string { return c.RequesterID }), nil
}

// ListAcceptedByAddressees see [storage.ConnectionStore].ListAcceptedByAddressees.
func (s *Datastore) ListAcceptedByAddressees(ctx context.Context, userIDs []string) ([]*storage.ConnectionRecord, error) {
	_, span := startTrace(ctx, "ListAcceptedByAddressees")
	defer span.End()

	return s.listAccepted(userIDs, func(c *storage.ConnectionRecord) string { return c.AddresseeID }), nil
}

func (s *Datastore) listAccepted(userIDs []string, party func(*storage.ConnectionRecord) string) []*storage.ConnectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		members[id] = struct{}{}
	}

	var matches []*storage.ConnectionRecord
	for _, c := range s.connections {
		if c.Status != storage.ConnectionStatusAccepted {
			continue
		}
		if _, ok := members[party(c)]; ok {
			cp := *c
			matches = append(matches, &cp)
		}
	}
	return matches
}

// ListFeedEntries see [storage.EntryStore].ListFeedEntries.
func (s *Datastore) ListFeedEntries(ctx context.Context, filter storage.EntryFilter) ([]*storage.EntryRecord, error) {
	_, span := startTrace(ctx, "ListFeedEntries")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if (filter.FeedVisibleOnly || filter.IncludeCanonicalRef) && !s.feedExtension {
		return nil, storage.ErrSchemaUnsupported
	}

	owners := make(map[string]struct{}, len(filter.OwnerIDs))
	for _, id := range filter.OwnerIDs {
		owners[id] = struct{}{}
	}
	visibilities := make(map[string]struct{}, len(filter.Visibilities))
	for _, v := range filter.Visibilities {
		visibilities[v] = struct{}{}
	}

	var matches []*storage.EntryRecord
	for _, e := range s.entries {
		if len(owners) > 0 {
			if _, ok := owners[e.OwnerID]; !ok {
				continue
			}
		}
		if len(visibilities) > 0 {
			if _, ok := visibilities[e.PostVisibility]; !ok {
				continue
			}
		}
		if filter.ExcludeOwnerID != "" && e.OwnerID == filter.ExcludeOwnerID {
			continue
		}
		if filter.Before != nil && !e.CreatedAt.Before(*filter.Before) {
			continue
		}
		if filter.FeedVisibleOnly && !e.VisibleInFeed {
			continue
		}

		cp := *e
		if !filter.IncludeCanonicalRef {
			cp.CanonicalOf = nil
		}
		matches = append(matches, &cp)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

// CountReactionsByEntry see [storage.ReactionStore].CountReactionsByEntry.
func (s *Datastore) CountReactionsByEntry(ctx context.Context, entryIDs []string) (map[string]map[string]int, error) {
	_, span := startTrace(ctx, "CountReactionsByEntry")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make(map[string]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		members[id] = struct{}{}
	}

	counts := map[string]map[string]int{}
	for _, r := range s.reactions {
		if _, ok := members[r.EntryID]; !ok {
			continue
		}
		if counts[r.EntryID] == nil {
			counts[r.EntryID] = map[string]int{}
		}
		counts[r.EntryID][r.Emoji]++
	}
	return counts, nil
}

// ListViewerReactions see [storage.ReactionStore].ListViewerReactions.
func (s *Datastore) ListViewerReactions(ctx context.Context, entryIDs []string, userID string) (map[string][]string, error) {
	_, span := startTrace(ctx, "ListViewerReactions")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make(map[string]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		members[id] = struct{}{}
	}

	reactions := map[string][]string{}
	for _, r := range s.reactions {
		if r.UserID != userID {
			continue
		}
		if _, ok := members[r.EntryID]; !ok {
			continue
		}
		reactions[r.EntryID] = append(reactions[r.EntryID], r.Emoji)
	}
	return reactions, nil
}

// CountCommentsByEntry see [storage.CommentStore].CountCommentsByEntry.
func (s *Datastore) CountCommentsByEntry(ctx context.Context, entryIDs []string) (map[string]int, error) {
	_, span := startTrace(ctx, "CountCommentsByEntry")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make(map[string]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		members[id] = struct{}{}
	}

	counts := map[string]int{}
	for _, c := range s.comments {
		if _, ok := members[c.EntryID]; ok {
			counts[c.EntryID]++
		}
	}
	return counts, nil
}

// GetProfilesByUserIDs see [storage.ProfileStore].GetProfilesByUserIDs.
func (s *Datastore) GetProfilesByUserIDs(ctx context.Context, userIDs []string) (map[string]*storage.ProfileRecord, error) {
	_, span := startTrace(ctx, "GetProfilesByUserIDs")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := map[string]*storage.ProfileRecord{}
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			cp := *p
			profiles[id] = &cp
		}
	}
	return profiles, nil
}

// IsReady see [storage.FeedDatastore].IsReady.
func (s *Datastore) IsReady(_ context.Context) (storage.ReadinessStatus, error) {
	return storage.ReadinessStatus{IsReady: true}, nil
}
