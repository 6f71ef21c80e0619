package feed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/plately/plately/pkg/storage"
)

// Scope selects which feed a request assembles.
type Scope string

const (
	// ScopePublic assembles the discovery feed: public entries from anyone.
	ScopePublic Scope = "public"

	// ScopeSocial assembles the home feed: entries from the viewer's
	// audience, filtered per entry by the visibility predicate.
	ScopeSocial Scope = "social"
)

// fetchCandidates runs the single filtered entry query for a request. The
// returned bool reports degraded mode: when the schema lacks the feed
// extension columns the query is retried exactly once without them, and
// downstream deduplication is skipped.
func (e *Engine) fetchCandidates(ctx context.Context, req *FeedRequest, pageSize int, audience *Audience) ([]*storage.EntryRecord, bool, error) {
	filter := storage.EntryFilter{
		ExcludeOwnerID:      req.ViewerID,
		Before:              req.Cursor,
		Limit:               fetchLimit(pageSize),
		FeedVisibleOnly:     true,
		IncludeCanonicalRef: true,
	}

	switch req.Scope {
	case ScopePublic:
		filter.Visibilities = []string{string(VisibilityPublic)}
	case ScopeSocial:
		filter.OwnerIDs = audience.Members()
		filter.Visibilities = []string{
			string(VisibilityPublic),
			string(VisibilityFriendsOfFriends),
			string(VisibilityFriends),
		}
	}

	entries, err := e.datastore.ListFeedEntries(ctx, filter)
	if err == nil {
		return entries, false, nil
	}
	if !errors.Is(err, storage.ErrSchemaUnsupported) {
		return nil, false, fmt.Errorf("list feed entries: %w", err)
	}

	e.logger.Warn("feed extension columns unavailable, serving degraded feed", zap.Error(err))

	filter.FeedVisibleOnly = false
	filter.IncludeCanonicalRef = false

	entries, err = e.datastore.ListFeedEntries(ctx, filter)
	if err != nil {
		return nil, false, fmt.Errorf("list feed entries degraded: %w", err)
	}
	return entries, true, nil
}
