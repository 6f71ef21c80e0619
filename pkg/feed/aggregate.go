package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/plately/plately/internal/concurrency"
	"github.com/plately/plately/pkg/storage"
)

// aggregate joins profiles, reaction counts, the viewer's own reactions,
// comment counts, and resolved media URLs onto a page of entries.
//
// Enrichment reads fail open: a failed batch leaves its fields zeroed and is
// logged at Warn, the page still renders. Capability checks are applied per
// item, zeroing the reaction and comment fields the viewer may not see while
// keeping the item shape stable. Items whose media cannot be resolved at all
// are dropped.
func (e *Engine) aggregate(ctx context.Context, viewerID string, entries []*storage.EntryRecord, audience *Audience) ([]*FeedItem, error) {
	if len(entries) == 0 {
		return []*FeedItem{}, nil
	}

	userSet := map[string]struct{}{}
	pathSet := map[string]struct{}{}
	entryIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		entryIDs = append(entryIDs, entry.ID)
		userSet[entry.OwnerID] = struct{}{}
		for _, id := range entry.TaggedUserIDs {
			userSet[id] = struct{}{}
		}
		for _, path := range entry.MediaPaths {
			pathSet[path] = struct{}{}
		}
	}

	userIDs := make([]string, 0, len(userSet))
	for id := range userSet {
		userIDs = append(userIDs, id)
	}
	paths := make([]string, 0, len(pathSet))
	for path := range pathSet {
		paths = append(paths, path)
	}

	var (
		profiles        map[string]*storage.ProfileRecord
		reactionCounts  map[string]map[string]int
		viewerReactions map[string][]string
		commentCounts   map[string]int
		mediaURLs       = make(map[string]string, len(paths))
	)

	pool := concurrency.NewPool(ctx, e.maxConcurrentReads)
	pool.Go(func(ctx context.Context) error {
		var err error
		profiles, err = e.datastore.GetProfilesByUserIDs(ctx, userIDs)
		if err != nil {
			e.logger.Warn("profile enrichment failed", zap.Error(err))
			profiles = nil
		}
		return nil
	})
	pool.Go(func(ctx context.Context) error {
		var err error
		reactionCounts, err = e.datastore.CountReactionsByEntry(ctx, entryIDs)
		if err != nil {
			e.logger.Warn("reaction count enrichment failed", zap.Error(err))
			reactionCounts = nil
		}
		return nil
	})
	pool.Go(func(ctx context.Context) error {
		var err error
		viewerReactions, err = e.datastore.ListViewerReactions(ctx, entryIDs, viewerID)
		if err != nil {
			e.logger.Warn("viewer reaction enrichment failed", zap.Error(err))
			viewerReactions = nil
		}
		return nil
	})
	pool.Go(func(ctx context.Context) error {
		var err error
		commentCounts, err = e.datastore.CountCommentsByEntry(ctx, entryIDs)
		if err != nil {
			e.logger.Warn("comment count enrichment failed", zap.Error(err))
			commentCounts = nil
		}
		return nil
	})
	pool.Go(func(ctx context.Context) error {
		for _, path := range paths {
			url, err := e.media.ResolveURL(ctx, path)
			if err != nil {
				e.logger.Warn("media url resolution failed",
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}
			mediaURLs[path] = url
		}
		return nil
	})
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	items := make([]*FeedItem, 0, len(entries))
	for _, entry := range entries {
		urls := make([]string, 0, len(entry.MediaPaths))
		for _, path := range entry.MediaPaths {
			if url, ok := mediaURLs[path]; ok {
				urls = append(urls, url)
			}
		}
		if len(urls) == 0 {
			continue
		}

		item := &FeedItem{
			ID:              entry.ID,
			OwnerID:         entry.OwnerID,
			Caption:         entry.Caption,
			Rating:          entry.Rating,
			MediaURLs:       urls,
			CreatedAt:       entry.CreatedAt,
			ReactionCounts:  map[string]int{},
			ViewerReactions: []string{},
			TaggedUsers:     []UserSummary{},
		}

		if author, ok := profiles[entry.OwnerID]; ok {
			item.AuthorName = author.DisplayName
			item.AuthorAvatarURL = e.resolveAvatar(ctx, author.AvatarPath)
		}
		for _, id := range entry.TaggedUserIDs {
			profile, ok := profiles[id]
			if !ok {
				continue
			}
			item.TaggedUsers = append(item.TaggedUsers, UserSummary{
				UserID:      profile.UserID,
				DisplayName: profile.DisplayName,
				AvatarURL:   e.resolveAvatar(ctx, profile.AvatarPath),
			})
		}

		policy := ResolvePolicy(entry)
		item.CanReact = CanAccess(viewerID, entry.OwnerID, policy.Reaction, audience)
		item.CanComment = CanAccess(viewerID, entry.OwnerID, policy.Comment, audience)

		if item.CanReact {
			if counts, ok := reactionCounts[entry.ID]; ok {
				item.ReactionCounts = counts
			}
			if reactions, ok := viewerReactions[entry.ID]; ok {
				item.ViewerReactions = reactions
			}
		}
		if item.CanComment {
			item.CommentCount = commentCounts[entry.ID]
		}

		items = append(items, item)
	}

	return items, nil
}

// resolveAvatar resolves a profile avatar path, failing open to an empty URL.
// Avatar paths are only known after the profile batch completes, so they are
// resolved here rather than in the fan-out; the caching resolver makes the
// repeat lookups cheap.
func (e *Engine) resolveAvatar(ctx context.Context, path string) string {
	if path == "" {
		return ""
	}
	url, err := e.media.ResolveURL(ctx, path)
	if err != nil {
		e.logger.Warn("avatar url resolution failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return ""
	}
	return url
}
