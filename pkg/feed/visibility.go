package feed

import (
	"github.com/plately/plately/pkg/storage"
)

// filterVisible keeps the entries whose resolved post visibility admits the
// viewer. The candidate query over-fetches, e.g. friends-only entries from
// second-degree owners, so every entry is checked here before it can reach a
// page.
func filterVisible(viewerID string, entries []*storage.EntryRecord, audience *Audience) []*storage.EntryRecord {
	visible := make([]*storage.EntryRecord, 0, len(entries))
	for _, entry := range entries {
		if CanAccess(viewerID, entry.OwnerID, ResolvePolicy(entry).Post, audience) {
			visible = append(visible, entry)
		}
	}
	return visible
}

// CanAccess reports whether viewerID may exercise a capability governed by vis
// on content owned by ownerID. The same predicate governs seeing a post,
// reacting to it, and commenting on it; only the visibility fed in differs.
func CanAccess(viewerID, ownerID string, vis Visibility, audience *Audience) bool {
	if viewerID == ownerID {
		return true
	}

	switch vis {
	case VisibilityPublic:
		return true
	case VisibilityPrivate:
		return false
	case VisibilityFriends:
		_, ok := audience.Direct[ownerID]
		return ok
	case VisibilityFriendsOfFriends:
		if _, ok := audience.Direct[ownerID]; ok {
			return true
		}
		_, ok := audience.SecondDegree[ownerID]
		return ok
	default:
		return false
	}
}
