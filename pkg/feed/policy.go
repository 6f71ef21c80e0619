package feed

import (
	"github.com/plately/plately/pkg/storage"
)

// Visibility is an audience level attached to a post surface.
type Visibility string

const (
	VisibilityPublic           Visibility = "public"
	VisibilityFriends          Visibility = "friends"
	VisibilityFriendsOfFriends Visibility = "friendsOfFriends"
	VisibilityPrivate          Visibility = "private"
)

// ParseVisibility maps a stored visibility string to a Visibility. The second
// return value is false for empty or unrecognized values, which old rows carry.
func ParseVisibility(s string) (Visibility, bool) {
	switch Visibility(s) {
	case VisibilityPublic, VisibilityFriends, VisibilityFriendsOfFriends, VisibilityPrivate:
		return Visibility(s), true
	default:
		return "", false
	}
}

// Policy is the effective per-capability visibility of an entry after all
// fallbacks have been applied. It is derived, never stored.
type Policy struct {
	Post     Visibility
	Reaction Visibility
	Comment  Visibility
}

// ResolvePolicy derives the effective policy of an entry.
//
// The post visibility is taken as stored, defaulting to public when the value
// is missing or unrecognized. The reaction visibility defaults to the resolved
// post visibility. The comment visibility prefers an explicit valid value,
// then the legacy friends-only boolean, then the resolved post visibility.
func ResolvePolicy(e *storage.EntryRecord) Policy {
	post, ok := ParseVisibility(e.PostVisibility)
	if !ok {
		post = VisibilityPublic
	}

	reaction, ok := ParseVisibility(e.ReactionVisibility)
	if !ok {
		reaction = post
	}

	comment, ok := ParseVisibility(e.CommentVisibility)
	if !ok {
		switch {
		case e.FriendsOnlyComments == nil:
			comment = post
		case *e.FriendsOnlyComments && post != VisibilityPrivate:
			comment = VisibilityFriends
		default:
			comment = post
		}
	}

	return Policy{Post: post, Reaction: reaction, Comment: comment}
}
