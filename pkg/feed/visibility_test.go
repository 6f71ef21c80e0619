package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanAccess(t *testing.T) {
	audience := &Audience{
		ViewerID:     "viewer",
		Direct:       map[string]struct{}{"friend": {}},
		SecondDegree: map[string]struct{}{"acquaintance": {}},
	}

	tests := []struct {
		name     string
		ownerID  string
		vis      Visibility
		expected bool
	}{
		{"owner_always_sees_own", "viewer", VisibilityPrivate, true},
		{"public_visible_to_strangers", "stranger", VisibilityPublic, true},
		{"private_hidden_from_friends", "friend", VisibilityPrivate, false},
		{"friends_visible_to_direct", "friend", VisibilityFriends, true},
		{"friends_hidden_from_second_degree", "acquaintance", VisibilityFriends, false},
		{"friends_hidden_from_strangers", "stranger", VisibilityFriends, false},
		{"friends_of_friends_visible_to_direct", "friend", VisibilityFriendsOfFriends, true},
		{"friends_of_friends_visible_to_second_degree", "acquaintance", VisibilityFriendsOfFriends, true},
		{"friends_of_friends_hidden_from_strangers", "stranger", VisibilityFriendsOfFriends, false},
		{"unknown_visibility_denies", "friend", Visibility("everyone"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, CanAccess("viewer", test.ownerID, test.vis, audience))
		})
	}
}
