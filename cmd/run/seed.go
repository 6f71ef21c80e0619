package run

import (
	"time"

	"github.com/plately/plately/pkg/id"
	"github.com/plately/plately/pkg/storage"
	"github.com/plately/plately/pkg/storage/memory"
)

// seedDemoData populates the memory datastore with a small social graph so
// the service is explorable without a SQL backend: ada and billie are
// friends, billie knows carol, and everyone has logged something.
func seedDemoData(ds *memory.Datastore) error {
	now := time.Now()

	for _, p := range []*storage.ProfileRecord{
		{UserID: "ada", DisplayName: "Ada", AvatarPath: "avatars/ada.jpg"},
		{UserID: "billie", DisplayName: "Billie", AvatarPath: "avatars/billie.jpg"},
		{UserID: "carol", DisplayName: "Carol", AvatarPath: "avatars/carol.jpg"},
	} {
		ds.WriteProfile(p)
	}

	for _, pair := range [][2]string{{"ada", "billie"}, {"billie", "carol"}} {
		connID, err := id.NewString()
		if err != nil {
			return err
		}
		ds.WriteConnection(&storage.ConnectionRecord{
			ID:          connID,
			RequesterID: pair[0],
			AddresseeID: pair[1],
			Status:      storage.ConnectionStatusAccepted,
			CreatedAt:   now,
		})
	}

	entries := []struct {
		owner      string
		caption    string
		rating     int32
		visibility string
		age        time.Duration
	}{
		{"billie", "ramen night", 5, "public", 2 * time.Hour},
		{"billie", "meal prep sunday", 3, "friends", 4 * time.Hour},
		{"carol", "birthday dinner", 5, "friendsOfFriends", 6 * time.Hour},
		{"ada", "leftover pasta, no regrets", 4, "public", 8 * time.Hour},
	}

	var firstEntryID string
	for i, e := range entries {
		entryID, err := id.NewStringFromTime(now.Add(-e.age))
		if err != nil {
			return err
		}
		if i == 0 {
			firstEntryID = entryID
		}
		ds.WriteEntry(&storage.EntryRecord{
			ID:             entryID,
			OwnerID:        e.owner,
			Caption:        e.caption,
			Rating:         e.rating,
			MediaPaths:     []string{"entries/" + entryID + ".jpg"},
			PostVisibility: e.visibility,
			VisibleInFeed:  true,
			CreatedAt:      now.Add(-e.age),
		})
	}

	ds.WriteReaction(&storage.ReactionRecord{
		EntryID:   firstEntryID,
		UserID:    "ada",
		Emoji:     "🔥",
		CreatedAt: now,
	})

	commentID, err := id.NewString()
	if err != nil {
		return err
	}
	ds.WriteComment(&storage.CommentRecord{
		ID:        commentID,
		EntryID:   firstEntryID,
		UserID:    "ada",
		Body:      "where is this from?",
		CreatedAt: now,
	})

	return nil
}
