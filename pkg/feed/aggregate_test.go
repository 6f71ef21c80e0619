package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/plately/plately/internal/mocks"
)

func TestGetFeedDropsItemsWhoseMediaFailsToResolve(t *testing.T) {
	ds := seedWorld(t)
	defer ds.Close()

	ctrl := gomock.NewController(t)

	// Resolution fails only for the friends-gated entry's photo; everything
	// else resolves. Avatars resolve too.
	resolver := mocks.NewMockMediaURLResolver(ctrl)
	resolver.EXPECT().
		ResolveURL(gomock.Any(), "entries/f-friends.jpg").
		Return("", errors.New("blob store unavailable")).
		AnyTimes()
	resolver.EXPECT().
		ResolveURL(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string) (string, error) {
			return "https://cdn.example.com/" + path, nil
		}).
		AnyTimes()

	engine := NewEngine(ds, WithMediaURLResolver(resolver))
	page, err := engine.GetFeed(context.Background(), &FeedRequest{ViewerID: "viewer", Scope: ScopeSocial})
	require.NoError(t, err)

	require.Equal(t, []string{"f-public", "g-fof"}, itemIDs(page))
}
