package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/plately/plately/pkg/feed"
	"github.com/plately/plately/pkg/storage"
	"github.com/plately/plately/pkg/storage/memory"
)

func newTestServer(t *testing.T, ds storage.FeedDatastore) http.Handler {
	t.Helper()

	engine := feed.NewEngine(ds)
	srv := NewServer(engine, ds, WithRegisterer(prometheus.NewRegistry()))
	return srv.Handler()
}

func seedFeed(t *testing.T, n int) *memory.Datastore {
	t.Helper()

	ds := memory.New()
	ds.WriteProfile(&storage.ProfileRecord{UserID: "author", DisplayName: "Anne"})
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := "entry-" + string(rune('a'+i))
		ds.WriteEntry(&storage.EntryRecord{
			ID:             id,
			OwnerID:        "author",
			PostVisibility: "public",
			VisibleInFeed:  true,
			MediaPaths:     []string{"entries/" + id + ".jpg"},
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return ds
}

func getFeed(t *testing.T, handler http.Handler, target, viewer string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if viewer != "" {
		req.Header.Set(ViewerHeader, viewer)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestGetFeedRequiresViewerHeader(t *testing.T) {
	handler := newTestServer(t, memory.New())

	w := getFeed(t, handler, "/v1/feed", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetFeedRejectsUnknownScope(t *testing.T) {
	handler := newTestServer(t, memory.New())

	w := getFeed(t, handler, "/v1/feed?scope=trending", "viewer")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "unknown_scope", resp.Code)
}

func TestGetFeedRejectsInvalidCursor(t *testing.T) {
	handler := newTestServer(t, memory.New())

	w := getFeed(t, handler, "/v1/feed?scope=public&cursor=notacursor", "viewer")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFeedServesPage(t *testing.T) {
	ds := seedFeed(t, 3)
	handler := newTestServer(t, ds)

	w := getFeed(t, handler, "/v1/feed?scope=public", "viewer")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))

	var resp struct {
		Items []struct {
			ID        string   `json:"id"`
			MediaURLs []string `json:"media_urls"`
		} `json:"items"`
		Cursor  string `json:"cursor"`
		HasMore bool   `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 3)
	require.False(t, resp.HasMore)
	require.Empty(t, resp.Cursor)
	require.NotEmpty(t, resp.Items[0].MediaURLs)
}

func TestGetFeedCursorRoundTrip(t *testing.T) {
	ds := seedFeed(t, 7)
	handler := newTestServer(t, ds)

	w := getFeed(t, handler, "/v1/feed?scope=public&page_size=5", "viewer")
	require.Equal(t, http.StatusOK, w.Code)

	var first struct {
		Items   []struct{ ID string } `json:"items"`
		Cursor  string                `json:"cursor"`
		HasMore bool                  `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Len(t, first.Items, 5)
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.Cursor)

	w = getFeed(t, handler, "/v1/feed?scope=public&page_size=5&cursor="+first.Cursor, "viewer")
	require.Equal(t, http.StatusOK, w.Code)

	var second struct {
		Items   []struct{ ID string } `json:"items"`
		Cursor  string                `json:"cursor"`
		HasMore bool                  `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	require.Len(t, second.Items, 2)
	require.False(t, second.HasMore)
	require.Empty(t, second.Cursor)
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, memory.New())

	w := getFeed(t, handler, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
}
