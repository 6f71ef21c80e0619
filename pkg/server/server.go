// Package server exposes the feed engine over a small HTTP read surface.
// It owns transport concerns only: header parsing, cursor token encoding,
// JSON rendering, and request middleware. Feed semantics live in pkg/feed.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/plately/plately/pkg/encoder"
	"github.com/plately/plately/pkg/feed"
	"github.com/plately/plately/pkg/logger"
	"github.com/plately/plately/pkg/storage"
)

// ViewerHeader carries the authenticated viewer's user ID. Authentication
// itself happens upstream; the engine trusts this value.
const ViewerHeader = "X-Plately-Viewer"

// Server serves feed pages over HTTP.
type Server struct {
	engine     *feed.Engine
	datastore  storage.FeedDatastore
	cursors    *encoder.CursorSerializer
	logger     logger.Logger
	registerer prometheus.Registerer
	cors       *cors.Cors

	requestDuration *prometheus.HistogramVec
}

// ServerOption defines an option that can be used to alter the behavior of
// the Server.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRegisterer sets the prometheus registerer for request metrics.
func WithRegisterer(r prometheus.Registerer) ServerOption {
	return func(s *Server) {
		s.registerer = r
	}
}

// WithCORSAllowedOrigins restricts CORS to the given origins. The default
// allows any origin.
func WithCORSAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.cors = cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedHeaders: []string{ViewerHeader, "Content-Type"},
		})
	}
}

// NewServer returns a Server wired to engine and ds.
func NewServer(engine *feed.Engine, ds storage.FeedDatastore, opts ...ServerOption) *Server {
	s := &Server{
		engine:     engine,
		datastore:  ds,
		cursors:    encoder.NewCursorSerializer(encoder.NewBase64Encoder()),
		logger:     logger.NewNoopLogger(),
		registerer: prometheus.DefaultRegisterer,
		cors: cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedHeaders: []string{ViewerHeader, "Content-Type"},
		}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plately",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
	s.registerer.MustRegister(s.requestDuration)

	return s
}

// Handler returns the fully composed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/feed", s.handleGetFeed)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.cors.Handler(s.withRequestLogging(mux))
}

type userSummaryResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type feedItemResponse struct {
	ID              string                `json:"id"`
	OwnerID         string                `json:"owner_id"`
	Caption         string                `json:"caption"`
	Rating          int32                 `json:"rating"`
	MediaURLs       []string              `json:"media_urls"`
	AuthorName      string                `json:"author_name,omitempty"`
	AuthorAvatarURL string                `json:"author_avatar_url,omitempty"`
	TaggedUsers     []userSummaryResponse `json:"tagged_users"`
	CanReact        bool                  `json:"can_react"`
	CanComment      bool                  `json:"can_comment"`
	ReactionCounts  map[string]int        `json:"reaction_counts"`
	ViewerReactions []string              `json:"viewer_reactions"`
	CommentCount    int                   `json:"comment_count"`
	CreatedAt       time.Time             `json:"created_at"`
}

type feedResponse struct {
	Items   []feedItemResponse `json:"items"`
	Cursor  string             `json:"cursor,omitempty"`
	HasMore bool               `json:"has_more"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := r.Header.Get(ViewerHeader)
	if viewerID == "" {
		writeError(w, http.StatusUnauthorized, "missing_viewer", "the "+ViewerHeader+" header is required")
		return
	}

	scope := feed.Scope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = feed.ScopeSocial
	}

	// Unparseable page sizes fall back to the default, like out-of-range ones.
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	req := &feed.FeedRequest{
		ViewerID: viewerID,
		Scope:    scope,
		PageSize: pageSize,
	}

	if token := r.URL.Query().Get("cursor"); token != "" {
		createdAt, err := s.cursors.Deserialize(token)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_cursor", "the cursor token is not valid")
			return
		}
		req.Cursor = &createdAt
	}

	page, err := s.engine.GetFeed(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrUnknownScope):
			writeError(w, http.StatusBadRequest, "unknown_scope", err.Error())
		case errors.Is(err, feed.ErrMissingViewer):
			writeError(w, http.StatusUnauthorized, "missing_viewer", err.Error())
		default:
			s.logger.Error("feed request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to assemble feed")
		}
		return
	}

	resp := feedResponse{
		Items:   make([]feedItemResponse, 0, len(page.Items)),
		HasMore: page.HasMore,
	}
	for _, item := range page.Items {
		tagged := make([]userSummaryResponse, 0, len(item.TaggedUsers))
		for _, u := range item.TaggedUsers {
			tagged = append(tagged, userSummaryResponse{
				UserID:      u.UserID,
				DisplayName: u.DisplayName,
				AvatarURL:   u.AvatarURL,
			})
		}
		resp.Items = append(resp.Items, feedItemResponse{
			ID:              item.ID,
			OwnerID:         item.OwnerID,
			Caption:         item.Caption,
			Rating:          item.Rating,
			MediaURLs:       item.MediaURLs,
			AuthorName:      item.AuthorName,
			AuthorAvatarURL: item.AuthorAvatarURL,
			TaggedUsers:     tagged,
			CanReact:        item.CanReact,
			CanComment:      item.CanComment,
			ReactionCounts:  item.ReactionCounts,
			ViewerReactions: item.ViewerReactions,
			CommentCount:    item.CommentCount,
			CreatedAt:       item.CreatedAt,
		})
	}
	if page.NextCursor != nil {
		token, err := s.cursors.Serialize(*page.NextCursor)
		if err != nil {
			s.logger.Error("cursor serialization failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to assemble feed")
			return
		}
		resp.Cursor = token
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status, err := s.datastore.IsReady(r.Context())
	if err != nil || !status.IsReady {
		message := status.Message
		if err != nil {
			message = err.Error()
		}
		writeError(w, http.StatusServiceUnavailable, "not_ready", message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
