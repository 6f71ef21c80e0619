// Package feed implements feed assembly and visibility resolution: resolving
// the viewer's audience over the connection graph, planning the single
// filtered entry query, deduplicating canonical references, paginating, and
// joining social context onto the page.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/plately/plately/pkg/logger"
	"github.com/plately/plately/pkg/storage"
	"github.com/plately/plately/pkg/telemetry"
)

var tracer = otel.Tracer("plately/pkg/feed")

const defaultMaxConcurrentReads = 5

var (
	// ErrUnknownScope is returned for a scope other than public or social.
	ErrUnknownScope = errors.New("unknown feed scope")

	// ErrMissingViewer is returned when a request carries no viewer ID.
	ErrMissingViewer = errors.New("viewer id is required")
)

// FeedRequest describes one feed page read. Cursor is nil for the first page.
type FeedRequest struct {
	ViewerID string
	Scope    Scope
	Cursor   *time.Time
	PageSize int
}

// UserSummary is the display identity of a user referenced by a feed item.
type UserSummary struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// FeedItem is one fully assembled feed entry, ready for rendering.
type FeedItem struct {
	ID              string
	OwnerID         string
	Caption         string
	Rating          int32
	MediaURLs       []string
	AuthorName      string
	AuthorAvatarURL string
	TaggedUsers     []UserSummary
	CanReact        bool
	CanComment      bool
	ReactionCounts  map[string]int
	ViewerReactions []string
	CommentCount    int
	CreatedAt       time.Time
}

// FeedPage is one page of assembled items. NextCursor is nil on the last page.
type FeedPage struct {
	Items      []*FeedItem
	NextCursor *time.Time
	HasMore    bool
}

// Engine assembles feed pages from a FeedDatastore.
type Engine struct {
	datastore          storage.FeedDatastore
	media              MediaURLResolver
	logger             logger.Logger
	audiences          *AudienceResolver
	maxConcurrentReads int
}

// EngineOption defines an option that can be used to alter the behavior of
// the Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger the engine logs degradations to.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMediaURLResolver sets the resolver used for media and avatar paths.
func WithMediaURLResolver(r MediaURLResolver) EngineOption {
	return func(e *Engine) {
		e.media = r
	}
}

// WithMaxConcurrentReads bounds the aggregation fan-out per request.
func WithMaxConcurrentReads(n int) EngineOption {
	return func(e *Engine) {
		e.maxConcurrentReads = n
	}
}

// NewEngine returns a feed Engine reading from ds.
func NewEngine(ds storage.FeedDatastore, opts ...EngineOption) *Engine {
	e := &Engine{
		datastore:          ds,
		media:              NewStaticResolver("/media"),
		logger:             logger.NewNoopLogger(),
		maxConcurrentReads: defaultMaxConcurrentReads,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.audiences = NewAudienceResolver(ds, e.logger)

	return e
}

// GetFeed assembles one feed page for the request.
//
// A failed audience read is fatal for social scope; public scope proceeds with
// capability checks narrowed to public-only. An empty audience in social scope
// short-circuits to an empty page with no further queries. Enrichment
// failures degrade individual fields, never the page.
func (e *Engine) GetFeed(ctx context.Context, req *FeedRequest) (*FeedPage, error) {
	ctx, span := tracer.Start(ctx, "GetFeed", trace.WithAttributes(
		attribute.String("scope", string(req.Scope)),
	))
	defer span.End()

	if req.ViewerID == "" {
		return nil, ErrMissingViewer
	}
	if req.Scope != ScopePublic && req.Scope != ScopeSocial {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, req.Scope)
	}

	pageSize := normalizePageSize(req.PageSize)

	audience, err := e.audiences.Resolve(ctx, req.ViewerID)
	if err != nil {
		if req.Scope == ScopeSocial {
			telemetry.TraceError(span, err)
			return nil, err
		}
		e.logger.Warn("audience resolution failed, capability checks narrow to public",
			zap.String("viewer_id", req.ViewerID),
			zap.Error(err),
		)
		audience = &Audience{
			ViewerID:     req.ViewerID,
			Direct:       map[string]struct{}{},
			SecondDegree: map[string]struct{}{},
		}
	}

	if req.Scope == ScopeSocial && audience.IsEmpty() {
		return &FeedPage{Items: []*FeedItem{}}, nil
	}

	entries, degraded, err := e.fetchCandidates(ctx, req, pageSize, audience)
	if err != nil {
		telemetry.TraceError(span, err)
		return nil, err
	}

	entries = filterVisible(req.ViewerID, entries, audience)

	// Without the canonical reference column duplicates cannot be detected,
	// so deduplication is skipped in degraded mode.
	if !degraded {
		entries = dedupCanonical(entries)
	}

	pageEntries, nextCursor, hasMore := paginate(entries, pageSize)

	items, err := e.aggregate(ctx, req.ViewerID, pageEntries, audience)
	if err != nil {
		telemetry.TraceError(span, err)
		return nil, err
	}

	return &FeedPage{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
