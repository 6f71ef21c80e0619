// Package storage contains storage interfaces and implementations for the
// plately feed engine.
package storage

import (
	"context"
	"time"
)

const (
	// DefaultPageSize is the page size used when a request does not specify one.
	DefaultPageSize = 20

	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 100

	// OverFetchFactor is the multiple of the page size fetched up front to
	// absorb losses from deduplication and privacy filtering.
	OverFetchFactor = 5

	// MaxFetchLimit is the absolute cap on rows requested by a single feed
	// query, regardless of page size and over-fetch factor.
	MaxFetchLimit = 500
)

// Connection statuses. Only accepted connections participate in audience
// resolution.
const (
	ConnectionStatusPending  = "pending"
	ConnectionStatusAccepted = "accepted"
	ConnectionStatusRejected = "rejected"
)

// ConnectionRecord is a stored connection between two users. The relation is
// symmetric: either party may have been the original requester.
type ConnectionRecord struct {
	ID          string
	RequesterID string
	AddresseeID string
	Status      string
	CreatedAt   time.Time
}

// OtherParty returns the party of the connection that is not userID.
func (c *ConnectionRecord) OtherParty(userID string) string {
	if c.RequesterID == userID {
		return c.AddresseeID
	}
	return c.RequesterID
}

// EntryRecord is a stored logged entry (a post). CanonicalOf is nil when the
// row itself is canonical. FriendsOnlyComments is the legacy boolean privacy
// column that predates CommentVisibility; it is nil when the column was never
// set for the row.
type EntryRecord struct {
	ID                  string
	OwnerID             string
	Caption             string
	Rating              int32
	MediaPaths          []string
	TaggedUserIDs       []string
	CanonicalOf         *string
	VisibleInFeed       bool
	PostVisibility      string
	ReactionVisibility  string
	CommentVisibility   string
	FriendsOnlyComments *bool
	CreatedAt           time.Time
}

// CanonicalID returns the ID of the logical post this row represents.
func (e *EntryRecord) CanonicalID() string {
	if e.CanonicalOf != nil && *e.CanonicalOf != "" {
		return *e.CanonicalOf
	}
	return e.ID
}

// ReactionRecord is a stored emoji reaction, unique per (entry, user, emoji).
type ReactionRecord struct {
	EntryID   string
	UserID    string
	Emoji     string
	CreatedAt time.Time
}

// CommentRecord is a stored comment. ParentID is nil for top-level comments;
// replies nest exactly one level deep.
type CommentRecord struct {
	ID        string
	EntryID   string
	UserID    string
	Body      string
	ParentID  *string
	CreatedAt time.Time
}

// ProfileRecord holds the display identity attached to feed items.
type ProfileRecord struct {
	UserID      string
	DisplayName string
	AvatarPath  string
}

// EntryFilter describes one filtered, ordered, cursor-bounded feed read.
// Results are always ordered by created_at descending.
type EntryFilter struct {
	// OwnerIDs restricts results to entries owned by the listed users.
	// Empty means no owner restriction.
	OwnerIDs []string

	// Visibilities restricts results to entries whose post visibility is one
	// of the listed values.
	Visibilities []string

	// ExcludeOwnerID drops entries owned by this user (the viewer's own
	// entries never appear in their feed).
	ExcludeOwnerID string

	// Before, when set, restricts results to entries created strictly before
	// the given instant.
	Before *time.Time

	// Limit caps the number of rows returned.
	Limit int

	// FeedVisibleOnly filters on the visible_in_feed column. The column is
	// part of the feed schema extension; stores missing it must return
	// ErrSchemaUnsupported when this is set.
	FeedVisibleOnly bool

	// IncludeCanonicalRef selects the canonical_of column, also part of the
	// feed schema extension.
	IncludeCanonicalRef bool
}

// ConnectionStore provides reads over the symmetric connection relation.
type ConnectionStore interface {
	// ListAcceptedByUser returns accepted connections where userID is either
	// party.
	ListAcceptedByUser(ctx context.Context, userID string) ([]*ConnectionRecord, error)

	// ListAcceptedByRequesters returns accepted connections whose requester is
	// in userIDs. Together with ListAcceptedByAddressees it forms the
	// second-degree expansion; the audience resolver issues both concurrently.
	ListAcceptedByRequesters(ctx context.Context, userIDs []string) ([]*ConnectionRecord, error)

	// ListAcceptedByAddressees returns accepted connections whose addressee is
	// in userIDs.
	ListAcceptedByAddressees(ctx context.Context, userIDs []string) ([]*ConnectionRecord, error)
}

// EntryStore provides the filtered, ordered, cursor-bounded feed read.
type EntryStore interface {
	// ListFeedEntries returns entries matching the filter, ordered by
	// created_at descending. If the filter requires feed-extension columns
	// that the schema does not have, it returns ErrSchemaUnsupported.
	ListFeedEntries(ctx context.Context, filter EntryFilter) ([]*EntryRecord, error)
}

// ReactionStore provides batched reaction reads. Reaction writes happen in the
// authoring flow and are out of scope here.
type ReactionStore interface {
	// CountReactionsByEntry returns, for each entry, a map of emoji to count.
	// Entries with no reactions are absent from the result.
	CountReactionsByEntry(ctx context.Context, entryIDs []string) (map[string]map[string]int, error)

	// ListViewerReactions returns, for each entry, the emojis userID has
	// reacted with.
	ListViewerReactions(ctx context.Context, entryIDs []string, userID string) (map[string][]string, error)
}

// CommentStore provides batched comment count reads.
type CommentStore interface {
	// CountCommentsByEntry returns the comment count per entry. Entries with
	// no comments are absent from the result.
	CountCommentsByEntry(ctx context.Context, entryIDs []string) (map[string]int, error)
}

// ProfileStore provides batched identity reads.
type ProfileStore interface {
	// GetProfilesByUserIDs returns profiles keyed by user ID. Unknown IDs are
	// absent from the result, not an error.
	GetProfilesByUserIDs(ctx context.Context, userIDs []string) (map[string]*ProfileRecord, error)
}

// FeedDatastore is the full set of reads the feed engine consumes.
type FeedDatastore interface {
	ConnectionStore
	EntryStore
	ReactionStore
	CommentStore
	ProfileStore

	// IsReady reports whether the datastore is ready to accept traffic.
	IsReady(ctx context.Context) (ReadinessStatus, error)

	// Close closes the datastore and cleans up any residual resources.
	Close()
}

// ReadinessStatus represents the readiness status of the datastore.
type ReadinessStatus struct {
	// Message is a human-friendly status message for the current datastore status.
	Message string

	IsReady bool
}
