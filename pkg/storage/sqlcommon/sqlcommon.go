// Package sqlcommon holds the SQL plumbing shared by the postgres, mysql and
// sqlite feed stores: connection configuration, the squirrel statement
// builder wiring, and the query/scan helpers every driver delegates to.
package sqlcommon

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"

	"github.com/plately/plately/pkg/logger"
	"github.com/plately/plately/pkg/storage"
)

var tracer = otel.Tracer("plately/pkg/storage/sqlcommon")

// Config defines the configuration parameters
// for setting up and managing a sql connection.
type Config struct {
	Username string
	Password string
	Logger   logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	ExportMetrics bool
}

// DatastoreOption defines a function type
// used for configuring a Config object.
type DatastoreOption func(*Config)

// WithUsername returns a DatastoreOption that sets the username in the Config.
func WithUsername(username string) DatastoreOption {
	return func(config *Config) {
		config.Username = username
	}
}

// WithPassword returns a DatastoreOption that sets the password in the Config.
func WithPassword(password string) DatastoreOption {
	return func(config *Config) {
		config.Password = password
	}
}

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the
// maximum number of open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the
// maximum number of idle connections in the Config.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets
// the maximum idle time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets
// the maximum lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

// WithMetrics returns a DatastoreOption that
// enables the export of metrics in the Config.
func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig creates a new Config instance with default values
// and applies any provided DatastoreOption modifications.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	return cfg
}

// DBInfo encapsulates DB information for use in the common query methods.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError errorHandlerFn
}

type errorHandlerFn func(error, ...interface{}) error

// NewDBInfo constructs a [DBInfo] object.
func NewDBInfo(db *sql.DB, stbl sq.StatementBuilderType, errorHandler errorHandlerFn, dialect string) *DBInfo {
	if err := goose.SetDialect(dialect); err != nil {
		panic("failed to set database dialect: " + err.Error())
	}

	return &DBInfo{
		db:             db,
		stbl:           stbl,
		HandleSQLError: errorHandler,
	}
}

// entryColumns are the columns every feed read selects. The canonical_of
// column is part of the feed schema extension and appended only on request.
var entryColumns = []string{
	"id",
	"owner_id",
	"caption",
	"rating",
	"media_paths",
	"tagged_user_ids",
	"post_visibility",
	"reaction_visibility",
	"comment_visibility",
	"friends_only_comments",
	"created_at",
}

// ListFeedEntries runs the filtered, ordered, cursor-bounded feed read shared
// by all SQL stores. Ordering is always created_at descending with id as a
// tie-breaker so pagination is stable for identical timestamps.
func ListFeedEntries(ctx context.Context, dbInfo *DBInfo, filter storage.EntryFilter) ([]*storage.EntryRecord, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListFeedEntries")
	defer span.End()

	cols := entryColumns
	if filter.IncludeCanonicalRef {
		cols = append(append([]string{}, entryColumns...), "canonical_of")
	}

	sb := dbInfo.stbl.
		Select(cols...).
		From("entry")

	if len(filter.OwnerIDs) > 0 {
		sb = sb.Where(sq.Eq{"owner_id": filter.OwnerIDs})
	}
	if len(filter.Visibilities) > 0 {
		sb = sb.Where(sq.Eq{"post_visibility": filter.Visibilities})
	}
	if filter.ExcludeOwnerID != "" {
		sb = sb.Where(sq.NotEq{"owner_id": filter.ExcludeOwnerID})
	}
	if filter.Before != nil {
		sb = sb.Where(sq.Lt{"created_at": *filter.Before})
	}
	if filter.FeedVisibleOnly {
		sb = sb.Where(sq.Eq{"visible_in_feed": true})
	}

	sb = sb.OrderBy("created_at DESC", "id DESC")

	if filter.Limit > 0 {
		sb = sb.Limit(uint64(filter.Limit))
	}

	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	var entries []*storage.EntryRecord
	for rows.Next() {
		record, err := scanEntry(rows, filter.IncludeCanonicalRef)
		if err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		entries = append(entries, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return entries, nil
}

func scanEntry(rows *sql.Rows, includeCanonicalRef bool) (*storage.EntryRecord, error) {
	var (
		record              storage.EntryRecord
		mediaPaths          []byte
		taggedUserIDs       []byte
		reactionVisibility  sql.NullString
		commentVisibility   sql.NullString
		friendsOnlyComments sql.NullBool
		canonicalOf         sql.NullString
	)

	dest := []interface{}{
		&record.ID,
		&record.OwnerID,
		&record.Caption,
		&record.Rating,
		&mediaPaths,
		&taggedUserIDs,
		&record.PostVisibility,
		&reactionVisibility,
		&commentVisibility,
		&friendsOnlyComments,
		&record.CreatedAt,
	}
	if includeCanonicalRef {
		dest = append(dest, &canonicalOf)
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	if len(mediaPaths) > 0 {
		if err := json.Unmarshal(mediaPaths, &record.MediaPaths); err != nil {
			return nil, err
		}
	}
	if len(taggedUserIDs) > 0 {
		if err := json.Unmarshal(taggedUserIDs, &record.TaggedUserIDs); err != nil {
			return nil, err
		}
	}

	record.ReactionVisibility = reactionVisibility.String
	record.CommentVisibility = commentVisibility.String
	if friendsOnlyComments.Valid {
		record.FriendsOnlyComments = &friendsOnlyComments.Bool
	}
	if canonicalOf.Valid && canonicalOf.String != "" {
		record.CanonicalOf = &canonicalOf.String
	}

	return &record, nil
}

var connectionColumns = []string{
	"id",
	"requester_id",
	"addressee_id",
	"status",
	"created_at",
}

// ListConnections returns accepted connections matching the given predicate.
func ListConnections(ctx context.Context, dbInfo *DBInfo, pred sq.Sqlizer) ([]*storage.ConnectionRecord, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListConnections")
	defer span.End()

	rows, err := dbInfo.stbl.
		Select(connectionColumns...).
		From("connection").
		Where(sq.Eq{"status": storage.ConnectionStatusAccepted}).
		Where(pred).
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	var connections []*storage.ConnectionRecord
	for rows.Next() {
		var record storage.ConnectionRecord
		if err := rows.Scan(
			&record.ID,
			&record.RequesterID,
			&record.AddresseeID,
			&record.Status,
			&record.CreatedAt,
		); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		connections = append(connections, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return connections, nil
}

// CountReactionsByEntry returns emoji counts grouped per entry.
func CountReactionsByEntry(ctx context.Context, dbInfo *DBInfo, entryIDs []string) (map[string]map[string]int, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.CountReactionsByEntry")
	defer span.End()

	rows, err := dbInfo.stbl.
		Select("entry_id", "emoji", "COUNT(*)").
		From("reaction").
		Where(sq.Eq{"entry_id": entryIDs}).
		GroupBy("entry_id", "emoji").
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int, len(entryIDs))
	for rows.Next() {
		var entryID, emoji string
		var count int
		if err := rows.Scan(&entryID, &emoji, &count); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		if counts[entryID] == nil {
			counts[entryID] = make(map[string]int)
		}
		counts[entryID][emoji] = count
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return counts, nil
}

// ListViewerReactions returns the emojis userID reacted with, per entry.
func ListViewerReactions(ctx context.Context, dbInfo *DBInfo, entryIDs []string, userID string) (map[string][]string, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListViewerReactions")
	defer span.End()

	rows, err := dbInfo.stbl.
		Select("entry_id", "emoji").
		From("reaction").
		Where(sq.Eq{"entry_id": entryIDs, "user_id": userID}).
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	reactions := make(map[string][]string)
	for rows.Next() {
		var entryID, emoji string
		if err := rows.Scan(&entryID, &emoji); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		reactions[entryID] = append(reactions[entryID], emoji)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return reactions, nil
}

// CountCommentsByEntry returns the comment count per entry. Replies count the
// same as top-level comments.
func CountCommentsByEntry(ctx context.Context, dbInfo *DBInfo, entryIDs []string) (map[string]int, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.CountCommentsByEntry")
	defer span.End()

	rows, err := dbInfo.stbl.
		Select("entry_id", "COUNT(*)").
		From("comment").
		Where(sq.Eq{"entry_id": entryIDs}).
		GroupBy("entry_id").
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(entryIDs))
	for rows.Next() {
		var entryID string
		var count int
		if err := rows.Scan(&entryID, &count); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		counts[entryID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return counts, nil
}

// GetProfilesByUserIDs returns profiles keyed by user ID.
func GetProfilesByUserIDs(ctx context.Context, dbInfo *DBInfo, userIDs []string) (map[string]*storage.ProfileRecord, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.GetProfilesByUserIDs")
	defer span.End()

	rows, err := dbInfo.stbl.
		Select("user_id", "display_name", "avatar_path").
		From("user_profile").
		Where(sq.Eq{"user_id": userIDs}).
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	profiles := make(map[string]*storage.ProfileRecord, len(userIDs))
	for rows.Next() {
		var record storage.ProfileRecord
		var avatarPath sql.NullString
		if err := rows.Scan(&record.UserID, &record.DisplayName, &avatarPath); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		record.AvatarPath = avatarPath.String
		profiles[record.UserID] = &record
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return profiles, nil
}

// IsReady returns true if the connection to the datastore is successful AND
// (the datastore has the latest migration applied OR skipVersionCheck).
func IsReady(ctx context.Context, skipVersionCheck bool, db *sql.DB, minimumRevision int64) (storage.ReadinessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// do ping first to ensure we have a better error message
	// if the error is due to a connection issue.
	if pingErr := db.PingContext(ctx); pingErr != nil {
		return storage.ReadinessStatus{}, pingErr
	}

	if skipVersionCheck {
		return storage.ReadinessStatus{
			IsReady: true,
		}, nil
	}

	revision, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return storage.ReadinessStatus{}, err
	}

	if revision < minimumRevision {
		return storage.ReadinessStatus{
			Message: "datastore requires migrations: run 'plately migrate'",
			IsReady: false,
		}, nil
	}
	return storage.ReadinessStatus{
		IsReady: true,
	}, nil
}
