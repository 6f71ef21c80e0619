// Package sqlite provides a SQLite-backed implementation of the feed
// datastore, used for embedded and development deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // SQLite driver.

	"github.com/plately/plately/internal/build"
	"github.com/plately/plately/pkg/logger"
	"github.com/plately/plately/pkg/storage"
	"github.com/plately/plately/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("plately/pkg/storage/sqlite")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlite."+name)
}

// Datastore provides a SQLite based implementation of [storage.FeedDatastore].
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
}

// Ensures that Datastore implements the FeedDatastore interface.
var _ storage.FeedDatastore = (*Datastore)(nil)

// PrepareDSN prepares a raw DSN from config for use with SQLite, specifying
// defaults for journal mode and busy timeout.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}

		uri = uri[:i]
	}

	foundJournalMode := false
	foundBusyTimeout := false
	for _, val := range query["_pragma"] {
		if strings.HasPrefix(val, "journal_mode") {
			foundJournalMode = true
		} else if strings.HasPrefix(val, "busy_timeout") {
			foundBusyTimeout = true
		}
	}

	if !foundJournalMode {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !foundBusyTimeout {
		query.Add("_pragma", "busy_timeout(100)")
	}

	uri += "?" + query.Encode()

	return uri, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, "plately")
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)

	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "sqlite3"),
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// Close see [storage.FeedDatastore].Close.
func (s *Datastore) Close() {
	if s.dbStatsCollector != nil {
		prometheus.Unregister(s.dbStatsCollector)
	}
	s.db.Close()
}

// ListAcceptedByUser see [storage.ConnectionStore].ListAcceptedByUser.
func (s *Datastore) ListAcceptedByUser(ctx context.Context, userID string) ([]*storage.ConnectionRecord, error) {
	ctx, span := startTrace(ctx, "ListAcceptedByUser")
	defer span.End()

	return sqlcommon.ListConnections(ctx, s.dbInfo, sq.Or{
		sq.Eq{"requester_id": userID},
		sq.Eq{"addressee_id": userID},
	})
}

// ListAcceptedByRequesters see [storage.ConnectionStore].ListAcceptedByRequesters.
func (s *Datastore) ListAcceptedByRequesters(ctx context.Context, userIDs []string) ([]*storage.ConnectionRecord, error) {
	ctx, span := startTrace(ctx, "ListAcceptedByRequesters")
	defer span.End()

	return sqlcommon.ListConnections(ctx, s.dbInfo, sq.Eq{"requester_id": userIDs})
}

// ListAcceptedByAddressees see [storage.ConnectionStore].ListAcceptedByAddressees.
func (s *Datastore) ListAcceptedByAddressees(ctx context.Context, userIDs []string) ([]*storage.ConnectionRecord, error) {
	ctx, span := startTrace(ctx, "ListAcceptedByAddressees")
	defer span.End()

	return sqlcommon.ListConnections(ctx, s.dbInfo, sq.Eq{"addressee_id": userIDs})
}

// ListFeedEntries see [storage.EntryStore].ListFeedEntries.
func (s *Datastore) ListFeedEntries(ctx context.Context, filter storage.EntryFilter) ([]*storage.EntryRecord, error) {
	ctx, span := startTrace(ctx, "ListFeedEntries")
	defer span.End()

	return sqlcommon.ListFeedEntries(ctx, s.dbInfo, filter)
}

// CountReactionsByEntry see [storage.ReactionStore].CountReactionsByEntry.
func (s *Datastore) CountReactionsByEntry(ctx context.Context, entryIDs []string) (map[string]map[string]int, error) {
	ctx, span := startTrace(ctx, "CountReactionsByEntry")
	defer span.End()

	return sqlcommon.CountReactionsByEntry(ctx, s.dbInfo, entryIDs)
}

// ListViewerReactions see [storage.ReactionStore].ListViewerReactions.
func (s *Datastore) ListViewerReactions(ctx context.Context, entryIDs []string, userID string) (map[string][]string, error) {
	ctx, span := startTrace(ctx, "ListViewerReactions")
	defer span.End()

	return sqlcommon.ListViewerReactions(ctx, s.dbInfo, entryIDs, userID)
}

// CountCommentsByEntry see [storage.CommentStore].CountCommentsByEntry.
func (s *Datastore) CountCommentsByEntry(ctx context.Context, entryIDs []string) (map[string]int, error) {
	ctx, span := startTrace(ctx, "CountCommentsByEntry")
	defer span.End()

	return sqlcommon.CountCommentsByEntry(ctx, s.dbInfo, entryIDs)
}

// GetProfilesByUserIDs see [storage.ProfileStore].GetProfilesByUserIDs.
func (s *Datastore) GetProfilesByUserIDs(ctx context.Context, userIDs []string) (map[string]*storage.ProfileRecord, error) {
	ctx, span := startTrace(ctx, "GetProfilesByUserIDs")
	defer span.End()

	return sqlcommon.GetProfilesByUserIDs(ctx, s.dbInfo, userIDs)
}

// IsReady see [storage.FeedDatastore].IsReady.
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	return sqlcommon.IsReady(ctx, false, s.db, build.MinimumSupportedDatastoreSchemaRevision)
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error, _ ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	if strings.Contains(err.Error(), "no such column") {
		// The schema predates the feed extension.
		return storage.ErrSchemaUnsupported
	}

	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return storage.ErrCollision
	}

	return fmt.Errorf("sql error: %w", err)
}
