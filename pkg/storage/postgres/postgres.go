// Package postgres provides a PostgreSQL-backed implementation of the feed
// datastore.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/plately/plately/internal/build"
	"github.com/plately/plately/pkg/logger"
	"github.com/plately/plately/pkg/storage"
	"github.com/plately/plately/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("plately/pkg/storage/postgres")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "postgres."+name)
}

// Datastore provides a PostgreSQL based implementation of [storage.FeedDatastore].
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
}

// Ensures that Datastore implements the FeedDatastore interface.
var _ storage.FeedDatastore = (*Datastore)(nil)

// initDB initializes a new postgres database connection.
func initDB(uri string, cfg *sqlcommon.Config) (*sql.DB, error) {
	if cfg.Username != "" || cfg.Password != "" {
		parsed, err := url.Parse(uri)
		if err != nil {
			return nil, fmt.Errorf("parse postgres connection uri: %w", err)
		}

		username := cfg.Username
		if username == "" && parsed.User != nil {
			username = parsed.User.Username()
		}

		if cfg.Password != "" {
			parsed.User = url.UserPassword(username, cfg.Password)
		} else {
			parsed.User = url.User(username)
		}

		uri = parsed.String()
	}

	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres connection: %w", err)
	}

	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// configureDB waits for the database to accept connections and optionally
// registers a stats collector.
func configureDB(db *sql.DB, cfg *sqlcommon.Config) (prometheus.Collector, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err := backoff.Retry(func() error {
		err := db.PingContext(context.Background())
		if err != nil {
			cfg.Logger.Info("waiting for database", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, "plately")
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	return collector, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	db, err := initDB(uri, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres connection: %w", err)
	}

	return NewWithDB(db, cfg)
}

// NewWithDB creates a new [Datastore] storage with the provided database connection.
func NewWithDB(db *sql.DB, cfg *sqlcommon.Config) (*Datastore, error) {
	collector, err := configureDB(db, cfg)
	if err != nil {
		return nil, fmt.Errorf("configure db: %w", err)
	}

	stbl := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db)

	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "postgres"),
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

	if strings.Contains(err.Error(), "SQLSTATE 42703") {
		// undefined_column: the schema predates the feed extension.
		return storage.ErrSchemaUnsupported
	}

	if strings.Contains(err.Error(), "duplicate key value") {
		return storage.ErrCollision
	}

	return fmt.Errorf("sql error: %w", err)
}
