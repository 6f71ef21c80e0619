// Package run contains the command to run the Plately feed service.
package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/plately/plately/pkg/cache"
	"github.com/plately/plately/pkg/feed"
	"github.com/plately/plately/pkg/logger"
	"github.com/plately/plately/pkg/server"
	"github.com/plately/plately/pkg/storage"
	"github.com/plately/plately/pkg/storage/memory"
	"github.com/plately/plately/pkg/storage/mysql"
	"github.com/plately/plately/pkg/storage/postgres"
	"github.com/plately/plately/pkg/storage/sqlcommon"
	"github.com/plately/plately/pkg/storage/sqlite"
	"github.com/plately/plately/pkg/telemetry"
)

const (
	datastoreEngineFlag       = "datastore-engine"
	datastoreURIFlag          = "datastore-uri"
	datastoreUsernameFlag     = "datastore-username"
	datastorePasswordFlag     = "datastore-password"
	datastoreMetricsFlag      = "datastore-metrics-enabled"
	datastoreMaxOpenConnsFlag = "datastore-max-open-conns"
	datastoreMaxIdleConnsFlag = "datastore-max-idle-conns"
	httpAddrFlag              = "http-addr"
	corsAllowedOriginsFlag    = "http-cors-allowed-origins"
	mediaBaseURLFlag          = "media-base-url"
	mediaCacheSizeFlag        = "media-cache-size"
	maxConcurrentReadsFlag    = "max-concurrent-reads"
	logFormatFlag             = "log-format"
	logLevelFlag              = "log-level"
	traceEnabledFlag          = "trace-enabled"
	traceOTLPEndpointFlag     = "trace-otlp-endpoint"
	traceServiceNameFlag      = "trace-service-name"
	traceSampleRatioFlag      = "trace-sample-ratio"
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Plately feed service",
		Long:  "Run the Plately feed service.",
		RunE:  run,
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()

	flags.String(datastoreEngineFlag, "memory", "the datastore engine that will be used for persistence ('memory', 'postgres', 'mysql' or 'sqlite')")
	flags.String(datastoreURIFlag, "", "the connection uri to use to connect to the datastore (for any engine other than 'memory')")
	flags.String(datastoreUsernameFlag, "", "the connection username to use to connect to the datastore (overwrites any username provided in the connection uri)")
	flags.String(datastorePasswordFlag, "", "the connection password to use to connect to the datastore (overwrites any password provided in the connection uri)")
	flags.Bool(datastoreMetricsFlag, false, "enable datastore connection metrics")
	flags.Int(datastoreMaxOpenConnsFlag, 30, "the maximum number of open connections to the datastore")
	flags.Int(datastoreMaxIdleConnsFlag, 10, "the maximum number of connections to the datastore in the idle connection pool")
	flags.String(httpAddrFlag, "0.0.0.0:8080", "the host:port address to serve the HTTP server on")
	flags.StringSlice(corsAllowedOriginsFlag, []string{"*"}, "the client origins allowed to make CORS requests")
	flags.String(mediaBaseURLFlag, "/media", "the base url media paths are resolved against")
	flags.Int64(mediaCacheSizeFlag, 10000, "the maximum number of resolved media urls to cache in memory")
	flags.Int(maxConcurrentReadsFlag, 5, "the maximum number of concurrent datastore reads per feed request")
	flags.String(logFormatFlag, "text", "the log format to output logs in ('text' or 'json')")
	flags.String(logLevelFlag, "info", "the log level to use ('none', 'debug', 'info', 'warn', 'error', 'panic' or 'fatal')")
	flags.Bool(traceEnabledFlag, false, "enable tracing")
	flags.String(traceOTLPEndpointFlag, "0.0.0.0:4317", "the grpc endpoint of the trace collector")
	flags.String(traceServiceNameFlag, "plately", "the service name included in traces")
	flags.Float64(traceSampleRatioFlag, 0.2, "the fraction of traces to sample")

	// NOTE: if you add a new flag here, update the function below, too

	cmd.PreRun = bindRunFlagsFunc(flags)

	return cmd
}

func buildDatastore(log logger.Logger) (storage.FeedDatastore, error) {
	engine := viper.GetString(datastoreEngineFlag)
	uri := viper.GetString(datastoreURIFlag)

	dsOpts := []sqlcommon.DatastoreOption{
		sqlcommon.WithLogger(log),
		sqlcommon.WithUsername(viper.GetString(datastoreUsernameFlag)),
		sqlcommon.WithPassword(viper.GetString(datastorePasswordFlag)),
		sqlcommon.WithMaxOpenConns(viper.GetInt(datastoreMaxOpenConnsFlag)),
		sqlcommon.WithMaxIdleConns(viper.GetInt(datastoreMaxIdleConnsFlag)),
	}
	if viper.GetBool(datastoreMetricsFlag) {
		dsOpts = append(dsOpts, sqlcommon.WithMetrics())
	}
	dsCfg := sqlcommon.NewConfig(dsOpts...)

	switch engine {
	case "memory":
		ds := memory.New()
		if err := seedDemoData(ds); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		log.Warn("the memory datastore holds demo data and loses everything on restart; use a SQL engine in production")
		return ds, nil
	case "postgres":
		return postgres.New(uri, dsCfg)
	case "mysql":
		return mysql.New(uri, dsCfg)
	case "sqlite":
		return sqlite.New(uri, dsCfg)
	default:
		return nil, fmt.Errorf("storage engine '%s' is unsupported", engine)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	log := logger.MustNewLogger(viper.GetString(logFormatFlag), viper.GetString(logLevelFlag))

	if viper.GetBool(traceEnabledFlag) {
		tp := telemetry.MustNewTracerProvider(
			telemetry.WithOTLPEndpoint(viper.GetString(traceOTLPEndpointFlag)),
			telemetry.WithServiceName(viper.GetString(traceServiceNameFlag)),
			telemetry.WithSamplingRatio(viper.GetFloat64(traceSampleRatioFlag)),
		)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Error("failed to shut down trace provider", zap.Error(err))
			}
		}()
	}

	ds, err := buildDatastore(log)
	if err != nil {
		return fmt.Errorf("initialize datastore: %w", err)
	}
	defer ds.Close()

	mediaCache, err := cache.NewInMemoryCache(viper.GetInt64(mediaCacheSizeFlag))
	if err != nil {
		return fmt.Errorf("initialize media cache: %w", err)
	}
	defer mediaCache.Close()

	resolver := feed.NewCachedResolver(
		feed.NewStaticResolver(viper.GetString(mediaBaseURLFlag)),
		mediaCache,
	)

	engine := feed.NewEngine(ds,
		feed.WithLogger(log),
		feed.WithMediaURLResolver(resolver),
		feed.WithMaxConcurrentReads(viper.GetInt(maxConcurrentReadsFlag)),
	)

	srv := server.NewServer(engine, ds,
		server.WithLogger(log),
		server.WithCORSAllowedOrigins(viper.GetStringSlice(corsAllowedOriginsFlag)),
	)

	httpServer := &http.Server{
		Addr:    viper.GetString(httpAddrFlag),
		Handler: srv.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve HTTP: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}

	return nil
}
