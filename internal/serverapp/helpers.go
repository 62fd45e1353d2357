package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ordergraph/internal/config"
	"ordergraph/internal/dbexec"
	"ordergraph/internal/gqlapi"
	"ordergraph/internal/httpapi"
	"ordergraph/internal/logging"
	"ordergraph/internal/middleware"
	"ordergraph/internal/observability"
	"ordergraph/internal/resolver"
	"ordergraph/internal/schema"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"
)

func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

// InitLogger builds the process logger and, when log export is enabled, the
// OTLP logger provider it also writes to.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.LogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(observabilityConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	logger.Info("OpenTelemetry logging initialized")

	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.FetchMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, err
	}

	fetchMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, err
	}

	logger.Info("OpenTelemetry metrics initialized",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("environment", cfg.Observability.Environment),
	)
	return meterProvider, fetchMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.TracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	tracerProvider, err := observability.InitTracerProvider(observabilityConfig(cfg, tracesConfig))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized")
	return tracerProvider, nil
}

func dbSystemAttribute(driver string) attribute.KeyValue {
	if driver == config.DriverSQLite {
		return semconv.DBSystemKey.String("sqlite")
	}
	return semconv.DBSystemMySQL
}

func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}

	driver := cfg.Database.DriverName()
	dsn := cfg.Database.DSN()

	if !cfg.Observability.MetricsEnabled && !cfg.Observability.TracingEnabled {
		db, err := sql.Open(driver, dsn)
		return db, nil, err
	}

	system := dbSystemAttribute(driver)
	opts := []otelsql.Option{otelsql.WithAttributes(system)}
	if cfg.Observability.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
		if cfg.Observability.SQLCommenterEnabled && driver == config.DriverMySQL {
			opts = append(opts, otelsql.WithSQLCommenter(true))
			logger.Info("SQLCommenter enabled - trace context will be injected into SQL queries")
		}
	} else if cfg.Observability.SQLCommenterEnabled {
		logger.Debug("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
	}

	db, err := otelsql.Open(driver, dsn, opts...)
	if err != nil {
		return nil, nil, err
	}

	var dbStatsReg interface{ Unregister() error }
	if cfg.Observability.MetricsEnabled {
		dbStatsReg, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(system))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		}
	}

	logger.Info("database instrumentation enabled",
		slog.String("driver", driver),
		slog.Bool("metrics", cfg.Observability.MetricsEnabled),
		slog.Bool("tracing", cfg.Observability.TracingEnabled),
	)
	return db, dbStatsReg, nil
}

func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB, databaseName string) error {
	maxOpen, maxIdle, lifetime := cfg.Database.Pool.MaxOpen, cfg.Database.Pool.MaxIdle, cfg.Database.Pool.MaxLifetime
	if isMemorySQLite(cfg) {
		// Every connection to :memory: is a separate database; keep exactly one alive.
		maxOpen, maxIdle, lifetime = 1, 1, 0
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := waitForDatabase(ctx, cfg, logger, db); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.String("driver", cfg.Database.DriverName()),
		slog.String("database", databaseName),
		slog.Int("pool_max_open", maxOpen),
		slog.Int("pool_max_idle", maxIdle),
		slog.Duration("pool_max_lifetime", lifetime),
	)
	return nil
}

func isMemorySQLite(cfg *config.Config) bool {
	return cfg.Database.DriverName() == config.DriverSQLite && cfg.Database.DSN() == ":memory:"
}

func waitForDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB) error {
	timeout := cfg.Database.ConnectionTimeout
	interval := cfg.Database.ConnectionRetryInterval

	if timeout == 0 {
		return db.PingContext(ctx)
	}

	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		// Exponential backoff, capped at 30s
		interval = min(interval*2, 30*time.Second)
	}
}

func buildResolver(cfg *config.Config, logger *logging.Logger, db *sql.DB) (dbexec.QueryExecutor, *resolver.Resolver) {
	opts := resolver.Options{
		MaxResults:       cfg.Resolver.MaxResults,
		BatchSize:        cfg.Resolver.BatchSize,
		Parallelism:      cfg.Resolver.BatchParallelism,
		DefaultPageLimit: cfg.Resolver.DefaultPageLimit,
		Snapshot:         cfg.Resolver.Snapshot,
	}
	if cfg.Database.DriverName() == config.DriverSQLite {
		// Chunk queries on extra connections would wait behind the request session.
		opts.Parallelism = 1
	}

	executor := dbexec.NewStandardExecutor(db)
	reader := resolver.NewResolver(executor, opts)

	effective := reader.Options()
	logger.Info("resolver configured",
		slog.Int("max_results", effective.MaxResults),
		slog.Int("batch_size", effective.BatchSize),
		slog.Int("batch_parallelism", effective.Parallelism),
		slog.Int("default_page_limit", effective.DefaultPageLimit),
		slog.Bool("snapshot", effective.Snapshot),
	)
	return executor, reader
}

// prepareStore creates the SQLite tables so a fresh file or in-memory store
// is usable. MySQL schemas are managed outside the server.
func prepareStore(ctx context.Context, cfg *config.Config, logger *logging.Logger, executor dbexec.Execer) error {
	if cfg.Database.DriverName() != config.DriverSQLite {
		return nil
	}
	if err := schema.Apply(ctx, executor, schema.DialectSQLite); err != nil {
		return err
	}
	logger.Info("sqlite schema ensured", slog.String("path", cfg.Database.Path))
	return nil
}

func buildRouter(
	cfg *config.Config,
	logger *logging.Logger,
	db *sql.DB,
	executor dbexec.QueryExecutor,
	reader *resolver.Resolver,
	fetchMetrics *observability.FetchMetrics,
	meterProvider *observability.MeterProvider,
) (*http.ServeMux, error) {
	api := http.NewServeMux()
	httpapi.New(reader).Register(api)

	if cfg.Server.GraphQLEnabled {
		graphqlHandler, err := gqlapi.NewHandler(reader, gqlapi.Options{GraphiQL: cfg.Server.GraphiQLEnabled})
		if err != nil {
			return nil, err
		}
		api.Handle("/graphql", middleware.GraphQLTracingMiddleware()(graphqlHandler))
		logger.Info("GraphQL endpoint enabled",
			slog.String("path", "/graphql"),
			slog.Bool("graphiql", cfg.Server.GraphiQLEnabled),
		)
	}

	// request -> logging -> fetch metrics -> read session -> endpoint
	var apiHandler http.Handler = api
	apiHandler = middleware.ReadSessionMiddleware(executor, dbexec.SessionOptions{Snapshot: cfg.Resolver.Snapshot})(apiHandler)
	apiHandler = middleware.FetchMetricsMiddleware(fetchMetrics)(apiHandler)
	apiHandler = middleware.LoggingMiddleware(logger)(apiHandler)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if cfg.Server.GraphQLEnabled {
		mux.Handle("/graphql", apiHandler)
	}
	mux.HandleFunc("/health", healthHandler(db, cfg.Server.HealthCheckTimeout))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		target := "/api/strategies"
		if cfg.Server.GraphQLEnabled {
			target = "/graphql"
		}
		http.Redirect(w, r, target, http.StatusFound)
	})

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux, nil
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORS.Enabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          true,
			AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
			AllowedMethods:   cfg.Server.CORS.AllowedMethods,
			AllowedHeaders:   cfg.Server.CORS.AllowedHeaders,
			ExposeHeaders:    cfg.Server.CORS.ExposeHeaders,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
			MaxAge:           cfg.Server.CORS.MaxAge,
		})(handler)
	}

	if cfg.Server.RateLimit.Enabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled:   true,
			RPS:       cfg.Server.RateLimit.RPS,
			Burst:     cfg.Server.RateLimit.Burst,
			PerClient: cfg.Server.RateLimit.PerClient,
		})(handler)
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality: fixed routes are
// kept as-is and order ids collapse to a placeholder.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics", "/api/strategies":
		return rawPath
	}

	segments := strings.Split(strings.TrimPrefix(rawPath, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" || !strings.HasPrefix(segments[1], "v") {
		return "/*"
	}
	switch {
	case len(segments) == 3 && (segments[2] == "orders" || segments[2] == "simple-orders"):
		return rawPath
	case len(segments) == 4 && segments[2] == "orders" && segments[3] != "":
		return "/api/" + segments[1] + "/orders/{id}"
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logAttrs := []any{
			slog.String("address", serverAddr),
			slog.String("orders_endpoint", "/api/v1/orders"),
			slog.String("health_endpoint", "/health"),
			slog.Bool("graphql_enabled", cfg.Server.GraphQLEnabled),
			slog.String("log_level", cfg.Observability.Logging.Level),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}
		if cfg.Server.RateLimit.Enabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimit.RPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimit.Burst),
			)
		}
		logger.Info("server starting", logAttrs...)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// healthHandler returns an HTTP handler for health checks
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
