package serverapp

import (
	"context"
	"fmt"
	"log/slog"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	providers := a.providers
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	meterProvider, fetchMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	providers.Meter = meterProvider

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	providers.Tracer = tracerProvider

	// Providers are flushed last, after the server and store have stopped.
	cleanup.push("telemetry providers", func(shutdownCtx context.Context) error {
		return providers.Shutdown(shutdownCtx, a.logger.Logger)
	})

	a.logger.Info("connecting to store",
		slog.String("driver", a.cfg.Database.DriverName()),
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.Port),
		slog.String("database", a.databaseName),
	)

	db, dbStatsReg, err := connectDB(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup.push("database", func(_ context.Context) error {
		if dbStatsReg != nil {
			if err := dbStatsReg.Unregister(); err != nil {
				a.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	})

	if err := configureDatabase(ctx, a.cfg, a.logger, db, a.databaseName); err != nil {
		return fmt.Errorf("failed to verify database connection: %w", err)
	}

	executor, reader := buildResolver(a.cfg, a.logger, db)
	if err := prepareStore(ctx, a.cfg, a.logger, executor); err != nil {
		return fmt.Errorf("failed to prepare store: %w", err)
	}

	mux, err := buildRouter(a.cfg, a.logger, db, executor, reader, fetchMetrics, meterProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := buildServer(a.cfg, handler, serverAddr)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.providers = providers
	a.fetchMetrics = fetchMetrics
	a.db = db
	a.dbStatsReg = dbStatsReg
	a.executor = executor
	a.resolver = reader
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
