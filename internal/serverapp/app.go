// Package serverapp wires configuration, the store, the resolver and the HTTP
// surfaces into one server lifecycle: New, Init, Start, WaitForStop, Shutdown.
package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"ordergraph/internal/config"
	"ordergraph/internal/dbexec"
	"ordergraph/internal/logging"
	"ordergraph/internal/observability"
	"ordergraph/internal/resolver"
)

// App owns runtime resources for the ordergraph server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	databaseName string

	providers    observability.Providers
	fetchMetrics *observability.FetchMetrics

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }
	executor   dbexec.QueryExecutor
	resolver   *resolver.Resolver

	handler    http.Handler
	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	databaseName, err := cfg.Database.DatabaseName()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database name: %w", err)
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		databaseName: databaseName,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.providers.Logger = provider
}

// Handler returns the fully wrapped HTTP handler once Init has completed.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
