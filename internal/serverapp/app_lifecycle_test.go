package serverapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"ordergraph/internal/config"
	"ordergraph/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func TestWaitForStop_SignalWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	stop <- syscall.SIGTERM

	reason, err := app.WaitForStop(stop, serverErrors)
	require.NoError(t, err)
	assert.Equal(t, StopReasonSignal, reason)
}

func TestWaitForStop_ServerErrorWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("boom")

	reason, err := app.WaitForStop(stop, serverErrors)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StopReasonServerError, reason)
}

func TestWaitForStop_OnlyServerErrors(t *testing.T) {
	app := &App{logger: testLogger()}
	serverErrors := make(chan error, 1)
	serverErrors <- nil

	reason, err := app.WaitForStop(nil, serverErrors)
	require.Error(t, err)
	assert.Equal(t, StopReasonServerError, reason)
}

func TestWaitForStop_NoChannels(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.WaitForStop(nil, nil)
	assert.Error(t, err)
}

func TestShutdown_Idempotent(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("test", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, app.Shutdown(ctx))
	require.NoError(t, app.Shutdown(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestShutdown_RunsInReverseOrder(t *testing.T) {
	app := &App{logger: testLogger()}
	var order []string
	for _, name := range []string{"providers", "database", "server"} {
		app.cleanup.push(name, func(context.Context) error {
			order = append(order, name)
			if name == "database" {
				return errors.New("close failed")
			}
			return nil
		})
	}

	require.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, []string{"server", "database", "providers"}, order)
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.Start()
	assert.Error(t, err)
}

func TestStartAndShutdown_HappyPath(t *testing.T) {
	app := &App{
		cfg:        &config.Config{},
		logger:     testLogger(),
		serverAddr: "127.0.0.1:0",
		srv: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	first, err := app.Start()
	require.NoError(t, err)
	second, err := app.Start()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestNew_RequiresConfigAndLogger(t *testing.T) {
	_, err := New(nil, testLogger())
	assert.Error(t, err)
	_, err = New(&config.Config{}, nil)
	assert.Error(t, err)
	_, err = New(&config.Config{Database: config.DatabaseConfig{ConnectionString: "no slash"}}, testLogger())
	assert.Error(t, err)
}

func TestInitFailure_DoesNotMarkInitialized(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:   config.DriverMySQL,
			Host:     "127.0.0.1",
			Port:     1,
			User:     "root",
			Password: "invalid",
			Database: "jpashop",
			Pool:     config.PoolConfig{MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Second},
		},
		Server: config.ServerConfig{Port: 18089, HealthCheckTimeout: time.Second},
		Observability: config.ObservabilityConfig{
			Logging: config.LoggingConfig{Level: "error", Format: "text"},
		},
	}

	app, err := New(cfg, testLogger())
	require.NoError(t, err)
	require.Error(t, app.Init(context.Background()))

	app.stateMu.Lock()
	initialized := app.initialized
	app.stateMu.Unlock()
	assert.False(t, initialized)
}
