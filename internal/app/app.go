// Package app runs the lazyboy bootstrap: it connects to the configured
// store, provisions the configured databases, prints the report and, when
// asked to, keeps serving Prometheus metrics until interrupted.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/lazyboy/internal/config"
	"github.com/dmitrijs2005/lazyboy/internal/lazyboy"
	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	dial    lazyboy.Dialer
	out     io.Writer
	prompt  io.Writer
}

func NewApp(c *config.Config) *App {
	logger := logging.New(os.Stderr, c.LogLevel)

	return &App{
		config:  c,
		logger:  logger,
		metrics: metrics.New(),
		dial:    lazyboy.NewDialer(nil, logger),
		out:     os.Stdout,
		prompt:  os.Stderr,
	}
}

// initSignalHandler cancels ctx on SIGINT, SIGTERM or SIGQUIT. The returned
// channel is closed once the handler has stopped listening, which happens
// when a signal arrives or ctx is done.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return done
}

// askPassword prompts for the CouchDB password when a user is configured
// without one and stdin is a terminal.
func (app *App) askPassword() error {
	c := app.config
	if c.Backend != config.BackendCouchDB || c.Username == "" || c.Password != "" || !isTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	pw, err := GetPassword(app.prompt)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	c.Password = string(pw)
	clear(pw)
	return nil
}

// Run provisions the configured databases and writes the report as JSON.
// A report with failures makes Run return an error after the report has
// been written.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(ctx, cancelFunc)

	if err := app.askPassword(); err != nil {
		return err
	}

	m, err := lazyboy.New(ctx, *app.config, app.dial, app.logger, lazyboy.WithMetrics(app.metrics))
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}()
	if !m.HasConnection() {
		if err := m.Connect(ctx); err != nil {
			return err
		}
	}

	report, runErr := m.InitializeAllDatabases(ctx)
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if app.config.MetricsAddr != "" {
		if err := app.serveMetrics(ctx); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func (app *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.metrics.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// serveMetrics blocks until ctx is cancelled.
func (app *App) serveMetrics(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           app.metricsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
