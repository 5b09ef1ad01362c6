package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/spf13/cobra"

	"spmigrate/interfaces/web/handlers"
	"spmigrate/logging"
)

var (
	serveAddr    string
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve principal resolution over HTTP",
	Long: `Start an HTTP server exposing principal resolution as JSON.

Endpoints:
  POST /api/resolve                  {"principals": ["CONTOSO\\jdoe", ...]}
  GET  /api/domains/{name}           friendly domain lookup
  GET  /api/runs/{runID}/unresolved  unresolved report of a run
  GET  /health
  GET  /metrics                      Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (HTTP_ADDR)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 8, "concurrent directory lookups per request")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, appOptions{journal: true, directory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if serveAddr != "" {
		a.cfg.HTTPAddr = serveAddr
	}

	// Every request of this server process is journaled under one run
	appCtx, appCancel := context.WithCancel(cmd.Context())
	defer appCancel()
	runCtx, run, err := a.runs.StartRun(appCtx)
	if err != nil {
		return err
	}

	router := setupRoutes(a, run.ID, serveWorkers)
	err = startServer(router, a.cfg.HTTPAddr, a.logger, appCancel)

	a.bus.Wait()
	if _, cerr := a.runs.CompleteRun(context.WithoutCancel(runCtx), run.ID); cerr != nil {
		a.logger.Warn("Failed to complete run", "run_id", run.ID, "error", cerr)
	}
	a.metrics.LogRunMetrics(a.logger, run.ID)
	return err
}

func setupRoutes(a *app, runID string, workers int) *chi.Mux {
	r := chi.NewRouter()

	setupHTTPLogging(r, a)
	r.Use(middleware.Recoverer)
	r.Use(withRunID(runID))

	var health handlers.HealthChecker
	if a.db != nil {
		health = a.db
	}
	resolveHandlers := handlers.NewResolveHandlers(a.remapper, a.domains, a.journal, health, workers)
	resolveHandlers.Routes(r)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	return r
}

func withRunID(runID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logging.ContextWithRunID(r.Context(), runID)))
		})
	}
}

func setupHTTPLogging(r *chi.Mux, a *app) {
	if a.cfg.HTTPLogPath == "" {
		return
	}

	logFile, err := os.OpenFile(a.cfg.HTTPLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		a.logger.Error("Failed to open HTTP log file", "error", err, "path", a.cfg.HTTPLogPath)
		return
	}
	// logFile stays open for the server lifetime

	httpLogger := httplog.NewLogger("spmigrate", httplog.Options{
		Writer: logFile,
		JSON:   true,
	})
	r.Use(httplog.RequestLogger(httpLogger))

	a.logger.Info("HTTP request logging enabled", "path", a.cfg.HTTPLogPath)
}

func startServer(router http.Handler, addr string, logger *logging.Logger, appCancel context.CancelFunc) error {
	server := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	shutdownErr := make(chan error, 1)
	go func() {
		<-sig
		logger.Info("Shutdown signal received")
		appCancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	logger.Info("Server starting", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownErr; err != nil {
		logger.Error("Server shutdown error", "error", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}
