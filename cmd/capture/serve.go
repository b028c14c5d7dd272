package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/workflow-capture/agent"
	"github.com/hairizuan-noorazman/workflow-capture/cmd/capture/handlers"
	"github.com/hairizuan-noorazman/workflow-capture/database"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture HTTP server and job workers",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

const apiPrefix = "/api/v1"

// newRouter registers the capture API on a new router.
func newRouter(captures *handlers.CaptureHandler, metricsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)
	router.HandleFunc("/health", handlers.HealthHandler).Methods("GET")
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// Registered on the root router so a wrong method answers 405, not 404.
	router.HandleFunc(apiPrefix+"/captures", captures.Create).Methods("POST")
	router.HandleFunc(apiPrefix+"/captures", captures.List).Methods("GET")
	router.HandleFunc(apiPrefix+"/captures/{id}", captures.GetByID).Methods("GET")
	router.HandleFunc(apiPrefix+"/captures/{id}/workflow", captures.Workflow).Methods("GET")
	return router
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, db, sqlDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(sqlDB, databaseConfig(cfg).Driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a, err := newApp(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	log.Info(ctx, "starting server", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	a.sessions.StartCleanup(5 * time.Minute)
	defer a.sessions.StopCleanup()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	pool := agent.NewWorkerPool(cfg.Agent.MaxConcurrentWorkers, cfg.Server.PollInterval, a.jobs, a.pipeline, log)
	pool.Start(workerCtx)

	captures := handlers.NewCaptureHandler(a.jobs, a.writer, pool, log)
	router := newRouter(captures, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"address": addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server error", map[string]interface{}{
				"error": err.Error(),
			})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Running captures see the cancellation and persist their partial traces.
	cancelWorkers()
	pool.Wait()

	log.Info(context.Background(), "server stopped", nil)
	return nil
}
