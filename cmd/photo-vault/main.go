package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"photo-vault/internal/filesystem"
	"photo-vault/internal/handlers"
	"photo-vault/internal/library"
	"photo-vault/internal/logging"
	"photo-vault/internal/memory"
	"photo-vault/internal/metrics"
	"photo-vault/internal/middleware"
	"photo-vault/internal/photo"
	"photo-vault/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsInterval = time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	startTime := time.Now()

	// Size GOMEMLIMIT before anything allocates in earnest
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes(config)))
	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())

	stack, err := startup.OpenStack(context.Background(), config)
	if err != nil {
		startup.LogFatal("Failed to initialize photo library: %v", err)
	}

	// Clear out uploads a previous run abandoned, then keep doing so
	startup.LogReaperInit(config.PendingTTL, config.ReapInterval)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		runReaper(reaperCtx, stack.Library, config.ReapInterval)
	}()

	collector := metrics.NewCollector(stack.Library, metricsInterval)
	collector.Start()

	h := handlers.New(stack.Library, stack.DB)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapHandler(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, func() {
		startup.LogShutdownStep("Stopping pending-upload reaper")
		stopReaper()
		<-reaperDone
		startup.LogShutdownStepComplete("Reaper stopped")

		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")

		startup.LogShutdownStep("Closing photo library")
		if err := stack.Close(); err != nil {
			logging.Warn("Catalog close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Photo library closed")
		}
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}

	// Wait for handleShutdown to finish its cleanup
	<-shutdownDone
}

// volumes names the directories filesystem metrics are labelled with.
func volumes(config *startup.Config) map[string]string {
	v := map[string]string{"database": config.DatabaseDir}
	for _, ns := range photo.Variants {
		v[string(ns)] = filepath.Join(config.StorageDir, string(ns))
	}
	return v
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	// Photo API. Literal paths are registered ahead of {id}.
	api := r.PathPrefix("/api/photos").Subrouter()
	api.HandleFunc("", h.ListPhotos).Methods(http.MethodGet)
	api.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)
	api.HandleFunc("/search", h.SearchPhotos).Methods(http.MethodGet)
	api.HandleFunc("/check-duplicate", h.CheckDuplicate).Methods(http.MethodPost)
	api.HandleFunc("/{id}", h.GetPhoto).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.DeletePhoto).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/image", h.GetImage).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/{id}/tags", h.AddTags).Methods(http.MethodPost)

	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	return r
}

// wrapHandler applies the outer middleware chain, outermost first:
// request id, recovery, access log, compression.
func wrapHandler(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Recover(handler)
	return middleware.RequestID(handler)
}

func metricsRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	return r
}

// runReaper reaps once immediately and then every interval until ctx ends.
func runReaper(ctx context.Context, lib *library.Library, interval time.Duration) {
	reapOnce := func() {
		if _, err := lib.ReapPending(ctx); err != nil && ctx.Err() == nil {
			logging.Error("Pending-upload reaper failed: %v", err)
		}
	}

	reapOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reapOnce()
		}
	}
}

var shutdownDone = make(chan struct{})

func handleShutdown(srv, metricsSrv *http.Server, cleanup func()) {
	defer close(shutdownDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// In-flight uploads finish before the library closes underneath them
	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	cleanup()
	startup.LogShutdownComplete()
}
