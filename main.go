package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	sdkinterceptor "go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/activities"
	"github.com/dmriflow/dmriflow/internal/config"
	"github.com/dmriflow/dmriflow/internal/constants"
	"github.com/dmriflow/dmriflow/internal/health"
	"github.com/dmriflow/dmriflow/internal/interceptors"
	_ "github.com/dmriflow/dmriflow/internal/metrics" // register collectors
	"github.com/dmriflow/dmriflow/internal/tools"
	"github.com/dmriflow/dmriflow/internal/tracing"
	"github.com/dmriflow/dmriflow/internal/workflows"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("DMRIFLOW_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Observability.Tracing.Enabled,
		OTLPEndpoint: cfg.Observability.Tracing.Endpoint,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Health and metrics come up first so probes respond while the
	// Temporal connection is still being established.
	hm := health.NewManager(30*time.Second, logger)
	httpMux := http.NewServeMux()
	health.NewHandler(hm, logger).Register(httpMux)
	if cfg.Observability.Metrics.Enabled {
		httpMux.Handle("/metrics", promhttp.Handler())
	}
	go func() {
		addr := ":" + strconv.Itoa(cfg.Observability.Metrics.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      httpMux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		logger.Info("Admin HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	_ = hm.RegisterChecker(health.NewToolPathChecker(health.DefaultToolBinaries()))
	if cfg.InputDir != "" {
		_ = hm.RegisterChecker(health.NewDirectoryChecker("input_dir", cfg.InputDir, true))
	}
	if cfg.Anatomical.FreeSurferDir != "" {
		_ = hm.RegisterChecker(health.NewDirectoryChecker("freesurfer_dir", cfg.Anatomical.FreeSurferDir, false))
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()
	_ = hm.RegisterChecker(health.NewTemporalChecker(temporalClient))
	hm.Start(ctx)
	defer hm.Stop()

	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = constants.TaskQueue
	}
	w := worker.New(temporalClient, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.NThreads,
		Interceptors: []sdkinterceptor.WorkerInterceptor{
			interceptors.NewWorkflowMetricsInterceptor(),
		},
	})

	w.RegisterWorkflow(workflows.ReconWorkflow)
	w.RegisterWorkflow(workflows.DRBUDDIWorkflow)

	acts := activities.NewActivities(logger, tools.NewRunner(logger), cfg.OutputDir)
	w.RegisterActivity(acts.RunToolNode)
	w.RegisterActivity(acts.RunSinkNode)
	w.RegisterActivity(acts.IngestAnatomical)
	w.RegisterActivity(acts.IngestDWI)

	logger.Info("Worker starting",
		zap.String("task_queue", taskQueue),
		zap.String("temporal", cfg.Temporal.HostPort),
		zap.String("output_dir", cfg.OutputDir),
	)

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopCh
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("Worker exited with error", zap.Error(err))
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Observability.Logging.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level := cfg.Observability.Logging.Level; level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = lvl
	}
	return zapCfg.Build()
}
