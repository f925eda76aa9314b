package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cropcure/internal/api"
	"cropcure/internal/cli"
	"cropcure/internal/config"
	"cropcure/internal/diagnosis"
	"cropcure/internal/health"
	"cropcure/internal/logging"
	"cropcure/internal/metrics"
	"cropcure/internal/server"
	"cropcure/internal/telemetry"
	"cropcure/internal/upload"
	"cropcure/internal/version"
	"cropcure/internal/workflow"
)

// shutdownTimeout bounds the graceful stop of the HTTP server
const shutdownTimeout = 10 * time.Second

// app wires configuration, the backend client and the server for the CLI
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	client  *api.Client
}

func newApp(configPath string) (cli.Runner, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Setup(cfg.IsDevelopment())
	if cfg.LogDir != "" {
		if err := logging.Initialize(cfg.LogDir); err != nil {
			logging.Warnf("Failed to initialize file logging: %v", err)
		}
	}

	m := metrics.New()
	return &app{
		cfg:     cfg,
		metrics: m,
		client:  api.NewClient(cfg.APIURL, api.WithTimeout(cfg.APITimeout), api.WithMetrics(m)),
	}, nil
}

// Serve runs the web server until ctx is cancelled
func (a *app) Serve(ctx context.Context) error {
	logging.Infof("Configuration: %s", a.cfg)

	shutdownTelemetry, err := telemetry.InitializeFromEnv(ctx, version.Version)
	if err != nil {
		logging.Warnf("Failed to initialize telemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				logging.Warnf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	monitor := health.NewMonitor(a.client, a.metrics)
	if err := monitor.Start(a.cfg.HealthSchedule); err != nil {
		return err
	}
	defer monitor.Stop()

	srv, err := server.New(a.cfg, a.client, server.WithMetrics(a.metrics), server.WithMonitor(monitor))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Infof("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return <-errCh
}

// Classify runs the page workflow on an image file
func (a *app) Classify(ctx context.Context, imagePath string) (diagnosis.Result, error) {
	f, err := upload.FromPath(imagePath)
	if err != nil {
		return diagnosis.Result{}, err
	}

	var selected *upload.SelectedImage
	widget := upload.NewWidget(func(img *upload.SelectedImage) { selected = img },
		upload.WithMaxBytes(a.cfg.MaxUploadBytes))
	if err := widget.Select(ctx, upload.FileInput{Files: []upload.File{f}}); err != nil {
		if errors.Is(err, upload.ErrNotImage) {
			return diagnosis.Result{}, fmt.Errorf("%s is not an image", imagePath)
		}
		return diagnosis.Result{}, err
	}

	return workflow.NewClassification(a.client, a.metrics).Analyze(ctx, selected)
}

// Health probes the backend once
func (a *app) Health(ctx context.Context) health.Status {
	return health.NewMonitor(a.client, a.metrics).Probe(ctx)
}
