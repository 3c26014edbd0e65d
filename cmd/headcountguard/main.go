package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zzzrenn/HeadCountGuard/internal/app"
	"github.com/zzzrenn/HeadCountGuard/internal/config"
	"github.com/zzzrenn/HeadCountGuard/internal/detect"
	"github.com/zzzrenn/HeadCountGuard/internal/logging"
	"github.com/zzzrenn/HeadCountGuard/internal/server"
	"github.com/zzzrenn/HeadCountGuard/internal/store"
)

var configPath = flag.String("config", "", "Path to the YAML configuration file")

func main() {
	flag.Parse()

	if *configPath == "" {
		logrus.Fatal("-config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}

	log.WithFields(logrus.Fields{
		"config": *configPath,
		"source": cfg.Video.Path,
	}).Info("starting headcountguard")

	if err := detect.Initialize(cfg.Detector.LibraryPath); err != nil {
		log.WithError(err).Warn("onnxruntime unavailable, falling back to mock detection")
	}
	defer detect.Destroy()

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer st.Close()

	hub := server.NewEventHub(log)
	frames := server.NewFrameBuffer()

	counter, err := app.New(app.Config{
		Settings: cfg,
		Store:    st,
		OnEvent:  hub.Publish,
		Frames:   frames,
		Log:      log,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	defer counter.Close()

	srv := server.New(server.Config{
		StaticDir: cfg.Server.StaticDir,
		Store:     st,
		Counts:    counter.Totals,
		Frames:    frames,
		Events:    hub,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	// The pipeline drives the process lifetime: it returns on source EOF,
	// on SIGINT/SIGTERM, or on a fatal source error.
	runErr := counter.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown failed")
	}

	if runErr != nil {
		log.WithError(runErr).Fatal("pipeline failed")
	}
}
