package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/forots/vigia/internal/config"
	"github.com/forots/vigia/internal/database"
	"github.com/forots/vigia/internal/logger"
	"github.com/forots/vigia/internal/server"
	"github.com/forots/vigia/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Logging with rotation, to both stdout and file.
	logDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "logs")
	_ = os.MkdirAll(logDir, 0o755)
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "vigia.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(!cfg.IsProduction(), io.MultiWriter(os.Stdout, rotator))

	logger.WithFields(map[string]interface{}{
		"version": version.Full(),
		"env":     cfg.Environment,
	}).Infof("starting %s backend", version.Name)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	srv, err := server.New(db, cfg)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	// Background reaper: expired blocked-IP rows, stale rate windows and
	// attempt counters. Reads never depend on it; it only bounds memory
	// and table growth.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 5m", func() {
		srv.Guard.Guard.Store().Sweep(context.Background())
		srv.Guard.Guard.Prune()
		srv.Guard.Limiter.Prune()
	}); err != nil {
		log.Fatalf("schedule reaper: %v", err)
	}
	scheduler.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	scheduler.Stop()
	srv.Guard.Events.Close()
	logger.Log().Info("shutdown complete")
}
