package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inventory-backend/internal/inventory"
	"inventory-backend/internal/platform/config"
	"inventory-backend/internal/platform/db"
	"inventory-backend/internal/platform/logger"
	"inventory-backend/internal/server"
)

func main() {
	// 設定読み込み
	cfgPath := os.Getenv("INVENTORY_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = log.Sync() }()

	log.Info("starting inventory backend",
		zap.String("version", cfg.Version),
		zap.String("mode", cfg.Mode),
		zap.String("db_driver", cfg.DB.Driver))

	// ストアは起動時に1度だけ開く（無ければ作る）
	store, err := inventory.OpenStore(context.Background(), cfg.DB, logger.Named(log, "store"))
	if err != nil {
		log.Fatal("failed to open inventory store", zap.Error(err))
	}
	defer store.Close()

	if cfg.DB.Driver == db.DriverSQLite {
		log.Info("inventory store ready", zap.String("path", cfg.DB.Path))
	} else {
		log.Info("inventory store ready", zap.String("db", cfg.DB.DBName))
	}

	svc := inventory.NewService(store, logger.Named(log, "inventory"))
	r := server.New(cfg, svc, logger.Named(log, "http"))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLS() {
			log.Info("listening", zap.String("addr", "https://0.0.0.0"+srv.Addr))
			err = srv.ListenAndServeTLS(cfg.Certificate.Cert, cfg.Certificate.Key)
		} else {
			log.Info("listening", zap.String("addr", "http://0.0.0.0"+srv.Addr))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
