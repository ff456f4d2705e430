package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"knowledge-sync-service/internal/api"
	"knowledge-sync-service/internal/config"
	"knowledge-sync-service/internal/database"
	"knowledge-sync-service/internal/entity"
	"knowledge-sync-service/internal/logger"
	"knowledge-sync-service/internal/store"
	"knowledge-sync-service/internal/sync"
)

func main() {
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("Starting knowledge sync service")

	db, err := database.Open(cfg.Storage)
	if err != nil {
		logger.Log.Fatal("Failed to open database", zap.Error(err))
	}

	syncStore, err := store.New(db)
	if err != nil {
		logger.Log.Fatal("Failed to init store", zap.Error(err))
	}
	defer syncStore.Close()

	applier := entity.NewSnapshotApplier(syncStore)
	syncManager := sync.NewManager(cfg.Sync, syncStore, applier, sync.LogNotifier{})

	pruner := sync.NewPruner(cfg.Retention, syncStore)
	pruner.Start()
	defer pruner.Stop()

	handler := api.NewHandler(syncManager)
	router := handler.Routes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")
	server.Close()
}
