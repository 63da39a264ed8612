package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeongseonghan/iqmodem/internal/config"
	"github.com/jeongseonghan/iqmodem/internal/logging"
	"github.com/jeongseonghan/iqmodem/internal/server"
	"github.com/jeongseonghan/iqmodem/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	addr := flag.String("addr", "", "Server address (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	store, err := storage.NewTrialStore(cfg.Storage.DatabasePath, cfg.Storage.MaxTrials)
	if err != nil {
		logging.Errorf("main", "Failed to open trial store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	listen := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	if *addr != "" {
		listen = *addr
	}

	handlers := server.NewHandlers(cfg, store)
	srv := server.NewServer(listen, handlers)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("\n  IQ Modem Server running at http://%s\n\n", listen)
		errCh <- srv.Start()
	}()

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Errorf("main", "Server shutdown error: %v", err)
		}
	case err := <-errCh:
		if err != nil {
			logging.Errorf("main", "Server error: %v", err)
			os.Exit(1)
		}
	}

	logging.Info("main", "Server stopped")
}
