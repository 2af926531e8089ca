package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/feed-aggregator/internal/api"
	"github.com/ignite/feed-aggregator/internal/app"
	"github.com/ignite/feed-aggregator/internal/config"
	"github.com/ignite/feed-aggregator/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := "config/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("[server] Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logger.SetLevel(logger.ParseLevel(lvl))
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("[server] Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("[server] Startup failed: %v", err)
	}
	defer a.Close()
	log.Printf("[server] Settings store: %s (key %q)", cfg.Storage.Type, cfg.Blacklist.SettingsKey)
	if a.Redis != nil {
		log.Println("[server] Redis connected")
	}
	if cfg.Blacklist.DistributedLock {
		log.Println("[server] Distributed blacklist writer lock enabled")
	}
	if a.Nonces == nil {
		log.Println("[server] WARNING: nonce guard disabled, blacklist command is unauthenticated")
	}

	deps := api.RouteDeps{
		Blacklist: api.NewBlacklistAPI(a.Blacklist, a.Command),
		Ingest:    api.NewIngestAPI(a.Filter),
		Health:    api.NewHealthChecker(a.DB, a.Redis, a.Pinger(), cfg.Storage.Type),
		Nonces:    a.Nonces,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = a.Metrics.Handler()
		deps.MetricsPath = cfg.Metrics.Path
		log.Printf("[server] Prometheus metrics on %s", cfg.Metrics.Path)
	}
	server := api.NewServer(cfg.Server, deps)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := server.Addr()
		log.Printf("[server] Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[server] Server error: %v", err)
		}
	}()

	<-done
	log.Println("[server] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] Server shutdown error: %v", err)
	}

	log.Println("[server] Server stopped")
}
