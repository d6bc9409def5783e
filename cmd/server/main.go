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

	"github.com/redis/go-redis/v9"

	"github.com/plutus/webengage-pipeline/internal/api"
	"github.com/plutus/webengage-pipeline/internal/config"
	"github.com/plutus/webengage-pipeline/internal/inbox"
	"github.com/plutus/webengage-pipeline/internal/runstore"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
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
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  WebEngage Pipeline Server (cmd/server/main.go)            ║")
	log.Println("║  Zoom export cleaning API with S3 inbox                    ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("REDIS_ADDR") != "" {
		log.Println("[config] REDIS_ADDR env override active")
	}

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	// Run store: Redis when enabled, in-memory otherwise
	var store runstore.Store
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
		}
		store = runstore.NewRedisStore(redisClient, cfg.Redis.TTL())
		log.Printf("Run store: Redis at %s (retention %s)", cfg.Redis.Addr, cfg.Redis.TTL())
	} else {
		store = runstore.NewMemoryStore()
		log.Println("Run store: in-memory (runs are lost on restart)")
	}
	defer store.Close()

	log.Printf("Cleaning profiles loaded: %v", cfg.ProfileNames())

	// S3 export inbox
	var watcher *inbox.Watcher
	if cfg.Inbox.Enabled && cfg.Inbox.S3Bucket != "" {
		prof, ok := cfg.Profile(cfg.Inbox.Profile)
		if !ok {
			log.Fatalf("Inbox profile %q is not configured", cfg.Inbox.Profile)
		}
		// The Redis client doubles as the cross-instance sweep lock.
		watcher, err = inbox.NewWatcher(store, prof, cfg.Inbox, redisClient)
		if err != nil {
			log.Printf("Warning: Failed to initialize inbox watcher: %v", err)
			watcher = nil
		} else {
			watcher.Start()
			log.Printf("Inbox watcher started: s3://%s/%s every %s (profile %s)",
				cfg.Inbox.S3Bucket, cfg.Inbox.Prefix, cfg.Inbox.Interval(), prof.Name)
		}
	} else {
		log.Println("Inbox watcher disabled")
	}

	// Initialize and start API server
	handlers := api.NewHandlers(cfg, store)
	server := api.NewServer(cfg.Server, handlers, api.NewInboxHandler(watcher))

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	if watcher != nil {
		watcher.Stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
