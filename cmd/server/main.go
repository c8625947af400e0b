package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/mailmerge/internal/api"
	"github.com/ignite/mailmerge/internal/config"
	"github.com/ignite/mailmerge/internal/dispatch"
	"github.com/ignite/mailmerge/internal/pkg/distlock"
	"github.com/ignite/mailmerge/internal/pkg/logger"
	"github.com/ignite/mailmerge/internal/storage"
	"github.com/ignite/mailmerge/internal/transport"
)

// dispatchLockKey names the lock that serialises campaign sends.
const dispatchLockKey = "mailmerge:campaign-send"

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
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Mail Merge Server (cmd/server/main.go)                   ║")
	log.Println("║  Provider settings, campaigns and SMTP dispatch           ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage initialized (type=%s)", cfg.Storage.Type)

	// Transport + dispatcher
	selector := transport.NewSelector(
		transport.WithDialTimeout(cfg.Dispatch.DialTimeout()),
		transport.WithSendTimeout(cfg.Dispatch.SendTimeout()),
		transport.WithHelloName(cfg.Dispatch.HelloName),
	)
	dispatcher, err := dispatch.New(selector, cfg.Dispatch.TestSubject, cfg.Dispatch.TestBody,
		dispatch.WithWorkers(cfg.Dispatch.Workers))
	if err != nil {
		log.Fatalf("Failed to initialize dispatcher: %v", err)
	}
	log.Printf("Dispatcher initialized (workers=%d)", cfg.Dispatch.Workers)

	// Dispatch lock: Redis when available, then Postgres, then in-process
	lockTTL := cfg.Dispatch.LockTTL()
	newLock := func() distlock.DistLock {
		return distlock.NewLock(store.Redis, store.DB, dispatchLockKey, lockTTL)
	}
	switch {
	case store.Redis != nil:
		log.Println("Dispatch lock: Redis")
	case store.DB != nil:
		log.Println("Dispatch lock: PostgreSQL advisory lock")
	default:
		log.Println("Dispatch lock: in-process (single instance only)")
	}

	handlers := api.NewHandlers(
		storage.NewProviderStore(store.Backend),
		storage.NewCampaignStore(store.Backend),
		dispatcher,
		newLock,
	)
	server := api.NewServer(cfg.Server, handlers)

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Startup aborted: %v", err)
	}

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
