package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"verona-backend/internal/config"
	"verona-backend/internal/database"
	"verona-backend/internal/handlers"
	"verona-backend/internal/middleware"
	"verona-backend/internal/repository"
	"verona-backend/internal/router"
	"verona-backend/internal/services"
	"verona-backend/internal/websocket"
)

func main() {
	root := &cobra.Command{
		Use:           "verona",
		Short:         "Verona conversation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve()
			},
		},
		newChatCmd(),
		newValidateCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serve() error {
	log.Println("🚀 Starting Verona Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Redis Clients (optional) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		clients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer clients.Close()
		redisClients = clients
		log.Println("✓ Redis connected")
	}

	// ──── Step 3: Initialize Snapshot Store ────
	var snapshots repository.SnapshotStore
	switch cfg.SnapshotBackend {
	case "redis":
		snapshots = repository.NewRedisSnapshotStore(redisClients.Store, cfg.SnapshotTTL)
		log.Println("✓ Snapshot store: redis")
	default:
		snapshots = repository.NewFileSnapshotStore(cfg.SnapshotDir)
		log.Printf("✓ Snapshot store: %s", cfg.SnapshotDir)
	}

	// ──── Step 4: Initialize Inference Client ────
	provider := services.NewHFInference(cfg.HFToken, cfg.HFBaseURL, cfg.ProviderConcurrentReqs)
	log.Printf("✓ Inference client initialized (%s)", cfg.ModelID)

	// ──── Step 5: Start WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	var hub *websocket.Hub
	if redisClients != nil {
		hub = websocket.NewHub(redisClients.PubSub, jwtAuth)
	} else {
		hub = websocket.NewHub(nil, jwtAuth)
	}
	log.Println("✓ WebSocket hub started")

	// ──── Step 6: Initialize Services ────
	sessions := services.NewSessionManager(snapshots, cfg.SystemPrompt)
	sessions.StartJanitor(time.Minute, cfg.SessionIdleTimeout)
	chatService := services.NewChatService(sessions, provider, hub, services.ChatOptions{
		Model:      cfg.ModelID,
		WindowSize: cfg.WindowSize,
		Timeout:    cfg.ProviderTimeout,
	})

	// ──── Step 7: Start HTTP Server ────
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	r := router.New(
		jwtAuth,
		rateLimiter,
		handlers.NewSessionHandler(chatService),
		handlers.NewChatHandler(chatService),
		hub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// A turn may stream for the whole provider timeout.
		WriteTimeout: cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sessions.Stop()
		rateLimiter.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Verona Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1/sessions", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/sessions/{id}/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
