package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtomcal/usion-arena-server/internal/auth"
	"github.com/mtomcal/usion-arena-server/internal/clock"
	"github.com/mtomcal/usion-arena-server/internal/config"
	"github.com/mtomcal/usion-arena-server/internal/gateway"
	"github.com/mtomcal/usion-arena-server/internal/room"
	"github.com/mtomcal/usion-arena-server/internal/webhook"
)

const audiencePrefix = "usion-arena:"

// startServer initializes and starts the HTTP server with health and
// WebSocket endpoints. Returns when context is cancelled or the server
// encounters an error.
func startServer(ctx context.Context) error {
	cfg := config.Load()

	keys := auth.NewKeySetCache(cfg.JWKSURL, cfg.JWKSCacheMaxAge, cfg.JWKSRefreshCooldown, cfg.JWKSFetchTimeout)
	verifier := auth.NewVerifier(keys)

	var signer *webhook.Signer
	if cfg.APIURL != "" {
		signer = webhook.NewSigner(cfg.APIURL, cfg.ServiceID, cfg.SigningKeyID, cfg.SigningSecret, nil)
	}

	roomCfg := room.Config{
		SimHz:                        cfg.SimTickHz,
		NetHz:                        cfg.NetworkHz,
		FullSnapshotIntervalNetTicks: cfg.FullSnapshotIntervalNetTicks,
		ProtocolVersion:              "2",
		Deploy: room.DeployProfile{
			Region: cfg.DeployRegion,
			SimHz:  cfg.SimTickHz,
			NetHz:  cfg.NetworkHz,
		},
		ServiceID:     cfg.ServiceID,
		APIURL:        cfg.APIURL,
		SigningKeyID:  cfg.SigningKeyID,
		SigningSecret: cfg.SigningSecret,
	}
	registry := room.NewRegistry(roomCfg, clock.RealClock{}, signer)

	gw := gateway.New(registry, verifier, gateway.Config{
		ExpectedIssuer:         cfg.TokenIssuer,
		ExpectedAudiencePrefix: audiencePrefix,
		ExpectedServiceID:      cfg.ServiceID,
		ProtocolVersion:        "2",
		DeployRegion:           cfg.DeployRegion,
		SimHz:                  cfg.SimTickHz,
		NetHz:                  cfg.NetworkHz,
	})

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("/ws", gw)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Println("Shutting down server...")

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
			return err
		}
		log.Println("Server stopped")
		return nil
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- startServer(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		cancel()
		<-serverDone
	case err := <-serverDone:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}
}
