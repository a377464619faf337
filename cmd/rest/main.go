package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ollama-chat-be/internal/bootstrap"
	"ollama-chat-be/internal/config"
	"ollama-chat-be/internal/server"
	"ollama-chat-be/internal/tracer"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(ctx, cfg.App)

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	// 4. Initialize Server
	srv := server.New(cfg, container)
	printBanner(cfg)

	// 5. Run server and background services until a signal arrives
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Println("Background: Starting Consumer Service...")
		return container.ConsumerService.Consume(gctx)
	})
	g.Go(func() error {
		return container.JanitorService.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Println("Shutting down...")
		err := srv.Shutdown(shutdownCtx)
		if active := container.Supervisor.ActiveCount(); active > 0 {
			log.Printf("Leaving %d model download(s) running in the background", active)
		}
		if tErr := shutdownTracer(shutdownCtx); tErr != nil {
			log.Printf("Tracer shutdown: %v", tErr)
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Server stopped with error: %v", err)
	}
}

func printBanner(cfg *config.Config) {
	color.Cyan("=== Ollama Chat ===")
	color.White("Ollama:         %s", cfg.Ai.OllamaBaseURL)
	color.White("Chat model:     %s", cfg.Ai.DefaultChatModel)
	color.White("Caption model:  %s", cfg.Ai.DefaultCaptionModel)
	color.White("Characters:     %s", cfg.Characters.FilePath)
	color.White("Max sessions:   %d (evict %d)", cfg.Session.MaxSessions, cfg.Session.EvictBatch)
	if cfg.App.NatsURL == "" {
		color.Yellow("NATS forwarding disabled")
	}
	if cfg.App.RedisURL == "" {
		color.Yellow("Redis job mirror disabled")
	}
	color.Green("Listening on http://localhost:%s", cfg.App.Port)
}
