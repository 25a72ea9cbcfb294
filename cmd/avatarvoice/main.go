// Avatarvoice is the speech daemon behind the avatar client. It synthesizes
// speech for the configured speakers, falling back through degraded audio
// sources when better ones are unavailable, and returns a lip-sync timeline
// spanning the audio.
//
// Usage:
//
//	avatarvoice [flags]
//	avatarvoice --config /path/to/avatarvoice.yaml
//
// @title       avatarvoice API
// @version     1.0
// @description Speech synthesis with tiered voice sources and lip-sync timelines for the avatar client.
// @BasePath    /
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nadzzz/avatarvoice/docs"
	"github.com/nadzzz/avatarvoice/internal/config"
	"github.com/nadzzz/avatarvoice/internal/dispatch"
	"github.com/nadzzz/avatarvoice/internal/health"
	"github.com/nadzzz/avatarvoice/internal/speaker"
	"github.com/nadzzz/avatarvoice/internal/transport"
	grpctransport "github.com/nadzzz/avatarvoice/internal/transport/grpc"
	httptransport "github.com/nadzzz/avatarvoice/internal/transport/http"
	"github.com/nadzzz/avatarvoice/internal/tts"
	"github.com/nadzzz/avatarvoice/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/avatarvoice.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("avatarvoice %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("avatarvoice starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Build the speaker registry.
	speakers, err := speaker.FromConfig(cfg)
	if err != nil {
		slog.Error("invalid speaker configuration", "error", err)
		os.Exit(1)
	}

	// Initialize the synthesis engines.
	materializer := &tts.Materializer{
		Model:       piper.NewCLI(cfg.TTS.Piper),
		ToolTimeout: cfg.TTS.ToolTimeout,
	}
	if cfg.TTS.Piper.Endpoint != "" {
		materializer.Stock = piper.NewWyoming(cfg.TTS.Piper.Endpoint)
		slog.Info("stock voices enabled", "endpoint", cfg.TTS.Piper.Endpoint)
	}
	defer materializer.Close()

	dispatcher := dispatch.New(speakers, materializer, dispatch.Options{
		DefaultSpeaker: cfg.TTS.DefaultSpeaker,
		MaxTextChars:   cfg.TTS.MaxTextChars,
	})

	for _, v := range dispatcher.Voices() {
		var avail []string
		for _, t := range v.Tiers {
			if t.Available {
				avail = append(avail, t.Tier)
			}
		}
		slog.Info("speaker loaded", "speaker", v.Speaker, "available_tiers", avail)
	}

	// Initialize enabled transports.
	var transports []transport.Transport

	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port, cfg.Transports.HTTP.MaxBodyBytes, version))
	}

	if len(transports) == 0 {
		slog.Error("no transports enabled, enable at least one in config")
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort, dispatcher)
	g.Go(func() error {
		return healthServer.ListenAndServe(gctx)
	})

	// Start all transports.
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, dispatcher); err != nil {
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("avatarvoice ready",
		"transports", len(transports),
		"speakers", speakers.IDs(),
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal or a server failure.
	<-gctx.Done()
	healthServer.SetReady(false)
	slog.Info("shutting down, draining...")

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	if err := g.Wait(); err != nil {
		slog.Error("avatarvoice stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("avatarvoice stopped")
}
