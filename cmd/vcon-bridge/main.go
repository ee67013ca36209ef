// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rapidaai/vcon-bridge/config"
	"github.com/rapidaai/vcon-bridge/internal/health"
	"github.com/rapidaai/vcon-bridge/internal/poller"
	"github.com/rapidaai/vcon-bridge/internal/signalwire"
	"github.com/rapidaai/vcon-bridge/internal/vcon"
	"github.com/rapidaai/vcon-bridge/internal/webhook"
	"github.com/rapidaai/vcon-bridge/pkg/commons"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("failed to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		// fail fast, before any network call
		log.Fatalf("%v", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
	)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	variant := signalwire.Variant(cfg.ProviderVariant)
	provider := signalwire.NewClient(
		logger,
		cfg.ProviderSpaceURL,
		cfg.ProviderProjectID,
		cfg.ProviderAuthToken,
		variant,
		time.Duration(cfg.HTTPTimeout)*time.Second,
	)

	order := vcon.PartyOrderToFirst
	if variant == signalwire.VariantNative {
		order = vcon.PartyOrderFromFirst
	}
	assembler := vcon.NewAssembler(logger, order)

	sink := webhook.NewClient(logger, cfg.WebhookURL, time.Duration(cfg.WebhookTimeout)*time.Second)

	bridge := poller.New(logger, provider, assembler, sink, poller.Options{
		Interval:            time.Duration(cfg.PollInterval) * time.Second,
		EmbedAudio:          cfg.EmbedAudio,
		FetchTranscriptions: cfg.FetchTranscriptions,
	})

	var healthSrv *http.Server
	if cfg.HealthAddr != "" {
		healthSrv = health.NewServer(logger, cfg.HealthAddr, bridge.Stats)
		go func() {
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("health server stopped", "error", err)
			}
		}()
	}

	logger.Infow("starting vcon bridge",
		"space_url", cfg.ProviderSpaceURL,
		"variant", cfg.ProviderVariant,
		"poll_interval", cfg.PollInterval,
		"webhook_url", cfg.WebhookURL)

	if err := bridge.Run(ctx); err != nil {
		logger.Fatalf("poll loop failed: %v", err)
	}

	if healthSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("health server shutdown failed", "error", err)
		}
	}

	logger.Info("vcon bridge shut down")
}
