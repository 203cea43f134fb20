// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// mailcal — inbound email to calendar events service
//
// Entry point for the mailcal service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to Redis (the status record store)
//  3. Wires the extraction, encoding, and notification adapters
//  4. Serves the inbound webhook, record listing, health, and metrics
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/voxlify/mailcal/internal/config"
	"github.com/voxlify/mailcal/internal/extract"
	"github.com/voxlify/mailcal/internal/metrics"
	"github.com/voxlify/mailcal/internal/notify"
	"github.com/voxlify/mailcal/internal/pipeline"
	"github.com/voxlify/mailcal/internal/store"
	"github.com/voxlify/mailcal/internal/webhook"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Optional .env for local development
	_ = godotenv.Load()

	slog.Info("starting mailcal service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"extract_timeout", cfg.ExtractTimeout,
		"sender", cfg.SenderAddress,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	recordStore := store.New(rdb)
	if err := recordStore.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Metrics ---
	m := metrics.Default()

	// --- Extraction Orchestrator ---
	client := extract.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	orchestrator := extract.NewOrchestrator(client, cfg.TextModel, cfg.VisionModel, cfg.ExtractTimeout, m)

	// --- Notifier ---
	notifier := notify.NewClient(cfg.PostmarkBaseURL, cfg.PostmarkToken, cfg.SenderAddress)

	// --- Pipeline Coordinator ---
	coordinator := pipeline.New(recordStore, orchestrator, notifier, m)

	// --- HTTP Server ---
	handler := webhook.NewHandler(coordinator, recordStore)
	ready, err := webhook.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("mailcal service ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel() // Stops the http server; in-flight pipelines finish on their own

	rdb.Close()
	slog.Info("mailcal service stopped")
}
