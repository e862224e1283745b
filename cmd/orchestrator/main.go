// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orchestrator starts the civic Q&A HTTP server.
//
// This is the container entry point. Configuration comes from environment
// variables, optionally loaded from a .env file in the working directory.
// See orchestrator.ConfigFromEnv for the full list.
//
// # Usage
//
//	go build -o orchestrator ./cmd/orchestrator
//	LLM_BACKEND=openai WEAVIATE_SERVICE_URL=http://localhost:8080 ./orchestrator
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AleutianAI/AleutianCivic/pkg/logging"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	logger := logging.New(logging.ConfigFromEnv("orchestrator"))
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := orchestrator.ConfigFromEnv()
	svc, err := orchestrator.New(cfg, nil)
	if err != nil {
		slog.Error("Failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Shutdown error", "error", err)
		}
	}()

	if err := svc.Run(); err != nil {
		slog.Error("Orchestrator error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("Orchestrator stopped")
}
