// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command civic is the operator CLI for the campaign Q&A service.
//
// # Commands
//
//   - serve: run the HTTP service (same as cmd/orchestrator)
//   - ingest: policy-scan and load documents into a knowledge collection
//   - seed-scripture: load the curated scripture collections
//   - stats: print interaction statistics from the local database
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCivic/pkg/logging"
)

var (
	envFile  string
	logLevel string
	logger   *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "civic",
		Short: "Operate the Aleutian Civic campaign Q&A service",
		Long: `civic runs the campaign Q&A service and manages its knowledge base
and interaction records.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			cfg := logging.ConfigFromEnv("civic")
			if logLevel != "" {
				cfg.Level = logging.ParseLevel(logLevel)
			}
			cfg.Output = cmd.ErrOrStderr()
			logger = logging.New(cfg)
			slog.SetDefault(logger.Slog())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(newServeCmd(), newIngestCmd(), newSeedScriptureCmd(), newStatsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
