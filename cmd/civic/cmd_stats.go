// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator/store"
)

func newStatsCmd() *cobra.Command {
	var (
		dbPath string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print interaction statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = os.Getenv("DATABASE_PATH")
			}
			if dbPath == "" {
				dbPath = "data/civic.db"
			}
			db, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := db.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), stats, asJSON)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database file (default: DATABASE_PATH or data/civic.db)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printStats(out io.Writer, stats store.Stats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(out, "Total interactions: %d\n", stats.TotalInteractions)
	fmt.Fprintf(out, "Pending callbacks:  %d\n", stats.PendingCallbacks)
	if len(stats.TopQuestions) == 0 {
		return nil
	}
	fmt.Fprintln(out, "Top questions:")
	for i, q := range stats.TopQuestions {
		fmt.Fprintf(out, "%2d. (%d) %s\n", i+1, q.Count, q.Question)
	}
	return nil
}
