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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
)

func newSeedScriptureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-scripture",
		Short: "Load the curated scripture passages into their topic collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			ingester, err := orchestrator.OpenIngester(cmd.Context(), orchestrator.ConfigFromEnv())
			if err != nil {
				return err
			}
			count, err := knowledge.SeedScripture(cmd.Context(), ingester)
			if err != nil {
				return fmt.Errorf("failed to seed scripture: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d scripture passage(s).\n", count)
			return nil
		},
	}
}
