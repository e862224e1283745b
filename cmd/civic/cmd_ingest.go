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
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCivic/services/orchestrator"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/policy_engine"
)

var ingestExtensions = map[string]bool{".md": true, ".markdown": true, ".txt": true}

type documentIngester interface {
	Ingest(ctx context.Context, req knowledge.IngestRequest) (int, error)
}

type ingestOptions struct {
	Collection     string
	Title          string
	AllowSensitive bool
	DryRun         bool
}

type ingestSummary struct {
	Files   int
	Skipped int
	Chunks  int
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions
	cmd := &cobra.Command{
		Use:   "ingest [file or directory...]",
		Short: "Scan documents for sensitive data and load them into a collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectFiles(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no .md or .txt files found")
			}
			policy, err := policy_engine.NewPolicyEngine()
			if err != nil {
				return fmt.Errorf("failed to initialize the policy engine: %w", err)
			}

			var ingester documentIngester
			if !opts.DryRun {
				ingester, err = orchestrator.OpenIngester(cmd.Context(), orchestrator.ConfigFromEnv())
				if err != nil {
					return err
				}
			}

			summary, err := ingestFiles(cmd.Context(), cmd.OutOrStdout(), ingester, policy, files, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d file(s) into %s: %d chunk(s), %d skipped.\n",
				summary.Files, opts.Collection, summary.Chunks, summary.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Collection, "collection", "c", "", "target collection, e.g. Platform or Biography")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title stored with every chunk (default: file name)")
	cmd.Flags().BoolVar(&opts.AllowSensitive, "allow-sensitive", false, "ingest files even when the policy scan finds sensitive data")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "scan only, write nothing")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

// collectFiles expands directories into the supported text files beneath
// them. Explicit file arguments are kept regardless of extension.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if ingestExtensions[strings.ToLower(filepath.Ext(p))] {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}
	return files, nil
}

// ingestFiles scans each file and ingests the clean ones. A file with
// findings is skipped unless AllowSensitive is set. ingester may be nil
// for a dry run.
func ingestFiles(ctx context.Context, out io.Writer, ingester documentIngester, policy *policy_engine.PolicyEngine,
	files []string, opts ingestOptions) (ingestSummary, error) {

	var summary ingestSummary
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return summary, fmt.Errorf("failed to read %s: %w", file, err)
		}

		if findings := policy.ScanText(string(content)); len(findings) > 0 {
			fmt.Fprintf(out, "Found %d potential issue(s) in '%s' (classified %s):\n",
				len(findings), file, policy.ClassifyData(content))
			for _, f := range findings {
				fmt.Fprintf(out, "  line %d: %s (%s)\n", f.LineNumber, f.ClassificationName, f.PatternDescription)
			}
			if !opts.AllowSensitive {
				fmt.Fprintf(out, "Skipping '%s'.\n", file)
				summary.Skipped++
				continue
			}
		}

		if opts.DryRun || ingester == nil {
			summary.Files++
			continue
		}

		title := opts.Title
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		chunks, err := ingester.Ingest(ctx, knowledge.IngestRequest{
			Collection: opts.Collection,
			Content:    string(content),
			Source:     filepath.Base(file),
			Title:      title,
		})
		if err != nil {
			return summary, fmt.Errorf("failed to ingest %s: %w", file, err)
		}
		summary.Files++
		summary.Chunks += chunks
	}
	return summary, nil
}
