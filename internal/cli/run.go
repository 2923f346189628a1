//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TripETL.
//
// TripETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TripETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TripETL. If not, see https://www.gnu.org/licenses/.

package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tripetl"
	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/internal/config"
	"github.com/aaronlmathis/tripetl/star"
	"github.com/aaronlmathis/tripetl/validators"
	"github.com/aaronlmathis/tripetl/warehouse"
)

func runPipeline(cmd *cobra.Command, g *globalFlags, f *runFlags, localOnly bool) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := config.Load(config.Options{
		RepoPath: g.repoPath,
		File:     g.config,
		Profile:  g.profile,
		Optional: localOnly || !cmd.Flags().Changed("config"),
	})
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded", "path", cfg.Path, "profile", cfg.Profile, "keys", cfg.Keys())

	kind := f.warehouse
	if localOnly {
		kind = KindFile
	}
	settings := warehouseSettings{
		Kind:      kind,
		OutputDir: f.outputDir,
		Format:    f.format,
	}
	dataset := cfg.GetDefault(config.KeyDataset, warehouse.DefaultDataset)
	if f.dataset != "" {
		dataset = f.dataset
	}

	source, err := OpenSource(ctx, f.input, f.query, cfg)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}

	wh, err := OpenWarehouse(ctx, settings, cfg)
	if err != nil {
		source.Close()
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer wh.Close()

	exporter := warehouse.NewExporter(wh, dataset)
	exporter.Logger = logger

	builder := tripetl.NewPipeline().
		From(source).
		Transform(tripetl.BatchTransformFunc(star.New(star.WithLogger(logger)).Transform)).
		Export(exporter).
		WithLogger(logger)
	for _, check := range validators.StarSchemaChecks() {
		builder.Test(check)
	}
	if f.skipBad {
		builder.WithErrorStrategy(core.SkipErrors)
	}

	pipeline, err := builder.Build()
	if err != nil {
		return err
	}

	result, err := pipeline.Execute(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "read %d records, kept %d, skipped %d in %s\n",
		result.RecordsRead, result.RecordsKept, result.Skipped, result.Duration.Round(time.Millisecond))
	for _, name := range result.Outputs.Names() {
		table, _ := result.Outputs.Table(name)
		fmt.Fprintf(out, "  %s.%s: %d rows\n", dataset, name, table.Len())
	}
	return nil
}
