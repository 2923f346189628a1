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
	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tripetl/internal/config"
	"github.com/aaronlmathis/tripetl/internal/logging"
	"github.com/aaronlmathis/tripetl/warehouse"
)

// Package cli holds the tripetl commands.

type globalFlags struct {
	logLevel  string
	logFormat string
	repoPath  string
	config    string
	profile   string
}

type runFlags struct {
	input     string
	query     string
	dataset   string
	warehouse string
	outputDir string
	format    string
	skipBad   bool
}

// NewRootCommand builds the tripetl command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "tripetl",
		Short:         "Build a star schema from raw ride-hailing trips and load it into a warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(g.logLevel, g.logFormat)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&g.repoPath, "repo-path", "", "repository root holding io_config.yaml and .env (default $"+config.RepoPathEnv+" or the working directory)")
	pf.StringVar(&g.config, "config", config.DefaultFile, "profile file, relative to the repository root")
	pf.StringVar(&g.profile, "profile", config.DefaultProfile, "profile section to read")

	root.AddCommand(newRunCommand(g), newTransformCommand(g), newInspectCommand())
	return root
}

func addInputFlags(cmd *cobra.Command, f *runFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "trip data: a .csv/.json/.jsonl/.parquet path, s3://bucket/key, http(s) URL, mongodb or postgres:// URL")
	flags.StringVar(&f.query, "query", "", "SQL query selecting raw trips when --input is a postgres URL")
	flags.BoolVar(&f.skipBad, "skip-bad-records", false, "skip records the source fails to decode instead of stopping")
	_ = cmd.MarkFlagRequired("input")
}

func newRunCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transform the input and replace the warehouse tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, g, f, false)
		},
	}
	addInputFlags(cmd, f)
	flags := cmd.Flags()
	flags.StringVar(&f.dataset, "dataset", "", "target dataset (default from profile, else "+warehouse.DefaultDataset+")")
	flags.StringVar(&f.warehouse, "warehouse", "", "bigquery, postgres, file or s3 (default from profile, else bigquery)")
	flags.StringVar(&f.outputDir, "output-dir", "", "directory for the file warehouse")
	flags.StringVar(&f.format, "format", "", "file format for file and s3 warehouses: csv, json or parquet")
	return cmd
}

func newTransformCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform and validate the input, writing the tables to a local directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, g, f, true)
		},
	}
	addInputFlags(cmd, f)
	flags := cmd.Flags()
	flags.StringVar(&f.outputDir, "output-dir", "", "directory the tables are written to")
	flags.StringVar(&f.format, "format", "csv", "csv, json or parquet")
	flags.StringVar(&f.dataset, "dataset", "", "subdirectory of --output-dir (default "+warehouse.DefaultDataset+")")
	_ = cmd.MarkFlagRequired("output-dir")
	return cmd
}
