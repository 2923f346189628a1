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
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tripetl/readers"
)

func newInspectCommand() *cobra.Command {
	var rowGroups bool
	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the row count and columns of exported table files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := inspectFile(cmd, path, rowGroups); err != nil {
					return fmt.Errorf("inspect %s: %w", path, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rowGroups, "row-groups", false, "also list parquet row groups")
	return cmd
}

func inspectFile(cmd *cobra.Command, path string, rowGroups bool) error {
	out := cmd.OutOrStdout()
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return inspectParquet(out, path, rowGroups)
	}

	source, err := readers.OpenFile(path)
	if err != nil {
		return err
	}
	records, err := readers.ReadAll(cmd.Context(), source)
	if err != nil {
		return err
	}

	columns := map[string]struct{}{}
	for _, record := range records {
		for name := range record {
			columns[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "%s: %d rows\n", path, len(records))
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

func inspectParquet(out io.Writer, path string, rowGroups bool) error {
	reader, err := readers.NewParquetReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Fprintf(out, "%s: %d rows, %d row groups\n", path, reader.NumRows(), reader.NumRowGroups())
	for _, field := range reader.Schema().Fields() {
		fmt.Fprintf(out, "  %s (%s)\n", field.Name, field.Type)
	}
	if rowGroups {
		for i := 0; i < reader.NumRowGroups(); i++ {
			fmt.Fprintf(out, "  row group %d: %d rows\n", i, reader.RowGroupRows(i))
		}
	}
	return nil
}
