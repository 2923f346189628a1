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

package warehouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aaronlmathis/tripetl/core"
)

// Package warehouse loads the transformed tables into a destination,
// replacing whatever each table held before.

// DefaultDataset is the dataset (schema, directory) tables are written to
// when none is configured.
const DefaultDataset = "uber_pro_dataset"

// Warehouse replaces a whole table in one call.
type Warehouse interface {
	// ReplaceTable makes dataset.table hold exactly the rows of t,
	// creating the dataset and table when missing.
	ReplaceTable(ctx context.Context, dataset, table string, t *core.Table) error
	Close() error
}

// ExportError reports the table whose write stopped an export.
type ExportError struct {
	TableID string
	Err     error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.TableID, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Exporter writes every table of an output set to a warehouse.
type Exporter struct {
	Warehouse Warehouse
	Dataset   string
	Logger    *slog.Logger
}

// NewExporter returns an Exporter for dataset; an empty dataset means DefaultDataset.
func NewExporter(w Warehouse, dataset string) *Exporter {
	return &Exporter{Warehouse: w, Dataset: dataset}
}

// Export writes outputs in insertion order. Entries that are not tables
// are skipped. The first failed write stops the export; tables written
// before it are left in place.
func (e *Exporter) Export(ctx context.Context, outputs *core.Outputs) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dataset := e.Dataset
	if dataset == "" {
		dataset = DefaultDataset
	}
	if outputs == nil {
		return fmt.Errorf("export: no outputs")
	}

	for _, name := range outputs.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}

		tableID := dataset + "." + name
		table, ok := outputs.Table(name)
		if !ok {
			value, _ := outputs.Get(name)
			logger.Warn("skipping non-tabular output", "table_id", tableID, "type", fmt.Sprintf("%T", value))
			continue
		}

		if err := e.Warehouse.ReplaceTable(ctx, dataset, name, table); err != nil {
			return &ExportError{TableID: tableID, Err: err}
		}
		logger.Info("table exported", "table_id", tableID, "rows", table.Len())
	}
	return nil
}

// Export writes outputs to w under dataset. See Exporter.Export.
func Export(ctx context.Context, w Warehouse, dataset string, outputs *core.Outputs) error {
	return NewExporter(w, dataset).Export(ctx, outputs)
}
