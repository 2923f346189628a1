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

// Package star builds the trip star schema: seven deduplicated dimension
// tables with dense surrogate keys and a fact table that references them.
//
// The transform is pure. Given the same raw batch it always produces the same
// tables, and the input records are never modified.
package star

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/filter"
	"github.com/aaronlmathis/tripetl/transform"
)

// Transformer turns a raw trip batch into the star schema outputs.
type Transformer struct {
	logger *slog.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithLogger sets the logger used for batch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) {
		t.logger = logger
	}
}

// New creates a Transformer.
func New(opts ...Option) *Transformer {
	t := &Transformer{logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform runs the default Transformer over raw.
func Transform(ctx context.Context, raw []core.Record) (*core.Outputs, error) {
	return New().Transform(ctx, raw)
}

// Transform derives every dimension from the timestamp-filtered batch, joins
// them back into the fact table and returns the eight tables keyed by name.
func (t *Transformer) Transform(ctx context.Context, raw []core.Record) (*core.Outputs, error) {
	t.logger.Debug("transforming trip batch", "rows", len(raw), "columns", columnNames(raw))

	batch, err := Prepare(ctx, raw)
	if err != nil {
		return nil, err
	}
	if dropped := len(raw) - len(batch); dropped > 0 {
		t.logger.Debug("dropped rows with unparseable timestamps", "dropped", dropped, "kept", len(batch))
	}

	specs := Dimensions()
	dims := make(map[string]*DimensionTable, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dims[spec.Name] = BuildDimension(spec, batch)
	}

	joins := make([]*DimensionTable, len(specs))
	for i, spec := range specs {
		joins[i] = dims[spec.Name]
	}
	fact, err := AssembleFact(ctx, batch, joins)
	if err != nil {
		return nil, err
	}

	outputs := core.NewOutputs()
	for _, name := range TableNames {
		if name == FactTable {
			outputs.Set(name, fact)
			continue
		}
		outputs.Set(name, dims[name].Table)
	}

	for _, name := range TableNames {
		tbl, _ := outputs.Table(name)
		t.logger.Debug("built table", "table", name, "rows", tbl.Len())
	}
	return outputs, nil
}

// Prepare coerces both trip timestamps to time.Time and drops every row where
// either one could not be parsed. The returned records are copies.
func Prepare(ctx context.Context, raw []core.Record) ([]core.Record, error) {
	coerce := transform.CoerceTime(ColPickupDatetime, ColDropoffDatetime)
	keep := filter.NotNull(ColPickupDatetime, ColDropoffDatetime)

	batch := make([]core.Record, 0, len(raw))
	for i, record := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		coerced, err := coerce.Transform(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("coerce timestamps in row %d: %w", i, err)
		}
		ok, err := keep.ShouldInclude(ctx, coerced)
		if err != nil {
			return nil, fmt.Errorf("filter row %d: %w", i, err)
		}
		if ok {
			batch = append(batch, coerced)
		}
	}
	return batch, nil
}

// AssembleFact inner-joins every batch row against the dimensions in order and
// projects the fact columns. Raw row order is kept.
func AssembleFact(ctx context.Context, batch []core.Record, dims []*DimensionTable) (*core.Table, error) {
	fact := core.NewTable(FactTable, FactColumns...)

rows:
	for _, record := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		joined := record.Clone()
		for _, dim := range dims {
			id, ok := dim.Lookup(record)
			if !ok {
				continue rows
			}
			joined[dim.Spec.IDColumn] = id
		}

		row := make(core.Record, len(FactColumns))
		for _, col := range FactColumns {
			row[col] = joined[col]
		}
		fact.Append(row)
	}

	return fact, nil
}

func columnNames(raw []core.Record) []string {
	if len(raw) == 0 {
		return nil
	}
	names := make([]string, 0, len(raw[0]))
	for _, col := range RawColumns {
		if _, ok := raw[0][col]; ok {
			names = append(names, col)
		}
	}
	return names
}
