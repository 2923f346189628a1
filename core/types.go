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

package core

import "context"

// Package core defines the core types for the TripETL library.
//
// This file contains the record type, the in-memory table types passed between
// pipeline stages, and the function adapters for the core interfaces.

// Record represents a single data record in the pipeline.
// Each record is a map from field names to values, supporting heterogeneous data.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a named, column-ordered set of rows held in memory for one run.
type Table struct {
	Name    string
	Columns []string
	Rows    []Record
}

// NewTable creates an empty table with the given column order.
func NewTable(name string, columns ...string) *Table {
	return &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Rows:    make([]Record, 0),
	}
}

// Append adds a row to the table.
func (t *Table) Append(row Record) {
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns every value of the named column in row order.
func (t *Table) Column(name string) []interface{} {
	values := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name]
	}
	return values
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Outputs is an insertion-ordered mapping from output name to value.
// Values are usually *Table, but any value may be stored; consumers decide
// how to treat entries that are not tables.
type Outputs struct {
	names  []string
	values map[string]interface{}
}

// NewOutputs creates an empty output mapping.
func NewOutputs() *Outputs {
	return &Outputs{values: make(map[string]interface{})}
}

// Set stores a value under name. Re-setting an existing name keeps its position.
func (o *Outputs) Set(name string, value interface{}) {
	if o.values == nil {
		o.values = make(map[string]interface{})
	}
	if _, exists := o.values[name]; !exists {
		o.names = append(o.names, name)
	}
	o.values[name] = value
}

// Get returns the value stored under name.
func (o *Outputs) Get(name string) (interface{}, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Table returns the named entry if it is a table.
func (o *Outputs) Table(name string) (*Table, bool) {
	v, ok := o.values[name]
	if !ok {
		return nil, false
	}
	t, ok := v.(*Table)
	return t, ok && t != nil
}

// Names returns the entry names in insertion order.
func (o *Outputs) Names() []string {
	return append([]string(nil), o.names...)
}

// Len returns the number of entries.
func (o *Outputs) Len() int {
	return len(o.names)
}

// TransformFunc is a function adapter for the Transformer interface.
// Allows ordinary functions to be used as Transformers.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}

// FilterFunc is a function adapter for the Filter interface.
// Allows ordinary functions to be used as Filters.
type FilterFunc func(ctx context.Context, record Record) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(ctx context.Context, record Record) (bool, error) {
	return f(ctx, record)
}
