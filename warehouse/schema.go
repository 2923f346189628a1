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
	"cloud.google.com/go/bigquery"
	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/writers"
)

// columnTypes resolves one Arrow type per column from the table's values.
func columnTypes(t *core.Table) []arrow.DataType {
	types := make([]arrow.DataType, len(t.Columns))
	for i, name := range t.Columns {
		types[i] = writers.ArrowType(t.Column(name))
	}
	return types
}

// BigQuerySchema maps the table's columns to nullable BigQuery fields.
func BigQuerySchema(t *core.Table) bigquery.Schema {
	types := columnTypes(t)
	schema := make(bigquery.Schema, len(t.Columns))
	for i, name := range t.Columns {
		schema[i] = &bigquery.FieldSchema{Name: name, Type: bigQueryType(types[i])}
	}
	return schema
}

func bigQueryType(dt arrow.DataType) bigquery.FieldType {
	switch dt.ID() {
	case arrow.INT64:
		return bigquery.IntegerFieldType
	case arrow.FLOAT64:
		return bigquery.FloatFieldType
	case arrow.BOOL:
		return bigquery.BooleanFieldType
	case arrow.TIMESTAMP:
		return bigquery.TimestampFieldType
	default:
		return bigquery.StringFieldType
	}
}

// PostgresColumnTypes maps the table's columns to PostgreSQL types.
func PostgresColumnTypes(t *core.Table) map[string]string {
	types := columnTypes(t)
	out := make(map[string]string, len(t.Columns))
	for i, name := range t.Columns {
		switch types[i].ID() {
		case arrow.INT64:
			out[name] = "BIGINT"
		case arrow.FLOAT64:
			out[name] = "DOUBLE PRECISION"
		case arrow.BOOL:
			out[name] = "BOOLEAN"
		case arrow.TIMESTAMP:
			out[name] = "TIMESTAMPTZ"
		default:
			out[name] = "TEXT"
		}
	}
	return out
}

// stringifyMixed returns a copy of t where every non-nil value of a string
// column is text, so loaders with strict typing accept mixed columns.
func stringifyMixed(t *core.Table) *core.Table {
	types := columnTypes(t)
	var textCols []string
	for i, name := range t.Columns {
		if types[i].ID() == arrow.STRING {
			textCols = append(textCols, name)
		}
	}
	if len(textCols) == 0 {
		return t
	}

	out := core.NewTable(t.Name, t.Columns...)
	for _, row := range t.Rows {
		converted := row
		copied := false
		for _, col := range textCols {
			v := row[col]
			if _, ok := v.(string); ok || v == nil {
				continue
			}
			if !copied {
				converted = row.Clone()
				copied = true
			}
			converted[col] = writers.FormatValue(v, writers.DefaultTimeLayout)
		}
		out.Append(converted)
	}
	return out
}
