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

package writers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/readers"
)

func TestParquetWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "datetime_dim.parquet")
	pickup := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)

	table := core.NewTable("datetime_dim", "tpep_pickup_datetime", "pick_hour", "trip_distance", "label")
	table.Append(core.Record{"tpep_pickup_datetime": pickup, "pick_hour": 0, "trip_distance": nil, "label": "a"})
	table.Append(core.Record{"tpep_pickup_datetime": pickup.Add(time.Hour), "pick_hour": 1, "trip_distance": 2.5, "label": nil})
	table.Append(core.Record{"tpep_pickup_datetime": pickup, "pick_hour": 0, "trip_distance": 3, "label": "c"})

	writer, err := NewParquetWriter(path, WithParquetSchema(InferArrowSchema(table)), WithBatchSize(2))
	require.NoError(t, err)
	require.NoError(t, WriteTable(context.Background(), writer, table))
	assert.Equal(t, int64(2), writer.Stats().BatchesWritten)

	records, err := readParquet(t, path)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, pickup.Add(time.Hour), records[1]["tpep_pickup_datetime"])
	assert.Equal(t, int64(1), records[1]["pick_hour"])
	assert.Nil(t, records[0]["trip_distance"])
	assert.Equal(t, 3.0, records[2]["trip_distance"])
	assert.Nil(t, records[1]["label"])
}

func TestParquetWriter_InferFromFirstRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	writer, err := NewParquetWriter(path, WithFieldOrder([]string{"b", "a"}))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"a": "x", "b": true}))
	require.NoError(t, writer.Write(ctx, core.Record{"a": "y", "b": "not a bool"}))
	require.NoError(t, writer.Close())
	assert.Equal(t, int64(1), writer.Stats().NullValueCounts["b"])

	records, err := readParquet(t, path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, true, records[0]["b"])
	assert.Nil(t, records[1]["b"])
}

func TestParquetWriter_EmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	writer, err := NewParquetWriter(path)
	require.NoError(t, err)

	table := core.NewTable("fact_table", "VendorID", "fare_amount")
	require.NoError(t, WriteTable(context.Background(), writer, table))

	r, err := readers.NewParquetReader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(0), r.NumRows())
	assert.Equal(t, []string{"VendorID", "fare_amount"}, fieldNames(r.Schema()))
}

func TestParquetWriter_SchemaValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strict.parquet")
	schema := arrow.NewSchema([]arrow.Field{{Name: "n", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)
	writer, err := NewParquetWriter(path, WithParquetSchema(schema), WithSchemaValidation(true))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"n": 1}))
	err = writer.Write(ctx, core.Record{"n": "one"})
	var pqErr *ParquetWriterError
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, "validate", pqErr.Op)
	_ = writer.Close()
}

func TestArrowType(t *testing.T) {
	tests := []struct {
		name   string
		values []interface{}
		want   arrow.DataType
	}{
		{"all nil", []interface{}{nil, nil}, arrow.BinaryTypes.String},
		{"ints", []interface{}{nil, 1, int64(2)}, arrow.PrimitiveTypes.Int64},
		{"ints and floats", []interface{}{1, 2.5}, arrow.PrimitiveTypes.Float64},
		{"times", []interface{}{time.Now()}, arrow.FixedWidthTypes.Timestamp_us},
		{"bools", []interface{}{true, nil}, arrow.FixedWidthTypes.Boolean},
		{"mixed", []interface{}{1, "N"}, arrow.BinaryTypes.String},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, arrow.TypeEqual(tt.want, ArrowType(tt.values)))
		})
	}
}

func readParquet(t *testing.T, path string) ([]core.Record, error) {
	t.Helper()
	r, err := readers.NewParquetReader(path)
	if err != nil {
		return nil, err
	}
	return readers.ReadAll(context.Background(), r)
}

func fieldNames(schema *arrow.Schema) []string {
	names := make([]string, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		names = append(names, f.Name)
	}
	return names
}
