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
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tripetl/core"
)

type recordingSink struct {
	rows    []core.Record
	failAt  int
	flushed bool
	closed  bool
}

func (s *recordingSink) Write(ctx context.Context, record core.Record) error {
	if s.failAt > 0 && len(s.rows)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.rows = append(s.rows, record)
	return nil
}

func (s *recordingSink) Flush() error { s.flushed = true; return nil }
func (s *recordingSink) Close() error { s.closed = true; return nil }

func tripTable() *core.Table {
	table := core.NewTable("passenger_count_dim", "passenger_count", "passenger_count_id")
	table.Append(core.Record{"passenger_count": 1, "passenger_count_id": 0})
	table.Append(core.Record{"passenger_count": 2, "passenger_count_id": 1})
	table.Append(core.Record{"passenger_count": 5, "passenger_count_id": 2})
	return table
}

func TestWriteTable(t *testing.T) {
	sink := &recordingSink{}
	require.NoError(t, WriteTable(context.Background(), sink, tripTable()))
	assert.Len(t, sink.rows, 3)
	assert.Equal(t, 5, sink.rows[2]["passenger_count"])
	assert.True(t, sink.flushed)
	assert.True(t, sink.closed)
}

func TestWriteTable_StopsOnError(t *testing.T) {
	sink := &recordingSink{failAt: 2}
	err := WriteTable(context.Background(), sink, tripTable())
	assert.ErrorContains(t, err, "row 1: disk full")
	assert.Len(t, sink.rows, 1)
	assert.False(t, sink.flushed)
	assert.True(t, sink.closed)
}

func TestWriteTable_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	err := WriteTable(ctx, sink, tripTable())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.rows)
	assert.True(t, sink.closed)
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2016, 3, 6, 23, 59, 1, 0, time.UTC)
	assert.Equal(t, "", FormatValue(nil, DefaultTimeLayout))
	assert.Equal(t, "", FormatValue(math.NaN(), DefaultTimeLayout))
	assert.Equal(t, "-73.99", FormatValue(-73.99, DefaultTimeLayout))
	assert.Equal(t, "0.0000001", FormatValue(1e-7, DefaultTimeLayout))
	assert.Equal(t, "2016-03-06 23:59:01", FormatValue(ts, DefaultTimeLayout))
	assert.Equal(t, "2016-03-07 04:59:01", FormatValue(ts.Add(5*time.Hour).In(time.FixedZone("EST", -5*60*60)), DefaultTimeLayout))
	assert.Equal(t, "true", FormatValue(true, DefaultTimeLayout))
	assert.Equal(t, "3", FormatValue(int64(3), DefaultTimeLayout))
}

func TestPostgresWriter_Validation(t *testing.T) {
	_, err := NewPostgresWriter(WithTableName("fact_table"))
	assert.ErrorContains(t, err, "dsn is required")

	_, err = NewPostgresWriter(WithPostgresDSN("postgres://localhost/uber"))
	assert.ErrorContains(t, err, "table name is required")

	_, err = NewPostgresWriter(
		WithPostgresDSN("postgres://localhost/uber"),
		WithTableName("fact_table"),
		WithConflictResolution(ConflictUpdate, []string{"VendorID"}, nil))
	assert.ErrorContains(t, err, "update columns required")
}

func TestPostgresWriter_SQL(t *testing.T) {
	w := &PostgresWriter{
		options: PostgresWriterOptions{
			TableName:   "uber_pro_dataset.rate_code_dim",
			ColumnTypes: map[string]string{"rate_code_id": "BIGINT"},
		},
		columns: []string{"RatecodeID", "rate_code_id", "rate_code_name"},
	}

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "uber_pro_dataset"."rate_code_dim" ("RatecodeID" DOUBLE PRECISION, "rate_code_id" BIGINT, "rate_code_name" TEXT)`,
		w.createTableSQL(core.Record{"RatecodeID": 1.0, "rate_code_name": "Standard rate"}))
	assert.Equal(t,
		`INSERT INTO "uber_pro_dataset"."rate_code_dim" ("RatecodeID", "rate_code_id", "rate_code_name") VALUES ($1, $2, $3)`,
		w.insertSQL())

	w.options.ConflictResolution = ConflictIgnore
	w.options.ConflictColumns = []string{"rate_code_id"}
	assert.Contains(t, w.insertSQL(), `ON CONFLICT ("rate_code_id") DO NOTHING`)
}

func TestConvertValue(t *testing.T) {
	assert.Equal(t, int64(4), convertValue(4))
	assert.Nil(t, convertValue(math.NaN()))
	assert.Equal(t, "x", convertValue("x"))
	assert.Equal(t, "[1 2]", convertValue([]int{1, 2}))
	assert.Equal(t, "TIMESTAMPTZ", InferSQLType(time.Time{}))
	assert.Equal(t, "TEXT", InferSQLType(nil))
}
