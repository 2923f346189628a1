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
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// Package writers provides core.DataSink implementations for CSV, JSON lines,
// Parquet and PostgreSQL, and WriteTable for pushing a whole table through one.

// DefaultTimeLayout is used for time values in text formats.
const DefaultTimeLayout = "2006-01-02 15:04:05"

// TableSink is a sink that wants the column layout before the first row.
type TableSink interface {
	core.DataSink
	Begin(ctx context.Context, columns []string) error
}

// WriteTable writes every row of table to sink in order, then flushes and
// closes the sink. The sink is closed even when a write fails.
func WriteTable(ctx context.Context, sink core.DataSink, table *core.Table) (err error) {
	defer func() {
		if closeErr := sink.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close: %w", closeErr)
		}
	}()

	if ts, ok := sink.(TableSink); ok {
		if err := ts.Begin(ctx, table.Columns); err != nil {
			return fmt.Errorf("begin: %w", err)
		}
	}

	for i, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Write(ctx, row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}

	if err := sink.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// FormatValue renders v as a text cell. nil and NaN become the empty string.
// Times are converted to UTC first, since DefaultTimeLayout carries no zone.
func FormatValue(v interface{}, timeLayout string) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.UTC().Format(timeLayout)
	case float64:
		if math.IsNaN(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		if math.IsNaN(float64(val)) {
			return ""
		}
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}
