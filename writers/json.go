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
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// JSONWriter implements core.DataSink for line-delimited JSON.
//
// Times are written in the configured layout and NaN or infinite floats
// become null, since encoding/json rejects them.
type JSONWriter struct {
	writer     io.Writer
	closer     io.Closer
	columns    []string
	timeLayout string
	location   *time.Location
	written    int64
	closed     bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithJSONColumns restricts output to columns; missing ones are written as null.
func WithJSONColumns(columns []string) JSONWriterOption {
	return func(j *JSONWriter) {
		j.columns = append([]string(nil), columns...)
	}
}

func WithJSONTimeLayout(layout string) JSONWriterOption {
	return func(j *JSONWriter) {
		j.timeLayout = layout
	}
}

// WithJSONLocation converts times to loc before formatting. Use it with a
// layout that has no zone so the written wall clock is unambiguous.
func WithJSONLocation(loc *time.Location) JSONWriterOption {
	return func(j *JSONWriter) {
		j.location = loc
	}
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output
func NewJSONWriter(w io.WriteCloser, opts ...JSONWriterOption) *JSONWriter {
	j := &JSONWriter{
		writer:     w,
		closer:     w,
		timeLayout: time.RFC3339Nano,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Write implements the core.DataSink interface
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	out := make(map[string]interface{}, len(record))
	if j.columns != nil {
		for _, col := range j.columns {
			out[col] = j.jsonValue(record[col])
		}
	} else {
		for k, v := range record {
			out[k] = j.jsonValue(v)
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}

	data = append(data, '\n')
	if _, err := j.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON data: %w", err)
	}
	j.written++
	return nil
}

// Flush implements the core.DataSink interface
func (j *JSONWriter) Flush() error {
	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close implements the core.DataSink interface
func (j *JSONWriter) Close() error {
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// RecordsWritten reports how many lines have been written.
func (j *JSONWriter) RecordsWritten() int64 {
	return j.written
}

func (j *JSONWriter) jsonValue(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		if j.location != nil {
			val = val.In(j.location)
		}
		return val.Format(j.timeLayout)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil
		}
	}
	return v
}
