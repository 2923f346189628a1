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
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/tripetl/core"
)

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "flush_batch", "open_file")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize      int64                // Number of records to buffer before writing
	Schema         *arrow.Schema        // Pre-defined schema (optional)
	Compression    compress.Compression // Compression algorithm
	FieldOrder     []string             // Explicit field ordering
	RowGroupSize   int64                // Maximum rows per row group
	Metadata       map[string]string    // File key/value metadata
	ValidateSchema bool                 // Reject values that do not match the schema
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithFieldOrder sets the explicit field ordering for the Parquet schema.
func WithFieldOrder(fields []string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.FieldOrder = append([]string(nil), fields...)
	}
}

// WithParquetSchema fixes the Arrow schema instead of inferring it from the first record.
func WithParquetSchema(schema *arrow.Schema) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Schema = schema
	}
}

// WithSchemaValidation enables or disables strict schema validation.
func WithSchemaValidation(validate bool) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.ValidateSchema = validate
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets key/value metadata stored in the file footer.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// withDefaults applies default values to ParquetWriterOptions.
func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	result := &ParquetWriterOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.RowGroupSize <= 0 {
		result.RowGroupSize = 10000
	}
	if result.Compression == 0 {
		result.Compression = compress.Codecs.Snappy
	}
	return result
}

// ParquetWriter implements core.DataSink for Parquet files.
type ParquetWriter struct {
	file         *os.File
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	fieldOrder   []string
	recordBuffer []core.Record
	builders     []array.Builder
	allocator    memory.Allocator
	stats        WriterStats
	opts         *ParquetWriterOptions
	errorState   bool
	closed       bool
}

// NewParquetWriter creates the file (and its parent directories) and
// returns a writer for it.
func NewParquetWriter(filename string, options ...WriterOption) (*ParquetWriter, error) {
	opts := &ParquetWriterOptions{}
	for _, option := range options {
		option(opts)
	}
	opts = opts.withDefaults()

	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ParquetWriterError{Op: "create_directory", Err: err}
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{Op: "open_file", Err: err}
	}

	return &ParquetWriter{
		file:         file,
		schema:       opts.Schema,
		fieldOrder:   opts.FieldOrder,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		allocator:    memory.NewGoAllocator(),
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
		opts:         opts,
	}, nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// Begin opens the file writer from the table layout so an empty table
// still yields a readable file. Columns with no known type are strings.
func (p *ParquetWriter) Begin(ctx context.Context, columns []string) error {
	if p.writer != nil {
		return nil
	}
	if p.fieldOrder == nil {
		p.fieldOrder = append([]string(nil), columns...)
	}
	if p.schema == nil {
		fields := make([]arrow.Field, len(p.fieldOrder))
		for i, name := range p.fieldOrder {
			fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
		}
		p.schema = arrow.NewSchema(fields, nil)
	}
	return p.openWriter()
}

// Write implements the core.DataSink interface.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	if p.writer == nil {
		if p.schema == nil {
			p.schema = p.schemaFromRecord(record)
		}
		if err := p.openWriter(); err != nil {
			p.errorState = true
			return err
		}
	}

	if p.opts.ValidateSchema {
		if err := p.validateRecord(record); err != nil {
			p.errorState = true
			return &ParquetWriterError{Op: "validate", Err: err}
		}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return &ParquetWriterError{Op: "flush_batch", Err: err}
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}
	return p.flushBatch()
}

// Close implements the core.DataSink interface. It flushes remaining
// records, writes the footer and closes the file.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if len(p.recordBuffer) > 0 && !p.errorState {
		if flushErr := p.flushBatch(); flushErr != nil {
			err = &ParquetWriterError{Op: "flush_remaining", Err: flushErr}
		}
	}

	for _, b := range p.builders {
		b.Release()
	}
	p.builders = nil

	if p.writer != nil {
		if closeErr := p.writer.Close(); closeErr != nil && err == nil {
			err = &ParquetWriterError{Op: "close_writer", Err: closeErr}
		}
		p.writer = nil
	}
	if p.file != nil {
		// pqarrow closes the sink it was given; a second close is expected to fail
		if closeErr := p.file.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
			err = &ParquetWriterError{Op: "close_file", Err: closeErr}
		}
		p.file = nil
	}
	return err
}

func (p *ParquetWriter) openWriter() error {
	if p.fieldOrder == nil {
		for _, f := range p.schema.Fields() {
			p.fieldOrder = append(p.fieldOrder, f.Name)
		}
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)

	schema := p.schema
	if len(p.opts.Metadata) > 0 {
		keys := make([]string, 0, len(p.opts.Metadata))
		for k := range p.opts.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = p.opts.Metadata[k]
		}
		md := arrow.NewMetadata(keys, values)
		schema = arrow.NewSchema(p.schema.Fields(), &md)
		p.schema = schema
	}

	writer, err := pqarrow.NewFileWriter(schema, p.file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{Op: "create_writer", Err: err}
	}
	p.writer = writer

	p.builders = make([]array.Builder, len(p.fieldOrder))
	for i, name := range p.fieldOrder {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return &ParquetWriterError{Op: "initialize_builders", Err: fmt.Errorf("field %s not found in schema", name)}
		}
		p.builders[i] = array.NewBuilder(p.allocator, schema.Field(idx[0]).Type)
	}
	return nil
}

func (p *ParquetWriter) schemaFromRecord(record core.Record) *arrow.Schema {
	if p.fieldOrder == nil {
		for name := range record {
			p.fieldOrder = append(p.fieldOrder, name)
		}
		sort.Strings(p.fieldOrder)
	}
	fields := make([]arrow.Field, len(p.fieldOrder))
	for i, name := range p.fieldOrder {
		fields[i] = arrow.Field{Name: name, Type: ArrowType([]interface{}{record[name]}), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// InferArrowSchema derives a nullable Arrow schema for table from all of its
// values, so a leading nil does not decide a column's type.
func InferArrowSchema(table *core.Table) *arrow.Schema {
	fields := make([]arrow.Field, len(table.Columns))
	for i, name := range table.Columns {
		fields[i] = arrow.Field{Name: name, Type: ArrowType(table.Column(name)), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// ArrowType picks the narrowest Arrow type that holds every non-nil value.
// Integers widen to float64 when floats are present; any other mix is a string.
func ArrowType(values []interface{}) arrow.DataType {
	var hasInt, hasFloat, hasBool, hasTime, hasOther bool
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int, int8, int16, int32, int64:
			hasInt = true
		case float32, float64:
			hasFloat = true
		case bool:
			hasBool = true
		case time.Time:
			hasTime = true
		default:
			hasOther = true
		}
	}

	switch {
	case hasOther:
		return arrow.BinaryTypes.String
	case hasTime && !hasInt && !hasFloat && !hasBool:
		return arrow.FixedWidthTypes.Timestamp_us
	case hasBool && !hasInt && !hasFloat && !hasTime:
		return arrow.FixedWidthTypes.Boolean
	case hasFloat && !hasBool && !hasTime:
		return arrow.PrimitiveTypes.Float64
	case hasInt && !hasBool && !hasTime:
		return arrow.PrimitiveTypes.Int64
	default:
		return arrow.BinaryTypes.String
	}
}

// flushBatch writes the current buffer to the Parquet file.
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}
	start := time.Now()

	for _, record := range p.recordBuffer {
		for i, name := range p.fieldOrder {
			value, ok := record[name]
			if !ok || value == nil {
				p.builders[i].AppendNull()
				p.stats.NullValueCounts[name]++
				continue
			}
			if err := p.appendValue(p.builders[i], value, name); err != nil {
				return err
			}
		}
	}

	arrays := make([]arrow.Array, len(p.builders))
	for i, b := range p.builders {
		arrays[i] = b.NewArray()
	}
	rec := array.NewRecord(p.schema, arrays, int64(len(p.recordBuffer)))
	for _, arr := range arrays {
		arr.Release()
	}
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

// appendValue appends a value to the Arrow builder for its column. Values
// that cannot be represented become null and are counted.
func (p *ParquetWriter) appendValue(builder array.Builder, value interface{}, fieldName string) error {
	appended := true

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if ok {
			b.Append(v)
		}
		appended = ok
	case *array.Int64Builder:
		v, ok := toInt64(value)
		if ok {
			b.Append(v)
		}
		appended = ok
	case *array.Float64Builder:
		v, ok := toFloat(value)
		if ok {
			b.Append(v)
		}
		appended = ok
	case *array.StringBuilder:
		b.Append(FormatValue(value, DefaultTimeLayout))
	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if ok {
			b.Append(arrow.Timestamp(v.UnixMicro()))
		}
		appended = ok
	default:
		return &ParquetWriterError{
			Op:  "append_value",
			Err: fmt.Errorf("unsupported builder type for field %s", fieldName),
		}
	}

	if !appended {
		builder.AppendNull()
		p.stats.NullValueCounts[fieldName]++
	}
	return nil
}

// validateRecord checks that a record matches the schema.
func (p *ParquetWriter) validateRecord(record core.Record) error {
	for _, field := range p.schema.Fields() {
		value, exists := record[field.Name]
		if !exists || value == nil {
			continue
		}
		var ok bool
		switch field.Type.ID() {
		case arrow.BOOL:
			_, ok = value.(bool)
		case arrow.INT64:
			_, ok = toInt64(value)
		case arrow.FLOAT64:
			_, ok = toFloat(value)
		case arrow.TIMESTAMP:
			_, ok = value.(time.Time)
		case arrow.STRING:
			ok = true
		}
		if !ok {
			return fmt.Errorf("field %s: %T does not match %s", field.Name, value, field.Type)
		}
	}
	return nil
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	case float32:
		return float64(v), true
	}
	if i, ok := toInt64(value); ok {
		return float64(i), true
	}
	return 0, false
}
