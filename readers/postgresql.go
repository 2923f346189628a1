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

package readers

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/aaronlmathis/tripetl/core"
)

// PostgresReaderError provides structured error information for Postgres reader operations
type PostgresReaderError struct {
	Op  string // Operation that failed (e.g., "connect", "query", "scan", "read")
	Err error  // Underlying error
}

func (e *PostgresReaderError) Error() string {
	return fmt.Sprintf("postgres reader %s: %v", e.Op, e.Err)
}

func (e *PostgresReaderError) Unwrap() error {
	return e.Err
}

// PostgresReaderStats holds statistics about the Postgres reader's performance
type PostgresReaderStats struct {
	RecordsRead     int64
	QueryDuration   time.Duration
	ReadDuration    time.Duration
	NullValueCounts map[string]int64
}

// PostgresReaderOptions configures the Postgres reader
type PostgresReaderOptions struct {
	DSN          string        // Database connection string
	Query        string        // SQL query selecting the raw trips
	Params       []interface{} // Optional query parameters
	QueryTimeout time.Duration // Connect and query timeout
	DB           *sql.DB       // Existing handle; DSN is ignored when set
}

// PostgresReaderOption represents a configuration function for PostgresReaderOptions
type PostgresReaderOption func(*PostgresReaderOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresQuery sets the query and its parameters.
func WithPostgresQuery(query string, params ...interface{}) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.Query = query
		opts.Params = params
	}
}

func WithPostgresQueryTimeout(timeout time.Duration) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.QueryTimeout = timeout
	}
}

func WithPostgresDB(db *sql.DB) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.DB = db
	}
}

// PostgresReader implements core.DataSource over the result of one query.
// The query runs on the first Read.
type PostgresReader struct {
	db          *sql.DB
	ownsDB      bool
	rows        *sql.Rows
	cancel      context.CancelFunc
	columnNames []string
	columnTypes []*sql.ColumnType
	values      []interface{}
	scanBuffer  []interface{}
	stats       PostgresReaderStats
	opts        *PostgresReaderOptions
}

// NewPostgresReader validates the options and opens the database handle.
func NewPostgresReader(options ...PostgresReaderOption) (*PostgresReader, error) {
	opts := &PostgresReaderOptions{QueryTimeout: 5 * time.Minute}
	for _, option := range options {
		option(opts)
	}

	if opts.Query == "" {
		return nil, &PostgresReaderError{Op: "validate", Err: fmt.Errorf("query is required")}
	}

	reader := &PostgresReader{
		db:    opts.DB,
		opts:  opts,
		stats: PostgresReaderStats{NullValueCounts: make(map[string]int64)},
	}
	if reader.db == nil {
		if opts.DSN == "" {
			return nil, &PostgresReaderError{Op: "validate", Err: fmt.Errorf("dsn is required")}
		}
		db, err := sql.Open("postgres", opts.DSN)
		if err != nil {
			return nil, &PostgresReaderError{Op: "connect", Err: err}
		}
		reader.db = db
		reader.ownsDB = true
	}
	return reader, nil
}

// Read implements the core.DataSource interface.
func (p *PostgresReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		return nil, &PostgresReaderError{Op: "read", Err: err}
	}

	if p.rows == nil {
		if err := p.executeQuery(ctx); err != nil {
			return nil, err
		}
	}

	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, &PostgresReaderError{Op: "next", Err: err}
		}
		return nil, io.EOF
	}

	if err := p.rows.Scan(p.scanBuffer...); err != nil {
		return nil, &PostgresReaderError{Op: "scan", Err: err}
	}

	p.stats.RecordsRead++
	return p.convertRowToRecord(), nil
}

// Close implements the core.DataSource interface.
func (p *PostgresReader) Close() error {
	var err error
	if p.rows != nil {
		err = p.rows.Close()
		p.rows = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.ownsDB && p.db != nil {
		if closeErr := p.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		p.db = nil
	}
	if err != nil {
		return &PostgresReaderError{Op: "close", Err: err}
	}
	return nil
}

// Stats returns statistics about the PostgreSQL reader's performance
func (p *PostgresReader) Stats() PostgresReaderStats {
	return p.stats
}

func (p *PostgresReader) executeQuery(ctx context.Context) error {
	start := time.Now()

	queryCtx := ctx
	if p.opts.QueryTimeout > 0 {
		// rows stay bound to the query context until Close
		queryCtx, p.cancel = context.WithTimeout(ctx, p.opts.QueryTimeout)
	}

	rows, err := p.db.QueryContext(queryCtx, p.opts.Query, p.opts.Params...)
	if err != nil {
		return &PostgresReaderError{Op: "query", Err: err}
	}

	columnNames, err := rows.Columns()
	if err != nil {
		rows.Close()
		return &PostgresReaderError{Op: "columns", Err: err}
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return &PostgresReaderError{Op: "column_types", Err: err}
	}

	p.rows = rows
	p.columnNames = columnNames
	p.columnTypes = columnTypes
	p.values = make([]interface{}, len(columnNames))
	p.scanBuffer = make([]interface{}, len(columnNames))
	for i := range p.scanBuffer {
		p.scanBuffer[i] = &p.values[i]
	}
	p.stats.QueryDuration = time.Since(start)
	return nil
}

func (p *PostgresReader) convertRowToRecord() core.Record {
	record := make(core.Record, len(p.columnNames))
	for i, columnName := range p.columnNames {
		value := p.values[i]
		if value == nil {
			p.stats.NullValueCounts[columnName]++
			record[columnName] = nil
			continue
		}
		record[columnName] = convertSQLValue(value, p.columnTypes[i].DatabaseTypeName())
	}
	return record
}

// convertSQLValue converts driver values to the types the rest of the pipeline expects.
func convertSQLValue(value interface{}, dbType string) interface{} {
	switch v := value.(type) {
	case []byte:
		switch dbType {
		case "NUMERIC", "DECIMAL":
			if f, err := strconv.ParseFloat(string(v), 64); err == nil {
				return f
			}
			return string(v)
		case "BYTEA":
			return v
		default:
			return string(v)
		}
	case int64:
		switch dbType {
		case "INT2", "INT4":
			return int(v)
		}
		return v
	case float32:
		return float64(v)
	default:
		return v
	}
}
