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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/writers"
)

// bigQueryTimeLayout is read as UTC by BigQuery TIMESTAMP columns, so times
// are converted to UTC before they are formatted.
const bigQueryTimeLayout = "2006-01-02 15:04:05.999999"

// BigQueryError provides structured error information for BigQuery operations
type BigQueryError struct {
	Op  string // "dataset", "stage", "load", "wait"
	Err error
}

func (e *BigQueryError) Error() string {
	return fmt.Sprintf("bigquery %s: %v", e.Op, e.Err)
}

func (e *BigQueryError) Unwrap() error {
	return e.Err
}

// BigQueryOptions configures the BigQuery warehouse
type BigQueryOptions struct {
	ProjectID       string
	CredentialsFile string // service-account key file; empty uses application default credentials
	Location        string // dataset location, e.g. "US"
	ClientOptions   []option.ClientOption
	Logger          *slog.Logger
}

// BigQueryOption represents a configuration function for BigQueryOptions
type BigQueryOption func(*BigQueryOptions)

func WithCredentialsFile(path string) BigQueryOption {
	return func(opts *BigQueryOptions) {
		opts.CredentialsFile = path
	}
}

func WithLocation(location string) BigQueryOption {
	return func(opts *BigQueryOptions) {
		opts.Location = location
	}
}

// WithClientOptions passes extra options to the BigQuery client, such as an endpoint for an emulator.
func WithClientOptions(clientOpts ...option.ClientOption) BigQueryOption {
	return func(opts *BigQueryOptions) {
		opts.ClientOptions = append(opts.ClientOptions, clientOpts...)
	}
}

func WithBigQueryLogger(logger *slog.Logger) BigQueryOption {
	return func(opts *BigQueryOptions) {
		opts.Logger = logger
	}
}

// BigQueryWarehouse loads tables with load jobs that truncate the target.
type BigQueryWarehouse struct {
	client *bigquery.Client
	opts   *BigQueryOptions
	logger *slog.Logger
}

// NewBigQueryWarehouse creates a client for projectID.
func NewBigQueryWarehouse(ctx context.Context, projectID string, options ...BigQueryOption) (*BigQueryWarehouse, error) {
	opts := &BigQueryOptions{ProjectID: projectID}
	for _, apply := range options {
		apply(opts)
	}
	if opts.ProjectID == "" {
		return nil, &BigQueryError{Op: "validate", Err: fmt.Errorf("project id is required")}
	}

	clientOpts := append([]option.ClientOption(nil), opts.ClientOptions...)
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, &BigQueryError{Op: "connect", Err: err}
	}
	if opts.Location != "" {
		client.Location = opts.Location
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BigQueryWarehouse{client: client, opts: opts, logger: logger}, nil
}

// ReplaceTable implements Warehouse.
func (b *BigQueryWarehouse) ReplaceTable(ctx context.Context, dataset, table string, t *core.Table) error {
	ds := b.client.Dataset(dataset)
	if err := b.ensureDataset(ctx, ds); err != nil {
		return &BigQueryError{Op: "dataset", Err: err}
	}

	var staged bytes.Buffer
	if err := stageNDJSON(ctx, &staged, t); err != nil {
		return &BigQueryError{Op: "stage", Err: err}
	}

	source := bigquery.NewReaderSource(&staged)
	source.SourceFormat = bigquery.JSON
	source.Schema = BigQuerySchema(t)

	loader := ds.Table(table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return &BigQueryError{Op: "load", Err: err}
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return &BigQueryError{Op: "wait", Err: err}
	}
	if err := status.Err(); err != nil {
		return &BigQueryError{Op: "load", Err: err}
	}

	b.logger.Debug("bigquery load finished", "job_id", job.ID(), "table", dataset+"."+table, "rows", t.Len())
	return nil
}

// Close implements Warehouse.
func (b *BigQueryWarehouse) Close() error {
	return b.client.Close()
}

func (b *BigQueryWarehouse) ensureDataset(ctx context.Context, ds *bigquery.Dataset) error {
	_, err := ds.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return err
	}

	b.logger.Info("creating dataset", "dataset", ds.DatasetID)
	err = ds.Create(ctx, &bigquery.DatasetMetadata{Location: b.opts.Location})
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	return err
}

// stageNDJSON writes t as newline-delimited JSON in column order.
func stageNDJSON(ctx context.Context, w io.Writer, t *core.Table) error {
	sink := writers.NewJSONWriter(nopWriteCloser{w},
		writers.WithJSONColumns(t.Columns),
		writers.WithJSONTimeLayout(bigQueryTimeLayout),
		writers.WithJSONLocation(time.UTC))
	return writers.WriteTable(ctx, sink, stringifyMixed(t))
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
