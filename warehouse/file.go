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
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/writers"
)

// FileFormat is the on-disk encoding used by FileWarehouse.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatJSON    FileFormat = "json"
	FormatParquet FileFormat = "parquet"
)

// ParseFileFormat accepts csv, json, jsonl, ndjson and parquet.
func ParseFileFormat(s string) (FileFormat, error) {
	switch strings.ToLower(s) {
	case "", "csv":
		return FormatCSV, nil
	case "json", "jsonl", "ndjson":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

func (f FileFormat) extension() string {
	if f == FormatJSON {
		return "jsonl"
	}
	return string(f)
}

// S3PutAPI is the part of the S3 client FileWarehouse uploads with.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// FileWarehouse writes each table to <dataset>/<table>.<ext>, either below
// a local directory or below a prefix in an S3 bucket. Existing files are
// overwritten.
type FileWarehouse struct {
	format FileFormat
	dir    string

	client S3PutAPI
	bucket string
	prefix string
}

// NewFileWarehouse writes under the local directory dir.
func NewFileWarehouse(dir string, format FileFormat) *FileWarehouse {
	return &FileWarehouse{dir: dir, format: format}
}

// NewS3Warehouse uploads to bucket under prefix.
func NewS3Warehouse(client S3PutAPI, bucket, prefix string, format FileFormat) *FileWarehouse {
	return &FileWarehouse{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), format: format}
}

// ReplaceTable implements Warehouse.
func (f *FileWarehouse) ReplaceTable(ctx context.Context, dataset, table string, t *core.Table) error {
	name := table + "." + f.format.extension()

	if f.client != nil {
		return f.upload(ctx, path.Join(f.prefix, dataset, name), t)
	}

	dir := filepath.Join(f.dir, dataset)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// write beside the target and rename so readers never see a partial file
	tmp, err := f.writeTemp(ctx, dir, t)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Close implements Warehouse.
func (f *FileWarehouse) Close() error {
	return nil
}

func (f *FileWarehouse) upload(ctx context.Context, key string, t *core.Table) error {
	tmp, err := f.writeTemp(ctx, "", t)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	body, err := os.Open(tmp)
	if err != nil {
		return err
	}
	defer body.Close()

	_, err = f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(f.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(f.contentType()),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", f.bucket, key, err)
	}
	return nil
}

// writeTemp encodes t into a new temporary file in dir and returns its path.
func (f *FileWarehouse) writeTemp(ctx context.Context, dir string, t *core.Table) (string, error) {
	file, err := os.CreateTemp(dir, ".tripetl-*."+f.format.extension())
	if err != nil {
		return "", err
	}
	name := file.Name()

	var sink core.DataSink
	switch f.format {
	case FormatCSV:
		sink, err = writers.NewCSVWriter(file, writers.WithHeaders(t.Columns))
	case FormatJSON:
		sink = writers.NewJSONWriter(file, writers.WithJSONColumns(t.Columns))
	case FormatParquet:
		// the parquet writer creates its own file handle
		file.Close()
		sink, err = writers.NewParquetWriter(name,
			writers.WithParquetSchema(writers.InferArrowSchema(t)),
			writers.WithFieldOrder(t.Columns))
	default:
		file.Close()
		err = fmt.Errorf("unsupported output format %q", f.format)
	}
	if err != nil {
		file.Close()
		os.Remove(name)
		return "", err
	}

	if err := writers.WriteTable(ctx, sink, t); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

func (f *FileWarehouse) contentType() string {
	switch f.format {
	case FormatJSON:
		return "application/x-ndjson"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv"
	}
}
