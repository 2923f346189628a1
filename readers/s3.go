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
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/internal/awsclient"
)

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "list_objects", "get_object", "read")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3API is the subset of the S3 client used by S3Reader.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ReaderStats holds statistics about the S3 reader's performance
type S3ReaderStats struct {
	ObjectsListed  int64
	ObjectsRead    int64
	RecordsRead    int64
	ReadDuration   time.Duration
	LastReadTime   time.Time
	CurrentObject  string
	ProcessedFiles []string
}

// S3ReaderOptions configures the S3 reader behavior
type S3ReaderOptions struct {
	Bucket          string            // S3 bucket name
	Key             string            // Single object key; disables listing
	Prefix          string            // Key prefix filter
	Suffix          string            // Key suffix filter (e.g., ".csv", ".parquet")
	Recursive       bool              // Include keys below the prefix's sub-directories
	SortOrder       SortOrder         // Order to process listed objects
	AWS             awsclient.Options // Region, credentials and endpoint
	Client          S3API             // Pre-built client, mostly for tests
	IncludeMetadata bool              // Add the source key to every record
}

// SortOrder defines how files should be ordered for processing
type SortOrder string

const (
	SortByName         SortOrder = "name"          // Sort by object key
	SortByLastModified SortOrder = "last_modified" // Sort by modification time
	SortBySize         SortOrder = "size"          // Sort by object size
	SortNone           SortOrder = "none"          // No sorting (S3 order)
)

// ReaderOptionS3 represents a configuration function for S3Reader
type ReaderOptionS3 func(*S3ReaderOptions)

func WithS3Bucket(bucket string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Bucket = bucket
	}
}

func WithS3Key(key string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Key = key
	}
}

func WithS3Prefix(prefix string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Prefix = prefix
	}
}

func WithS3Suffix(suffix string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Suffix = suffix
	}
}

func WithS3Recursive(recursive bool) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Recursive = recursive
	}
}

func WithS3SortOrder(order SortOrder) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.SortOrder = order
	}
}

// WithS3AWS sets region, credentials and endpoint for the client.
func WithS3AWS(cfg awsclient.Options) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.AWS = cfg
	}
}

func WithS3Client(client S3API) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Client = client
	}
}

func WithS3IncludeMetadata(include bool) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.IncludeMetadata = include
	}
}

// S3Object represents an S3 object selected for reading
type S3Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// S3Reader implements core.DataSource over one object or every object under a prefix.
// The format of each object follows its extension: .csv, .json/.jsonl or .parquet.
type S3Reader struct {
	client        S3API
	objects       []S3Object
	currentIndex  int
	currentReader core.DataSource
	stats         S3ReaderStats
	opts          S3ReaderOptions
}

// NewS3Reader creates a new S3 reader with the specified options
func NewS3Reader(ctx context.Context, options ...ReaderOptionS3) (*S3Reader, error) {
	opts := S3ReaderOptions{
		SortOrder: SortByName,
		Recursive: true,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Bucket == "" {
		return nil, &S3ReaderError{Op: "validate_options", Err: fmt.Errorf("bucket is required")}
	}

	client := opts.Client
	if client == nil {
		c, err := awsclient.NewS3(ctx, opts.AWS)
		if err != nil {
			return nil, &S3ReaderError{Op: "create_client", Err: err}
		}
		client = c
	}

	reader := &S3Reader{
		client: client,
		opts:   opts,
		stats:  S3ReaderStats{ProcessedFiles: make([]string, 0)},
	}

	if opts.Key != "" {
		reader.objects = []S3Object{{Key: opts.Key}}
		reader.stats.ObjectsListed = 1
		return reader, nil
	}

	if err := reader.listObjects(ctx); err != nil {
		return nil, &S3ReaderError{Op: "list_objects", Err: err}
	}
	return reader, nil
}

// NewS3ReaderFromURI reads the object named by an s3://bucket/key location.
// A key ending in "/" is treated as a prefix.
func NewS3ReaderFromURI(ctx context.Context, uri string, options ...ReaderOptionS3) (*S3Reader, error) {
	bucket, key, err := awsclient.ParseURI(uri)
	if err != nil {
		return nil, &S3ReaderError{Op: "parse_uri", Err: err}
	}
	base := []ReaderOptionS3{WithS3Bucket(bucket)}
	if key == "" || strings.HasSuffix(key, "/") {
		base = append(base, WithS3Prefix(key))
	} else {
		base = append(base, WithS3Key(key))
	}
	return NewS3Reader(ctx, append(base, options...)...)
}

// Read implements the core.DataSource interface
func (s *S3Reader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() {
		s.stats.ReadDuration += time.Since(start)
		s.stats.LastReadTime = time.Now()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, &S3ReaderError{Op: "read", Err: ctx.Err()}
		default:
		}

		if s.currentReader == nil {
			if s.currentIndex >= len(s.objects) {
				return nil, io.EOF
			}
			if err := s.openNextObject(ctx); err != nil {
				return nil, &S3ReaderError{Op: "get_object", Err: err}
			}
		}

		record, err := s.currentReader.Read(ctx)
		if err == io.EOF {
			if err := s.closeCurrentReader(); err != nil {
				return nil, &S3ReaderError{Op: "close_object", Err: err}
			}
			continue
		}
		if err != nil {
			return nil, &S3ReaderError{Op: "read_record", Err: err}
		}

		if s.opts.IncludeMetadata {
			record["_s3_key"] = s.objects[s.currentIndex].Key
		}
		s.stats.RecordsRead++
		return record, nil
	}
}

// Close implements the core.DataSource interface
func (s *S3Reader) Close() error {
	return s.closeCurrentReader()
}

// Stats returns S3 reader performance statistics
func (s *S3Reader) Stats() S3ReaderStats {
	return s.stats
}

// Objects returns the objects selected for reading
func (s *S3Reader) Objects() []S3Object {
	return s.objects
}

func (s *S3Reader) listObjects(ctx context.Context) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
	}
	if s.opts.Prefix != "" {
		input.Prefix = aws.String(s.opts.Prefix)
	}

	var objects []S3Object
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !s.shouldIncludeObject(key) {
				continue
			}
			objects = append(objects, S3Object{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	sortObjects(objects, s.opts.SortOrder)
	s.objects = objects
	s.stats.ObjectsListed = int64(len(objects))
	return nil
}

func (s *S3Reader) shouldIncludeObject(key string) bool {
	if strings.HasSuffix(key, "/") {
		return false
	}
	if s.opts.Suffix != "" && !strings.HasSuffix(key, s.opts.Suffix) {
		return false
	}
	if !s.opts.Recursive && strings.Contains(strings.TrimPrefix(key, s.opts.Prefix), "/") {
		return false
	}
	return true
}

func sortObjects(objects []S3Object, order SortOrder) {
	switch order {
	case SortByName:
		sort.SliceStable(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	case SortByLastModified:
		sort.SliceStable(objects, func(i, j int) bool { return objects[i].LastModified.Before(objects[j].LastModified) })
	case SortBySize:
		sort.SliceStable(objects, func(i, j int) bool { return objects[i].Size < objects[j].Size })
	}
}

func (s *S3Reader) openNextObject(ctx context.Context) error {
	obj := s.objects[s.currentIndex]
	s.stats.CurrentObject = obj.Key

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %s: %w", obj.Key, err)
	}

	reader, err := createReaderForObject(result.Body, obj.Key)
	if err != nil {
		result.Body.Close()
		return fmt.Errorf("failed to create reader for %s: %w", obj.Key, err)
	}

	s.currentReader = reader
	s.stats.ObjectsRead++
	s.stats.ProcessedFiles = append(s.stats.ProcessedFiles, obj.Key)
	return nil
}

// createReaderForObject picks a reader from the key's extension.
func createReaderForObject(body io.ReadCloser, key string) (core.DataSource, error) {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return NewCSVReader(body)
	case ".json", ".jsonl", ".ndjson":
		return NewJSONReader(body), nil
	case ".parquet":
		return newSpooledParquetReader(body)
	default:
		return nil, fmt.Errorf("unsupported object format %q", path.Ext(key))
	}
}

// spooledParquetReader reads a Parquet object copied to a temp file, since
// the footer must be read before any rows.
type spooledParquetReader struct {
	*ParquetReader
	filename string
}

func newSpooledParquetReader(body io.ReadCloser) (core.DataSource, error) {
	defer body.Close()

	tmp, err := os.CreateTemp("", "tripetl-*.parquet")
	if err != nil {
		return nil, err
	}
	filename := tmp.Name()
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(filename)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(filename)
		return nil, err
	}

	pr, err := NewParquetReader(filename)
	if err != nil {
		os.Remove(filename)
		return nil, err
	}
	return &spooledParquetReader{ParquetReader: pr, filename: filename}, nil
}

func (p *spooledParquetReader) Close() error {
	err := p.ParquetReader.Close()
	if rmErr := os.Remove(p.filename); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

func (s *S3Reader) closeCurrentReader() error {
	if s.currentReader == nil {
		return nil
	}
	err := s.currentReader.Close()
	s.currentReader = nil
	s.currentIndex++
	return err
}
