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
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// HTTPReaderError provides structured error information for HTTP reader operations
type HTTPReaderError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *HTTPReaderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("http reader %s [%s] (status %d): %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("http reader %s [%s]: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPReaderError) Unwrap() error {
	return e.Err
}

// HTTPReaderStats holds statistics about the HTTP reader
type HTTPReaderStats struct {
	RecordsRead  int64
	RetryCount   int64
	ResponseTime time.Duration
	ReadDuration time.Duration
}

// HTTPReaderOptions configures the HTTP reader
type HTTPReaderOptions struct {
	Headers       map[string]string
	BearerToken   string
	Format        string // csv, json or parquet; empty infers from the response
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	UserAgent     string
	Client        *http.Client
}

// ReaderOptionHTTP represents a configuration function for HTTPReader
type ReaderOptionHTTP func(*HTTPReaderOptions)

func WithHTTPHeaders(headers map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

func WithHTTPBearerToken(token string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.BearerToken = token
	}
}

func WithHTTPFormat(format string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Format = strings.ToLower(format)
	}
}

func WithHTTPTimeout(timeout time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Timeout = timeout
	}
}

func WithHTTPRetries(attempts int, delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

func WithHTTPClient(client *http.Client) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Client = client
	}
}

// HTTPReader implements core.DataSource for a trip file published at a URL.
// The download starts on the first Read.
type HTTPReader struct {
	url    string
	client *http.Client
	opts   *HTTPReaderOptions
	inner  core.DataSource
	stats  HTTPReaderStats
	done   bool
}

// NewHTTPReader creates a reader for rawURL.
func NewHTTPReader(rawURL string, options ...ReaderOptionHTTP) (*HTTPReader, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &HTTPReaderError{Op: "validate", URL: rawURL, Err: fmt.Errorf("not an http url")}
	}

	opts := &HTTPReaderOptions{
		Headers:       make(map[string]string),
		Timeout:       5 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		UserAgent:     "TripETL-HTTPReader/1.0",
	}
	for _, option := range options {
		option(opts)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPReader{url: rawURL, client: client, opts: opts}, nil
}

// Read implements the core.DataSource interface
func (hr *HTTPReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() {
		hr.stats.ReadDuration += time.Since(start)
	}()

	select {
	case <-ctx.Done():
		return nil, &HTTPReaderError{Op: "read", URL: hr.url, Err: ctx.Err()}
	default:
	}

	if hr.done {
		return nil, io.EOF
	}
	if hr.inner == nil {
		if err := hr.open(ctx); err != nil {
			// nothing can be read without a response body
			return nil, fmt.Errorf("%w: %w", core.ErrSourceBroken, err)
		}
	}

	record, err := hr.inner.Read(ctx)
	if err == io.EOF {
		hr.done = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, &HTTPReaderError{Op: "read_record", URL: hr.url, Err: err}
	}
	hr.stats.RecordsRead++
	return record, nil
}

// Close implements the core.DataSource interface
func (hr *HTTPReader) Close() error {
	if hr.inner == nil {
		return nil
	}
	err := hr.inner.Close()
	hr.inner = nil
	return err
}

// Stats returns HTTP reader statistics
func (hr *HTTPReader) Stats() HTTPReaderStats {
	return hr.stats
}

func (hr *HTTPReader) open(ctx context.Context) error {
	resp, err := hr.executeRequestWithRetry(ctx)
	if err != nil {
		return err
	}

	format := hr.opts.Format
	if format == "" {
		format = inferHTTPFormat(hr.url, resp.Header.Get("Content-Type"))
	}

	var inner core.DataSource
	switch format {
	case "csv":
		inner, err = NewCSVReader(resp.Body)
	case "json", "jsonl", "ndjson":
		inner = NewJSONReader(resp.Body)
	case "parquet":
		inner, err = newSpooledParquetReader(resp.Body)
	default:
		err = fmt.Errorf("cannot determine the format of the response")
	}
	if err != nil {
		resp.Body.Close()
		return &HTTPReaderError{Op: "open_body", URL: hr.url, Err: err}
	}

	hr.inner = inner
	return nil
}

func (hr *HTTPReader) executeRequestWithRetry(ctx context.Context) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= hr.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := hr.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			hr.stats.RetryCount++
		}

		resp, err := hr.executeRequest(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if httpErr, ok := err.(*HTTPReaderError); ok && httpErr.StatusCode != 0 {
			// only rate limits and server errors are worth another attempt
			if httpErr.StatusCode != http.StatusTooManyRequests && httpErr.StatusCode < 500 {
				break
			}
		}
	}

	return nil, lastErr
}

func (hr *HTTPReader) executeRequest(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hr.url, nil)
	if err != nil {
		return nil, &HTTPReaderError{Op: "create_request", URL: hr.url, Err: err}
	}

	req.Header.Set("User-Agent", hr.opts.UserAgent)
	for k, v := range hr.opts.Headers {
		req.Header.Set(k, v)
	}
	if hr.opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+hr.opts.BearerToken)
	}

	start := time.Now()
	resp, err := hr.client.Do(req)
	if err != nil {
		return nil, &HTTPReaderError{Op: "request", URL: hr.url, Err: err}
	}
	hr.stats.ResponseTime = time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &HTTPReaderError{
			Op:         "status_check",
			URL:        hr.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}
	return resp, nil
}

func inferHTTPFormat(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".csv":
			return "csv"
		case ".json", ".jsonl", ".ndjson":
			return "json"
		case ".parquet":
			return "parquet"
		}
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/csv", "application/csv":
		return "csv"
	case "application/json", "application/x-ndjson", "application/jsonl":
		return "json"
	case "application/vnd.apache.parquet", "application/x-parquet":
		return "parquet"
	}
	return ""
}
