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

package tripetl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// Package tripetl runs a single batch through four explicit stages.
//
// Core Concepts:
//   - Extract: every record is read from a core.DataSource, passing through
//     the record-level transformers and filters.
//   - Transform: one BatchTransformer turns the batch into named outputs.
//   - Test: every TestHook must accept the outputs.
//   - Export: one Exporter writes the outputs.
//
// Example usage:
//
//   pipeline, err := tripetl.NewPipeline().
//       From(csvReader).
//       Transform(tripetl.BatchTransformFunc(star.Transform)).
//       Test(validators.StarSchemaChecks()[0]).
//       Export(exporter).
//       Build()
//   if err != nil { log.Fatal(err) }
//   result, err := pipeline.Execute(context.Background())

// PipelineBuilder provides a fluent API for constructing batch pipelines.
// Use NewPipeline() to create a new builder, then chain From, Map, Filter,
// Transform, Test, Export and configuration methods.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers: make([]core.Transformer, 0),
			filters:      make([]core.Filter, 0),
			hooks:        make([]TestHook, 0),
			strategy:     core.FailFast,
			logger:       slog.Default(),
		},
	}
}

// From sets the DataSource for the pipeline.
func (pb *PipelineBuilder) From(source core.DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Apply adds a record-level Transformer applied while reading.
func (pb *PipelineBuilder) Apply(transformer core.Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// Map adds a record-level mapping function applied while reading.
func (pb *PipelineBuilder) Map(fn func(ctx context.Context, record core.Record) (core.Record, error)) *PipelineBuilder {
	return pb.Apply(core.TransformFunc(fn))
}

// Filter adds a record-level Filter applied while reading.
func (pb *PipelineBuilder) Filter(filter core.Filter) *PipelineBuilder {
	pb.pipeline.filters = append(pb.pipeline.filters, filter)
	return pb
}

// Where adds a filtering condition using a function.
func (pb *PipelineBuilder) Where(fn func(ctx context.Context, record core.Record) (bool, error)) *PipelineBuilder {
	return pb.Filter(core.FilterFunc(fn))
}

// Transform sets the batch transform.
func (pb *PipelineBuilder) Transform(transformer BatchTransformer) *PipelineBuilder {
	pb.pipeline.transformer = transformer
	return pb
}

// Test adds hooks run against the outputs before export.
func (pb *PipelineBuilder) Test(hooks ...TestHook) *PipelineBuilder {
	pb.pipeline.hooks = append(pb.pipeline.hooks, hooks...)
	return pb
}

// Export sets the exporter. Without one the run stops after the test hooks.
func (pb *PipelineBuilder) Export(exporter Exporter) *PipelineBuilder {
	pb.pipeline.exporter = exporter
	return pb
}

// WithErrorStrategy sets the error handling strategy for the extract stage.
func (pb *PipelineBuilder) WithErrorStrategy(strategy core.ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a custom error handler for the extract stage.
func (pb *PipelineBuilder) WithErrorHandler(handler core.ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// WithLogger sets the logger for stage diagnostics.
func (pb *PipelineBuilder) WithLogger(logger *slog.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a data source")
	}
	if pb.pipeline.transformer == nil {
		return nil, fmt.Errorf("pipeline requires a batch transform")
	}
	return pb.pipeline, nil
}

// Pipeline represents one configured batch run.
type Pipeline struct {
	source       core.DataSource
	transformers []core.Transformer
	filters      []core.Filter
	transformer  BatchTransformer
	hooks        []TestHook
	exporter     Exporter
	strategy     core.ErrorStrategy
	errorHandler core.ErrorHandler
	logger       *slog.Logger
}

// Result summarises a run.
type Result struct {
	RecordsRead int
	RecordsKept int
	Skipped     int
	Errors      []error // populated under CollectErrors
	Outputs     *core.Outputs
	Exported    bool
	Duration    time.Duration
}

// StageError identifies the stage that stopped a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Execute runs extract, transform, test and export in order.
//
// The source is closed when extraction finishes. A failing test hook stops the
// run before the exporter is called. The returned Result is non-nil even on
// error and reports how far the run got.
func (p *Pipeline) Execute(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}
	defer func() {
		result.Duration = time.Since(start)
	}()

	batch, err := p.extract(ctx, result)
	if err != nil {
		return result, &StageError{Stage: "extract", Err: err}
	}
	p.logger.Info("extracted batch", "read", result.RecordsRead, "kept", result.RecordsKept, "skipped", result.Skipped)

	outputs, err := p.transformer.TransformBatch(ctx, batch)
	if err != nil {
		return result, &StageError{Stage: "transform", Err: err}
	}
	if outputs == nil {
		outputs = core.NewOutputs()
	}
	result.Outputs = outputs
	p.logger.Info("transformed batch", "outputs", outputs.Len())

	for i, hook := range p.hooks {
		if err := hook.Test(ctx, outputs); err != nil {
			return result, &StageError{Stage: fmt.Sprintf("test %d", i), Err: err}
		}
	}

	if p.exporter == nil {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := p.exporter.Export(ctx, outputs); err != nil {
		return result, &StageError{Stage: "export", Err: err}
	}
	result.Exported = true
	return result, nil
}

func (p *Pipeline) extract(ctx context.Context, result *Result) ([]core.Record, error) {
	defer p.source.Close()

	batch := make([]core.Record, 0)
	var lastReadErr error
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := p.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if terminalReadError(err, lastReadErr) {
				return nil, err
			}
			lastReadErr = err
			if err := p.handleError(ctx, result, record, err); err != nil {
				return nil, err
			}
			continue
		}
		lastReadErr = nil
		result.RecordsRead++

		// Skip empty records early
		if len(record) == 0 {
			result.Skipped++
			continue
		}

		transformed, err := p.applyTransformations(ctx, record)
		if err != nil {
			if err := p.handleError(ctx, result, record, err); err != nil {
				return nil, err
			}
			continue
		}
		if len(transformed) == 0 {
			result.Skipped++
			continue
		}

		include, err := p.applyFilters(ctx, transformed)
		if err != nil {
			if err := p.handleError(ctx, result, record, err); err != nil {
				return nil, err
			}
			continue
		}
		if !include {
			result.Skipped++
			continue
		}

		batch = append(batch, transformed)
	}

	result.RecordsKept = len(batch)
	return batch, nil
}

// terminalReadError reports whether a read failure ends extraction under every
// strategy: the source says it is broken, the context is done, or the source
// failed the same way twice without yielding a record in between.
func terminalReadError(err, previous error) bool {
	if errors.Is(err, core.ErrSourceBroken) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return previous != nil && previous.Error() == err.Error()
}

func (p *Pipeline) applyFilters(ctx context.Context, record core.Record) (bool, error) {
	for _, filter := range p.filters {
		include, err := filter.ShouldInclude(ctx, record)
		if err != nil {
			return false, err
		}
		if !include {
			return false, nil
		}
	}
	return true, nil
}

func (p *Pipeline) applyTransformations(ctx context.Context, record core.Record) (core.Record, error) {
	current := record
	for _, transformer := range p.transformers {
		transformed, err := transformer.Transform(ctx, current)
		if err != nil {
			return nil, err
		}
		current = transformed
	}
	return current, nil
}

// handleError handles errors according to the pipeline's error strategy and handler.
// Returns an error if processing should stop, or nil to continue.
func (p *Pipeline) handleError(ctx context.Context, result *Result, record core.Record, err error) error {
	switch p.strategy {
	case core.FailFast:
		return err
	case core.SkipErrors:
		result.Skipped++
		p.logger.Warn("skipping record", "error", err)
	case core.CollectErrors:
		result.Skipped++
		result.Errors = append(result.Errors, err)
	default:
		return err
	}
	if p.errorHandler != nil {
		return p.errorHandler.HandleError(ctx, record, err)
	}
	return nil
}
