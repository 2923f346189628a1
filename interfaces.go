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

	"github.com/aaronlmathis/tripetl/core"
)

// Package tripetl defines the batch pipeline interfaces for the TripETL library.
//
// TripETL loads one raw ride-hailing batch, reshapes it into a star schema and
// replaces the warehouse tables with the result.
//
// This file contains the stage interfaces for the batch transform, the
// post-transform test hooks and the exporter, together with their function adapters.
// Record-level interfaces live in the core package.

// Record is the record type shared by every stage.
type Record = core.Record

// BatchTransformer turns the whole raw batch into named outputs.
type BatchTransformer interface {
	// TransformBatch derives the outputs from every record read for the run.
	TransformBatch(ctx context.Context, batch []core.Record) (*core.Outputs, error)
}

// BatchTransformFunc is a function adapter for the BatchTransformer interface.
type BatchTransformFunc func(ctx context.Context, batch []core.Record) (*core.Outputs, error)

// TransformBatch implements the BatchTransformer interface for BatchTransformFunc.
func (f BatchTransformFunc) TransformBatch(ctx context.Context, batch []core.Record) (*core.Outputs, error) {
	return f(ctx, batch)
}

// TestHook checks the outputs after the transform and before the export.
// Any error aborts the run before anything is written.
type TestHook interface {
	Test(ctx context.Context, outputs *core.Outputs) error
}

// TestFunc is a function adapter for the TestHook interface.
type TestFunc func(ctx context.Context, outputs *core.Outputs) error

// Test implements the TestHook interface for TestFunc.
func (f TestFunc) Test(ctx context.Context, outputs *core.Outputs) error {
	return f(ctx, outputs)
}

// Exporter writes the outputs to their destination.
type Exporter interface {
	Export(ctx context.Context, outputs *core.Outputs) error
}

// ExportFunc is a function adapter for the Exporter interface.
type ExportFunc func(ctx context.Context, outputs *core.Outputs) error

// Export implements the Exporter interface for ExportFunc.
func (f ExportFunc) Export(ctx context.Context, outputs *core.Outputs) error {
	return f(ctx, outputs)
}
