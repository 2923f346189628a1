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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aaronlmathis/tripetl/core"
)

// ReadAll drains source into memory and closes it.
func ReadAll(ctx context.Context, source core.DataSource) ([]core.Record, error) {
	defer source.Close()

	var records []core.Record
	for {
		record, err := source.Read(ctx)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

// OpenFile opens a local trip file, picking the reader from the extension.
func OpenFile(filename string) (core.DataSource, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		r, err := NewCSVReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return r, nil
	case ".json", ".jsonl", ".ndjson":
		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		return NewJSONReader(f), nil
	case ".parquet":
		return NewParquetReader(filename)
	default:
		return nil, fmt.Errorf("unsupported input format %q", filepath.Ext(filename))
	}
}
