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

package validators

import (
	"context"
	"fmt"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/star"
)

// OutputCheck is a post-transform check run before anything is exported.
type OutputCheck func(ctx context.Context, outputs *core.Outputs) error

// Test implements the pipeline test hook interface.
func (c OutputCheck) Test(ctx context.Context, outputs *core.Outputs) error {
	return c(ctx, outputs)
}

// ValidateOutputs fails when the mapping is nil, when any of the required
// names is missing, or when any entry is not a table with at least one row.
func ValidateOutputs(outputs *core.Outputs, required ...string) error {
	if outputs == nil {
		return fmt.Errorf("outputs are undefined")
	}

	var missing []string
	for _, name := range required {
		if _, ok := outputs.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("outputs missing: %s", joinNames(missing))
	}

	for _, name := range outputs.Names() {
		value, _ := outputs.Get(name)
		if value == nil {
			return invalid(name, "output is undefined")
		}
		table, ok := value.(*core.Table)
		if !ok || table == nil {
			return invalid(name, "output is %T, not a table", value)
		}
		if table.Len() == 0 {
			return invalid(name, "output has no rows")
		}
	}
	return nil
}

// StarSchemaChecks returns the checks run against star schema outputs.
func StarSchemaChecks() []OutputCheck {
	return []OutputCheck{
		func(ctx context.Context, outputs *core.Outputs) error {
			return ValidateOutputs(outputs, star.TableNames...)
		},
		checkDimensions,
		checkFact,
	}
}

func checkDimensions(ctx context.Context, outputs *core.Outputs) error {
	for _, spec := range star.Dimensions() {
		if err := ctx.Err(); err != nil {
			return err
		}
		table, ok := outputs.Table(spec.Name)
		if !ok {
			return invalid(spec.Name, "output is not a table")
		}
		if err := NewTableValidator(1, spec.Columns()).Validate(table); err != nil {
			return err
		}
		if err := (SurrogateKeyValidator{Column: spec.IDColumn}).Validate(table); err != nil {
			return err
		}
	}
	return nil
}

func checkFact(ctx context.Context, outputs *core.Outputs) error {
	fact, ok := outputs.Table(star.FactTable)
	if !ok {
		return invalid(star.FactTable, "output is not a table")
	}

	var opts []TableOption
	for _, spec := range star.Dimensions() {
		dim, ok := outputs.Table(spec.Name)
		if !ok {
			return invalid(spec.Name, "output is not a table")
		}
		opts = append(opts, WithFieldValidator(spec.IDColumn, FieldValidator{
			DataType: FieldTypeInt,
			MinValue: 0,
			MaxValue: dim.Len() - 1,
		}))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return NewTableValidator(1, star.FactColumns, opts...).Validate(fact)
}
