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

// validators.go - Table level data quality validation
package validators

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// ValidationError reports why a table failed a check.
type ValidationError struct {
	Table  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for table %s: %s", e.Table, e.Reason)
}

func invalid(table, format string, args ...interface{}) error {
	return &ValidationError{Table: table, Reason: fmt.Sprintf(format, args...)}
}

// TableValidator performs data quality checks on a single table.
// Covers row counts, column presence, null rates, per-field rules and
// custom table-wide checks.
type TableValidator struct {
	MinRows          int                                // Minimum number of rows required
	MaxRows          int                                // Maximum number of rows allowed (0 = unlimited)
	MaxNullRate      float64                            // Maximum allowed null rate per column (0 disables)
	RequiredColumns  []string                           // Columns the table must declare
	FieldValidators  map[string]FieldValidator          // Per-field validation rules
	CustomValidators []func(*core.Table) (bool, error) // Custom validation functions
}

// FieldValidator defines validation rules for individual fields
type FieldValidator struct {
	DataType      FieldDataType                   // Expected data type
	Pattern       *regexp.Regexp                  // Regex pattern for string fields
	MinValue      interface{}                     // Minimum value (for numeric fields)
	MaxValue      interface{}                     // Maximum value (for numeric fields)
	AllowedValues []interface{}                   // Whitelist of allowed values
	AllowNull     bool                            // Skip the rules for nil values
	CustomFunc    func(interface{}) (bool, error) // Custom validation function
}

// FieldDataType represents expected data types for validation
type FieldDataType string

const (
	FieldTypeString FieldDataType = "string"
	FieldTypeInt    FieldDataType = "int"
	FieldTypeFloat  FieldDataType = "float"
	FieldTypeNumber FieldDataType = "number"
	FieldTypeBool   FieldDataType = "bool"
	FieldTypeTime   FieldDataType = "time"
	FieldTypeAny    FieldDataType = "any"
)

// Validate runs every configured check against the table.
func (tv *TableValidator) Validate(table *core.Table) error {
	if table == nil {
		return invalid("<nil>", "table is nil")
	}

	rowCount := table.Len()
	if rowCount < tv.MinRows {
		return invalid(table.Name, "insufficient rows: got %d, need at least %d", rowCount, tv.MinRows)
	}
	if tv.MaxRows > 0 && rowCount > tv.MaxRows {
		return invalid(table.Name, "too many rows: got %d, maximum allowed %d", rowCount, tv.MaxRows)
	}

	for _, col := range tv.RequiredColumns {
		if !table.HasColumn(col) {
			return invalid(table.Name, "missing required column: %s", col)
		}
	}

	if rowCount == 0 {
		return nil
	}

	if err := tv.validateNullRates(table); err != nil {
		return err
	}
	if err := tv.validateFieldValues(table); err != nil {
		return err
	}

	for i, validator := range tv.CustomValidators {
		valid, err := validator(table)
		if err != nil {
			return invalid(table.Name, "custom validator %d failed: %v", i, err)
		}
		if !valid {
			return invalid(table.Name, "custom validator %d failed validation", i)
		}
	}

	return nil
}

// validateNullRates checks null value rates across the declared columns
func (tv *TableValidator) validateNullRates(table *core.Table) error {
	if tv.MaxNullRate <= 0 {
		return nil
	}

	for _, col := range table.Columns {
		nullCount := 0
		for _, row := range table.Rows {
			if value, exists := row[col]; !exists || value == nil {
				nullCount++
			}
		}

		nullRate := float64(nullCount) / float64(table.Len())
		if nullRate > tv.MaxNullRate {
			return invalid(table.Name, "column %s has null rate %.2f, exceeds maximum %.2f",
				col, nullRate, tv.MaxNullRate)
		}
	}

	return nil
}

func (tv *TableValidator) validateFieldValues(table *core.Table) error {
	if len(tv.FieldValidators) == 0 {
		return nil
	}

	for rowIdx, row := range table.Rows {
		for fieldName, validator := range tv.FieldValidators {
			if err := validateSingleFieldValue(fieldName, row[fieldName], validator, rowIdx); err != nil {
				return invalid(table.Name, "%v", err)
			}
		}
	}

	return nil
}

func validateSingleFieldValue(fieldName string, value interface{}, validator FieldValidator, rowIdx int) error {
	if value == nil {
		if validator.AllowNull {
			return nil
		}
		return fmt.Errorf("row %d field %s is null", rowIdx, fieldName)
	}

	if !validateDataType(value, validator.DataType) {
		return fmt.Errorf("row %d field %s has invalid type %T, expected %s",
			rowIdx, fieldName, value, validator.DataType)
	}

	if validator.Pattern != nil {
		if str, ok := value.(string); ok && !validator.Pattern.MatchString(str) {
			return fmt.Errorf("row %d field %s value '%s' does not match pattern",
				rowIdx, fieldName, str)
		}
	}

	if err := validateRange(value, validator.MinValue, validator.MaxValue, fieldName, rowIdx); err != nil {
		return err
	}

	if len(validator.AllowedValues) > 0 {
		valid := false
		for _, allowedValue := range validator.AllowedValues {
			if value == allowedValue {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("row %d field %s value '%v' not in allowed values",
				rowIdx, fieldName, value)
		}
	}

	if validator.CustomFunc != nil {
		valid, err := validator.CustomFunc(value)
		if err != nil {
			return fmt.Errorf("row %d field %s custom validation failed: %w", rowIdx, fieldName, err)
		}
		if !valid {
			return fmt.Errorf("row %d field %s failed custom validation", rowIdx, fieldName)
		}
	}

	return nil
}

func validateDataType(value interface{}, expectedType FieldDataType) bool {
	switch expectedType {
	case FieldTypeString:
		_, ok := value.(string)
		return ok
	case FieldTypeInt:
		_, ok := toInt(value)
		return ok
	case FieldTypeFloat:
		switch value.(type) {
		case float32, float64:
			return true
		}
		return false
	case FieldTypeNumber:
		_, ok := toFloat64(value)
		return ok
	case FieldTypeBool:
		_, ok := value.(bool)
		return ok
	case FieldTypeTime:
		_, ok := value.(time.Time)
		return ok
	default:
		return true // any and unknown types pass validation
	}
}

func validateRange(value, minValue, maxValue interface{}, fieldName string, rowIdx int) error {
	if minValue == nil && maxValue == nil {
		return nil
	}

	val, ok := toFloat64(value)
	if !ok {
		return nil // Not numeric, skip range validation
	}

	if minValue != nil {
		if min, ok := toFloat64(minValue); ok && val < min {
			return fmt.Errorf("row %d field %s value %v below minimum %v",
				rowIdx, fieldName, value, minValue)
		}
	}

	if maxValue != nil {
		if max, ok := toFloat64(maxValue); ok && val > max {
			return fmt.Errorf("row %d field %s value %v above maximum %v",
				rowIdx, fieldName, value, maxValue)
		}
	}

	return nil
}

func toInt(value interface{}) (int64, bool) {
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
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}

func toFloat64(value interface{}) (float64, bool) {
	if n, ok := toInt(value); ok {
		return float64(n), true
	}
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// TableOption is a functional option for configuring TableValidator
type TableOption func(*TableValidator)

// WithMaxRows sets the maximum row count
func WithMaxRows(max int) TableOption {
	return func(tv *TableValidator) {
		tv.MaxRows = max
	}
}

// WithMaxNullRate sets the maximum null value rate
func WithMaxNullRate(rate float64) TableOption {
	return func(tv *TableValidator) {
		tv.MaxNullRate = rate
	}
}

// WithFieldValidator adds a field-specific validator
func WithFieldValidator(fieldName string, validator FieldValidator) TableOption {
	return func(tv *TableValidator) {
		if tv.FieldValidators == nil {
			tv.FieldValidators = make(map[string]FieldValidator)
		}
		tv.FieldValidators[fieldName] = validator
	}
}

// WithCustomValidator adds a custom validation function
func WithCustomValidator(validator func(*core.Table) (bool, error)) TableOption {
	return func(tv *TableValidator) {
		tv.CustomValidators = append(tv.CustomValidators, validator)
	}
}

// NewTableValidator creates a validator with functional options
func NewTableValidator(minRows int, requiredColumns []string, options ...TableOption) *TableValidator {
	tv := &TableValidator{
		MinRows:         minRows,
		RequiredColumns: requiredColumns,
		FieldValidators: make(map[string]FieldValidator),
	}

	for _, option := range options {
		option(tv)
	}

	return tv
}

// SurrogateKeyValidator checks that a key column holds the integers 0..n-1
// in row order.
type SurrogateKeyValidator struct {
	Column string
}

// Validate implements the dense key check.
func (sv SurrogateKeyValidator) Validate(table *core.Table) error {
	if table == nil {
		return invalid("<nil>", "table is nil")
	}
	if !table.HasColumn(sv.Column) {
		return invalid(table.Name, "missing surrogate key column: %s", sv.Column)
	}

	for i, row := range table.Rows {
		id, ok := toInt(row[sv.Column])
		if !ok {
			return invalid(table.Name, "row %d key %s is %T, expected an integer", i, sv.Column, row[sv.Column])
		}
		if id != int64(i) {
			return invalid(table.Name, "row %d key %s is %d, keys must be dense from 0", i, sv.Column, id)
		}
	}
	return nil
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
