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

package star

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// keySeparator cannot appear in any formatted key part.
const keySeparator = "\x1f"

// DimensionTable is a derived dimension plus the natural key index used to join it.
type DimensionTable struct {
	Spec  Dimension
	Table *core.Table
	index map[string]int
}

// Lookup returns the surrogate key for the natural key values of a raw row.
func (d *DimensionTable) Lookup(record core.Record) (int, bool) {
	id, ok := d.index[naturalKey(record, d.Spec.Keys)]
	return id, ok
}

// BuildDimension projects the key columns of the batch, keeps the first
// occurrence of every distinct key and numbers the survivors from 0.
func BuildDimension(spec Dimension, batch []core.Record) *DimensionTable {
	dim := &DimensionTable{
		Spec:  spec,
		Table: core.NewTable(spec.Name, spec.Columns()...),
		index: make(map[string]int),
	}

	for _, record := range batch {
		key := naturalKey(record, spec.Keys)
		if _, seen := dim.index[key]; seen {
			continue
		}

		id := dim.Table.Len()
		row := make(core.Record, len(spec.Keys)+1+len(spec.Extra))
		for _, col := range spec.Keys {
			row[col] = record[col]
		}
		if spec.Derive != nil {
			spec.Derive(row)
		}
		row[spec.IDColumn] = id

		dim.index[key] = id
		dim.Table.Append(row)
	}

	return dim
}

// naturalKey builds a composite lookup key from the given columns.
// Missing and nil values form a key of their own, so they still dedupe and join.
func naturalKey(record core.Record, columns []string) string {
	if len(columns) == 1 {
		return keyPart(record[columns[0]])
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = keyPart(record[col])
	}
	return strings.Join(parts, keySeparator)
}

// keyPart formats one value so equal values compare equal across numeric types.
func keyPart(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + v
	case bool:
		return "b:" + strconv.FormatBool(v)
	case time.Time:
		// UnixNano overflows outside 1678-2262
		return "t:" + strconv.FormatInt(v.Unix(), 10) + "." + strconv.Itoa(v.Nanosecond())
	case int:
		return numberPart(float64(v))
	case int8:
		return numberPart(float64(v))
	case int16:
		return numberPart(float64(v))
	case int32:
		return numberPart(float64(v))
	case int64:
		return numberPart(float64(v))
	case uint8:
		return numberPart(float64(v))
	case uint16:
		return numberPart(float64(v))
	case uint32:
		return numberPart(float64(v))
	case uint64:
		return numberPart(float64(v))
	case float32:
		return numberPart(float64(v))
	case float64:
		return numberPart(v)
	default:
		return fmt.Sprintf("%T:%v", value, value)
	}
}

func numberPart(f float64) string {
	if math.IsNaN(f) {
		// NaN never equals itself, but duplicate NaNs still collapse to one row
		return "n:NaN"
	}
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
}
