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
	"errors"
	"regexp"
	"testing"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/star"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(name string, rows ...core.Record) *core.Table {
	t := core.NewTable(name, "id", "label")
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func TestValidateOutputs(t *testing.T) {
	full := core.NewOutputs()
	full.Set("a", sampleTable("a", core.Record{"id": 0}))
	full.Set("b", sampleTable("b", core.Record{"id": 0}))
	assert.NoError(t, ValidateOutputs(full, "a", "b"))

	t.Run("nil mapping", func(t *testing.T) {
		assert.Error(t, ValidateOutputs(nil))
	})

	t.Run("missing entry", func(t *testing.T) {
		err := ValidateOutputs(full, "a", "b", "c")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "c")
	})

	t.Run("empty table", func(t *testing.T) {
		outputs := core.NewOutputs()
		outputs.Set("a", sampleTable("a", core.Record{"id": 0}))
		outputs.Set("empty", sampleTable("empty"))

		err := ValidateOutputs(outputs)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "empty", verr.Table)
	})

	t.Run("not a table", func(t *testing.T) {
		outputs := core.NewOutputs()
		outputs.Set("summary", "eight tables")

		err := ValidateOutputs(outputs)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "summary", verr.Table)
	})

	t.Run("nil entry", func(t *testing.T) {
		outputs := core.NewOutputs()
		outputs.Set("nothing", nil)
		assert.Error(t, ValidateOutputs(outputs))
	})
}

func TestTableValidator(t *testing.T) {
	table := sampleTable("codes",
		core.Record{"id": 0, "label": "JFK"},
		core.Record{"id": 1, "label": "Newark"},
	)

	t.Run("passes", func(t *testing.T) {
		v := NewTableValidator(1, []string{"id", "label"},
			WithMaxRows(5),
			WithFieldValidator("label", FieldValidator{DataType: FieldTypeString, Pattern: regexp.MustCompile(`^[A-Z]`)}),
			WithFieldValidator("id", FieldValidator{DataType: FieldTypeInt, MinValue: 0, MaxValue: 1}),
		)
		assert.NoError(t, v.Validate(table))
	})

	t.Run("row bounds", func(t *testing.T) {
		assert.Error(t, NewTableValidator(3, nil).Validate(table))
		assert.Error(t, NewTableValidator(0, nil, WithMaxRows(1)).Validate(table))
	})

	t.Run("required column", func(t *testing.T) {
		err := NewTableValidator(0, []string{"name"}).Validate(table)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})

	t.Run("field rules", func(t *testing.T) {
		v := NewTableValidator(0, nil, WithFieldValidator("id", FieldValidator{DataType: FieldTypeInt, MaxValue: 0}))
		assert.Error(t, v.Validate(table))

		v = NewTableValidator(0, nil, WithFieldValidator("label", FieldValidator{AllowedValues: []interface{}{"JFK"}}))
		assert.Error(t, v.Validate(table))

		v = NewTableValidator(0, nil, WithFieldValidator("missing", FieldValidator{AllowNull: true, DataType: FieldTypeInt}))
		assert.NoError(t, v.Validate(table))
	})

	t.Run("null rate", func(t *testing.T) {
		withNull := sampleTable("codes", core.Record{"id": 0, "label": nil}, core.Record{"id": 1})
		assert.Error(t, NewTableValidator(0, nil, WithMaxNullRate(0.5)).Validate(withNull))
	})

	t.Run("custom", func(t *testing.T) {
		v := NewTableValidator(0, nil, WithCustomValidator(func(t *core.Table) (bool, error) {
			return t.Len() == 1, nil
		}))
		assert.Error(t, v.Validate(table))
	})
}

func TestSurrogateKeyValidator(t *testing.T) {
	v := SurrogateKeyValidator{Column: "id"}

	assert.NoError(t, v.Validate(sampleTable("ok", core.Record{"id": 0}, core.Record{"id": int64(1)})))
	assert.Error(t, v.Validate(sampleTable("gap", core.Record{"id": 0}, core.Record{"id": 2})))
	assert.Error(t, v.Validate(sampleTable("dup", core.Record{"id": 0}, core.Record{"id": 0})))
	assert.Error(t, v.Validate(sampleTable("type", core.Record{"id": "0"})))
	assert.Error(t, v.Validate(core.NewTable("nokey", "label")))
}

func TestStarSchemaChecks(t *testing.T) {
	raw := []core.Record{
		{
			star.ColVendorID: 2, star.ColPickupDatetime: "2016-03-01 00:00:00", star.ColDropoffDatetime: "2016-03-01 00:07:55",
			star.ColPassengerCount: 1, star.ColTripDistance: 2.5, star.ColRateCodeID: 1, star.ColStoreAndFwdFlag: "N",
			star.ColPickupLongitude: -73.97, star.ColPickupLatitude: 40.79, star.ColDropoffLongitude: -73.98, star.ColDropoffLatitude: 40.74,
			star.ColPaymentType: 9, star.ColFareAmount: 9.0, star.ColExtra: 0.5, star.ColMTATax: 0.5, star.ColTipAmount: 2.05,
			star.ColTollsAmount: 0.0, star.ColImprovementSurcharge: 0.3, star.ColTotalAmount: 12.35,
		},
	}
	outputs, err := star.Transform(context.Background(), raw)
	require.NoError(t, err)

	for _, check := range StarSchemaChecks() {
		assert.NoError(t, check.Test(context.Background(), outputs))
	}

	fact, _ := outputs.Table(star.FactTable)
	fact.Rows[0][star.ColPaymentTypeID] = 4

	var failed bool
	for _, check := range StarSchemaChecks() {
		if check(context.Background(), outputs) != nil {
			failed = true
		}
	}
	assert.True(t, failed)

	empty, err := star.Transform(context.Background(), nil)
	require.NoError(t, err)
	assert.Error(t, StarSchemaChecks()[0](context.Background(), empty))
}
