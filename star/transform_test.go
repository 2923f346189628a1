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
	"context"
	"testing"
	"time"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripRecord(pickup, dropoff interface{}, passengers int, fare float64) core.Record {
	return core.Record{
		ColVendorID:             1,
		ColPickupDatetime:       pickup,
		ColDropoffDatetime:      dropoff,
		ColPassengerCount:       passengers,
		ColTripDistance:         2.5,
		ColRateCodeID:           1,
		ColStoreAndFwdFlag:      "N",
		ColPickupLongitude:      -73.99,
		ColPickupLatitude:       40.73,
		ColDropoffLongitude:     -73.98,
		ColDropoffLatitude:      40.76,
		ColPaymentType:          1,
		ColFareAmount:           fare,
		ColExtra:                0.5,
		ColMTATax:               0.5,
		ColTipAmount:            1.0,
		ColTollsAmount:          0.0,
		ColImprovementSurcharge: 0.3,
		ColTotalAmount:          fare + 2.3,
	}
}

func outputTable(t *testing.T, outputs *core.Outputs, name string) *core.Table {
	t.Helper()
	tbl, ok := outputs.Table(name)
	require.True(t, ok, "missing table %s", name)
	return tbl
}

func TestTransform_EmitsEveryTableInOrder(t *testing.T) {
	raw := []core.Record{tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 1, 9.0)}

	outputs, err := Transform(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, TableNames, outputs.Names())
	for _, name := range TableNames {
		tbl := outputTable(t, outputs, name)
		assert.Equal(t, 1, tbl.Len(), name)
		assert.Equal(t, name, tbl.Name)
	}
}

func TestTransform_SharedKeysCollapse(t *testing.T) {
	raw := []core.Record{
		tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 1, 9.0),
		tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 1, 12.0),
		tripRecord("2016-03-01 00:10:00", "2016-03-01 00:20:00", 3, 7.0),
	}

	outputs, err := Transform(context.Background(), raw)
	require.NoError(t, err)

	fact := outputTable(t, outputs, FactTable)
	require.Equal(t, 3, fact.Len())
	assert.Equal(t, FactColumns, fact.Columns)

	assert.Equal(t, 2, outputTable(t, outputs, PassengerCountDim).Len())
	assert.Equal(t, 2, outputTable(t, outputs, DatetimeDim).Len())
	assert.Equal(t, 1, outputTable(t, outputs, TripDistanceDim).Len())
	assert.Equal(t, 1, outputTable(t, outputs, PickupLocationDim).Len())

	first, second := fact.Rows[0], fact.Rows[1]
	for _, col := range []string{ColDatetimeID, ColPassengerCountID, ColTripDistanceID, ColRateCodeKey,
		ColPickupLocationID, ColDropoffLocationID, ColPaymentTypeID} {
		assert.Equal(t, first[col], second[col], col)
	}
	assert.Equal(t, 9.0, first[ColFareAmount])
	assert.Equal(t, 12.0, second[ColFareAmount])

	assert.Equal(t, 1, fact.Rows[2][ColPassengerCountID])
	assert.Equal(t, 1, fact.Rows[2][ColDatetimeID])
}

func TestTransform_DropsUnparseableTimestamps(t *testing.T) {
	raw := []core.Record{
		tripRecord("not a date", "2016-03-01 00:07:55", 4, 9.0),
		tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 1, 12.0),
		tripRecord("2016-03-01 00:00:00", nil, 5, 7.0),
	}

	outputs, err := Transform(context.Background(), raw)
	require.NoError(t, err)

	for _, name := range TableNames {
		assert.Equal(t, 1, outputTable(t, outputs, name).Len(), name)
	}
	passengers := outputTable(t, outputs, PassengerCountDim)
	assert.Equal(t, []interface{}{1}, passengers.Column(ColPassengerCount))
	datetimes := outputTable(t, outputs, DatetimeDim)
	pickup, ok := datetimes.Rows[0][ColPickupDatetime].(time.Time)
	require.True(t, ok)
	assert.True(t, pickup.Equal(time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestKeyPart_TimesOutsideNanosecondRange(t *testing.T) {
	early := time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.NotEqual(t, keyPart(early), keyPart(late))
	assert.NotEqual(t, keyPart(early), keyPart(early.Add(time.Nanosecond)))
	assert.Equal(t, keyPart(late), keyPart(late.In(time.FixedZone("EST", -5*60*60))))

	raw := []core.Record{
		tripRecord(early, early.Add(time.Hour), 1, 9.0),
		tripRecord(late, late.Add(time.Hour), 1, 12.0),
	}
	outputs, err := Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 2, outputTable(t, outputs, DatetimeDim).Len())
}

func TestTransform_LeavesInputUntouched(t *testing.T) {
	raw := []core.Record{tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 1, 9.0)}

	_, err := Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "2016-03-01 00:00:00", raw[0][ColPickupDatetime])
}

func TestTransform_Deterministic(t *testing.T) {
	raw := []core.Record{
		tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 2, 9.0),
		tripRecord("2016-03-02 08:30:00", "2016-03-02 09:00:00", 1, 30.0),
		tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 2, 11.0),
	}

	first, err := Transform(context.Background(), raw)
	require.NoError(t, err)
	second, err := Transform(context.Background(), raw)
	require.NoError(t, err)

	for _, name := range TableNames {
		assert.Equal(t, outputTable(t, first, name), outputTable(t, second, name), name)
	}
}

func TestTransform_DenseSurrogateKeys(t *testing.T) {
	raw := []core.Record{
		tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 2, 9.0),
		tripRecord("2016-03-01 01:00:00", "2016-03-01 01:07:55", 1, 9.0),
		tripRecord("2016-03-01 02:00:00", "2016-03-01 02:07:55", 2, 9.0),
		tripRecord("2016-03-01 03:00:00", "2016-03-01 03:07:55", 6, 9.0),
	}

	outputs, err := Transform(context.Background(), raw)
	require.NoError(t, err)

	for _, spec := range Dimensions() {
		tbl := outputTable(t, outputs, spec.Name)
		for i, id := range tbl.Column(spec.IDColumn) {
			assert.Equal(t, i, id, "%s row %d", spec.Name, i)
		}
	}
	assert.Equal(t, []interface{}{2, 1, 6}, outputTable(t, outputs, PassengerCountDim).Column(ColPassengerCount))
}

func TestTransform_Labels(t *testing.T) {
	known := tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 1, 9.0)
	unknown := tripRecord("2016-03-01 01:00:00", "2016-03-01 01:07:55", 1, 9.0)
	unknown[ColRateCodeID] = 7
	unknown[ColPaymentType] = 7

	outputs, err := Transform(context.Background(), []core.Record{known, unknown})
	require.NoError(t, err)

	rates := outputTable(t, outputs, RateCodeDim)
	assert.Equal(t, []interface{}{"Standard rate", nil}, rates.Column(ColRateCodeName))
	assert.Equal(t, []string{ColRateCodeID, ColRateCodeKey, ColRateCodeName}, rates.Columns)

	payments := outputTable(t, outputs, PaymentTypeDim)
	assert.Equal(t, []interface{}{"Credit card", nil}, payments.Column(ColPaymentTypeName))
	assert.Equal(t, 2, outputTable(t, outputs, FactTable).Len())
}

func TestTransform_DatetimeParts(t *testing.T) {
	// 2016-03-06 is a Sunday
	raw := []core.Record{tripRecord("2016-03-06 23:50:00", "2016-03-07 00:10:00", 1, 9.0)}

	outputs, err := Transform(context.Background(), raw)
	require.NoError(t, err)

	dim := outputTable(t, outputs, DatetimeDim)
	require.Equal(t, 1, dim.Len())
	assert.Equal(t, ColDatetimeID, dim.Columns[len(dim.Columns)-1])

	row := dim.Rows[0]
	assert.Equal(t, time.Date(2016, 3, 6, 23, 50, 0, 0, time.UTC), row[ColPickupDatetime])
	assert.Equal(t, 23, row[ColPickHour])
	assert.Equal(t, 6, row[ColPickDay])
	assert.Equal(t, 3, row[ColPickMonth])
	assert.Equal(t, 2016, row[ColPickYear])
	assert.Equal(t, 6, row[ColPickWeekday])
	assert.Equal(t, 0, row[ColDropHour])
	assert.Equal(t, 7, row[ColDropDay])
	assert.Equal(t, 0, row[ColDropWeekday])
}

func TestTransform_EmptyBatch(t *testing.T) {
	outputs, err := Transform(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, len(TableNames), outputs.Len())
	for _, name := range TableNames {
		assert.Equal(t, 0, outputTable(t, outputs, name).Len())
	}
}

func TestTransform_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Transform(ctx, []core.Record{tripRecord("2016-03-01 00:00:00", "2016-03-01 00:07:55", 1, 9.0)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildDimension_NumericKeysNormalised(t *testing.T) {
	batch := []core.Record{
		{ColPassengerCount: 1},
		{ColPassengerCount: 1.0},
		{ColPassengerCount: int64(1)},
		{ColPassengerCount: nil},
		{},
	}
	dim := BuildDimension(Dimensions()[0], batch)

	assert.Equal(t, 2, dim.Table.Len())
	id, ok := dim.Lookup(core.Record{ColPassengerCount: float32(1)})
	assert.True(t, ok)
	assert.Equal(t, 0, id)
	id, ok = dim.Lookup(core.Record{})
	assert.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestAssembleFact_DropsUnmatchedRows(t *testing.T) {
	spec := Dimensions()[0]
	dim := BuildDimension(spec, []core.Record{{ColPassengerCount: 1}})

	fact, err := AssembleFact(context.Background(), []core.Record{
		{ColPassengerCount: 1, ColFareAmount: 5.0},
		{ColPassengerCount: 2, ColFareAmount: 6.0},
	}, []*DimensionTable{dim})
	require.NoError(t, err)

	require.Equal(t, 1, fact.Len())
	assert.Equal(t, 5.0, fact.Rows[0][ColFareAmount])
	assert.Equal(t, 0, fact.Rows[0][ColPassengerCountID])
}

func TestLookupNames(t *testing.T) {
	tests := []struct {
		code    interface{}
		rate    interface{}
		payment interface{}
	}{
		{1, "Standard rate", "Credit card"},
		{2.0, "JFK", "Cash"},
		{"6", "Group ride", "Voided trip"},
		{int64(5), "Negotiated Fare", "Unknown"},
		{7, nil, nil},
		{0, nil, nil},
		{1.5, nil, nil},
		{nil, nil, nil},
		{"abc", nil, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.rate, RateCodeName(tt.code), "rate %v", tt.code)
		assert.Equal(t, tt.payment, PaymentTypeName(tt.code), "payment %v", tt.code)
	}
}

func TestWeekday(t *testing.T) {
	monday := time.Date(2016, 3, 7, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		assert.Equal(t, i, Weekday(monday.AddDate(0, 0, i)))
	}
}
