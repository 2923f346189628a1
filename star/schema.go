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

import "github.com/aaronlmathis/tripetl/core"

// Raw trip record columns.
const (
	ColVendorID             = "VendorID"
	ColPickupDatetime       = "tpep_pickup_datetime"
	ColDropoffDatetime      = "tpep_dropoff_datetime"
	ColPassengerCount       = "passenger_count"
	ColTripDistance         = "trip_distance"
	ColRateCodeID           = "RatecodeID"
	ColStoreAndFwdFlag      = "store_and_fwd_flag"
	ColPickupLongitude      = "pickup_longitude"
	ColPickupLatitude       = "pickup_latitude"
	ColDropoffLongitude     = "dropoff_longitude"
	ColDropoffLatitude      = "dropoff_latitude"
	ColPaymentType          = "payment_type"
	ColFareAmount           = "fare_amount"
	ColExtra                = "extra"
	ColMTATax               = "mta_tax"
	ColTipAmount            = "tip_amount"
	ColTollsAmount          = "tolls_amount"
	ColImprovementSurcharge = "improvement_surcharge"
	ColTotalAmount          = "total_amount"
)

// Output table names.
const (
	DatetimeDim        = "datetime_dim"
	PassengerCountDim  = "passenger_count_dim"
	TripDistanceDim    = "trip_distance_dim"
	RateCodeDim        = "rate_code_dim"
	PickupLocationDim  = "pickup_location_dim"
	DropoffLocationDim = "dropoff_location_dim"
	PaymentTypeDim     = "payment_type_dim"
	FactTable          = "fact_table"
)

// Surrogate key and label columns.
const (
	ColDatetimeID        = "datetime_id"
	ColPassengerCountID  = "passenger_count_id"
	ColTripDistanceID    = "trip_distance_id"
	ColRateCodeKey       = "rate_code_id"
	ColRateCodeName      = "rate_code_name"
	ColPickupLocationID  = "pickup_location_id"
	ColDropoffLocationID = "dropoff_location_id"
	ColPaymentTypeID     = "payment_type_id"
	ColPaymentTypeName   = "payment_type_name"
)

// Calendar part columns of datetime_dim.
const (
	ColPickHour    = "pick_hour"
	ColPickDay     = "pick_day"
	ColPickMonth   = "pick_month"
	ColPickYear    = "pick_year"
	ColPickWeekday = "pick_weekday"
	ColDropHour    = "drop_hour"
	ColDropDay     = "drop_day"
	ColDropMonth   = "drop_month"
	ColDropYear    = "drop_year"
	ColDropWeekday = "drop_weekday"
)

// TableNames lists every output in the order Transform emits them.
var TableNames = []string{
	DatetimeDim,
	PassengerCountDim,
	TripDistanceDim,
	RateCodeDim,
	PickupLocationDim,
	DropoffLocationDim,
	PaymentTypeDim,
	FactTable,
}

// RawColumns lists the columns the transform reads from a raw batch.
var RawColumns = []string{
	ColVendorID,
	ColPickupDatetime,
	ColDropoffDatetime,
	ColPassengerCount,
	ColTripDistance,
	ColRateCodeID,
	ColStoreAndFwdFlag,
	ColPickupLongitude,
	ColPickupLatitude,
	ColDropoffLongitude,
	ColDropoffLatitude,
	ColPaymentType,
	ColFareAmount,
	ColExtra,
	ColMTATax,
	ColTipAmount,
	ColTollsAmount,
	ColImprovementSurcharge,
	ColTotalAmount,
}

// FactColumns is the projection applied after all dimension joins.
var FactColumns = []string{
	ColVendorID,
	ColDatetimeID,
	ColPassengerCountID,
	ColTripDistanceID,
	ColRateCodeKey,
	ColStoreAndFwdFlag,
	ColPickupLocationID,
	ColDropoffLocationID,
	ColPaymentTypeID,
	ColFareAmount,
	ColExtra,
	ColMTATax,
	ColTipAmount,
	ColTollsAmount,
	ColImprovementSurcharge,
	ColTotalAmount,
}

// Dimension describes how one dimension table is derived from the batch.
type Dimension struct {
	Name     string
	Keys     []string // natural key columns, also the join keys
	IDColumn string
	Extra    []string              // derived columns
	Derive   func(row core.Record) // fills Extra columns from the natural key values
	IDLast   bool                  // place the id after Extra instead of before it
}

// Columns returns the output column order of the dimension table.
func (d Dimension) Columns() []string {
	cols := make([]string, 0, len(d.Keys)+1+len(d.Extra))
	cols = append(cols, d.Keys...)
	if d.IDLast {
		cols = append(cols, d.Extra...)
		return append(cols, d.IDColumn)
	}
	cols = append(cols, d.IDColumn)
	return append(cols, d.Extra...)
}

// Dimensions returns the seven dimensions in fact join order.
func Dimensions() []Dimension {
	return []Dimension{
		{Name: PassengerCountDim, Keys: []string{ColPassengerCount}, IDColumn: ColPassengerCountID},
		{Name: TripDistanceDim, Keys: []string{ColTripDistance}, IDColumn: ColTripDistanceID},
		{
			Name:     RateCodeDim,
			Keys:     []string{ColRateCodeID},
			IDColumn: ColRateCodeKey,
			Extra:    []string{ColRateCodeName},
			Derive: func(row core.Record) {
				row[ColRateCodeName] = RateCodeName(row[ColRateCodeID])
			},
		},
		{Name: PickupLocationDim, Keys: []string{ColPickupLongitude, ColPickupLatitude}, IDColumn: ColPickupLocationID},
		{Name: DropoffLocationDim, Keys: []string{ColDropoffLongitude, ColDropoffLatitude}, IDColumn: ColDropoffLocationID},
		{
			Name:     DatetimeDim,
			Keys:     []string{ColPickupDatetime, ColDropoffDatetime},
			IDColumn: ColDatetimeID,
			Extra:    calendarColumns,
			Derive:   deriveCalendarParts,
			IDLast:   true,
		},
		{
			Name:     PaymentTypeDim,
			Keys:     []string{ColPaymentType},
			IDColumn: ColPaymentTypeID,
			Extra:    []string{ColPaymentTypeName},
			Derive: func(row core.Record) {
				row[ColPaymentTypeName] = PaymentTypeName(row[ColPaymentType])
			},
		},
	}
}
