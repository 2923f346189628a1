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
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

var calendarColumns = []string{
	ColPickHour,
	ColPickDay,
	ColPickMonth,
	ColPickYear,
	ColPickWeekday,
	ColDropHour,
	ColDropDay,
	ColDropMonth,
	ColDropYear,
	ColDropWeekday,
}

// deriveCalendarParts expands both trip timestamps into hour, day, month, year and weekday.
func deriveCalendarParts(row core.Record) {
	if t, ok := row[ColPickupDatetime].(time.Time); ok {
		row[ColPickHour] = t.Hour()
		row[ColPickDay] = t.Day()
		row[ColPickMonth] = int(t.Month())
		row[ColPickYear] = t.Year()
		row[ColPickWeekday] = Weekday(t)
	}
	if t, ok := row[ColDropoffDatetime].(time.Time); ok {
		row[ColDropHour] = t.Hour()
		row[ColDropDay] = t.Day()
		row[ColDropMonth] = int(t.Month())
		row[ColDropYear] = t.Year()
		row[ColDropWeekday] = Weekday(t)
	}
}

// Weekday numbers days Monday=0 through Sunday=6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
