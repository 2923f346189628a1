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
	"math"
	"strconv"
	"strings"
)

// rateCodeNames maps TLC rate codes to their published names.
var rateCodeNames = map[int]string{
	1: "Standard rate",
	2: "JFK",
	3: "Newark",
	4: "Nassau or Westchester",
	5: "Negotiated Fare",
	6: "Group ride",
}

// paymentTypeNames maps TLC payment type codes to their published names.
var paymentTypeNames = map[int]string{
	1: "Credit card",
	2: "Cash",
	3: "No charge",
	4: "Dispute",
	5: "Unknown",
	6: "Voided trip",
}

// RateCodeName returns the label for a rate code, or nil when the code is unknown.
func RateCodeName(code interface{}) interface{} {
	return lookupName(rateCodeNames, code)
}

// PaymentTypeName returns the label for a payment type, or nil when the code is unknown.
func PaymentTypeName(code interface{}) interface{} {
	return lookupName(paymentTypeNames, code)
}

func lookupName(names map[int]string, code interface{}) interface{} {
	n, ok := codeValue(code)
	if !ok {
		return nil
	}
	name, ok := names[n]
	if !ok {
		return nil
	}
	return name
}

// codeValue normalises an integral code held as any numeric type or numeric string.
func codeValue(code interface{}) (int, bool) {
	switch v := code.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return integralFloat(float64(v))
	case float64:
		return integralFloat(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return integralFloat(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

func integralFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
