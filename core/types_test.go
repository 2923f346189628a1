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

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputs_ZeroValue(t *testing.T) {
	var outputs Outputs
	assert.Equal(t, 0, outputs.Len())
	_, ok := outputs.Get("fact_table")
	assert.False(t, ok)

	fact := NewTable("fact_table", "trip_id")
	outputs.Set("fact_table", fact)
	outputs.Set("note", "not a table")
	outputs.Set("fact_table", fact)

	assert.Equal(t, []string{"fact_table", "note"}, outputs.Names())
	tbl, ok := outputs.Table("fact_table")
	require.True(t, ok)
	assert.Same(t, fact, tbl)
	_, ok = outputs.Table("note")
	assert.False(t, ok)
}
