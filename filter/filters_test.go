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

package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tripetl/core"
)

func include(t *testing.T, f core.Filter, record core.Record) bool {
	t.Helper()
	ok, err := f.ShouldInclude(context.Background(), record)
	require.NoError(t, err)
	return ok
}

func TestNotNull(t *testing.T) {
	f := NotNull("pickup", "dropoff")

	assert.True(t, include(t, f, core.Record{"pickup": 1, "dropoff": 2}))
	assert.False(t, include(t, f, core.Record{"pickup": 1, "dropoff": nil}))
	assert.False(t, include(t, f, core.Record{"pickup": 1}))
	assert.False(t, include(t, f, core.Record{"pickup": "", "dropoff": 2}))
}

func TestCombinators(t *testing.T) {
	positive := Custom(func(r core.Record) bool {
		n, ok := r["n"].(int)
		return ok && n > 0
	})
	even := Custom(func(r core.Record) bool {
		n, ok := r["n"].(int)
		return ok && n%2 == 0
	})

	two := core.Record{"n": 2}
	three := core.Record{"n": 3}
	minusOne := core.Record{"n": -1}

	assert.True(t, include(t, And(positive, even), two))
	assert.False(t, include(t, And(positive, even), three))
	assert.True(t, include(t, Or(positive, even), three))
	assert.False(t, include(t, Or(positive, even), minusOne))
	assert.True(t, include(t, Not(positive), minusOne))
	assert.True(t, include(t, And(), three))
}
