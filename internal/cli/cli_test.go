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

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tripetl/internal/config"
	"github.com/aaronlmathis/tripetl/readers"
	"github.com/aaronlmathis/tripetl/warehouse"
)

const tripsCSV = `VendorID,tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,pickup_longitude,pickup_latitude,RatecodeID,store_and_fwd_flag,dropoff_longitude,dropoff_latitude,payment_type,fare_amount,extra,mta_tax,tip_amount,tolls_amount,improvement_surcharge,total_amount
1,2016-03-01 00:00:00,2016-03-01 00:07:55,1,2.50,-73.976746,40.765152,1,N,-74.004265,40.746128,1,9,0.5,0.5,2.05,0,0.3,12.35
1,2016-03-01 00:00:00,2016-03-01 00:11:06,1,2.90,-73.983482,40.767925,1,N,-74.005943,40.733166,1,11,0.5,0.5,3.05,0,0.3,15.35
2,2016-03-01 00:00:00,2016-03-01 00:31:06,2,19.98,-73.782021,40.644810,1,N,-73.974541,40.675770,1,54.5,0.5,0.5,8,0,0.3,63.8
2,not a date,2016-03-01 00:31:06,2,1,-73.78,40.64,1,N,-73.97,40.67,2,5,0,0.5,0,0,0.3,5.8
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTrips(t *testing.T) (repo, input string) {
	t.Helper()
	repo = t.TempDir()
	input = filepath.Join(repo, "uber_data.csv")
	require.NoError(t, os.WriteFile(input, []byte(tripsCSV), 0o644))
	return repo, input
}

func TestTransformCommand(t *testing.T) {
	repo, input := writeTrips(t)
	outDir := filepath.Join(repo, "out")

	out, err := execute(t, "transform", "--repo-path", repo, "--input", input, "--output-dir", outDir, "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "read 4 records, kept 4")
	assert.Contains(t, out, "uber_pro_dataset.fact_table: 3 rows")
	assert.Contains(t, out, "uber_pro_dataset.passenger_count_dim: 2 rows")

	for _, name := range []string{"datetime_dim", "rate_code_dim", "payment_type_dim", "fact_table"} {
		assert.FileExists(t, filepath.Join(outDir, warehouse.DefaultDataset, name+".csv"))
	}

	source, err := readers.OpenFile(filepath.Join(outDir, warehouse.DefaultDataset, "payment_type_dim.csv"))
	require.NoError(t, err)
	records, err := readers.ReadAll(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Credit card", records[0]["payment_type_name"])
}

func TestRunCommand_FileWarehouseFromProfile(t *testing.T) {
	repo, _ := writeTrips(t)
	profile := "default:\n  WAREHOUSE: file\n  OUTPUT_DIR: exported\n  OUTPUT_FORMAT: parquet\n  DATASET: rides\n"
	require.NoError(t, os.WriteFile(filepath.Join(repo, config.DefaultFile), []byte(profile), 0o644))

	out, err := execute(t, "run", "--repo-path", repo, "--input", "uber_data.csv", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "rides.fact_table: 3 rows")
	assert.FileExists(t, filepath.Join(repo, "exported", "rides", "fact_table.parquet"))
}

func TestRunCommand_Errors(t *testing.T) {
	repo, input := writeTrips(t)

	_, err := execute(t, "run", "--repo-path", repo, "--input", input, "--warehouse", "snowflake")
	assert.ErrorContains(t, err, `unknown warehouse "snowflake"`)

	_, err = execute(t, "run", "--repo-path", repo, "--input", filepath.Join(repo, "missing.csv"), "--warehouse", "file", "--output-dir", repo)
	assert.ErrorContains(t, err, "open input")

	_, err = execute(t, "run", "--repo-path", repo, "--input", input, "--config", "nope.yaml")
	assert.ErrorContains(t, err, "read config")

	_, err = execute(t, "transform", "--input", input)
	assert.ErrorContains(t, err, "output-dir")
}

func TestRunCommand_NoValidRows(t *testing.T) {
	repo := t.TempDir()
	input := filepath.Join(repo, "bad.csv")
	lines := strings.SplitN(tripsCSV, "\n", 2)
	require.NoError(t, os.WriteFile(input, []byte(lines[0]+"\n1,never,never,1,1,0,0,1,N,0,0,1,1,0,0,0,0,0,1\n"), 0o644))

	_, err := execute(t, "transform", "--repo-path", repo, "--input", input, "--output-dir", filepath.Join(repo, "out"), "--log-level", "error")
	assert.ErrorContains(t, err, "pipeline test 0")
	assert.NoDirExists(t, filepath.Join(repo, "out", warehouse.DefaultDataset))
}

func TestOpenSource(t *testing.T) {
	cfg, err := config.Load(config.Options{RepoPath: t.TempDir(), Optional: true})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = OpenSource(ctx, "postgres://localhost/uber", "", cfg)
	assert.ErrorContains(t, err, "--query")

	_, err = OpenSource(ctx, "mongodb", "", cfg)
	assert.ErrorContains(t, err, config.KeyMongoURI)

	src, err := OpenSource(ctx, "https://example.com/uber_data.csv", "", cfg)
	require.NoError(t, err)
	assert.IsType(t, &readers.HTTPReader{}, src)

	_, err = OpenSource(ctx, "trips.xlsx", "", cfg)
	assert.Error(t, err)
}

func TestAWSOptions(t *testing.T) {
	cfg, err := config.Load(config.Options{RepoPath: t.TempDir(), Optional: true})
	require.NoError(t, err)
	cfg.Set(config.KeyAWSRegion, "us-east-1")
	cfg.Set(config.KeyAWSEndpoint, "http://localhost:9000")
	cfg.Set(config.KeyAWSForcePathStyle, "true")

	opts := AWSOptions(cfg)
	assert.Equal(t, "us-east-1", opts.Region)
	assert.Equal(t, "http://localhost:9000", opts.EndpointURL)
	assert.True(t, opts.ForcePathStyle)
	assert.Empty(t, opts.AccessKeyID)
}

func TestInspectCommand(t *testing.T) {
	repo, input := writeTrips(t)
	outDir := filepath.Join(repo, "out")

	_, err := execute(t, "transform", "--repo-path", repo, "--input", input, "--output-dir", outDir, "--format", "parquet", "--log-level", "error")
	require.NoError(t, err)

	fact := filepath.Join(outDir, warehouse.DefaultDataset, "fact_table.parquet")
	out, err := execute(t, "inspect", "--row-groups", fact, input)
	require.NoError(t, err)
	assert.Contains(t, out, fact+": 3 rows, 1 row groups")
	assert.Contains(t, out, "  fare_amount (float64)")
	assert.Contains(t, out, "  row group 0: 3 rows")
	assert.Contains(t, out, input+": 4 rows")
	assert.Contains(t, out, "  tpep_pickup_datetime")

	_, err = execute(t, "inspect", filepath.Join(repo, "missing.parquet"))
	assert.ErrorContains(t, err, "inspect")
}
