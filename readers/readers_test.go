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

package readers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aaronlmathis/tripetl/core"
)

const tripCSV = `VendorID,tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,store_and_fwd_flag,fare_amount
1,2016-03-01 00:00:00,2016-03-01 00:07:55,1,2.50,N,9
2,2016-03-01 00:00:00,2016-03-01 00:11:06,,2.9,N,11.5
`

func TestCSVReader(t *testing.T) {
	r, err := NewCSVReader(io.NopCloser(strings.NewReader(tripCSV)))
	require.NoError(t, err)

	records, err := ReadAll(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, 1, first["VendorID"])
	assert.Equal(t, "2016-03-01 00:00:00", first["tpep_pickup_datetime"])
	assert.Equal(t, 2.5, first["trip_distance"])
	assert.Equal(t, "N", first["store_and_fwd_flag"])
	assert.Equal(t, 9, first["fare_amount"])

	assert.Nil(t, records[1]["passenger_count"])
	assert.Equal(t, int64(1), r.Stats().NullValueCounts["passenger_count"])
	assert.Equal(t, int64(2), r.Stats().RecordsRead)
}

func TestCSVReader_Options(t *testing.T) {
	r, err := NewCSVReader(io.NopCloser(strings.NewReader("a;b\n1;x\n")),
		WithCSVComma(';'), WithCSVInferTypes(false))
	require.NoError(t, err)

	rec, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", rec["a"])
	assert.Equal(t, []string{"a", "b"}, r.Headers())

	r, err = NewCSVReader(io.NopCloser(strings.NewReader("1,2\n")), WithCSVHasHeaders(false))
	require.NoError(t, err)
	rec, err = r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rec["col_1"])
}

func TestCSVReader_ShortAndLongRows(t *testing.T) {
	r, err := NewCSVReader(io.NopCloser(strings.NewReader("a,b,c\n1\n1,2,3,4\n")))
	require.NoError(t, err)

	rec, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec["a"])
	assert.Contains(t, rec, "c")
	assert.Nil(t, rec["c"])

	_, err = r.Read(context.Background())
	var csvErr *CSVReaderError
	assert.True(t, errors.As(err, &csvErr))
}

func TestCSVReader_EmptyInput(t *testing.T) {
	r, err := NewCSVReader(io.NopCloser(strings.NewReader("")))
	require.NoError(t, err)
	_, err = r.Read(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestJSONReader(t *testing.T) {
	input := `{"VendorID": 2, "trip_distance": 1.25, "store_and_fwd_flag": "N", "RatecodeID": null}

{"VendorID": 1, "trip_distance": 3}
`
	records, err := ReadAll(context.Background(), NewJSONReader(io.NopCloser(strings.NewReader(input))))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 2, records[0]["VendorID"])
	assert.Equal(t, 1.25, records[0]["trip_distance"])
	assert.Nil(t, records[0]["RatecodeID"])
	assert.Equal(t, 3, records[1]["trip_distance"])

	_, err = ReadAll(context.Background(), NewJSONReader(io.NopCloser(strings.NewReader("{\"a\":1}\nnot json\n"))))
	var jsonErr *JSONReaderError
	require.True(t, errors.As(err, &jsonErr))
	assert.Equal(t, 2, jsonErr.Line)
	assert.NotErrorIs(t, err, core.ErrSourceBroken)
}

func TestJSONReader_OversizedLineBreaksSource(t *testing.T) {
	input := `{"VendorID": 1}` + "\n" + `{"note":"` + strings.Repeat("x", maxJSONLine) + `"}` + "\n"
	r := NewJSONReader(io.NopCloser(strings.NewReader(input)))
	ctx := context.Background()

	record, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, record["VendorID"])

	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, core.ErrSourceBroken)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestCSVReader_StreamFailureBreaksSource(t *testing.T) {
	boom := errors.New("connection reset")
	body := io.MultiReader(strings.NewReader("VendorID,fare_amount\n1,9\n"), iotest.ErrReader(boom))

	r, err := NewCSVReader(io.NopCloser(body))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Read(ctx)
	require.NoError(t, err)

	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, core.ErrSourceBroken)

	// malformed rows stay recoverable
	r, err = NewCSVReader(io.NopCloser(strings.NewReader("a,b\nx\"y,1\n3,4\n")))
	require.NoError(t, err)
	_, err = r.Read(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrSourceBroken)
	record, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, record["a"])
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uber_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(tripCSV), 0o644))

	source, err := OpenFile(path)
	require.NoError(t, err)
	records, err := ReadAll(context.Background(), source)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = OpenFile(filepath.Join(dir, "uber_data.xlsx"))
	assert.Error(t, err)
}

func TestHTTPReader(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(tripCSV))
	}))
	defer server.Close()

	r, err := NewHTTPReader(server.URL+"/trips", WithHTTPBearerToken("secret"), WithHTTPRetries(2, time.Millisecond))
	require.NoError(t, err)

	records, err := ReadAll(context.Background(), r)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(1), r.Stats().RetryCount)
}

func TestHTTPReader_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r, err := NewHTTPReader(server.URL+"/missing.csv", WithHTTPRetries(3, time.Millisecond))
	require.NoError(t, err)

	_, err = r.Read(context.Background())
	var httpErr *HTTPReaderError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, core.ErrSourceBroken)

	_, err = NewHTTPReader("ftp://example.com/trips.csv")
	assert.Error(t, err)
}

func TestInferHTTPFormat(t *testing.T) {
	assert.Equal(t, "csv", inferHTTPFormat("https://example.com/uber_data.csv?x=1", ""))
	assert.Equal(t, "parquet", inferHTTPFormat("https://example.com/data.parquet", "application/octet-stream"))
	assert.Equal(t, "json", inferHTTPFormat("https://example.com/api", "application/json; charset=utf-8"))
	assert.Equal(t, "", inferHTTPFormat("https://example.com/api", "text/html"))
}

type fakeS3 struct {
	objects map[string]string
	gets    []string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key, body := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{
				Key:          aws.String(key),
				Size:         aws.Int64(int64(len(body))),
				LastModified: aws.Time(time.Unix(0, 0)),
			})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Reader_SingleObject(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"raw/uber_data.csv": tripCSV}}

	r, err := NewS3ReaderFromURI(context.Background(), "s3://trips/raw/uber_data.csv",
		WithS3Client(client), WithS3IncludeMetadata(true))
	require.NoError(t, err)

	records, err := ReadAll(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "raw/uber_data.csv", records[0]["_s3_key"])
	assert.Equal(t, []string{"raw/uber_data.csv"}, client.gets)
}

func TestS3Reader_PrefixListing(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"raw/b.jsonl":       `{"VendorID": 2}` + "\n",
		"raw/a.csv":         "VendorID\n1\n",
		"raw/nested/c.csv":  "VendorID\n3\n",
		"raw/notes.txt":     "ignore",
		"other/skipped.csv": "VendorID\n9\n",
	}}

	r, err := NewS3Reader(context.Background(),
		WithS3Client(client), WithS3Bucket("trips"), WithS3Prefix("raw/"),
		WithS3Recursive(false), WithS3Suffix("l"))
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/b.jsonl"}, objectKeys(r.Objects()))

	r, err = NewS3Reader(context.Background(), WithS3Client(client), WithS3Bucket("trips"), WithS3Prefix("raw/"), WithS3Suffix(".csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/a.csv", "raw/nested/c.csv"}, objectKeys(r.Objects()))

	records, err := ReadAll(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0]["VendorID"])
	assert.Equal(t, 3, records[1]["VendorID"])
}

func TestS3Reader_Validation(t *testing.T) {
	_, err := NewS3Reader(context.Background(), WithS3Client(&fakeS3{}))
	assert.Error(t, err)

	r, err := NewS3ReaderFromURI(context.Background(), "s3://trips/raw/data.xlsx", WithS3Client(&fakeS3{objects: map[string]string{"raw/data.xlsx": ""}}))
	require.NoError(t, err)
	_, err = r.Read(context.Background())
	var s3Err *S3ReaderError
	assert.True(t, errors.As(err, &s3Err))
}

func objectKeys(objects []S3Object) []string {
	keys := make([]string, len(objects))
	for i, o := range objects {
		keys[i] = o.Key
	}
	return keys
}

func TestMongoDocumentToRecord(t *testing.T) {
	pickup := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	fare, err := primitive.ParseDecimal128("9.50")
	require.NoError(t, err)

	doc := bson.M{
		"_id":                  primitive.NewObjectID(),
		"VendorID":             int32(1),
		"tpep_pickup_datetime": primitive.NewDateTimeFromTime(pickup),
		"fare_amount":          fare,
		"RatecodeID":           primitive.Null{},
		"tags":                 bson.A{int32(1), "x"},
	}

	record := documentToRecord(doc, false)
	assert.NotContains(t, record, "_id")
	assert.Equal(t, 1, record["VendorID"])
	assert.Equal(t, pickup, record["tpep_pickup_datetime"])
	assert.Equal(t, 9.5, record["fare_amount"])
	assert.Nil(t, record["RatecodeID"])
	assert.Equal(t, []interface{}{1, "x"}, record["tags"])

	withID := documentToRecord(doc, true)
	assert.IsType(t, "", withID["_id"])
}

func TestNewMongoReader_Validation(t *testing.T) {
	_, err := NewMongoReader(WithMongoCollection("trips"))
	assert.Error(t, err)

	_, err = NewMongoReader(WithMongoDB("uber"))
	assert.Error(t, err)

	r, err := NewMongoReaderFromURI("mongodb://localhost:27017", "uber", "trips", WithMongoLimit(10))
	require.NoError(t, err)
	assert.Equal(t, ModeFind, r.opts.Mode)
	assert.Equal(t, int64(10), r.opts.Limit)

	_, err = NewMongoReader(WithMongoDB("uber"), WithMongoCollection("trips"), WithMongoPipeline(nil))
	assert.Error(t, err)

	r, err = NewMongoReader(WithMongoDB("uber"), WithMongoCollection("trips"), WithMongoReadPreference("sometimes"))
	require.NoError(t, err)
	_, err = r.buildClientOptions()
	assert.Error(t, err)
}

func TestNewPostgresReader_Validation(t *testing.T) {
	_, err := NewPostgresReader(WithPostgresDSN("postgres://localhost/uber"))
	assert.Error(t, err)

	_, err = NewPostgresReader(WithPostgresQuery("SELECT * FROM raw_trips"))
	assert.Error(t, err)

	r, err := NewPostgresReader(WithPostgresDSN("postgres://localhost/uber?sslmode=disable"),
		WithPostgresQuery("SELECT * FROM raw_trips WHERE VendorID = $1", 1))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1}, r.opts.Params)
	assert.NoError(t, r.Close())
}

func TestConvertSQLValue(t *testing.T) {
	assert.Equal(t, 9.5, convertSQLValue([]byte("9.50"), "NUMERIC"))
	assert.Equal(t, "N", convertSQLValue([]byte("N"), "BPCHAR"))
	assert.Equal(t, []byte{0x01}, convertSQLValue([]byte{0x01}, "BYTEA"))
	assert.Equal(t, 2, convertSQLValue(int64(2), "INT4"))
	assert.Equal(t, int64(2), convertSQLValue(int64(2), "INT8"))
}
