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
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/internal/awsclient"
	"github.com/aaronlmathis/tripetl/internal/config"
	"github.com/aaronlmathis/tripetl/readers"
	"github.com/aaronlmathis/tripetl/warehouse"
)

// Warehouse kinds accepted by --warehouse and the WAREHOUSE profile key.
const (
	KindBigQuery = "bigquery"
	KindPostgres = "postgres"
	KindFile     = "file"
	KindS3       = "s3"
)

// OpenSource picks a reader for input by its scheme or file extension.
func OpenSource(ctx context.Context, input, query string, cfg *config.Config) (core.DataSource, error) {
	scheme := ""
	if u, err := url.Parse(input); err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
	}

	switch {
	case input == "mongodb" || scheme == "mongodb" || scheme == "mongodb+srv":
		return openMongo(input, cfg)
	case scheme == "s3":
		return readers.NewS3ReaderFromURI(ctx, input, readers.WithS3AWS(AWSOptions(cfg)))
	case scheme == "http" || scheme == "https":
		return readers.NewHTTPReader(input)
	case scheme == "postgres" || scheme == "postgresql":
		if query == "" {
			return nil, fmt.Errorf("--query is required for a postgres input")
		}
		return readers.NewPostgresReader(readers.WithPostgresDSN(input), readers.WithPostgresQuery(query))
	default:
		return readers.OpenFile(cfg.ResolvePath(input))
	}
}

func openMongo(input string, cfg *config.Config) (core.DataSource, error) {
	uri := input
	if input == "mongodb" {
		uri = cfg.Get(config.KeyMongoURI)
	}
	if uri == "" {
		return nil, fmt.Errorf("no MongoDB connection string: set %s", config.KeyMongoURI)
	}

	database := cfg.Get(config.KeyMongoDatabase)
	if database == "" {
		if u, err := url.Parse(uri); err == nil {
			database = strings.Trim(u.Path, "/")
		}
	}
	collection := cfg.GetDefault(config.KeyMongoCollection, "uber_data")
	return readers.NewMongoReaderFromURI(uri, database, collection)
}

// AWSOptions maps the profile's AWS keys onto client options.
func AWSOptions(cfg *config.Config) awsclient.Options {
	return awsclient.Options{
		Region:          cfg.Get(config.KeyAWSRegion),
		AccessKeyID:     cfg.Get(config.KeyAWSAccessKeyID),
		SecretAccessKey: cfg.Get(config.KeyAWSSecretAccessKey),
		SessionToken:    cfg.Get(config.KeyAWSSessionToken),
		EndpointURL:     cfg.Get(config.KeyAWSEndpoint),
		ForcePathStyle:  cfg.Bool(config.KeyAWSForcePathStyle),
	}
}

type warehouseSettings struct {
	Kind      string
	OutputDir string
	Format    string
}

// OpenWarehouse connects to the destination named by settings, falling
// back to the profile for anything the flags leave empty.
func OpenWarehouse(ctx context.Context, settings warehouseSettings, cfg *config.Config) (warehouse.Warehouse, error) {
	kind := strings.ToLower(settings.Kind)
	if kind == "" {
		kind = strings.ToLower(cfg.GetDefault(config.KeyWarehouse, KindBigQuery))
	}

	switch kind {
	case KindBigQuery:
		project := cfg.GetDefault(config.KeyGoogleProjectID, bigquery.DetectProjectID)
		var opts []warehouse.BigQueryOption
		if keyFile := cfg.Get(config.KeyGoogleKeyFile); keyFile != "" {
			opts = append(opts, warehouse.WithCredentialsFile(cfg.ResolvePath(keyFile)))
		}
		if location := cfg.Get(config.KeyGoogleLocation); location != "" {
			opts = append(opts, warehouse.WithLocation(location))
		}
		return warehouse.NewBigQueryWarehouse(ctx, project, opts...)

	case KindPostgres:
		pg := warehouse.PostgresConfig{
			Host:     cfg.Get(config.KeyPostgresHost),
			Port:     cfg.Get(config.KeyPostgresPort),
			DBName:   cfg.Get(config.KeyPostgresDBName),
			User:     cfg.Get(config.KeyPostgresUser),
			Password: cfg.Get(config.KeyPostgresPassword),
			SSLMode:  cfg.Get(config.KeyPostgresSSLMode),
		}
		return warehouse.NewPostgresWarehouse(ctx, pg.DSN())

	case KindFile:
		format, err := warehouse.ParseFileFormat(firstNonEmpty(settings.Format, cfg.Get(config.KeyOutputFormat)))
		if err != nil {
			return nil, err
		}
		dir := firstNonEmpty(settings.OutputDir, cfg.ResolvePath(cfg.Get(config.KeyOutputDir)))
		if dir == "" {
			return nil, fmt.Errorf("file warehouse needs --output-dir or %s", config.KeyOutputDir)
		}
		return warehouse.NewFileWarehouse(dir, format), nil

	case KindS3:
		format, err := warehouse.ParseFileFormat(firstNonEmpty(settings.Format, cfg.Get(config.KeyOutputFormat)))
		if err != nil {
			return nil, err
		}
		bucket := cfg.Get(config.KeyS3Bucket)
		if bucket == "" {
			return nil, fmt.Errorf("s3 warehouse needs %s", config.KeyS3Bucket)
		}
		client, err := awsclient.NewS3(ctx, AWSOptions(cfg))
		if err != nil {
			return nil, err
		}
		return warehouse.NewS3Warehouse(client, bucket, cfg.Get(config.KeyS3Prefix), format), nil

	default:
		return nil, fmt.Errorf("unknown warehouse %q", kind)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
