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

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/writers"
)

// PostgresConfig holds connection settings for PostgresWarehouse.
type PostgresConfig struct {
	Host     string
	Port     string
	DBName   string
	User     string
	Password string
	SSLMode  string
}

// DSN renders the settings as a postgres:// URL.
func (c PostgresConfig) DSN() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + c.DBName,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// PostgresWarehouse maps a dataset to a schema and drops and recreates
// each table on replace.
type PostgresWarehouse struct {
	db        *sql.DB
	batchSize int
}

// NewPostgresWarehouse opens and pings the database behind dsn.
func NewPostgresWarehouse(ctx context.Context, dsn string) (*PostgresWarehouse, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresWarehouse{db: db, batchSize: 5000}, nil
}

// NewPostgresWarehouseFromDB wraps an existing handle, which Close will close.
func NewPostgresWarehouseFromDB(db *sql.DB) *PostgresWarehouse {
	return &PostgresWarehouse{db: db, batchSize: 5000}
}

// ReplaceTable implements Warehouse.
func (p *PostgresWarehouse) ReplaceTable(ctx context.Context, dataset, table string, t *core.Table) error {
	if _, err := p.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(dataset)); err != nil {
		return fmt.Errorf("create schema %s: %w", dataset, err)
	}

	sink, err := writers.NewPostgresWriter(
		writers.WithPostgresDB(p.db),
		writers.WithTableName(dataset+"."+table),
		writers.WithColumns(t.Columns),
		writers.WithColumnTypes(PostgresColumnTypes(t)),
		writers.WithReplaceTable(true),
		writers.WithTransactionMode(true),
		writers.WithPostgresBatchSize(p.batchSize),
	)
	if err != nil {
		return err
	}
	return writers.WriteTable(ctx, sink, t)
}

// Close implements Warehouse.
func (p *PostgresWarehouse) Close() error {
	return p.db.Close()
}
