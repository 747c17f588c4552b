// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package sqltable

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// dialect hides the differences between the supported databases.
type dialect interface {
	// driverName is the name registered in database/sql.
	driverName() string
	placeholder(position int) string
	columnType(value any) string
	// columnsQuery returns the query listing the columns of the table passed as first argument.
	columnsQuery() string
	// columnKey returns the form under which the database compares column names.
	columnKey(name string) string
}

type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) columnType(value any) string {
	switch value.(type) {
	case int64:
		return "INTEGER"
	case float64:
		return "REAL"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) columnsQuery() string {
	return "SELECT name FROM pragma_table_info(?)"
}

// columnKey folds the case, sqlite column names are case insensitive even when quoted.
func (sqliteDialect) columnKey(name string) string { return strings.ToLower(name) }

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "postgres" }

func (postgresDialect) placeholder(position int) string { return "$" + strconv.Itoa(position) }

func (postgresDialect) columnType(value any) string {
	switch value.(type) {
	case int64:
		return "BIGINT"
	case float64:
		return "DOUBLE PRECISION"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func (postgresDialect) columnKey(name string) string { return name }

func (postgresDialect) columnsQuery() string {
	return "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1"
}

func tableColumns(ctx context.Context, q queryer, d dialect, table string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, d.columnsQuery(), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns[d.columnKey(name)] = struct{}{}
	}

	return columns, rows.Err()
}
