// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package sqltable appends batches to SQL tables, one table per dataset. The table is created on
// the first append and gains a nullable column every time a batch carries a new one.
package sqltable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mia-platform/tabingest/internal/logger"
	"github.com/mia-platform/tabingest/internal/record"
	"github.com/mia-platform/tabingest/internal/sink"
)

const (
	logName = "tabingest:sink:sql"

	// DriverSQLite selects the embedded modernc.org/sqlite driver.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the github.com/lib/pq driver.
	DriverPostgres = "postgres"
)

var (
	// ErrSQLSink wraps every error returned by the SQL sink.
	ErrSQLSink = errors.New("sql sink")
	// ErrUnsupportedDriver is returned by Open for unknown drivers.
	ErrUnsupportedDriver = errors.New("unsupported sql driver")

	invalidIdentifierChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

var _ sink.Table = &Table{}

// Table appends rows to the tables of a database.
type Table struct {
	db          *sql.DB
	dialect     dialect
	tablePrefix string

	locks sync.Map
}

// Open connects to dsn with the named driver. Every dataset is stored in the table named
// tablePrefix followed by the dataset id.
func Open(driver, dsn, tablePrefix string) (*Table, error) {
	var d dialect
	switch driver {
	case DriverSQLite:
		d = sqliteDialect{}
	case DriverPostgres:
		d = postgresDialect{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSQLSink, err)
	}

	if driver == DriverSQLite {
		// SQLite accepts a single writer per database file
		db.SetMaxOpenConns(1)
	}

	return &Table{
		db:          db,
		dialect:     d,
		tablePrefix: tablePrefix,
	}, nil
}

// Ping verifies that the database is reachable.
func (t *Table) Ping(ctx context.Context) error {
	if err := t.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSQLSink, err)
	}

	return nil
}

// Close closes the database connections.
func (t *Table) Close() error {
	return t.db.Close()
}

// TableName returns the name of the table holding datasetID.
func (t *Table) TableName(datasetID string) string {
	return invalidIdentifierChars.ReplaceAllString(t.tablePrefix+datasetID, "_")
}

// Append implements sink.Table. Schema changes and inserts run in the same transaction.
func (t *Table) Append(ctx context.Context, datasetID string, rows []record.Record) error {
	if len(rows) == 0 {
		return nil
	}

	table := t.TableName(datasetID)
	lock, _ := t.locks.LoadOrStore(table, new(sync.Mutex))
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	log := logger.FromContext(ctx).WithName(logName)
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSQLSink, err)
	}
	defer tx.Rollback() //nolint:errcheck

	columns := record.Columns(rows)
	if err := t.ensureColumns(ctx, tx, table, columns, rows); err != nil {
		return fmt.Errorf("%w: table %s: %w", ErrSQLSink, table, err)
	}

	statement, err := tx.PrepareContext(ctx, t.insertStatement(table, columns))
	if err != nil {
		return fmt.Errorf("%w: table %s: %w", ErrSQLSink, table, err)
	}
	defer statement.Close()

	for idx, row := range rows {
		args := make([]any, 0, len(columns))
		for _, column := range columns {
			args = append(args, row[column])
		}

		if _, err := statement.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: table %s: row %d: %w", ErrSQLSink, table, idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: table %s: %w", ErrSQLSink, table, err)
	}

	log.Debug("rows appended", "table", table, "rows", len(rows), "columns", len(columns))
	return nil
}

// ensureColumns creates the table or adds the columns it is missing. The type of a new column is
// taken from the first non nil value in rows.
func (t *Table) ensureColumns(ctx context.Context, tx *sql.Tx, table string, columns []string, rows []record.Record) error {
	existing, err := tableColumns(ctx, tx, t.dialect, table)
	if err != nil {
		return err
	}

	tableExists := len(existing) > 0
	definitions := make([]string, 0, len(columns))
	for _, column := range columns {
		key := t.dialect.columnKey(column)
		if _, ok := existing[key]; ok {
			continue
		}
		existing[key] = struct{}{}
		definitions = append(definitions, quote(column)+" "+t.dialect.columnType(firstValue(rows, column)))
	}

	if len(definitions) == 0 {
		return nil
	}

	if !tableExists {
		query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(definitions, ", "))
		_, err := tx.ExecContext(ctx, query)
		return err
	}

	for _, definition := range definitions {
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(table), definition)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return nil
}

func (t *Table) insertStatement(table string, columns []string) string {
	quoted := make([]string, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	for idx, column := range columns {
		quoted = append(quoted, quote(column))
		placeholders = append(placeholders, t.dialect.placeholder(idx+1))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

func firstValue(rows []record.Record, column string) any {
	for _, row := range rows {
		if value := row[column]; value != nil {
			return value
		}
	}

	return nil
}

// quote returns name as a quoted identifier, valid for both SQLite and PostgreSQL.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
