// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package sqltable

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/tabingest/internal/record"
)

func openTestTable(t *testing.T) *Table {
	t.Helper()

	table, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "silver.db"), "silver_")
	require.NoError(t, err)
	t.Cleanup(func() { table.Close() })
	require.NoError(t, table.Ping(t.Context()))
	return table
}

type userRow struct {
	UserID   int64
	UserName *string
	Country  *string
}

func readUsers(t *testing.T, table *Table) []userRow {
	t.Helper()

	rows, err := table.db.QueryContext(t.Context(), `SELECT "user_id", "user_name", "country" FROM "silver_DimUser" ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	users := make([]userRow, 0)
	for rows.Next() {
		var user userRow
		require.NoError(t, rows.Scan(&user.UserID, &user.UserName, &user.Country))
		users = append(users, user)
	}
	require.NoError(t, rows.Err())
	return users
}

func ptr(s string) *string { return &s }

func TestAppendGrowsSchema(t *testing.T) {
	t.Parallel()

	table := openTestTable(t)
	ctx := t.Context()

	require.NoError(t, table.Append(ctx, "DimUser", []record.Record{
		{"user_id": int64(1), "user_name": "ADA"},
		{"user_id": int64(2), "user_name": nil},
	}))
	require.NoError(t, table.Append(ctx, "DimUser", []record.Record{
		{"user_id": int64(3), "user_name": "GRACE", "country": "UK"},
	}))
	require.NoError(t, table.Append(ctx, "DimUser", nil))

	assert.Equal(t, []userRow{
		{UserID: 1, UserName: ptr("ADA")},
		{UserID: 2},
		{UserID: 3, UserName: ptr("GRACE"), Country: ptr("UK")},
	}, readUsers(t, table))

	columns, err := tableColumns(ctx, table.db, table.dialect, "silver_DimUser")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"user_id": {}, "user_name": {}, "country": {}}, columns)
}

func TestAppendColumnNamesIgnoreCase(t *testing.T) {
	t.Parallel()

	table := openTestTable(t)
	ctx := t.Context()

	require.NoError(t, table.Append(ctx, "DimTrack", []record.Record{{"track_id": int64(10), "track_name": "first song"}}))
	require.NoError(t, table.Append(ctx, "DimTrack", []record.Record{{"track_id": int64(11), "Track_Name": "second song"}}))

	rows, err := table.db.QueryContext(ctx, `SELECT "track_name" FROM "silver_DimTrack" ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"first song", "second song"}, names)

	columns, err := tableColumns(ctx, table.db, table.dialect, "silver_DimTrack")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"track_id": {}, "track_name": {}}, columns)
}

func TestAppendIsAtomic(t *testing.T) {
	t.Parallel()

	table := openTestTable(t)
	ctx := t.Context()
	_, err := table.db.ExecContext(ctx, `CREATE TABLE "silver_DimUser" ("user_id" INTEGER NOT NULL, "user_name" TEXT, "country" TEXT)`)
	require.NoError(t, err)

	err = table.Append(ctx, "DimUser", []record.Record{
		{"user_id": int64(1), "user_name": "ADA", "signup": "2024-06-01"},
		{"user_id": nil, "user_name": "GHOST"},
	})
	require.ErrorIs(t, err, ErrSQLSink)

	assert.Empty(t, readUsers(t, table))
	columns, err := tableColumns(ctx, table.db, table.dialect, "silver_DimUser")
	require.NoError(t, err)
	assert.NotContains(t, columns, "signup", "schema changes must be rolled back with the batch")
}

func TestAppendConcurrentDatasets(t *testing.T) {
	t.Parallel()

	table := openTestTable(t)
	datasets := []string{"DimUser", "DimArtist", "DimTrack", "DimDate", "FactStream"}

	var wg sync.WaitGroup
	errs := make(chan error, len(datasets)*3)
	for _, dataset := range datasets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range 3 {
				errs <- table.Append(context.Background(), dataset, []record.Record{{"id": int64(idx), "dataset": dataset}})
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	for _, dataset := range datasets {
		var count int
		require.NoError(t, table.db.QueryRowContext(t.Context(), `SELECT COUNT(*) FROM "`+table.TableName(dataset)+`"`).Scan(&count))
		assert.Equal(t, 3, count, dataset)
	}
}

func TestTypesAndNames(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		value    any
		sqlite   string
		postgres string
	}{
		"string": {value: "a", sqlite: "TEXT", postgres: "TEXT"},
		"int":    {value: int64(1), sqlite: "INTEGER", postgres: "BIGINT"},
		"float":  {value: 1.5, sqlite: "REAL", postgres: "DOUBLE PRECISION"},
		"bool":   {value: true, sqlite: "BOOLEAN", postgres: "BOOLEAN"},
		"nil":    {value: nil, sqlite: "TEXT", postgres: "TEXT"},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.sqlite, sqliteDialect{}.columnType(test.value))
			assert.Equal(t, test.postgres, postgresDialect{}.columnType(test.value))
		})
	}

	table := &Table{dialect: postgresDialect{}, tablePrefix: "silver."}
	assert.Equal(t, "silver_Fact_Stream", table.TableName("Fact-Stream"))
	assert.Equal(t, `INSERT INTO "t" ("a", "b""c") VALUES ($1, $2)`, table.insertStatement("t", []string{"a", `b"c`}))

	_, err := Open("mysql", "", "")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
