// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/tabingest/internal/checkpoint/file"
)

const datasetsFile = "testdata/datasets.yaml"

func writeLandingFile(t *testing.T, root, name, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// setupEnvironment prepares a local landing zone, file checkpoints and a sqlite table and
// returns the landing zone root and the database path.
func setupEnvironment(t *testing.T) (string, string) {
	t.Helper()

	landing := t.TempDir()
	work := t.TempDir()
	writeLandingFile(t, landing, "DimUser/part-0000.ndjson", `{"user_id":1,"user_name":"ada","_rescued_data":null}
{"user_id":1,"user_name":"ada lovelace"}
{"user_id":2,"user_name":"grace"}
`)
	writeLandingFile(t, landing, "DimUser/_SUCCESS", "")
	writeLandingFile(t, landing, "DimTrack/part-0000.ndjson", `{"track_id":10,"duration_sec":100}
{"track_id":11,"duration_sec":400}
`)

	dbPath := filepath.Join(work, "silver.db")
	t.Setenv("LANDING_ZONE_PATH", landing)
	t.Setenv("CHECKPOINT_BACKEND", "file")
	t.Setenv("CHECKPOINT_PATH", filepath.Join(work, "checkpoints"))
	t.Setenv("SINK_DRIVER", "sqlite")
	t.Setenv("SINK_DSN", dbPath)
	t.Setenv("SINK_TABLE_PREFIX", "silver_")
	return landing, dbPath
}

func executeRun(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := RunCmd()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func TestRunCommand(t *testing.T) {
	landing, dbPath := setupEnvironment(t)

	_, summary, err := executeRun(t, "local", "-f", datasetsFile)
	require.NoError(t, err, summary)
	assert.Contains(t, summary, "DimUser: 1 batches, 2 rows appended, 1 duplicates dropped")
	assert.Contains(t, summary, "DimTrack: 1 batches, 2 rows appended, 0 duplicates dropped")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.QueryContext(t.Context(), `SELECT "user_id", "user_name" FROM "silver_DimUser" ORDER BY "user_id"`)
	require.NoError(t, err)
	users := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		users[id] = name
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, map[int64]string{1: "ADA", 2: "GRACE"}, users)

	var flag string
	require.NoError(t, db.QueryRowContext(t.Context(), `SELECT "durationFlag" FROM "silver_DimTrack" WHERE "track_id" = 11`).Scan(&flag))
	assert.Equal(t, "high", flag)

	_, summary, err = executeRun(t, "local", "-f", datasetsFile)
	require.NoError(t, err, summary)
	assert.Contains(t, summary, "DimUser: 0 batches, 0 rows appended, 0 duplicates dropped")
	assert.Contains(t, summary, "DimTrack: 0 batches, 0 rows appended, 0 duplicates dropped")

	writeLandingFile(t, landing, "DimUser/part-0001.ndjson", `{"user_id":3,"user_name":"linus","country":"FI"}`+"\n")
	_, summary, err = executeRun(t, "local", "-f", datasetsFile, "--dataset", "DimUser")
	require.NoError(t, err, summary)
	assert.Contains(t, summary, "DimUser: 1 batches, 1 rows appended, 0 duplicates dropped")
	assert.NotContains(t, summary, "DimTrack")

	var count int
	require.NoError(t, db.QueryRowContext(t.Context(), `SELECT COUNT(*) FROM "silver_DimUser" WHERE "country" = 'FI'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRunCommandFailingDataset(t *testing.T) {
	landing, _ := setupEnvironment(t)
	writeLandingFile(t, landing, "DimTrack/part-0000.ndjson", `{"track_id":10,"duration_sec":"long"}`+"\n")

	_, summary, err := executeRun(t, "local", "-f", datasetsFile)
	require.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, summary, "DimUser: 1 batches, 2 rows appended, 1 duplicates dropped")
	assert.Contains(t, summary, "DimTrack: failed after 0 batches")
	assert.Contains(t, summary, "schema error")
	assert.Contains(t, summary, "ingestion failed: 1 of 2 datasets")
}

func TestRunCommandLocalOutput(t *testing.T) {
	setupEnvironment(t)
	t.Setenv("SINK_DRIVER", "catalog")

	expected := `{"dataset":"DimUser","row":{"user_id":1,"user_name":"ADA"}}` + "\n" +
		`{"dataset":"DimUser","row":{"user_id":2,"user_name":"GRACE"}}` + "\n"
	for range 2 {
		stdout, summary, err := executeRun(t, "local", "-f", datasetsFile, "--dataset", "DimUser", "--local-output")
		require.NoError(t, err, summary)
		assert.Equal(t, expected, stdout)
	}

	store, err := file.NewStore(os.Getenv("CHECKPOINT_PATH"))
	require.NoError(t, err)
	cp, err := store.Read(t.Context(), "DimUser")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestRunCommandArguments(t *testing.T) {
	setupEnvironment(t)

	testCases := map[string]struct {
		args          []string
		expectedErr   error
		expectedUsage bool
	}{
		"no source prints usage": {
			args:          []string{},
			expectedUsage: true,
		},
		"invalid source": {
			args:          []string{"gcs", "-f", datasetsFile},
			expectedErr:   errInvalidSource,
			expectedUsage: true,
		},
		"missing dataset files": {
			args:          []string{"local"},
			expectedErr:   errNoDatasetFiles,
			expectedUsage: true,
		},
		"unknown dataset": {
			args:        []string{"local", "-f", datasetsFile, "--dataset", "DimVenue"},
			expectedErr: errUnknownDataset,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			stdout, stderr, err := executeRun(t, test.args...)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				assert.Contains(t, stderr, test.expectedErr.Error())
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.expectedUsage, bytes.Contains([]byte(stdout+stderr), []byte("Usage:")))
		})
	}
}

func TestServeCommand(t *testing.T) {
	setupEnvironment(t)
	t.Setenv("HTTP_HOST", "127.0.0.1")
	t.Setenv("HTTP_PORT", "3041")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	cmd := ServeCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"local", "-f", datasetsFile, "--schedule", "@every 1h"})

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		response, err := http.Get("http://127.0.0.1:3041/-/ready")
		if err != nil {
			return false
		}
		defer response.Body.Close()
		return response.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	response, err := http.Post("http://127.0.0.1:3041/datasets/DimUser/runs", "application/json", nil)
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.JSONEq(t, `{"dataset":"DimUser","batchesProcessed":1,"rowsFetched":3,"rowsAppended":2,"duplicatesDropped":1}`, string(body))

	response, err = http.Get("http://127.0.0.1:3041/-/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(response.Body)
	response.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `tabingest_runs_total{dataset="DimUser",outcome="success"} 1`)

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "serve did not stop")
	}
}
