package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srms-platform/srms-backend/pkg/migrate"
)

type recordingRunner struct {
	calls []string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, command string, _ io.Writer) error {
	r.calls = append(r.calls, command)
	return r.err
}

func (r *recordingRunner) To(_ context.Context, version string) error {
	r.calls = append(r.calls, "to "+version)
	return r.err
}

func execute(t *testing.T, open connect, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func fakeConnect(r *recordingRunner, dirs *[]string, closed *int) connect {
	return func(_ context.Context, dir string) (runner, func(), error) {
		*dirs = append(*dirs, dir)
		return r, func() { *closed++ }, nil
	}
}

func TestGooseCommandsUseEmbeddedSetByDefault(t *testing.T) {
	r := &recordingRunner{}
	var dirs []string
	closed := 0

	for _, args := range [][]string{{"up"}, {"down"}, {"status"}, {"to", "20260101000000"}} {
		_, err := execute(t, fakeConnect(r, &dirs, &closed), args...)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"up", "down", "status", "to 20260101000000"}, r.calls)
	assert.Equal(t, []string{migrate.EmbeddedDir, migrate.EmbeddedDir, migrate.EmbeddedDir, migrate.EmbeddedDir}, dirs)
	assert.Equal(t, 4, closed)

	_, err := execute(t, fakeConnect(r, &dirs, &closed), "--dir", "/tmp/extra", "up")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/extra", dirs[len(dirs)-1])
}

func TestRunnerFailuresSurface(t *testing.T) {
	r := &recordingRunner{err: errors.New("dirty database version 3")}
	var dirs []string
	closed := 0
	_, err := execute(t, fakeConnect(r, &dirs, &closed), "up")
	assert.ErrorIs(t, err, r.err)
	assert.Equal(t, 1, closed, "the connection is closed after a failure too")
}

func TestConnectFailureStopsBeforeRunning(t *testing.T) {
	boom := errors.New("no database")
	_, err := execute(t, func(context.Context, string) (runner, func(), error) { return nil, nil, boom }, "status")
	assert.ErrorIs(t, err, boom)
}

func TestArgumentsAreChecked(t *testing.T) {
	never := func(context.Context, string) (runner, func(), error) {
		t.Fatal("no connection expected")
		return nil, nil, nil
	}
	_, err := execute(t, never, "to")
	assert.Error(t, err)
	_, err = execute(t, never, "up", "extra")
	assert.Error(t, err)
	_, err = execute(t, never, "create")
	assert.Error(t, err)
}

func TestCreateAndValidateNeedNoDatabase(t *testing.T) {
	dir := t.TempDir()
	never := func(context.Context, string) (runner, func(), error) {
		t.Fatal("no connection expected")
		return nil, nil, nil
	}

	out, err := execute(t, never, "--dir", dir, "create", "Add Supplier Ratings")
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	files, err := filepath.Glob(filepath.Join(dir, "*_add_supplier_ratings.sql"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	out, err = execute(t, never, "--dir", dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations ok")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n"), 0o644))
	_, err = execute(t, never, "--dir", dir, "validate")
	assert.Error(t, err)
}
