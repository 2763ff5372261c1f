package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRunLock_WritesPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "journal.db.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)
	require.NotNil(t, release)

	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireRunLock_SecondAcquisitionFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)

	defer release()

	again, err := acquireRunLock(path)
	require.Error(t, err)
	assert.Nil(t, again)
	assert.Contains(t, err.Error(), "in progress")
	assert.Contains(t, err.Error(), "PID "+strconv.Itoa(os.Getpid()))
}

func TestAcquireRunLock_ReleaseRemovesFileAndAllowsRelock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)
	release()

	assert.NoFileExists(t, path)

	release, err = acquireRunLock(path)
	require.NoError(t, err)
	release()
}

func TestAcquireRunLock_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := acquireRunLock("")
	assert.ErrorContains(t, err, "empty")
}

func TestReadLockPID_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lock")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o600))

	_, err := readLockPID(path)
	assert.ErrorContains(t, err, "invalid PID")

	_, err = readLockPID(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
