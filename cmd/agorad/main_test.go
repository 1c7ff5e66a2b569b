package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyConfigFileFillsOnlyUnsetFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agorad.toml")
	toml := `
workers = 4
log_level = "debug"

[transport]
url = "nats://broker:4222"

[storage]
backend = "sqlstore"
driver = "postgres"
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	f := &flags{
		configPath:     path,
		workers:        8,
		logLevel:       "info",
		storageBackend: "filetree",
		storageDriver:  "sqlite",
	}
	// a zero worker count; the file's workers value replaces it
	f.workers = 0
	require.NoError(t, applyConfigFile(f))

	assert.Equal(t, "nats://broker:4222", f.transportURL)
	assert.Equal(t, "sqlstore", f.storageBackend)
	assert.Equal(t, "postgres", f.storageDriver)
	assert.Equal(t, 4, f.workers)
	assert.Equal(t, "debug", f.logLevel)
}

func TestApplyConfigFileNoopWithoutPath(t *testing.T) {
	f := &flags{storageBackend: "filetree"}
	require.NoError(t, applyConfigFile(f))
	assert.Equal(t, "filetree", f.storageBackend)
}

func TestApplyConfigFileRejectsUnreadablePath(t *testing.T) {
	f := &flags{configPath: filepath.Join(t.TempDir(), "missing.toml")}
	assert.Error(t, applyConfigFile(f))
}

func TestOpenStorageRejectsUnknownBackend(t *testing.T) {
	f := &flags{storageBackend: "nope"}
	_, err := openStorage(f)
	assert.Error(t, err)
}

func TestOpenStorageFiletree(t *testing.T) {
	f := &flags{storageBackend: "filetree", storageRoot: t.TempDir()}
	st, err := openStorage(f)
	require.NoError(t, err)
	defer st.Close()
}
