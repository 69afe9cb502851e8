package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(NewViper(""), false)
	require.NoError(t, err)

	assert.Equal(t, "discoursehash.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Ingest.FlushInterval)
	assert.Equal(t, 1, cfg.Encode.Workers)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discoursehash.toml")
	body := `
[database]
path = "/tmp/corpus.db"

[log]
level = "debug"
json = true

[ingest]
workers = 2
batch_size = 10
flush_interval = "1s"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/corpus.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, 10, cfg.Ingest.BatchSize)
	assert.Equal(t, time.Second, cfg.Ingest.FlushInterval)
	assert.Equal(t, 1, cfg.Encode.Workers, "unset keys keep defaults")
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DISCOURSEHASH_DATABASE_PATH", "env.db")
	t.Setenv("DISCOURSEHASH_ENCODE_WORKERS", "3")

	cfg, err := Load(NewViper(""), false)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Encode.Workers)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Path: "x.db"},
		Ingest:   IngestConfig{Workers: 1, BatchSize: 1},
		Encode:   EncodeConfig{Workers: 0},
	}
	assert.Error(t, cfg.Validate())

	cfg.Encode.Workers = 1
	assert.NoError(t, cfg.Validate())

	cfg.Database.Path = " "
	assert.Error(t, cfg.Validate())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
