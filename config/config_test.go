package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/mongoload/pkg/core"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Workload.SamplePath = "sample.csv"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "mongo", cfg.Backend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, 10*time.Second, cfg.Mongo.ConnectTimeout)
	assert.Equal(t, uint64(15), cfg.Mongo.MaxPoolSize)
	assert.True(t, cfg.Collection.AutoIndexID)
	assert.Equal(t, core.IDAuto, cfg.Collection.IDMode)
	assert.Equal(t, core.Lenient, cfg.Workload.RowPolicy)
	assert.Equal(t, 1000, cfg.Workload.TargetCount)
	assert.Equal(t, core.Batch, cfg.Insert.Mode)
	assert.Equal(t, 1, cfg.Insert.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Insert.Timeout)
	assert.Equal(t, "5555", cfg.Server.Port)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mongoload.yaml")
	yaml := `
backend: memory
mongo:
  database: bench
  collection: zips
collection:
  capped: true
  size_bytes: 1048576
  id_mode: record
workload:
  sample_path: zips.csv
  reader: arrow
  row_policy: strict
  target_count: 50000
  seed: 42
insert:
  mode: sequential
  concurrency: 8
  delay: 5ms
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "bench", cfg.Mongo.Database)
	assert.Equal(t, "zips", cfg.Mongo.Collection)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI, "unset keys keep defaults")
	assert.True(t, cfg.Collection.Capped)
	assert.Equal(t, int64(1048576), cfg.Collection.SizeBytes)
	assert.Equal(t, core.IDRecord, cfg.Collection.IDMode)
	assert.Equal(t, "arrow", cfg.Workload.Reader)
	assert.Equal(t, core.Strict, cfg.Workload.RowPolicy)
	assert.Equal(t, 50000, cfg.Workload.TargetCount)
	assert.Equal(t, int64(42), cfg.Workload.Seed)
	assert.Equal(t, core.Sequential, cfg.Insert.Mode)
	assert.Equal(t, 8, cfg.Insert.Concurrency)
	assert.Equal(t, 5*time.Millisecond, cfg.Insert.Delay)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MONGOLOAD_WORKLOAD_TARGET_COUNT", "250")
	t.Setenv("MONGOLOAD_INSERT_MODE", "sequential")
	t.Setenv("MONGO_URI", "mongodb://db.internal:27017")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Workload.TargetCount)
	assert.Equal(t, core.Sequential, cfg.Insert.Mode)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
}

func TestPrefixedURITakesPrecedence(t *testing.T) {
	t.Setenv("MONGOLOAD_MONGO_URI", "mongodb://primary:27017")
	t.Setenv("MONGO_URI", "mongodb://fallback:27017")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://primary:27017", cfg.Mongo.URI)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MONGOLOAD_TEST_DOTENV=from-file\n"), 0644))
	t.Setenv("MONGOLOAD_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("MONGOLOAD_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("MONGOLOAD_TEST_DOTENV"))

	assert.Error(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDotEnvMissingDefaultIsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, LoadDotEnv())
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"backend", func(c *Config) { c.Backend = "postgres" }, `unsupported backend: "postgres"`},
		{"uri", func(c *Config) { c.Mongo.URI = "" }, "mongo validation failed: uri is required"},
		{"database", func(c *Config) { c.Mongo.Database = "" }, "mongo validation failed: database is required"},
		{"collection", func(c *Config) { c.Mongo.Collection = "" }, "mongo validation failed: collection is required"},
		{"capped size", func(c *Config) { c.Collection.Capped = true }, "collection validation failed: capped collection requires size_bytes > 0"},
		{"id mode", func(c *Config) { c.Collection.IDMode = "uuid" }, `collection validation failed: unsupported id mode: "uuid"`},
		{"sample path", func(c *Config) { c.Workload.SamplePath = "" }, "workload validation failed: sample path is required"},
		{"reader", func(c *Config) { c.Workload.Reader = "xlsx" }, `workload validation failed: unsupported reader: "xlsx"`},
		{"row policy", func(c *Config) { c.Workload.RowPolicy = "loose" }, `workload validation failed: unsupported row policy: "loose"`},
		{"target count", func(c *Config) { c.Workload.TargetCount = -1 }, "workload validation failed: target count must not be negative"},
		{"mode", func(c *Config) { c.Insert.Mode = "parallel" }, `insert validation failed: unsupported insert mode: "parallel"`},
		{"concurrency", func(c *Config) { c.Insert.Concurrency = 0 }, "insert validation failed: concurrency must be at least 1"},
		{"timeout", func(c *Config) { c.Insert.Timeout = 0 }, "insert validation failed: timeout must be positive"},
		{"dump format", func(c *Config) { c.Output.DumpPath = "out"; c.Output.DumpFormat = "xml" }, `output validation failed: unsupported dump format: "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.EqualError(t, cfg.Validate(), tt.wantErr)
		})
	}
}
