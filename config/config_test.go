package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// chdir 切换工作目录，测试结束后恢复
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "NELSON", cfg.Pipeline.IDPrefix)
	assert.Equal(t, 3, cfg.Pipeline.ChunkCount)
	assert.Equal(t, 600, cfg.Pipeline.MaxSummaryChars)
	assert.True(t, cfg.Pipeline.MicroChunks)
	assert.Equal(t, []string{"csv", "json"}, cfg.Output.Formats)
	assert.Equal(t, "sqlite", cfg.Output.SchemaDialect)
	assert.Equal(t, 30*time.Second, cfg.Embed.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Embed.RetryDelay)
	assert.Equal(t, 168*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Embed.Enable)
	assert.Empty(t, cfg.Pipeline.Categories)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
input:
  book: data/book.txt
  toc: data/toc.txt
pipeline:
  book_title: Harriet Lane Handbook
  id_prefix: HLH
  chunk_count: 4
  categories:
    - {from: 1, to: 10, label: General}
    - {from: 11, to: 20, label: Cardiology}
output:
  dir: out
  formats: [csv, xlsx]
  schema_dialect: postgres
embed:
  enable: true
  provider: openai
  api_key: ${TEST_EMBED_KEY}
  timeout: 5s
log:
  level: debug
  format: json
`)
	t.Setenv("TEST_EMBED_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/book.txt", cfg.Input.Book)
	assert.Equal(t, "Harriet Lane Handbook", cfg.Pipeline.BookTitle)
	assert.Equal(t, "HLH", cfg.Pipeline.IDPrefix)
	assert.Equal(t, 4, cfg.Pipeline.ChunkCount)
	require.Len(t, cfg.Pipeline.Categories, 2)
	assert.Equal(t, "Cardiology", cfg.Pipeline.Categories[1].Label)
	assert.Equal(t, 11, cfg.Pipeline.Categories[1].From)
	assert.Equal(t, []string{"csv", "xlsx"}, cfg.Output.Formats)
	assert.Equal(t, "postgres", cfg.Output.SchemaDialect)
	assert.Equal(t, "sk-test", cfg.Embed.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Embed.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	// 未设置的键保留默认值
	assert.Equal(t, 32, cfg.Embed.BatchSize)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "output:\n  dir: out\n")
	t.Setenv("OUTPUT_DIR", "/tmp/elsewhere")
	t.Setenv("PIPELINE_CHUNK_COUNT", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere", cfg.Output.Dir)
	assert.Equal(t, 5, cfg.Pipeline.ChunkCount)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "pipeline: [unclosed"))
		assert.Error(t, err)
	})

	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{"zero chunk count", "pipeline:\n  chunk_count: 0\n", "pipeline.chunk_count"},
		{"bad prefix", "pipeline:\n  id_prefix: NEL-SON\n", "pipeline.id_prefix"},
		{"unknown format", "output:\n  formats: [parquet]\n", "output.formats[0]"},
		{"unknown provider", "embed:\n  provider: cohere\n", "embed.provider"},
		{"redis without address", "cache:\n  type: redis\n", "cache.address"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidateStorage(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Storage.Enable = true
	cfg.Storage.Type = "minio"
	cfg.Storage.Endpoint = ""
	assert.Error(t, Validate(cfg))

	cfg.Storage.Endpoint = "localhost:9000"
	assert.NoError(t, Validate(cfg))

	cfg.Storage.Type = "local"
	cfg.Storage.Path = ""
	assert.Error(t, Validate(cfg))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_SECRET", "s3cr3t")
	assert.Equal(t, "s3cr3t", expandEnv("${TEST_SECRET}"))
	assert.Equal(t, "${TEST_UNSET_VAR}", expandEnv("${TEST_UNSET_VAR}"))
	assert.Equal(t, "plain", expandEnv("plain"))
}
