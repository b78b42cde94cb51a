package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecrate/filecrate/internal/errs"
)

const sampleYAML = `
logger:
  level: debug
  format: json
server:
  addr: ":9090"
  readTimeout: 10s
storage:
  provider: s3
  rootPrefix: crate
  maxFileSizeBytes: 1048576
  allowedExtensions: [".png", ".pdf"]
  computeHash: true
  s3:
    endpoint: localhost:9000
    accessKey: ak
    secretKey: sk
    bucket: files
    publicRead: true
  index:
    driver: postgres
    dsn: postgres://localhost/filecrate
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout.Std())
	// Fields absent from the file keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout.Std())

	assert.Equal(t, "s3", cfg.Storage.Provider)
	assert.Equal(t, "crate", cfg.Storage.RootPrefix)
	assert.Equal(t, int64(1048576), cfg.Storage.MaxFileSizeBytes)
	assert.Equal(t, []string{".png", ".pdf"}, cfg.Storage.AllowedExtensions)
	assert.True(t, cfg.Storage.ComputeHash)
	assert.Equal(t, "localhost:9000", cfg.Storage.S3.Endpoint)
	assert.True(t, cfg.Storage.S3.PublicRead)
	assert.Equal(t, "postgres", cfg.Storage.Index.Driver)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("storage: [not: a: mapping"))
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filecrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o640))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Storage.Provider)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errs.IsIO(err))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestNewStoreLocal(t *testing.T) {
	cfg := Default()
	cfg.Storage.Local.BasePath = t.TempDir()

	st, err := cfg.NewStore(context.Background(), cfg.NewLogger())
	require.NoError(t, err)
	defer st.Close()

	assert.NoError(t, st.Ping(context.Background()))
}

func TestNewStoreUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Storage.Provider = "ftp"

	_, err := cfg.NewStore(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))
}

func TestNewStoreUnknownIndexDriver(t *testing.T) {
	cfg := Default()
	cfg.Storage.Provider = "s3"
	cfg.Storage.Index.Driver = "sqlite"

	_, err := cfg.NewStore(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))
}
