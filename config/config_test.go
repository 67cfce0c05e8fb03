package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults are valid", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
		assert.Equal(t, ":8000", cfg.Server.Addr)
		assert.Equal(t, "meta.json", cfg.Metadata.Sidecar)
		assert.Equal(t, "/uploads/", cfg.Storage.URLPrefix)
	})

	t.Run("The YAML file overrides defaults", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(p, []byte(`
server:
  addr: ":9090"
storage:
  dir: /srv/docs
log:
  level: debug
  format: json
`), 0644))

		cfg, err := Load(p)
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Server.Addr)
		assert.Equal(t, "/srv/docs", cfg.Storage.Dir)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	})

	t.Run("Environment variables override the YAML file", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(p, []byte("server:\n  addr: \":9090\"\n"), 0644))
		t.Setenv("DOCSTORE_ADDR", ":7070")
		t.Setenv("DOCSTORE_MAX_UPLOAD_BYTES", "1024")

		cfg, err := Load(p)
		require.NoError(t, err)
		assert.Equal(t, ":7070", cfg.Server.Addr)
		assert.Equal(t, int64(1024), cfg.Server.MaxUploadBytes)
	})

	t.Run("A malformed number in the environment is an error", func(t *testing.T) {
		t.Setenv("DOCSTORE_MAX_UPLOAD_BYTES", "lots")
		_, err := Load("")
		assert.ErrorContains(t, err, "DOCSTORE_MAX_UPLOAD_BYTES")
	})

	t.Run("A missing config file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("Malformed YAML is an error", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(p, []byte("server: [\n"), 0644))
		_, err := Load(p)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("All problems are reported together", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Backend = "ftp"
		cfg.Storage.URLPrefix = "uploads"
		cfg.Metadata.Sidecar = "../meta.json"
		cfg.Log.Level = "loud"
		cfg.Server.MaxUploadBytes = 0

		err := cfg.Validate()
		require.Error(t, err)
		for _, field := range []string{"storage.backend", "storage.url_prefix", "metadata.sidecar", "log.level", "server.max_upload_bytes"} {
			assert.ErrorContains(t, err, field)
		}
	})

	t.Run("Cloud backends need their settings", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Backend = BackendGCS
		assert.ErrorContains(t, cfg.Validate(), "storage.gcs.bucket")

		cfg.Storage.GCS.Bucket = "docs"
		assert.NoError(t, cfg.Validate())

		cfg.Storage.Backend = BackendS3
		cfg.Storage.S3.Endpoint = "minio:9000"
		assert.ErrorContains(t, cfg.Validate(), "storage.s3")

		cfg.Storage.S3 = S3{Endpoint: "minio:9000", AccessKey: "k", SecretKey: "s", Bucket: "docs"}
		assert.NoError(t, cfg.Validate())

		cfg.Metadata.Backend = MetadataFirestore
		assert.ErrorContains(t, cfg.Validate(), "metadata.firestore")

		cfg.Metadata.Firestore.ProjectID = "proj"
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte("DOCSTORE_TEST_DOTENV=from-file\nDOCSTORE_TEST_PRESET=from-file\n"), 0644))
	t.Setenv("DOCSTORE_TEST_PRESET", "from-env")
	t.Cleanup(func() { os.Unsetenv("DOCSTORE_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), p))
	assert.Equal(t, "from-file", os.Getenv("DOCSTORE_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("DOCSTORE_TEST_PRESET"))
}
