package utils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(envFrom(map[string]string{DATA_DIR: "/srv/photos"}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8070", cfg.ListenAddr)
	assert.Equal(t, BackendGridFS, cfg.Backend)
	assert.Equal(t, "images", cfg.GridFSBucket)
	assert.Equal(t, filepath.Join("/srv/photos", "uploads"), cfg.StagingDir)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 60*time.Second, cfg.UploadTimeout)
	assert.Equal(t, 10*time.Second, cfg.LookupTimeout)
	assert.Equal(t, time.Hour, cfg.StagingMaxAge)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CorsOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(envFrom(map[string]string{
		STORAGE_BACKEND: "LocalFS",
		DATA_DIR:        "/data",
		STAGING_DIR:     "/tmp/staging",
		UPLOAD_TIMEOUT:  "5s",
		LOG_LEVEL:       "debug",
		CORS_ORIGINS:    "https://a.example, https://b.example",
	}))
	require.NoError(t, err)

	assert.Equal(t, BackendLocalFS, cfg.Backend)
	assert.Equal(t, "/tmp/staging", cfg.StagingDir)
	assert.Equal(t, 5*time.Second, cfg.UploadTimeout)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsOrigins)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		STORAGE_BACKEND:  "s3",
		MAX_UPLOAD_BYTES: "-1",
		UPLOAD_TIMEOUT:   "0s",
		LOOKUP_TIMEOUT:   "soon",
		LOG_LEVEL:        "loud",
	} {
		_, err := LoadConfig(envFrom(map[string]string{DATA_DIR: "/data", key: value}))
		assert.Error(t, err, key)
	}
}
