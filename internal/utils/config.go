package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	LISTEN_ADDR         = "LISTEN_ADDR"
	STORAGE_BACKEND     = "STORAGE_BACKEND"
	MONGO_URI           = "MONGO_URI"
	MONGO_DB            = "MONGO_DB"
	GRIDFS_BUCKET       = "GRIDFS_BUCKET"
	DATA_DIR            = "DATA_DIR"
	STAGING_DIR         = "STAGING_DIR"
	MAX_UPLOAD_BYTES    = "MAX_UPLOAD_BYTES"
	UPLOAD_TIMEOUT      = "UPLOAD_TIMEOUT"
	LOOKUP_TIMEOUT      = "LOOKUP_TIMEOUT"
	STAGING_MAX_AGE     = "STAGING_MAX_AGE"
	UPLOAD_RATE_PER_MIN = "UPLOAD_RATE_PER_MIN"
	UPLOAD_BURST        = "UPLOAD_BURST"
	LOG_LEVEL           = "LOG_LEVEL"
	CORS_ORIGINS        = "CORS_ORIGINS"
)

const (
	BackendGridFS  = "gridfs"
	BackendLocalFS = "localfs"
)

type Config struct {
	ListenAddr string
	Backend    string

	MongoURI     string
	MongoDB      string
	GridFSBucket string

	DataDir    string
	StagingDir string

	MaxUploadBytes int64
	UploadTimeout  time.Duration
	LookupTimeout  time.Duration
	StagingMaxAge  time.Duration

	UploadsPerMinute int
	UploadBurst      int

	LogLevel    logrus.Level
	CorsOrigins []string
}

// LoadConfig reads the configuration from the environment. lookup is
// os.LookupEnv outside of tests.
func LoadConfig(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		ListenAddr:   get(LISTEN_ADDR, "0.0.0.0:8070"),
		Backend:      strings.ToLower(get(STORAGE_BACKEND, BackendGridFS)),
		MongoURI:     get(MONGO_URI, "mongodb://localhost:27017"),
		MongoDB:      get(MONGO_DB, "bizphotos"),
		GridFSBucket: get(GRIDFS_BUCKET, "images"),
		DataDir:      get(DATA_DIR, ""),
		StagingDir:   get(STAGING_DIR, ""),
	}

	switch cfg.Backend {
	case BackendGridFS, BackendLocalFS:
	default:
		return cfg, fmt.Errorf("%s must be %q or %q. got: %q", STORAGE_BACKEND, BackendGridFS, BackendLocalFS, cfg.Backend)
	}

	if cfg.DataDir == "" {
		homedir, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("os.UserHomeDir(). %w", err)
		}
		cfg.DataDir = filepath.Join(homedir, HomeDirName)
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = filepath.Join(cfg.DataDir, "uploads")
	}

	var err error
	if cfg.MaxUploadBytes, err = strconv.ParseInt(get(MAX_UPLOAD_BYTES, "10485760"), 10, 64); err != nil || cfg.MaxUploadBytes <= 0 {
		return cfg, fmt.Errorf("%s must be a positive integer", MAX_UPLOAD_BYTES)
	}
	if cfg.UploadTimeout, err = parsePositiveDuration(UPLOAD_TIMEOUT, get(UPLOAD_TIMEOUT, "60s")); err != nil {
		return cfg, err
	}
	if cfg.LookupTimeout, err = parsePositiveDuration(LOOKUP_TIMEOUT, get(LOOKUP_TIMEOUT, "10s")); err != nil {
		return cfg, err
	}
	if cfg.StagingMaxAge, err = parsePositiveDuration(STAGING_MAX_AGE, get(STAGING_MAX_AGE, "1h")); err != nil {
		return cfg, err
	}
	if cfg.UploadsPerMinute, err = strconv.Atoi(get(UPLOAD_RATE_PER_MIN, "60")); err != nil {
		return cfg, fmt.Errorf("strconv.Atoi(%s). %w", UPLOAD_RATE_PER_MIN, err)
	}
	if cfg.UploadBurst, err = strconv.Atoi(get(UPLOAD_BURST, "10")); err != nil {
		return cfg, fmt.Errorf("strconv.Atoi(%s). %w", UPLOAD_BURST, err)
	}
	if cfg.LogLevel, err = logrus.ParseLevel(get(LOG_LEVEL, "info")); err != nil {
		return cfg, fmt.Errorf("logrus.ParseLevel(%s). %w", LOG_LEVEL, err)
	}

	for _, origin := range strings.Split(get(CORS_ORIGINS, "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CorsOrigins = append(cfg.CorsOrigins, origin)
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("time.ParseDuration(%s). %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive. got: %s", key, value)
	}
	return d, nil
}
