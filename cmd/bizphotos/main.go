package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bizphotos/internal/core"
	"bizphotos/internal/database"
	fsio "bizphotos/internal/io"
	"bizphotos/internal/routes"
	"bizphotos/internal/storage"
	"bizphotos/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("logger", "main")

func openBackend(ctx context.Context, cfg utils.Config) (storage.Backend, error) {
	switch cfg.Backend {
	case utils.BackendLocalFS:
		sqlite, err := database.DatabaseSetup(ctx, cfg.DataDir)
		if err != nil {
			return nil, err
		}
		files, err := fsio.MakeFileSystemHandler(filepath.Join(cfg.DataDir, "data"))
		if err != nil {
			sqlite.Close()
			return nil, err
		}
		return storage.NewLocalStore(sqlite, files), nil
	default:
		gridStore, err := storage.ConnectGridFS(ctx, cfg.MongoURI, cfg.MongoDB, cfg.GridFSBucket)
		if err != nil {
			return nil, err
		}
		return gridStore, nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := utils.LoadConfig(os.LookupEnv)
	if err != nil {
		log.WithError(err).Fatal("utils.LoadConfig(os.LookupEnv)")
	}

	logrus.SetLevel(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)
	if cfg.LogLevel == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	}

	if err := utils.MakeSureDirExists(cfg.DataDir); err != nil {
		log.WithError(err).Fatal("utils.MakeSureDirExists(cfg.DataDir)")
	}
	log.WithField("data_dir", cfg.DataDir).WithField("backend", cfg.Backend).Info("Starting bizphotos")

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("openBackend(ctx, cfg)")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			log.WithError(err).Warn("backend.Close(ctx)")
		}
	}()

	staging, err := fsio.MakeStagingArea(cfg.StagingDir)
	if err != nil {
		log.WithError(err).Fatal("fsio.MakeStagingArea(cfg.StagingDir)")
	}

	service := core.NewPhotoService(backend, staging)
	service.UploadTimeout = cfg.UploadTimeout
	service.LookupTimeout = cfg.LookupTimeout

	go core.SweepStaging(ctx, staging, cfg.StagingMaxAge, core.DefaultSweepInterval)

	r := routes.NewRouter(service, backend, routes.Options{
		MaxUploadBytes:   cfg.MaxUploadBytes,
		UploadsPerMinute: cfg.UploadsPerMinute,
		UploadBurst:      cfg.UploadBurst,
		CorsOrigins:      cfg.CorsOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// uploads are bounded by UPLOAD_TIMEOUT, leave room to read the body
		ReadTimeout: cfg.UploadTimeout + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("srv.Shutdown(ctx)")
		}
	}()

	log.WithField("addr", cfg.ListenAddr).Info("bizphotos listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("srv.ListenAndServe()")
	}
}
