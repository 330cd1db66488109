package routes

import (
	"context"
	"net/http"
	"time"

	"bizphotos/internal/core"
	"bizphotos/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	MaxUploadBytes   int64
	UploadsPerMinute int
	UploadBurst      int
	CorsOrigins      []string
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return config
}

// NewRouter builds the engine with middleware and every route registered.
func NewRouter(service *core.PhotoService, backend storage.Backend, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), EngineMetrics(), cors.New(corsConfig(opts.CorsOrigins)))
	r.NoRoute(notFound)

	RootRoutes(r, backend)
	PhotoRoutes(r, service, opts.MaxUploadBytes, RateLimit(opts.UploadsPerMinute, opts.UploadBurst))

	return r
}

func RootRoutes(r *gin.Engine, backend storage.Backend) {
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := backend.Ping(ctx); err != nil {
			log.WithError(err).Warn("backend.Ping(ctx)")
			c.String(http.StatusServiceUnavailable, "unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
