// Package httpapi serves the keep-alive, health, metrics and status endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/middleware"
	"github.com/dailypoll/backend/internal/polls"
	"github.com/dailypoll/backend/pkg/response"
)

// ActivePolls lists open polls with their tallies.
type ActivePolls interface {
	Active(ctx context.Context) ([]polls.Summary, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the router's collaborators. Gatherer may be nil to omit /metrics.
type Deps struct {
	Polls       ActivePolls
	DB          Pinger
	Gatherer    prometheus.Gatherer
	CORSOrigins string
	Logger      *zap.Logger
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(d.Logger, "/", "/health", "/metrics"))

	// Uptime monitors only look for a 200 with a short body.
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok\n") })

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.Ping(ctx); err != nil {
			d.Logger.Warn("health check failed", zap.Error(err))
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	router.GET("/polls/active", func(c *gin.Context) {
		list, err := d.Polls.Active(c.Request.Context())
		if err != nil {
			d.Logger.Error("list active polls failed", zap.Error(err))
			response.Internal(c, "failed to list active polls")
			return
		}
		response.OK(c, list)
	})

	router.NoRoute(func(c *gin.Context) { response.NotFound(c, "not found") })
	return router
}
