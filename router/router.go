// router/router.go

package router

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dev-mohitbeniwal/trackgate/controller"
	"github.com/dev-mohitbeniwal/trackgate/metrics"
	"github.com/dev-mohitbeniwal/trackgate/middleware"
	"github.com/dev-mohitbeniwal/trackgate/pdp/engine"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

type Options struct {
	Decider           engine.Decider
	Publisher         util.Publisher
	RateLimitClient   *redis.Client
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// Upstream, when set, is the tracking server that allowed requests on
	// any unmatched path are proxied to.
	Upstream *url.URL
}

func SetupRouter(controllers *controller.Controllers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger("/healthz", "/metrics", "/api/v1/authorize"))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	limit := middleware.RateLimiter(opts.RateLimitClient, opts.RateLimitRequests, opts.RateLimitWindow)
	auth := middleware.TokenAuth(opts.Decider, opts.Publisher)

	// The authorize callback is hit once per request by the gateway itself,
	// so it is not rate limited per client.
	api := router.Group("/api/v1")
	controllers.Authorizer.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(limit, auth)
	controllers.Pool.RegisterRoutes(protected)

	if opts.Upstream != nil {
		proxy := httputil.NewSingleHostReverseProxy(opts.Upstream)
		router.NoRoute(limit, auth, func(c *gin.Context) {
			c.Request.Header.Del("Authorization")
			proxy.ServeHTTP(c.Writer, c.Request)
		})
	}

	return router
}
