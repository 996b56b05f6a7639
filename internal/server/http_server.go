package server

import (
	"context"
	"net/http"
	"time"

	ginapi "github.com/CoachCoe/polkadot-sso/api/gin"
	"github.com/CoachCoe/polkadot-sso/client"
	"github.com/CoachCoe/polkadot-sso/config"
	"github.com/CoachCoe/polkadot-sso/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the pieces the HTTP server is assembled from.
type Options struct {
	AuthAPI  *ginapi.AuthAPI
	Clients  client.ClientStore
	Gatherer prometheus.Gatherer
	// Pingers are checked by /healthz, keyed by component name.
	Pingers map[string]Pinger
}

const healthTimeout = 2 * time.Second

// NewHTTPServer creates and configures the gin HTTP server.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, opts Options) *http.Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware(cfg.OtelServiceName))
	}

	router.Use(
		ginapi.RequestLogger(appLogger),
		ginapi.SecurityHeadersMiddleware(),
	)

	if opts.Clients != nil {
		router.Use(ginapi.CORSMiddleware(opts.Clients))
	}

	router.GET("/healthz", healthHandler(opts.Pingers))

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	if opts.AuthAPI != nil {
		opts.AuthAPI.RegisterRoutes(router)
	} else {
		appLogger.Error(context.Background(), "AuthAPI not provided, auth routes are not registered", nil)
	}

	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func healthHandler(pingers map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(pingers))

		for name, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = err.Error()

				continue
			}

			checks[name] = "ok"
		}

		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	}
}
