package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/lucerna-ai/lucerna/pkg/application"
	"github.com/lucerna-ai/lucerna/pkg/configuration"
	"github.com/lucerna-ai/lucerna/pkg/constants"
	"github.com/lucerna-ai/lucerna/pkg/httpapi"
	"github.com/lucerna-ai/lucerna/pkg/middleware"
	"github.com/lucerna-ai/lucerna/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

// Default assembles the HTTP server with the standard middleware chain.
// Order matters: logging first so every later stage has a request logger,
// identity before rate limiting so limits key off authenticated traffic.
func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger),
		middleware.TracedMiddleware("core"),
		middleware.Provide(constants.AppKey, app),
		middleware.Provide(constants.PoolKey, options.Pool),
		middleware.Cors(conf.Origin),
	}

	if conf.RateLimit.Enabled {
		store := middleware.NewMemoryStore()
		if conf.RateLimit.Storage == "redis" {
			redisStore, err := middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("redis rate limit store unavailable, using memory store")
			} else {
				store = redisStore
			}
		}
		middlewares = append(middlewares, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerPeriod: conf.RateLimit.GlobalRPS,
			Period:            time.Second,
			Store:             store,
		}))
	}

	middlewares = append(middlewares,
		middleware.ProvideLocalizer(app.Bundle()),
	)
	app.RegisterMiddleware(middlewares...)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	return server.NewHTTPServer(app, notFound, methodNotAllowed), nil
}
