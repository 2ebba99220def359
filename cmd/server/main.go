package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/lucerna-ai/lucerna/internal/server"
	"github.com/lucerna-ai/lucerna/migrations"
	"github.com/lucerna-ai/lucerna/modules"
	"github.com/lucerna-ai/lucerna/pkg/application"
	"github.com/lucerna-ai/lucerna/pkg/configuration"
	"github.com/lucerna-ai/lucerna/pkg/eventbus"
	"github.com/lucerna-ai/lucerna/pkg/logging"
	"github.com/lucerna-ai/lucerna/pkg/metrics"
)

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		_ = db.Close()
	}()
	return goose.UpContext(ctx, db, ".")
}

func main() {
	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()
	ctx := context.Background()

	if conf.OpenTelemetry.Enabled {
		shutdown, err := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to set up tracing")
		}
		defer func() {
			_ = shutdown(context.Background())
		}()
		logger.WithField("endpoint", conf.OpenTelemetry.TempoURL).Info("tracing enabled")
	}

	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	if err := runMigrations(ctx, pool); err != nil {
		logger.WithError(err).Fatal("failed to apply migrations")
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Bundle:   application.LoadBundle(),
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		logger.WithError(err).Fatal("failed to load modules")
	}

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
		logger.WithField("path", conf.Prometheus.Path).Info("prometheus metrics enabled")
	}

	srv, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to assemble server")
	}

	logger.WithField("address", conf.SocketAddress).Info("server listening")
	if err := srv.Start(conf.SocketAddress); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
