package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/ommp-plugins/shorturl/internal/config"
	"github.com/ommp-plugins/shorturl/internal/database/postgres"
	"github.com/ommp-plugins/shorturl/internal/lang"
	"github.com/ommp-plugins/shorturl/internal/module"
	"github.com/ommp-plugins/shorturl/internal/service"
	"github.com/ommp-plugins/shorturl/internal/useragent"
	pkgpostgres "github.com/ommp-plugins/shorturl/pkg/postgres"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/ommp-plugins/shorturl/internal/api/http"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	db, err := pkgpostgres.New(
		ctx,
		cfg.Postgres.DSN(),
		pkgpostgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pkgpostgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pkgpostgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pkgpostgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pkgpostgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	l, err := lang.New()
	if err != nil {
		return fmt.Errorf("%s: failed to load message catalog: %w", op, err)
	}

	logger := httplog.NewLogger("shorturl", httplog.Options{
		JSON:    cfg.Env == config.EnvProd,
		Concise: cfg.Env != config.EnvProd,
	})

	linkRepo := postgres.NewLinkRepository(db)
	visitRepo := postgres.NewVisitRepository(db)

	linkSvc := service.NewLinkService(linkRepo, cfg.ShortURL, logger.Logger)
	statsSvc := service.NewStatsService(linkRepo, visitRepo, useragent.Parser{}, l, logger.Logger)

	mod := module.New(linkSvc, statsSvc, l, cfg.ShortURL, logger.Logger)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        myhttp.NewRouter(logger, mod),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
