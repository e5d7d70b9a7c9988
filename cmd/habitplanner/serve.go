package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/habitplanner/internal/api"
	"github.com/jw6ventures/habitplanner/internal/auth"
	"github.com/jw6ventures/habitplanner/internal/config"
	httpserver "github.com/jw6ventures/habitplanner/internal/http"
	"github.com/jw6ventures/habitplanner/internal/http/ratelimit"
	"github.com/jw6ventures/habitplanner/internal/store"
	"github.com/jw6ventures/habitplanner/internal/tracker"
)

type ServeCmd struct {
	SkipMigrations bool `help:"Do not apply pending migrations on startup."`
}

func (c *ServeCmd) Run(app *appContext) error {
	cfg, log := app.cfg, app.log

	pool, err := openPool(app.ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	st := store.New(pool)
	if !c.SkipMigrations {
		applied, err := st.Migrate(app.ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			log.Info("migrations applied", zap.Strings("migrations", applied))
		}
	}

	verifier, err := buildVerifier(app.ctx, cfg)
	if err != nil {
		return err
	}
	authService := auth.NewService(verifier, st.Users, log.Named("auth"))

	svc := tracker.NewService(st.Habits, tracker.Options{
		Location:   cfg.Tracker.Location,
		Policy:     cfg.Tracker.Policy,
		MaxRetries: cfg.Tracker.MaxRetries,
		Logger:     log.Named("tracker"),
	})
	habitsAPI := api.New(svc, log.Named("api"), nil)

	limiter := ratelimit.New(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst, cfg.TrustedProxies)
	go limiter.Run(app.ctx)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      httpserver.NewRouter(cfg, st, authService, habitsAPI, limiter, log.Named("http")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("env", cfg.Env),
			zap.String("streak_policy", string(cfg.Tracker.Policy)),
			zap.String("timezone", cfg.Tracker.Location.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-app.ctx.Done():
	}
	log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// buildVerifier accepts locally signed tokens when a secret is configured and
// issuer tokens when an OIDC issuer is configured, or both.
func buildVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	var chain auth.Chain
	if cfg.Auth.JWTSecret != "" {
		chain = append(chain, auth.NewHMACVerifier(cfg.Auth.JWTSecret))
	}
	if cfg.Auth.OIDCIssuerURL != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		chain = append(chain, v)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DB.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	return pool, nil
}
