package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/csrf"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/server"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/store"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *model.AppConfig) error {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		return err
	}

	tokens, closeTokens, err := newTokenStore(cmd.Context(), cfg.Session)
	if err != nil {
		st.Close()
		return err
	}

	// A nil interface, not a nil *credential.Store, when the keyring is
	// unavailable.
	var secrets session.SecretSource
	if cfg.Session.Secret == "" {
		ring, err := credential.Open(credential.DefaultConfig())
		if err != nil {
			logger.Warn("keyring unavailable", "error", err)
		} else {
			secrets = ring
		}
	}

	key, err := session.LoadKey(cfg.Session.Secret, secrets, credential.SessionKeyName, logger)
	if err != nil {
		st.Close()
		closeTokens(context.Background())
		return err
	}
	sessions, err := session.NewManager(key, cfg.Session.TTL, cfg.Session.SecureCookie)
	if err != nil {
		st.Close()
		closeTokens(context.Background())
		return err
	}

	guard := csrf.NewGuard(tokens, csrf.WithLogger(logger))
	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Logger:        logger,
	}, st, guard, sessions)

	if err := srv.Start(); err != nil {
		st.Close()
		closeTokens(context.Background())
		return err
	}
	logger.Info("server listening",
		"addr", srv.Addr(),
		"db", cfg.Server.DBPath,
		"session_store", cfg.Session.Store,
		"allowed_origin", cfg.Server.AllowedOrigin,
	)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("shutting down")
				if err := srv.Stop(ctx); err != nil {
					return err
				}
				return st.Close()
			},
			"session-store": closeTokens,
		},
	)

	if code := <-wait; code != 0 {
		return fmt.Errorf("shutdown exited with code %d", code)
	}
	logger.Info("server stopped")
	return nil
}

// newTokenStore returns the CSRF token store selected by cfg.Store and a
// function that releases it.
func newTokenStore(ctx context.Context, cfg model.SessionConfig) (csrf.SessionStore, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Store {
	case model.SessionStoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, noop, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}

		closeFn := func(context.Context) error { return rdb.Close() }
		return csrf.NewRedisStore(rdb, cfg.RedisPrefix, cfg.TTL), closeFn, nil

	default:
		return csrf.NewMemoryStore(cfg.TTL), noop, nil
	}
}
