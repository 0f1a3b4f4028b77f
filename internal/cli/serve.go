package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/elicit-dev/elicit/internal/config"
	"github.com/elicit-dev/elicit/internal/llm"
	"github.com/elicit-dev/elicit/internal/logging"
	"github.com/elicit-dev/elicit/internal/ratelimit"
	"github.com/elicit-dev/elicit/internal/scenario"
	"github.com/elicit-dev/elicit/internal/server"
	"github.com/elicit-dev/elicit/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the interview server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// The --log-level flag wins over the config file.
			if logLevel == "" {
				if cfg.Logging.File != "" {
					f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
					if err != nil {
						return fmt.Errorf("opening log file: %w", err)
					}
					defer f.Close()
					log = logging.NewTee(f, cfg.Logging.Level, cfg.Logging.ConsoleLevel, cfg.Logging.ConsoleStyle)
				} else {
					log = logging.New(nil, cfg.Logging.ConsoleLevel, cfg.Logging.ConsoleStyle)
				}
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			db, err := store.Open(paths.Database(), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			scenarios := scenario.NewStore(db)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Scenarios.SeedFile != "" {
				n, err := scenario.Seed(ctx, scenarios, cfg.Scenarios.SeedFile)
				if err != nil {
					return fmt.Errorf("seeding scenarios: %w", err)
				}
				log.Info().Int("count", n).Str("file", cfg.Scenarios.SeedFile).Msg("scenarios seeded")
			}
			if listed, err := scenarios.List(ctx); err == nil && len(listed) == 0 {
				log.Warn().Msg("no scenarios loaded; run 'elicit scenario seed' or set scenarios.seedFile")
			}

			resumeTTL := time.Duration(cfg.Session.ResumeMinutes) * time.Minute
			var sessions store.SessionStore
			if cfg.Session.Store == "memory" {
				sessions = store.NewMemorySessionStore(resumeTTL)
				log.Info().Msg("using in-memory session store")
			} else {
				sessions = store.NewSQLiteSessionStore(db, resumeTTL)
				log.Info().Str("path", paths.Database()).Msg("using SQLite session store")
			}

			limiter, err := buildLimiter(cfg)
			if err != nil {
				return err
			}

			provider := llm.NewOpenRouterClient(cfg.AI.APIKey, cfg.AI.BaseURL)
			ai := llm.NewFailoverClient(provider, cfg.AI.PrimaryModel, cfg.AI.FallbackModels, log)

			srv := server.New(cfg, server.Deps{
				Scenarios: scenarios,
				Sessions:  sessions,
				Limiter:   limiter,
				AI:        ai,
			}, log)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

func buildLimiter(cfg config.Config) (*ratelimit.Limiter, error) {
	window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second

	var st ratelimit.Store
	switch cfg.RateLimit.Backend {
	case "redis":
		rs, err := ratelimit.NewRedisStore(ratelimit.RedisConfig{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
			Prefix:   cfg.RateLimit.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		st = rs
		log.Info().Str("addr", cfg.RateLimit.Redis.Addr).Msg("using Redis rate-limit store")
	default:
		st = ratelimit.NewMemoryStore()
	}

	return ratelimit.New(st, cfg.RateLimit.MaxRequests, window, log), nil
}
