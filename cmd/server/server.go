package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/router"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/config"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/history"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/metrics"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/soap"
)

// shutdownTimeout bounds the graceful drain after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP control server in front of one balance",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

func runServer() {
	cfg := config.DefaultServiceConfigFromEnv()

	client := balance.NewClient(
		soap.NewClient(soap.Config{
			Host:    cfg.Balance.Host,
			Port:    cfg.Balance.Port,
			APIPath: cfg.Balance.APIPath,
			Timeout: cfg.Balance.HTTPTimeout,
		}),
		balance.Config{
			Password: cfg.Balance.Password,
			Dosing: balance.DosingConfig{
				PollInterval:        cfg.Balance.PollInterval,
				NotificationTimeout: cfg.Balance.NotificationTimeout,
				DoseTimeout:         cfg.Balance.DoseTimeout,
				SettleDelay:         cfg.Balance.SettleDelay,
				RetryDelay:          cfg.Balance.RetryDelay,
			},
		},
		nil,
		metrics.New(),
	)

	if err := client.Connect(context.Background()); err != nil {
		log.Fatal().Err(err).
			Str("host", cfg.Balance.Host).
			Int("port", cfg.Balance.Port).
			Msg("Failed to open balance session")
	}

	var hist *history.Store
	if cfg.Redis.Enabled {
		hist = history.NewStore(redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		}))
	}

	s := api.NewServer(cfg, client, hist, nil)
	router.Init(s)

	go func() {
		if err := s.Start(); err != nil {
			log.Info().Err(err).Msg("Control server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to shut down control server")
	}
}
