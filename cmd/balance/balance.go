package balance

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/config"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/metrics"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/soap"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/util/command"
)

// New groups the one-shot device commands. Each subcommand opens a
// session, runs a single operation and closes the session again.
func New() *cobra.Command {
	return command.NewSubcommandGroup("balance",
		newWeigh(),
		newTare(),
		newZero(),
		newDoor(),
		newHead(),
		newDose(),
	)
}

// connect builds a client from the environment and opens the session.
func connect(ctx context.Context) (*balance.Client, config.Server) {
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

	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).
			Str("host", cfg.Balance.Host).
			Int("port", cfg.Balance.Port).
			Msg("Failed to open balance session")
	}
	return client, cfg
}
