package balance

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newTare() *cobra.Command {
	var waitStable bool

	cmd := &cobra.Command{
		Use:   "tare",
		Short: "Tare the balance",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, _ := connect(ctx)
			defer client.Close(ctx)

			if err := client.Ops.Tare(ctx, !waitStable); err != nil {
				log.Fatal().Err(err).Msg("Failed to tare")
			}
			log.Info().Msg("Tared")
		},
	}

	cmd.Flags().BoolVar(&waitStable, "stable", false, "Wait for a stable reading before taring")
	return cmd
}
