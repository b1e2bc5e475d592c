package balance

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newZero() *cobra.Command {
	var waitStable bool

	cmd := &cobra.Command{
		Use:   "zero",
		Short: "Zero the balance",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, _ := connect(ctx)
			defer client.Close(ctx)

			if err := client.Ops.Zero(ctx, !waitStable); err != nil {
				log.Fatal().Err(err).Msg("Failed to zero")
			}
			log.Info().Msg("Zeroed")
		},
	}

	cmd.Flags().BoolVar(&waitStable, "stable", false, "Wait for a stable reading before zeroing")
	return cmd
}
