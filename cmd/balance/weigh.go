package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
)

func newWeigh() *cobra.Command {
	var immediate bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "weigh",
		Short: "Capture one weight sample",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, _ := connect(ctx)
			defer client.Close(ctx)

			mode := balance.CaptureStable
			if immediate {
				mode = balance.CaptureImmediate
			}

			w, err := client.Ops.GetWeight(ctx, mode, timeout)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to capture weight")
			}
			fmt.Printf("%g %s (stable=%t)\n", w.Value, w.Unit, w.Stable)
		},
	}

	cmd.Flags().BoolVar(&immediate, "immediate", false, "Capture without waiting for stability")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Capture timeout (0 uses the default)")
	return cmd
}
