package balance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newHead() *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "Read the installed dosing head",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, _ := connect(ctx)
			defer client.Close(ctx)

			info, err := client.Ops.ReadDosingHead(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to read dosing head")
			}
			if !info.Installed() {
				fmt.Println("no dosing head installed")
				return
			}

			raw, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to render dosing head")
			}
			fmt.Println(string(raw))
		},
	}
}
