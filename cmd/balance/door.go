package balance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/util/command"
)

func newDoor() *cobra.Command {
	return command.NewSubcommandGroup("door",
		newDoorGet(),
		newDoorSet(),
		newDoorOpen(),
		newDoorClose(),
	)
}

func parseDoorArg(arg string) balance.Door {
	door, err := balance.ParseDoor(arg)
	if err != nil {
		log.Fatal().Err(err).Str("door", arg).Msg("Invalid door")
	}
	return door
}

func newDoorGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get <door>",
		Short: "Report the current opening width of a door",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, _ := connect(ctx)
			defer client.Close(ctx)

			state, err := client.Ops.GetDoorPosition(ctx, parseDoorArg(args[0]))
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to read door position")
			}
			fmt.Printf("%s: %d%%\n", state.Door, state.OpeningWidth)
		},
	}
}

func newDoorSet() *cobra.Command {
	return &cobra.Command{
		Use:   "set <door> <position>",
		Short: "Move a door to an opening width in percent",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				log.Fatal().Err(err).Str("position", args[1]).Msg("Invalid position")
			}

			ctx := context.Background()
			client, _ := connect(ctx)
			defer client.Close(ctx)

			if err := client.Ops.SetDoorPosition(ctx, parseDoorArg(args[0]), position); err != nil {
				log.Fatal().Err(err).Msg("Failed to move door")
			}
			log.Info().Str("door", args[0]).Int("position", position).Msg("Door moved")
		},
	}
}

func newDoorOpen() *cobra.Command {
	return &cobra.Command{
		Use:   "open <door>",
		Short: "Open a door fully",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, _ := connect(ctx)
			defer client.Close(ctx)

			if err := client.Ops.OpenDoor(ctx, parseDoorArg(args[0])); err != nil {
				log.Fatal().Err(err).Msg("Failed to open door")
			}
			log.Info().Str("door", args[0]).Msg("Door opened")
		},
	}
}

func newDoorClose() *cobra.Command {
	return &cobra.Command{
		Use:   "close <door>",
		Short: "Close a door fully",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, _ := connect(ctx)
			defer client.Close(ctx)

			if err := client.Ops.CloseDoor(ctx, parseDoorArg(args[0])); err != nil {
				log.Fatal().Err(err).Msg("Failed to close door")
			}
			log.Info().Str("door", args[0]).Msg("Door closed")
		},
	}
}
