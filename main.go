package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xiaomguo/sdl2-solid-dosing/cmd/balance"
	"github.com/xiaomguo/sdl2-solid-dosing/cmd/server"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd := &cobra.Command{
		Use:   "solid-dosing",
		Short: "Control client and HTTP service for XPR/XSR laboratory balances",
	}

	rootCmd.AddCommand(
		server.New(),
		balance.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}
