package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
)

func newDose() *cobra.Command {
	var (
		substance string
		vial      string
		method    string
		target    float64
		smart     bool
		attempts  int
		threshold float64
		lower     float64
		upper     float64
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dose",
		Short: "Run an automated dosing job",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, cfg := connect(ctx)
			defer client.Close(ctx)

			if attempts == 0 {
				attempts = cfg.Dosing.MaxAttempts
			}
			if threshold == 0 {
				threshold = cfg.Dosing.MinDosedThresholdPercent
			}
			if lower == 0 {
				lower = cfg.Dosing.LowerTolerancePercent
			}
			if upper == 0 {
				upper = cfg.Dosing.UpperTolerancePercent
			}

			var (
				dosed float64
				err   error
			)
			if smart {
				dosed, err = client.Dosing.SmartDose(ctx, balance.SmartDoseRequest{
					Substance:                substance,
					Vial:                     vial,
					Method:                   method,
					TargetMilligrams:         target,
					MaxAttempts:              attempts,
					MinDosedThresholdPercent: threshold,
					LowerTolerancePercent:    lower,
					UpperTolerancePercent:    upper,
					AttemptTimeout:           timeout,
				})
			} else {
				dosed, err = client.Dosing.AutoDose(ctx, balance.DoseRequest{
					Substance:             substance,
					Vial:                  vial,
					Method:                method,
					TargetMilligrams:      target,
					LowerTolerancePercent: lower,
					UpperTolerancePercent: upper,
					Timeout:               timeout,
				})
			}
			if err != nil {
				log.Fatal().Err(err).Msg("Dosing failed")
			}
			fmt.Printf("dosed %g mg\n", dosed)
		},
	}

	cmd.Flags().StringVar(&substance, "substance", "", "Substance name on the dosing head")
	cmd.Flags().StringVar(&vial, "vial", "", "Vial name (empty uses the default)")
	cmd.Flags().StringVar(&method, "method", "", "Dosing method name (empty uses the first automated method)")
	cmd.Flags().Float64Var(&target, "target", 0, "Target mass in milligrams")
	cmd.Flags().BoolVar(&smart, "smart", false, "Converge over multiple attempts instead of a single job")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Maximum smart-dose attempts (0 uses the configured default)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum dosed percentage counted as success (0 uses the default)")
	cmd.Flags().Float64Var(&lower, "lower-tolerance", 0, "Lower tolerance percent (0 uses the default)")
	cmd.Flags().Float64Var(&upper, "upper-tolerance", 0, "Upper tolerance percent (0 uses the default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-attempt protocol timeout (0 uses the default)")

	_ = cmd.MarkFlagRequired("target")
	return cmd
}
