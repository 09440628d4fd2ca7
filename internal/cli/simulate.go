package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"token-signal-watch/internal/app"
)

var (
	simulateToken     string
	simulateFeeChange float64
	simulatePersist   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Model the revenue impact of a trading fee change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateToken == "" {
			return errors.New("--token is required")
		}
		return getApp().Simulate(cmd.Context(), app.SimulateOptions{
			Token:     simulateToken,
			FeeChange: simulateFeeChange,
			Persist:   simulatePersist,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateToken, "token", "", "Token symbol (e.g. BTC)")
	simulateCmd.Flags().Float64Var(&simulateFeeChange, "fee-change", 0.02, "Proposed fee change in percentage points")
	simulateCmd.Flags().BoolVar(&simulatePersist, "persist", false, "Persist the simulation result")
}
