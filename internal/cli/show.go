package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"token-signal-watch/internal/app"
)

var (
	showToken string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print recent observations and detected signals for a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showToken == "" {
			return errors.New("--token is required")
		}
		if showLimit <= 0 {
			return errors.New("--limit must be greater than zero")
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{Token: showToken, Limit: showLimit})
	},
}

func init() {
	showCmd.Flags().StringVar(&showToken, "token", "", "Token symbol (e.g. BTC)")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Maximum number of rows per section")
}
