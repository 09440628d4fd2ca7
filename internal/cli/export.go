package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"token-signal-watch/internal/app"
)

var (
	exportToken     string
	exportFrom      string
	exportTo        string
	exportCSVPath   string
	exportPNGPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a token's price history as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Token:     exportToken,
			CSVPath:   exportCSVPath,
			PNGPath:   exportPNGPath,
			MaxPoints: exportMaxPoints,
		}

		if exportFrom != "" {
			parsed, err := time.Parse(time.RFC3339, exportFrom)
			if err != nil {
				return fmt.Errorf("parse --from: %w", err)
			}
			opts.From = &parsed
		}
		if exportTo != "" {
			parsed, err := time.Parse(time.RFC3339, exportTo)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
			opts.To = &parsed
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportToken, "token", "", "Token symbol (e.g. BTC)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Window start (RFC3339, default: lookback before --to)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Window end (RFC3339, default: now)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "CSV output path")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "PNG chart output path")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Downsample to at most this many points (0 = config default)")
}
