package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints a token's recent observations plus the latest detected
// arbitrage opportunities and anomalies.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tokenID, err := store.TokenID(ctx, opts.Token)
	if err != nil {
		return err
	}

	observations, err := store.ListRecentPrices(ctx, tokenID, opts.Limit)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	if len(observations) == 0 {
		fmt.Fprintf(os.Stdout, "no observations found for %s\n", opts.Token)
	} else {
		fmt.Fprintln(writer, "Time (UTC)\tSource\tPrice USD\tVolume 24h")
		for _, obs := range observations {
			fmt.Fprintf(writer, "%s\t%s\t%.4f\t%.2f\n",
				obs.Timestamp.UTC().Format(time.RFC3339),
				obs.Source,
				obs.PriceUSD,
				obs.Volume24h,
			)
		}
		writer.Flush()
	}

	arbitrage, err := store.ListRecentArbitrage(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(arbitrage) > 0 {
		fmt.Fprintln(os.Stdout, "\nRecent arbitrage opportunities:")
		fmt.Fprintln(writer, "Time (UTC)\tBuy\tSell\tDiff\tPercent")
		for _, ev := range arbitrage {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s%%\n",
				ev.Timestamp.UTC().Format(time.RFC3339),
				ev.BuySource,
				ev.SellSource,
				ev.PriceDiff.StringFixed(4),
				ev.PercentDiff.StringFixed(3),
			)
		}
		writer.Flush()
	}

	anomalies, err := store.ListRecentAnomalies(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(anomalies) > 0 {
		fmt.Fprintln(os.Stdout, "\nRecent anomalies:")
		fmt.Fprintln(writer, "Time (UTC)\tType\tValue\tDescription")
		for _, rec := range anomalies {
			fmt.Fprintf(writer, "%s\t%s\t%.2f\t%s\n",
				rec.Timestamp.UTC().Format(time.RFC3339),
				rec.Type,
				rec.Value,
				sanitizeInline(rec.Description),
			)
		}
		writer.Flush()
	}

	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
