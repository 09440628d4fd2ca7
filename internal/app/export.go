package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"token-signal-watch/internal/storage"
)

// Export renders a token's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Token == "" {
		return errors.New("--token is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tokenID, err := store.TokenID(ctx, opts.Token)
	if err != nil {
		return err
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-a.Config.Analytics.Lookback)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	observations, err := store.ListPricesSince(ctx, tokenID, from)
	if err != nil {
		return err
	}
	filtered := observations[:0]
	for _, obs := range observations {
		if obs.Timestamp.Before(to) {
			filtered = append(filtered, obs)
		}
	}
	observations = filtered

	if len(observations) == 0 {
		a.Logger.Info().Str("token", opts.Token).Msg("no observations found for export window")
		return nil
	}

	downsampled := downsampleObservations(observations, opts.MaxPoints)
	a.Logger.Info().Int("total", len(observations)).Int("exported", len(downsampled)).Msg("exporting observations")

	if opts.CSVPath != "" {
		if err := writeObservationsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeObservationsPNG(opts.PNGPath, opts.Token, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleObservations(observations []storage.PriceObservation, max int) []storage.PriceObservation {
	if max <= 0 || len(observations) <= max {
		return observations
	}

	result := make([]storage.PriceObservation, 0, max)
	step := float64(len(observations)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(observations) {
			idx = len(observations) - 1
		}
		result = append(result, observations[idx])
	}
	return result
}

func writeObservationsCSV(path string, observations []storage.PriceObservation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "source", "price_usd", "volume_24h"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, obs := range observations {
		record := []string{
			obs.Timestamp.UTC().Format(time.RFC3339),
			obs.Source,
			fmt.Sprintf("%g", obs.PriceUSD),
			fmt.Sprintf("%g", obs.Volume24h),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeObservationsPNG(path, token string, observations []storage.PriceObservation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	bySource := make(map[string][]storage.PriceObservation)
	for _, obs := range observations {
		bySource[obs.Source] = append(bySource[obs.Source], obs)
	}

	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	series := make([]chart.Series, 0, len(sources))
	for _, source := range sources {
		rows := bySource[source]
		xs := make([]time.Time, len(rows))
		ys := make([]float64, len(rows))
		for i, obs := range rows {
			xs[i] = obs.Timestamp
			ys[i] = obs.PriceUSD
		}
		series = append(series, chart.TimeSeries{
			Name:    source,
			XValues: xs,
			YValues: ys,
		})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s price by source (USD)", token),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
