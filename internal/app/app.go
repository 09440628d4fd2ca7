package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"token-signal-watch/internal/alerting"
	"token-signal-watch/internal/analytics"
	"token-signal-watch/internal/config"
	"token-signal-watch/internal/fetcher"
	"token-signal-watch/internal/ingest"
	"token-signal-watch/internal/scheduler"
	"token-signal-watch/internal/service"
	"token-signal-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newAdapters() ([]fetcher.SourceAdapter, fetcher.ReferenceFetcher) {
	exec := fetcher.NewExecutor(a.Config.Fetcher, a.Logger)

	binance := fetcher.NewBinance(a.Config.Sources.Binance, exec, a.Logger)
	coingecko := fetcher.NewCoingecko(a.Config.Sources.Coingecko, exec, a.Logger)
	uniswap := fetcher.NewUniswap(a.Config.Sources.Uniswap, exec, a.Logger)

	return []fetcher.SourceAdapter{binance, coingecko, uniswap}, binance
}

// executableSources names the venues whose quotes are tradeable, as opposed
// to pure aggregators.
func (a *App) executableSources() map[string]bool {
	adapters, _ := a.newAdapters()
	flags := []bool{
		a.Config.Sources.Binance.Executable,
		a.Config.Sources.Coingecko.Executable,
		a.Config.Sources.Uniswap.Executable,
	}
	executable := make(map[string]bool, len(adapters))
	for i, adapter := range adapters {
		executable[adapter.Name()] = flags[i]
	}
	return executable
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store, sched *scheduler.Scheduler) *service.Service {
	adapters, reference := a.newAdapters()
	coordinator := ingest.New(adapters, reference, store, a.Config.Fetcher.MaxConcurrent, a.Logger)
	engine := analytics.NewEngine(store, a.Config.Analytics, a.executableSources(), a.Logger)
	notifier := a.newNotifier()

	return service.New(a.Config, sched, coordinator, engine, notifier, store, a.Logger)
}

// Run executes the long-running pipeline service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, sched)

	a.Logger.Info().Int("tokens", len(a.Config.Tokens)).Msg("starting pipeline service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("pipeline service stopped")
	return nil
}

// RunOnce executes a single ingest + analytics cycle and exits.
func (a *App) RunOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	svc := a.newService(store, nil)
	return svc.ProcessCycle(ctx, time.Now().UTC().Truncate(a.Config.Scheduler.Interval))
}

// Migrate applies the storage schema and exits.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema applied")
	return nil
}

// ExportOptions hold parameters for exporting historical observations.
type ExportOptions struct {
	Token     string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Token string
	Limit int
}

// SimulateOptions configure the fee what-if command.
type SimulateOptions struct {
	Token     string
	FeeChange float64
	Persist   bool
}
