package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/krivonosoff161/futures-exit-bot/internal/engine"
	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/exchange"
	"github.com/krivonosoff161/futures-exit-bot/internal/exchange/bybit"
	"github.com/krivonosoff161/futures-exit-bot/internal/grace"
	"github.com/krivonosoff161/futures-exit-bot/internal/logger"
	"github.com/krivonosoff161/futures-exit-bot/internal/monitoring"
	"github.com/krivonosoff161/futures-exit-bot/internal/pnl"
	"github.com/krivonosoff161/futures-exit-bot/internal/pricing"
	"github.com/krivonosoff161/futures-exit-bot/internal/safety"
	"github.com/krivonosoff161/futures-exit-bot/internal/signals"
	"github.com/krivonosoff161/futures-exit-bot/internal/thresholds"
	"github.com/krivonosoff161/futures-exit-bot/pkg/config"
	"github.com/krivonosoff161/futures-exit-bot/pkg/reporting"
)

// ExitBot wires the exit decision engine to the Bybit account: it keeps
// positions and candles synced, feeds live prices into the resolver,
// evaluates every open position on a fixed cadence and executes the
// resulting close orders.
type ExitBot struct {
	config *config.Config
	log    zerolog.Logger

	client   *bybit.Client
	orders   orderClient
	registry *exchange.SyncedRegistry
	candles  *exchange.CandleCache
	prices   *pricing.Resolver
	hub      *exchange.MarketHub
	engine   *engine.Engine
	stream   *bybit.PriceStream
	health   *monitoring.HealthChecker
	trail    *reporting.AuditTrail
	server   *http.Server

	wg sync.WaitGroup
}

// orderClient is the venue surface the executor needs
type orderClient interface {
	FetchPositions(ctx context.Context, symbol string) ([]bybit.PositionInfo, error)
	ClosePosition(ctx context.Context, pos bybit.PositionInfo, fraction float64) error
}

// accountAdapter exposes the wallet balance under the engine's
// AccountSource interface
type accountAdapter struct {
	client *bybit.Client
}

func (a accountAdapter) Balance(ctx context.Context) (float64, error) {
	return a.client.WalletBalance(ctx)
}

// NewExitBot assembles the bot from configuration
func NewExitBot(cfg *config.Config, log zerolog.Logger) (*ExitBot, error) {
	bot := &ExitBot{
		config: cfg,
		log:    log,
		health: monitoring.NewHealthChecker(),
		trail:  reporting.NewAuditTrail(cfg.Reporting.BufferSize),
	}

	bot.client = bybit.NewClient(cfg.Bybit)
	bot.orders = bot.client
	bot.registry = exchange.NewSyncedRegistry(bot.client, logger.Component("registry"))
	bot.candles = exchange.NewCandleCache()

	// Reconnect requests from the resolver are forwarded to the stream
	// after construction; the governor rate-limits them.
	governor := safety.NewReconnectGovernor(safety.DefaultReconnectConfig(), bot.requestReconnect, logger.Component("reconnect"))
	bot.prices = pricing.NewResolver(cfg.PricingConfig(), bot.client, bot.candles, governor, logger.Component("pricing"))
	bot.hub = exchange.NewMarketHub(bot.prices, bot.candles, cfg.Regime, logger.Component("market"))

	bot.stream = bybit.NewPriceStream(bot.client, cfg.Symbols, bot.onPrice, bot.onStreamState, logger.Component("stream"))

	paramResolver, err := cfg.BuildResolver()
	if err != nil {
		return nil, fmt.Errorf("build parameter resolver: %w", err)
	}

	bot.engine = engine.New(cfg.Engine, engine.Deps{
		Positions:  bot.registry,
		Market:     bot.hub,
		Params:     paramResolver,
		Thresholds: thresholds.NewResolver(bot.hub, cfg.Thresholds, logger.Component("thresholds")),
		PnL:        pnl.NewCalculator(cfg.Fees),
		Signals: signals.NewAggregator(signals.Providers{
			Trend:   bot.hub,
			Funding: bot.client,
		}, signals.DefaultConfig(), logger.Component("signals")),
		Grace:    grace.NewManager(cfg.GraceWindow()),
		Trailing: bot.registry,
		Account:  accountAdapter{client: bot.client},
	}, logger.Component("engine"))

	if cfg.Monitoring.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.NewMetricsHandler())
		mux.Handle("/health", bot.health)
		bot.server = &http.Server{Addr: cfg.Monitoring.ListenAddr, Handler: mux}
	}

	return bot, nil
}

// Start performs the initial account sync and launches the stream,
// sync and evaluation loops. It returns once the loops are running.
func (b *ExitBot) Start(ctx context.Context) error {
	b.log.Info().
		Str("environment", b.client.Environment()).
		Strs("symbols", b.config.Symbols).
		Msg("starting exit bot")

	if err := b.registry.Sync(ctx); err != nil {
		return fmt.Errorf("initial position sync: %w", err)
	}
	b.refreshCandles(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.stream.Run(ctx)
	}()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.syncLoop(ctx)
	}()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.evalLoop(ctx)
	}()

	if b.server != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.log.Info().Str("addr", b.server.Addr).Msg("monitoring server listening")
			if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.log.Error().Err(err).Msg("monitoring server failed")
			}
		}()
	}

	b.log.Info().Msg("exit bot started")
	return nil
}

// Stop shuts down the monitoring server, waits for the loops to drain
// and writes the decision reports.
func (b *ExitBot) Stop() {
	if b.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.server.Shutdown(shutdownCtx); err != nil {
			b.log.Warn().Err(err).Msg("monitoring server shutdown")
		}
	}
	b.wg.Wait()
	b.writeReports()
	b.log.Info().Msg("exit bot stopped")
}

func (b *ExitBot) onPrice(symbol string, price float64) {
	b.prices.UpdateLive(symbol, price, time.Now())
	b.health.NotePrice(price)
	monitoring.UpdatePrice(symbol, price)
}

func (b *ExitBot) onStreamState(connected bool) {
	b.health.SetConnected(connected)
}

func (b *ExitBot) requestReconnect(symbol string, fallbackCount int, reason string) {
	b.log.Warn().Str("symbol", symbol).Int("fallback_count", fallbackCount).
		Str("reason", reason).Msg("requesting stream reconnect")
	monitoring.RecordReconnect(symbol)
	if b.stream != nil {
		b.stream.Reconnect(symbol, fallbackCount, reason)
	}
}

func (b *ExitBot) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(b.config.SyncInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.registry.Sync(ctx); err != nil {
				b.noteError(err, "position sync failed")
			}
			b.refreshCandles(ctx)
		}
	}
}

func (b *ExitBot) refreshCandles(ctx context.Context) {
	interval := bybit.KlineInterval(b.config.KlineInterval)
	for _, symbol := range b.config.Symbols {
		candles, err := b.client.FetchKlines(ctx, symbol, interval, b.config.KlineLimit)
		if err != nil {
			b.noteError(err, "kline refresh failed")
			continue
		}
		b.candles.Update(symbol, candles)
	}
}

func (b *ExitBot) evalLoop(ctx context.Context) {
	ticker := time.NewTicker(b.config.EvalInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.evaluateAll(ctx)
		}
	}
}

func (b *ExitBot) evaluateAll(ctx context.Context) {
	for _, symbol := range b.registry.Symbols() {
		start := time.Now()
		decision, err := b.engine.Evaluate(ctx, symbol)
		monitoring.ObserveEvaluation(symbol, time.Since(start).Seconds())
		b.health.NoteEvaluation()

		if err != nil {
			b.noteError(err, "evaluation degraded to hold")
			continue
		}
		if decision == nil {
			continue
		}

		monitoring.RecordDecision(symbol, decision.Action.String(), decision.Reason.String(),
			decision.Regime.String(), decision.NetPnLPct, decision.Emergency)
		if decision.Diagnostics.GraceActive {
			monitoring.RecordGraceActivation(symbol)
		}
		if src := decision.Diagnostics.PriceSource; src != "" && src != pricing.SourceLive.String() {
			monitoring.RecordPriceFallback(symbol, src)
		}
		b.trail.Add(reporting.FromDecision(decision))

		if err := b.execute(ctx, decision); err != nil {
			b.noteError(err, "decision execution failed")
		}
	}
}

// execute turns a close decision into a reduce-only order. Hold and
// take-profit-extension decisions are audit-only: the extended target
// lives in the decision diagnostics and the position stays open.
func (b *ExitBot) execute(ctx context.Context, decision *engine.Decision) error {
	switch decision.Action {
	case engine.ActionClose, engine.ActionPartialClose:
	default:
		return nil
	}

	infos, err := b.orders.FetchPositions(ctx, decision.Symbol)
	if err != nil {
		return fmt.Errorf("fetch position for close: %w", err)
	}
	if len(infos) == 0 {
		b.log.Warn().Str("symbol", decision.Symbol).Msg("position vanished before close")
		return nil
	}

	fraction := 1.0
	if decision.Action == engine.ActionPartialClose {
		fraction = decision.Fraction
	}

	if err := b.orders.ClosePosition(ctx, infos[0], fraction); err != nil {
		return fmt.Errorf("close %s: %w", decision.Symbol, err)
	}

	b.log.Info().
		Str("symbol", decision.Symbol).
		Str("action", decision.Action.String()).
		Str("reason", decision.Reason.String()).
		Float64("fraction", fraction).
		Float64("net_pnl_pct", decision.NetPnLPct).
		Bool("emergency", decision.Emergency).
		Msg("position close executed")

	if decision.Action == engine.ActionPartialClose {
		b.registry.MarkPartialTaken(decision.Symbol)
	}
	return nil
}

func (b *ExitBot) noteError(err error, msg string) {
	category := "UNKNOWN"
	var botErr *boterrors.BotError
	if errors.As(err, &botErr) {
		category = string(botErr.Category)
	}
	monitoring.RecordError(category)
	b.health.NoteError(err.Error())
	b.log.Error().Err(err).Msg(msg)
}

func (b *ExitBot) writeReports() {
	records := b.trail.Snapshot()
	if len(records) == 0 {
		return
	}

	reporting.NewConsoleReporter().PrintRecent(b.trail, 20)

	stamp := time.Now().Format("20060102_150405")
	csvPath := filepath.Join(b.config.Reporting.Dir, fmt.Sprintf("decisions_%s.csv", stamp))
	if err := reporting.WriteDecisionsCSV(records, csvPath); err != nil {
		b.log.Error().Err(err).Msg("write CSV report")
	} else {
		b.log.Info().Str("path", csvPath).Int("decisions", len(records)).Msg("decision report written")
	}

	if b.config.Reporting.ExcelEnabled {
		xlsxPath := filepath.Join(b.config.Reporting.Dir, fmt.Sprintf("decisions_%s.xlsx", stamp))
		if err := reporting.WriteDecisionsXLSX(records, xlsxPath); err != nil {
			b.log.Error().Err(err).Msg("write Excel report")
		}
	}
}
