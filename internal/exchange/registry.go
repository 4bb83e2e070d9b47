package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/krivonosoff161/futures-exit-bot/internal/exchange/bybit"
	"github.com/krivonosoff161/futures-exit-bot/internal/position"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// PositionSource fetches open positions from the venue
type PositionSource interface {
	FetchPositions(ctx context.Context, symbol string) ([]bybit.PositionInfo, error)
}

// SyncedRegistry mirrors venue positions into the registry shape the
// decision engine consumes. Partial-taken flags and peak profit survive
// refreshes; a position that disappears from the venue clears both.
type SyncedRegistry struct {
	source PositionSource
	log    zerolog.Logger

	mu        sync.RWMutex
	positions map[string]*position.Position
	metadata  map[string]*position.Metadata
}

// NewSyncedRegistry creates a registry refreshed from the given source
func NewSyncedRegistry(source PositionSource, log zerolog.Logger) *SyncedRegistry {
	return &SyncedRegistry{
		source:    source,
		log:       log.With().Str("component", "position_registry").Logger(),
		positions: make(map[string]*position.Position),
		metadata:  make(map[string]*position.Metadata),
	}
}

// Sync refreshes the registry from the venue
func (r *SyncedRegistry) Sync(ctx context.Context) error {
	infos, err := r.source.FetchPositions(ctx, "")
	if err != nil {
		return fmt.Errorf("sync positions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.Symbol] = true
		r.applyLocked(info)
	}

	for symbol := range r.positions {
		if !seen[symbol] {
			delete(r.positions, symbol)
			delete(r.metadata, symbol)
			r.log.Info().Str("symbol", symbol).Msg("position closed on venue, dropped")
		}
	}

	return nil
}

func (r *SyncedRegistry) applyLocked(info bybit.PositionInfo) {
	r.positions[info.Symbol] = &position.Position{
		Symbol:     info.Symbol,
		Side:       info.Side,
		EntryPrice: info.EntryPrice,
		Size:       info.Size,
		Leverage:   info.Leverage,
		EntryTime:  info.CreatedTime,
		EntryOrder: types.OrderTypeMarket, // Venue does not report the entry order type
	}

	meta, ok := r.metadata[info.Symbol]
	if !ok {
		meta = &position.Metadata{}
		r.metadata[info.Symbol] = meta
	}
	meta.MarginUsed = info.PositionIM
	meta.UnrealizedPnL = info.UnrealisedPnl
	meta.HasMarginData = info.PositionIM > 0
	meta.TrailingStop = info.TrailingStop

	if meta.HasMarginData {
		if pct := info.UnrealisedPnl / info.PositionIM * 100; pct > meta.PeakProfitPct {
			meta.PeakProfitPct = pct
		}
	}
}

// GetPosition implements position.Registry
func (r *SyncedRegistry) GetPosition(symbol string) (*position.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.positions[symbol]
	return pos, ok
}

// GetMetadata implements position.Registry
func (r *SyncedRegistry) GetMetadata(symbol string) (*position.Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metadata[symbol]
	return meta, ok
}

// MarkPartialTaken implements position.Registry
func (r *SyncedRegistry) MarkPartialTaken(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if meta, ok := r.metadata[symbol]; ok {
		meta.PartialTaken = true
	}
}

// TrailingStop exposes the venue-side trailing stop for the engine
func (r *SyncedRegistry) TrailingStop(symbol string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metadata[symbol]
	if !ok || meta.TrailingStop <= 0 {
		return 0, false
	}
	return meta.TrailingStop, true
}

// Symbols returns the symbols with open positions
func (r *SyncedRegistry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.positions))
	for symbol := range r.positions {
		out = append(out, symbol)
	}
	return out
}
