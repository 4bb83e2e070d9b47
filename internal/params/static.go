package params

import (
	"context"
	"sync"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
)

// StaticResolver serves bundles from an in-memory regime-scoped table,
// optionally overridden per symbol. It backs the wiring binary and tests;
// production deployments can swap in any Resolver.
type StaticResolver struct {
	mu       sync.RWMutex
	byRegime map[regime.RegimeType]*Bundle
	bySymbol map[string]map[regime.RegimeType]*Bundle
}

// NewStaticResolver creates a resolver from a regime-scoped bundle table
func NewStaticResolver(byRegime map[regime.RegimeType]*Bundle) *StaticResolver {
	return &StaticResolver{
		byRegime: byRegime,
		bySymbol: make(map[string]map[regime.RegimeType]*Bundle),
	}
}

// SetSymbolOverride installs a symbol-specific bundle for one regime
func (s *StaticResolver) SetSymbolOverride(symbol string, r regime.RegimeType, bundle *Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bySymbol[symbol] == nil {
		s.bySymbol[symbol] = make(map[regime.RegimeType]*Bundle)
	}
	s.bySymbol[symbol][r] = bundle
}

// ResolveParameters implements Resolver
func (s *StaticResolver) ResolveParameters(_ context.Context, symbol string, r regime.RegimeType, _ float64) (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if overrides, ok := s.bySymbol[symbol]; ok {
		if bundle, ok := overrides[r]; ok {
			return bundle, nil
		}
	}
	bundle, ok := s.byRegime[r]
	if !ok {
		return nil, boterrors.NewMissingData("params", "resolve", "no bundle for regime").
			WithContext("symbol", symbol).WithContext("regime", r.String())
	}
	return bundle, nil
}

// DefaultBundles returns a conservative regime-scoped parameter table
func DefaultBundles() map[regime.RegimeType]*Bundle {
	trending := &Bundle{
		TakeProfitPct:             1.2,
		StopLossPct:               0.8,
		TPATRMultiplier:           2.0,
		SLATRMultiplier:           1.5,
		MinTPPct:                  0.4,
		MaxTPPct:                  3.0,
		MinSLPct:                  0.3,
		MaxSLPct:                  2.0,
		MinHoldingMinutes:         5,
		MaxHoldingMinutes:         240,
		EmergencyLossPct:          7.0,
		EmergencyMinHoldSeconds:   120,
		SmartCloseScoreThreshold:  1,
		SmartCloseTrendThreshold:  0.6,
		PartialTPEnabled:          true,
		PartialTPTriggerPct:       0.6,
		ReversalMinProfitPct:      0, // Unconditional in trending
		ProfitExtensionTriggerPct: 0.8,
		ProfitExtensionPct:        50,
		HardStopEnabled:           false,
		TimeoutLossPct:            0.5,
		ReferenceLeverage:         5,
	}
	ranging := &Bundle{
		TakeProfitPct:             0.8,
		StopLossPct:               0.6,
		TPATRMultiplier:           1.5,
		SLATRMultiplier:           1.2,
		MinTPPct:                  0.3,
		MaxTPPct:                  2.0,
		MinSLPct:                  0.25,
		MaxSLPct:                  1.5,
		MinHoldingMinutes:         4,
		MaxHoldingMinutes:         120,
		EmergencyLossPct:          6.0,
		EmergencyMinHoldSeconds:   60,
		SmartCloseScoreThreshold:  2,
		SmartCloseTrendThreshold:  0.5,
		PartialTPEnabled:          true,
		PartialTPTriggerPct:       0.5,
		ReversalMinProfitPct:      0.3,
		ProfitExtensionTriggerPct: 0.6,
		ProfitExtensionPct:        25,
		HardStopEnabled:           false,
		TimeoutLossPct:            0.4,
		ReferenceLeverage:         5,
	}
	choppy := &Bundle{
		TakeProfitPct:             0.6,
		StopLossPct:               0.5,
		TPATRMultiplier:           1.2,
		SLATRMultiplier:           1.0,
		MinTPPct:                  0.25,
		MaxTPPct:                  1.5,
		MinSLPct:                  0.2,
		MaxSLPct:                  1.2,
		MinHoldingMinutes:         3,
		MaxHoldingMinutes:         90,
		EmergencyLossPct:          5.0,
		EmergencyMinHoldSeconds:   90,
		SmartCloseScoreThreshold:  2,
		SmartCloseTrendThreshold:  0.5,
		PartialTPEnabled:          true,
		PartialTPTriggerPct:       0.4,
		ReversalMinProfitPct:      0, // Unconditional in choppy
		ProfitExtensionTriggerPct: 0.5,
		ProfitExtensionPct:        20,
		HardStopEnabled:           true,
		TimeoutLossPct:            0.3,
		ReferenceLeverage:         5,
	}
	return map[regime.RegimeType]*Bundle{
		regime.RegimeTrending: trending,
		regime.RegimeRanging:  ranging,
		regime.RegimeChoppy:   choppy,
	}
}
