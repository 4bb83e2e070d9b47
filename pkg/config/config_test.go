package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `{"symbols": ["BTCUSDT", "ETHUSDT"]}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.EvalInterval())
	assert.Equal(t, 15*time.Second, cfg.SyncInterval())
	assert.Equal(t, 30*time.Second, cfg.GraceWindow())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.Monitoring.ListenAddr)
	assert.InDelta(t, 20.0, cfg.Engine.CriticalLossPct, 1e-9)
	assert.InDelta(t, 0.00055, cfg.Fees.TakerFeeRate, 1e-9)

	pricing := cfg.PricingConfig()
	assert.Equal(t, 2*time.Second, pricing.ExitBudget)
	assert.Equal(t, 5*time.Second, pricing.SignalBudget)
}

func TestLoad_NoSymbolsRejected(t *testing.T) {
	path := writeConfig(t, `{"symbols": []}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoad_InvalidBundleRejected(t *testing.T) {
	path := writeConfig(t, `{
		"symbols": ["BTCUSDT"],
		"parameters": {"TRENDING": {"take_profit_pct": 0}}
	}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_UnknownRegimeRejected(t *testing.T) {
	path := writeConfig(t, `{
		"symbols": ["BTCUSDT"],
		"parameters": {"SIDEWAYS": {"take_profit_pct": 1}}
	}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_CredentialsFromEnv(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "key-from-env")
	t.Setenv("BYBIT_API_SECRET", "secret-from-env")

	path := writeConfig(t, `{"symbols": ["BTCUSDT"]}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.Bybit.APIKey)
	assert.Equal(t, "secret-from-env", cfg.Bybit.APISecret)
}

func TestBuildResolver_OverlaysConfiguredBundles(t *testing.T) {
	path := writeConfig(t, `{
		"symbols": ["BTCUSDT"],
		"parameters": {
			"RANGING": {
				"take_profit_pct": 3.3,
				"stop_loss_pct": 1.0,
				"tp_atr_multiplier": 2.0,
				"sl_atr_multiplier": 1.5,
				"min_tp_pct": 0.5,
				"max_tp_pct": 5.0,
				"min_sl_pct": 0.3,
				"max_sl_pct": 2.0,
				"min_holding_minutes": 4,
				"max_holding_minutes": 120,
				"emergency_loss_pct": 6.0,
				"emergency_min_hold_seconds": 60,
				"smart_close_score_threshold": 2,
				"smart_close_trend_threshold": 0.5,
				"reference_leverage": 5
			}
		}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	resolver, err := cfg.BuildResolver()
	require.NoError(t, err)

	ranging, err := resolver.ResolveParameters(context.Background(), "BTCUSDT", regime.RegimeRanging, 0)
	require.NoError(t, err)
	assert.InDelta(t, 3.3, ranging.TakeProfitPct, 1e-9)

	// Regimes not configured keep the built-in defaults
	trending, err := resolver.ResolveParameters(context.Background(), "BTCUSDT", regime.RegimeTrending, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, trending.TakeProfitPct, 1e-9)
}
