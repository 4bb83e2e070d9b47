package params

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
)

func validBundle() *Bundle {
	return &Bundle{
		TakeProfitPct:            1.2,
		StopLossPct:              0.8,
		TPATRMultiplier:          2.0,
		SLATRMultiplier:          1.5,
		MinTPPct:                 0.4,
		MaxTPPct:                 3.0,
		MinSLPct:                 0.3,
		MaxSLPct:                 2.0,
		MinHoldingMinutes:        5,
		MaxHoldingMinutes:        240,
		EmergencyLossPct:         7.0,
		EmergencyMinHoldSeconds:  120,
		SmartCloseScoreThreshold: 2,
		SmartCloseTrendThreshold: 0.5,
		PartialTPEnabled:         true,
		PartialTPTriggerPct:      0.6,
		ReferenceLeverage:        5,
	}
}

func TestBundleValidate_Valid(t *testing.T) {
	assert.NoError(t, validBundle().Validate())
}

func TestBundleValidate_RejectsWholesale(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Bundle)
	}{
		{"zero take profit", func(b *Bundle) { b.TakeProfitPct = 0 }},
		{"negative stop loss", func(b *Bundle) { b.StopLossPct = -0.5 }},
		{"inverted tp bounds", func(b *Bundle) { b.MinTPPct = 2.0; b.MaxTPPct = 1.0 }},
		{"zero min sl bound", func(b *Bundle) { b.MinSLPct = 0 }},
		{"zero max holding", func(b *Bundle) { b.MaxHoldingMinutes = 0 }},
		{"zero emergency threshold", func(b *Bundle) { b.EmergencyLossPct = 0 }},
		{"score threshold above ladder max", func(b *Bundle) { b.SmartCloseScoreThreshold = 8 }},
		{"trend threshold above one", func(b *Bundle) { b.SmartCloseTrendThreshold = 1.5 }},
		{"partial enabled without trigger", func(b *Bundle) { b.PartialTPTriggerPct = 0 }},
		{"reference leverage below one", func(b *Bundle) { b.ReferenceLeverage = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bundle := validBundle()
			tc.mutate(bundle)
			err := bundle.Validate()
			require.Error(t, err)

			var botErr *boterrors.BotError
			require.ErrorAs(t, err, &botErr)
			assert.Equal(t, boterrors.ErrorCategoryParameters, botErr.Category)
		})
	}
}

func TestBundleValidate_PartialDisabledSkipsTrigger(t *testing.T) {
	bundle := validBundle()
	bundle.PartialTPEnabled = false
	bundle.PartialTPTriggerPct = 0
	assert.NoError(t, bundle.Validate())
}

func TestStaticResolver_ByRegime(t *testing.T) {
	resolver := NewStaticResolver(DefaultBundles())

	trending, err := resolver.ResolveParameters(context.Background(), "BTCUSDT", regime.RegimeTrending, 0)
	require.NoError(t, err)
	choppy, err := resolver.ResolveParameters(context.Background(), "BTCUSDT", regime.RegimeChoppy, 0)
	require.NoError(t, err)

	assert.Greater(t, trending.TakeProfitPct, choppy.TakeProfitPct,
		"trending rides further than choppy")
	assert.True(t, choppy.HardStopEnabled)
	assert.False(t, trending.HardStopEnabled)
}

func TestStaticResolver_SymbolOverrideWins(t *testing.T) {
	resolver := NewStaticResolver(DefaultBundles())
	custom := validBundle()
	custom.TakeProfitPct = 9.9
	resolver.SetSymbolOverride("ETHUSDT", regime.RegimeRanging, custom)

	got, err := resolver.ResolveParameters(context.Background(), "ETHUSDT", regime.RegimeRanging, 0)
	require.NoError(t, err)
	assert.InDelta(t, 9.9, got.TakeProfitPct, 1e-9)

	other, err := resolver.ResolveParameters(context.Background(), "BTCUSDT", regime.RegimeRanging, 0)
	require.NoError(t, err)
	assert.NotEqual(t, 9.9, other.TakeProfitPct)
}

func TestResolveValidated_RejectsInvalidBundle(t *testing.T) {
	broken := validBundle()
	broken.MaxHoldingMinutes = 0
	resolver := NewStaticResolver(map[regime.RegimeType]*Bundle{
		regime.RegimeRanging: broken,
	})

	_, err := ResolveValidated(context.Background(), resolver, "BTCUSDT", regime.RegimeRanging, 0)
	assert.Error(t, err)
}

func TestResolveValidated_UnknownRegimeIsMissingData(t *testing.T) {
	resolver := NewStaticResolver(map[regime.RegimeType]*Bundle{})
	_, err := ResolveValidated(context.Background(), resolver, "BTCUSDT", regime.RegimeRanging, 0)
	require.Error(t, err)
	assert.True(t, boterrors.IsMissingData(err))
}

func TestDefaultBundles_AllValid(t *testing.T) {
	for reg, bundle := range DefaultBundles() {
		assert.NoError(t, bundle.Validate(), reg.String())
	}
}
