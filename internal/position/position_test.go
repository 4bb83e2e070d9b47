package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

func validPosition() *Position {
	return &Position{
		Symbol:     "BTCUSDT",
		Side:       types.SideLong,
		EntryPrice: 50000,
		Size:       0.1,
		Leverage:   5,
		EntryTime:  time.Now().Add(-time.Minute),
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validPosition().Validate())
}

func TestValidate_Invariants(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Position)
	}{
		{"zero entry price", func(p *Position) { p.EntryPrice = 0 }},
		{"negative entry price", func(p *Position) { p.EntryPrice = -1 }},
		{"zero size", func(p *Position) { p.Size = 0 }},
		{"fractional leverage", func(p *Position) { p.Leverage = 0.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos := validPosition()
			tc.mutate(pos)
			err := pos.Validate()
			require.Error(t, err)
			assert.True(t, boterrors.IsInvariant(err))
		})
	}
}

func TestValidate_OneXLeverageAllowed(t *testing.T) {
	pos := validPosition()
	pos.Leverage = 1
	assert.NoError(t, pos.Validate())
}

func TestHoldingDuration(t *testing.T) {
	pos := validPosition()
	entry := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	pos.EntryTime = entry

	assert.Equal(t, 90*time.Second, pos.HoldingDuration(entry.Add(90*time.Second)))
}
