package bybit

import (
	"context"
	"fmt"
	"time"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// PositionInfo is the venue-reported state of one open position
type PositionInfo struct {
	Symbol        string
	Side          types.Side
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	Leverage      float64
	UnrealisedPnl float64
	PositionIM    float64 // Initial margin backing the position
	TrailingStop  float64
	CreatedTime   time.Time
	UpdatedTime   time.Time
}

// WalletBalance returns the total USDT-denominated wallet balance of the
// unified account. It satisfies the engine's account source contract.
func (c *Client) WalletBalance(ctx context.Context) (float64, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        "USDT",
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get account wallet: %w", err)
	}

	walletResult, err := decodeResult[struct {
		List []struct {
			TotalWalletBalance string `json:"totalWalletBalance"`
			Coin               []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	}](result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse wallet response: %w", err)
	}
	if len(walletResult.List) == 0 {
		return 0, fmt.Errorf("no wallet data returned")
	}

	for _, coin := range walletResult.List[0].Coin {
		if coin.Coin == "USDT" {
			return parseFloat64(coin.WalletBalance), nil
		}
	}
	return parseFloat64(walletResult.List[0].TotalWalletBalance), nil
}

// FetchPositions returns all open linear positions, optionally filtered
// by symbol. Closed positions (size 0) are dropped.
func (c *Client) FetchPositions(ctx context.Context, symbol string) ([]PositionInfo, error) {
	params := map[string]interface{}{
		"category":   category,
		"settleCoin": "USDT",
	}
	if symbol != "" {
		params["symbol"] = symbol
		delete(params, "settleCoin")
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	posResult, err := decodeResult[struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			MarkPrice     string `json:"markPrice"`
			Leverage      string `json:"leverage"`
			UnrealisedPnl string `json:"unrealisedPnl"`
			PositionIM    string `json:"positionIM"`
			TrailingStop  string `json:"trailingStop"`
			CreatedTime   string `json:"createdTime"`
			UpdatedTime   string `json:"updatedTime"`
		} `json:"list"`
	}](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse position response: %w", err)
	}

	positions := make([]PositionInfo, 0, len(posResult.List))
	for _, item := range posResult.List {
		size := parseFloat64(item.Size)
		if size <= 0 {
			continue
		}
		side := types.SideLong
		if item.Side == "Sell" {
			side = types.SideShort
		}
		positions = append(positions, PositionInfo{
			Symbol:        item.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    parseFloat64(item.AvgPrice),
			MarkPrice:     parseFloat64(item.MarkPrice),
			Leverage:      parseFloat64(item.Leverage),
			UnrealisedPnl: parseFloat64(item.UnrealisedPnl),
			PositionIM:    parseFloat64(item.PositionIM),
			TrailingStop:  parseFloat64(item.TrailingStop),
			CreatedTime:   time.UnixMilli(parseInt64(item.CreatedTime)),
			UpdatedTime:   time.UnixMilli(parseInt64(item.UpdatedTime)),
		})
	}

	return positions, nil
}

// ClosePosition submits a reduce-only market order closing fraction of
// the position (1.0 closes it entirely).
func (c *Client) ClosePosition(ctx context.Context, pos PositionInfo, fraction float64) error {
	if fraction <= 0 || fraction > 1 {
		return fmt.Errorf("close fraction %v out of range", fraction)
	}

	side := "Sell"
	if pos.Side == types.SideShort {
		side = "Buy"
	}

	params := map[string]interface{}{
		"category":   category,
		"symbol":     pos.Symbol,
		"side":       side,
		"orderType":  "Market",
		"qty":        fmt.Sprintf("%v", pos.Size*fraction),
		"reduceOnly": true,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to place close order: %w", err)
	}
	if _, err := decodeResult[struct {
		OrderID string `json:"orderId"`
	}](result); err != nil {
		return fmt.Errorf("close order rejected: %w", err)
	}
	return nil
}
