package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/krivonosoff161/futures-exit-bot/pkg/types"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval1h  KlineInterval = "60"
	Interval4h  KlineInterval = "240"
	Interval1d  KlineInterval = "D"
)

// FetchPrice returns the latest traded price for a linear symbol.
// The method satisfies the price resolver's network-fetch contract.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	ticker, err := c.FetchTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return ticker.Price, nil
}

// FetchTicker returns the full ticker for a linear symbol
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*types.Ticker, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickers: %w", err)
	}

	tickerResult, err := decodeResult[struct {
		Category string `json:"category"`
		List     []struct {
			Symbol      string `json:"symbol"`
			LastPrice   string `json:"lastPrice"`
			Volume24h   string `json:"volume24h"`
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	}](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ticker response: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return nil, fmt.Errorf("no ticker data for %s", symbol)
	}

	entry := tickerResult.List[0]
	return &types.Ticker{
		Symbol:    entry.Symbol,
		Price:     parseFloat64(entry.LastPrice),
		Volume:    parseFloat64(entry.Volume24h),
		Timestamp: time.Now(),
	}, nil
}

// FetchOrderBook returns a depth snapshot for a linear symbol
func (c *Client) FetchOrderBook(ctx context.Context, symbol string) (*types.OrderBook, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"limit":    25,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get order book: %w", err)
	}

	bookResult, err := decodeResult[struct {
		Symbol    string     `json:"s"`
		Bids      [][]string `json:"b"`
		Asks      [][]string `json:"a"`
		Timestamp int64      `json:"ts"`
	}](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order book response: %w", err)
	}

	return &types.OrderBook{
		Symbol:    bookResult.Symbol,
		Bids:      parseLevels(bookResult.Bids),
		Asks:      parseLevels(bookResult.Asks),
		Timestamp: time.UnixMilli(bookResult.Timestamp),
	}, nil
}

// FetchKlines fetches candles for a linear symbol, oldest first
func (c *Client) FetchKlines(ctx context.Context, symbol string, interval KlineInterval, limit int) ([]types.OHLCV, error) {
	if limit == 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"interval": string(interval),
		"limit":    limit,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	klineResult, err := decodeResult[struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kline response: %w", err)
	}

	// Bybit returns newest first: [startTime, open, high, low, close, volume, turnover]
	candles := make([]types.OHLCV, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		item := klineResult.List[i]
		if len(item) < 7 {
			continue
		}
		candles = append(candles, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(item[0])),
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
		})
	}

	return candles, nil
}

// FundingRate returns the current funding rate for a linear symbol.
// The method satisfies the signal aggregator's funding provider contract.
func (c *Client) FundingRate(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get funding rate: %w", err)
	}

	tickerResult, err := decodeResult[struct {
		List []struct {
			Symbol      string `json:"symbol"`
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	}](result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse funding response: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return 0, fmt.Errorf("no funding data for %s", symbol)
	}

	return parseFloat64(tickerResult.List[0].FundingRate), nil
}

// decodeResult validates a ServerResponse and unmarshals its Result
func decodeResult[T any](response interface{}) (*T, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var out T
	if err := json.Unmarshal(resultBytes, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &out, nil
}

func parseLevels(raw [][]string) []types.PriceLevel {
	levels := make([]types.PriceLevel, 0, len(raw))
	for _, item := range raw {
		if len(item) < 2 {
			continue
		}
		levels = append(levels, types.PriceLevel{
			Price: parseFloat64(item[0]),
			Size:  parseFloat64(item[1]),
		})
	}
	return levels
}

func parseFloat64(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
